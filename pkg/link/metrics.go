package link

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/wachiwi/camlink/pkg/link"

var (
	tracer = otel.Tracer(instrumentationName)

	reconnectFailuresCounter metric.Int64Counter
)

func init() {
	var err error
	meter := otel.Meter(instrumentationName)
	reconnectFailuresCounter, err = meter.Int64Counter("camlink.link.reconnect_failures",
		metric.WithDescription("Failed WiFi reconnection attempts"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		slog.Error("Failed to create link metrics", "error", err)
	}
}
