package camera

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/wachiwi/camlink/pkg/camera"

var (
	tracer = otel.Tracer(instrumentationName)

	recoveriesCounter      metric.Int64Counter
	captureFailuresCounter metric.Int64Counter
)

func init() {
	var err error
	meter := otel.Meter(instrumentationName)
	recoveriesCounter, err = meter.Int64Counter("camlink.camera.recoveries",
		metric.WithDescription("Camera recovery attempts that passed the cooldown"),
		metric.WithUnit("{recoveries}"),
	)
	if err != nil {
		slog.Error("Failed to create recovery metrics", "error", err)
	}
	captureFailuresCounter, err = meter.Int64Counter("camlink.camera.capture_failures",
		metric.WithDescription("Capture calls that produced no frame"),
		metric.WithUnit("{captures}"),
	)
	if err != nil {
		slog.Error("Failed to create capture metrics", "error", err)
	}
}
