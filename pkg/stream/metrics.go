package stream

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	framesCounter   metric.Int64Counter
	sessionsCounter metric.Int64Counter

	outcomeAdmitted = metric.WithAttributes(attribute.String("outcome", "admitted"))
	outcomeBusy     = metric.WithAttributes(attribute.String("outcome", "busy"))
)

func init() {
	var err error
	meter := otel.Meter("github.com/wachiwi/camlink/pkg/stream")
	framesCounter, err = meter.Int64Counter("camlink.stream.frames",
		metric.WithDescription("Frames written to stream clients"),
		metric.WithUnit("{frames}"),
	)
	if err != nil {
		slog.Error("Failed to create frame metrics", "error", err)
	}
	sessionsCounter, err = meter.Int64Counter("camlink.stream.sessions",
		metric.WithDescription("Stream admission attempts by outcome"),
		metric.WithUnit("{sessions}"),
	)
	if err != nil {
		slog.Error("Failed to create session metrics", "error", err)
	}
}
