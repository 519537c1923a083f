package status

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	linkUpGauge      metric.Int64Gauge
	rssiGauge        metric.Int64Gauge
	cameraReadyGauge metric.Int64Gauge
	targetFPSGauge   metric.Int64Gauge
)

func init() {
	meter := otel.Meter("github.com/wachiwi/camlink/pkg/status")

	var err error
	linkUpGauge, err = meter.Int64Gauge("camlink.link.connected", metric.WithDescription("1 if the WiFi link is up, 0 otherwise"))
	if err != nil {
		slog.Error("Failed to create link gauge", "error", err)
	}
	rssiGauge, err = meter.Int64Gauge("camlink.link.rssi", metric.WithDescription("WiFi signal strength"), metric.WithUnit("dBm"))
	if err != nil {
		slog.Error("Failed to create rssi gauge", "error", err)
	}
	cameraReadyGauge, err = meter.Int64Gauge("camlink.camera.ready", metric.WithDescription("1 if the camera is ready, 0 otherwise"))
	if err != nil {
		slog.Error("Failed to create camera gauge", "error", err)
	}
	targetFPSGauge, err = meter.Int64Gauge("camlink.stream.target_fps", metric.WithDescription("Frame rate of the active profile"))
	if err != nil {
		slog.Error("Failed to create fps gauge", "error", err)
	}
}

func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Record exports the current snapshot as gauges.
func (r *Reporter) Record(ctx context.Context) {
	s := r.Snapshot()
	linkUpGauge.Record(ctx, boolValue(s.WiFiConnected))
	if s.WiFiConnected {
		rssiGauge.Record(ctx, int64(s.RSSI))
	}
	cameraReadyGauge.Record(ctx, boolValue(s.CameraInitialized))
	targetFPSGauge.Record(ctx, int64(s.TargetFPS), metric.WithAttributes(attribute.String("profile", s.StreamProfile)))
}
