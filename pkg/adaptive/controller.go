// Package adaptive picks the stream profile from the link quality.
package adaptive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wachiwi/camlink/pkg/camera"
)

// EvaluationInterval is the minimum spacing between two evaluations.
const EvaluationInterval = 5 * time.Second

var profileChangesCounter metric.Int64Counter

func init() {
	var err error
	meter := otel.Meter("github.com/wachiwi/camlink/pkg/adaptive")
	profileChangesCounter, err = meter.Int64Counter("camlink.adaptive.profile_changes",
		metric.WithDescription("Profile changes requested by the adaptive controller"),
		metric.WithUnit("{changes}"),
	)
	if err != nil {
		slog.Error("Failed to create adaptive metrics", "error", err)
	}
}

// Thresholds are the RSSI bounds in dBm. A signal at or below Resilient
// selects RESILIENT, at or below Balanced selects BALANCED, anything
// stronger selects HIGH.
type Thresholds struct {
	Resilient int
	Balanced  int
}

// DefaultThresholds returns the bounds tuned for the OV2640 boards.
func DefaultThresholds() Thresholds {
	return Thresholds{Resilient: -78, Balanced: -68}
}

// SelectProfile maps a signal strength to a profile.
func SelectProfile(rssi int, th Thresholds) camera.Profile {
	if rssi <= th.Resilient {
		return camera.ProfileResilient
	}
	if rssi <= th.Balanced {
		return camera.ProfileBalanced
	}
	return camera.ProfileHigh
}

// Link is the part of the link manager the controller reads.
type Link interface {
	Connected() bool
	SignalStrength() int
}

// Camera is the part of the camera manager the controller drives.
type Camera interface {
	Ready() bool
	ActiveProfile() camera.Profile
	ApplyProfile(p camera.Profile, force bool) error
}

// Controller re-evaluates the profile on every supervisory tick.
type Controller struct {
	link       Link
	cam        Camera
	thresholds Thresholds

	mu       sync.Mutex
	lastEval time.Time
	now      func() time.Time
}

// NewController returns a controller using th.
func NewController(l Link, cam Camera, th Thresholds) *Controller {
	return &Controller{
		link:       l,
		cam:        cam,
		thresholds: th,
		now:        time.Now,
	}
}

// Evaluate applies the profile matching the current signal strength. It
// does nothing while the link is down, the camera is not ready, or the
// previous evaluation was less than EvaluationInterval ago.
func (c *Controller) Evaluate(ctx context.Context) {
	if !c.link.Connected() || !c.cam.Ready() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !c.lastEval.IsZero() && now.Sub(c.lastEval) < EvaluationInterval {
		return
	}
	c.lastEval = now

	rssi := c.link.SignalStrength()
	want := SelectProfile(rssi, c.thresholds)
	before := c.cam.ActiveProfile()
	if err := c.cam.ApplyProfile(want, false); err != nil {
		slog.Warn("Failed to apply stream profile", "profile", want, "rssi", rssi, "error", err)
		return
	}
	if after := c.cam.ActiveProfile(); after != before {
		profileChangesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("profile", after.String())))
		slog.Info("Stream profile changed", "from", before, "to", after, "rssi", rssi)
	}
}
