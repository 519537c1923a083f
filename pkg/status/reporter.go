// Package status renders health snapshots of the controller.
package status

import (
	"time"

	"github.com/wachiwi/camlink/pkg/camera"
)

// Snapshot is the health document served on /health.
type Snapshot struct {
	WiFiConnected     bool   `json:"wifiConnected"`
	CameraInitialized bool   `json:"cameraInitialized"`
	IP                string `json:"ip"`
	RSSI              int    `json:"rssi"`
	StreamProfile     string `json:"streamProfile"`
	TargetFPS         int    `json:"targetFps"`
}

type Link interface {
	Connected() bool
	SignalStrength() int
	LocalAddress() string
}

type Camera interface {
	Ready() bool
	ActiveProfile() camera.Profile
	MinFrameInterval() time.Duration
}

// Reporter reads the other components without taking their locks.
type Reporter struct {
	link Link
	cam  Camera
}

func NewReporter(l Link, cam Camera) *Reporter {
	return &Reporter{link: l, cam: cam}
}

// Snapshot returns the current health.
func (r *Reporter) Snapshot() Snapshot {
	return Snapshot{
		WiFiConnected:     r.link.Connected(),
		CameraInitialized: r.cam.Ready(),
		IP:                r.link.LocalAddress(),
		RSSI:              r.link.SignalStrength(),
		StreamProfile:     r.cam.ActiveProfile().String(),
		TargetFPS:         targetFPS(r.cam.MinFrameInterval()),
	}
}

func targetFPS(interval time.Duration) int {
	ms := interval.Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int(1000 / ms)
}
