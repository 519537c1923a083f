package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/wachiwi/camlink/pkg/camera"
	"github.com/wachiwi/camlink/pkg/link"
)

func TestTargetFPS(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     int
	}{
		{time.Second / 8, 8},
		{time.Second / 6, 6},
		{250 * time.Millisecond, 4},
		{0, 0},
		{time.Microsecond, 0},
	}
	for _, tt := range tests {
		if got := targetFPS(tt.interval); got != tt.want {
			t.Errorf("targetFPS(%v) = %d, want %d", tt.interval, got, tt.want)
		}
	}
}

func TestSnapshot(t *testing.T) {
	iface := link.NewSimulated(-85)
	lm := link.NewManager(iface, link.Credentials{SSID: "camnet", Password: "secret"})

	dev := camera.NewSimulated(camera.SimulatedOptions{AuxMemory: true})
	cam := camera.NewManager(dev, camera.DefaultProfileSettings())
	r := NewReporter(lm, cam)

	before := r.Snapshot()
	if before.WiFiConnected || before.CameraInitialized {
		t.Errorf("unexpected snapshot before boot: %+v", before)
	}

	if err := cam.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := iface.Associate(t.Context(), "camnet", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := cam.ApplyProfile(camera.ProfileResilient, false); err != nil {
		t.Fatal(err)
	}

	want := Snapshot{
		WiFiConnected:     true,
		CameraInitialized: true,
		IP:                "127.0.0.1",
		RSSI:              -85,
		StreamProfile:     "RESILIENT",
		TargetFPS:         4,
	}
	if got := r.Snapshot(); got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
}

func TestSnapshotJSONFields(t *testing.T) {
	data, err := json.Marshal(Snapshot{StreamProfile: "HIGH"})
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"wifiConnected", "cameraInitialized", "ip", "rssi", "streamProfile", "targetFps"} {
		if _, ok := fields[name]; !ok {
			t.Errorf("missing field %q in %s", name, data)
		}
	}
	if len(fields) != 6 {
		t.Errorf("unexpected fields in %s", data)
	}
}

func TestRecord(t *testing.T) {
	iface := link.NewSimulated(-60)
	lm := link.NewManager(iface, link.Credentials{SSID: "camnet", Password: "secret"})
	cam := camera.NewManager(camera.NewSimulated(camera.SimulatedOptions{}), camera.DefaultProfileSettings())

	// gauges use the global no-op provider here; recording must not panic
	NewReporter(lm, cam).Record(t.Context())
}
