package link

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var testCreds = Credentials{SSID: "camnet", Password: "secret"}

// fakeIface comes up after a number of status polls.
type fakeIface struct {
	mu           sync.Mutex
	associateErr error
	upAfter      int
	never        bool
	polls        int
	associations int
}

func (f *fakeIface) Associate(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.associations++
	f.polls = 0
	return f.associateErr
}

func (f *fakeIface) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.associations == 0 || f.never || f.associateErr != nil {
		return false
	}
	f.polls++
	return f.polls > f.upAfter
}

func (f *fakeIface) SignalStrength() int  { return -60 }
func (f *fakeIface) LocalAddress() string { return "10.0.0.2" }

func newTestManager(iface Interface, creds Credentials) (*Manager, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager(iface, creds)
	m.now = func() time.Time { return now }
	m.pollInterval = time.Millisecond
	m.connectTimeout = 50 * time.Millisecond
	return m, &now
}

func TestCredentialsPlaceholder(t *testing.T) {
	tests := []struct {
		creds Credentials
		want  bool
	}{
		{Credentials{}, true},
		{Credentials{SSID: "YOUR_WIFI_SSID", Password: "x"}, true},
		{Credentials{SSID: "home", Password: "YOUR_WIFI_PASSWORD"}, true},
		{Credentials{SSID: "home", Password: ""}, false},
		{testCreds, false},
	}
	for _, tt := range tests {
		if got := tt.creds.Placeholder(); got != tt.want {
			t.Errorf("%+v.Placeholder() = %v, want %v", tt.creds, got, tt.want)
		}
	}
}

func TestConnectRejectsPlaceholder(t *testing.T) {
	iface := &fakeIface{}
	m, _ := newTestManager(iface, Credentials{SSID: "YOUR_WIFI_SSID", Password: "YOUR_WIFI_PASSWORD"})

	if m.Connect(context.Background(), time.Second) {
		t.Fatal("connect with placeholder credentials succeeded")
	}
	if iface.associations != 0 {
		t.Errorf("association attempted with placeholder credentials")
	}
}

func TestConnect(t *testing.T) {
	tests := []struct {
		name       string
		iface      *fakeIface
		want       bool
		wantStatus Status
	}{
		{"immediate", &fakeIface{}, true, StatusConnected},
		{"after polling", &fakeIface{upAfter: 3}, true, StatusConnected},
		{"association error", &fakeIface{associateErr: errors.New("no carrier")}, false, StatusDisconnected},
		{"timeout", &fakeIface{never: true}, false, StatusDisconnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(tt.iface, testCreds)
			if got := m.Connect(context.Background(), 50*time.Millisecond); got != tt.want {
				t.Errorf("Connect = %v, want %v", got, tt.want)
			}
			if m.Status() != tt.wantStatus {
				t.Errorf("status = %v, want %v", m.Status(), tt.wantStatus)
			}
		})
	}
}

func TestMaintainConnectedIsNoop(t *testing.T) {
	iface := NewSimulated(-55)
	m, _ := newTestManager(iface, testCreds)
	if !m.Connect(context.Background(), time.Second) {
		t.Fatal("connect failed")
	}
	for i := 0; i < 3; i++ {
		if err := m.Maintain(context.Background()); err != nil {
			t.Fatalf("Maintain returned %v", err)
		}
	}
	if m.Failures() != 0 || m.Status() != StatusConnected {
		t.Errorf("failures=%d status=%v", m.Failures(), m.Status())
	}
}

func TestMaintainThrottlesReconnects(t *testing.T) {
	iface := &fakeIface{associateErr: errors.New("down")}
	m, now := newTestManager(iface, testCreds)
	ctx := context.Background()

	_ = m.Maintain(ctx)
	*now = now.Add(ReconnectInterval - time.Second)
	_ = m.Maintain(ctx)
	if iface.associations != 1 {
		t.Fatalf("associations = %d within the retry interval, want 1", iface.associations)
	}

	*now = now.Add(time.Second)
	_ = m.Maintain(ctx)
	if iface.associations != 2 {
		t.Errorf("associations = %d after the retry interval, want 2", iface.associations)
	}
}

func TestMaintainEscalatesOncePerCrossing(t *testing.T) {
	iface := NewSimulated(-70)
	m, now := newTestManager(iface, testCreds)
	ctx := context.Background()
	iface.Drop(true)

	var escalations []int
	for attempt := 1; attempt <= 2*MaxReconnectFailures+3; attempt++ {
		err := m.Maintain(ctx)
		if err != nil {
			if !errors.Is(err, ErrUnrecoverable) {
				t.Fatalf("unexpected error %v", err)
			}
			escalations = append(escalations, attempt)
		}
		*now = now.Add(ReconnectInterval)
	}

	want := []int{MaxReconnectFailures, 2 * MaxReconnectFailures}
	if len(escalations) != len(want) || escalations[0] != want[0] || escalations[1] != want[1] {
		t.Fatalf("escalations at attempts %v, want %v", escalations, want)
	}
	if m.Failures() != 3 {
		t.Errorf("failures = %d, want 3", m.Failures())
	}
}

func TestMaintainResetsFailuresOnRecovery(t *testing.T) {
	iface := NewSimulated(-70)
	m, now := newTestManager(iface, testCreds)
	ctx := context.Background()

	iface.Drop(true)
	for i := 0; i < 4; i++ {
		_ = m.Maintain(ctx)
		*now = now.Add(ReconnectInterval)
	}
	if m.Failures() != 4 {
		t.Fatalf("failures = %d, want 4", m.Failures())
	}

	iface.Drop(false)
	if err := m.Maintain(ctx); err != nil {
		t.Fatal(err)
	}
	if m.Failures() != 0 || !m.Connected() {
		t.Errorf("failures=%d connected=%v after reconnect", m.Failures(), m.Connected())
	}
}

func TestMaintainPlaceholderIsSilent(t *testing.T) {
	iface := &fakeIface{}
	m, _ := newTestManager(iface, Credentials{})
	for i := 0; i < MaxReconnectFailures+1; i++ {
		if err := m.Maintain(context.Background()); err != nil {
			t.Fatalf("Maintain returned %v", err)
		}
	}
	if iface.associations != 0 {
		t.Errorf("associations = %d, want 0", iface.associations)
	}
}
