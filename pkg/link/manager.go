package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ConnectTimeout bounds a single association attempt.
	ConnectTimeout = 20 * time.Second
	// ReconnectInterval is the minimum spacing between reconnect attempts.
	ReconnectInterval = 7 * time.Second
	// MaxReconnectFailures is the number of consecutive failed reconnects
	// after which the link is given up.
	MaxReconnectFailures = 10

	pollInterval = 500 * time.Millisecond

	placeholderSSID     = "YOUR_WIFI_SSID"
	placeholderPassword = "YOUR_WIFI_PASSWORD"
)

var (
	ErrCredentials   = errors.New("link: wifi credentials not configured")
	ErrUnrecoverable = errors.New("link: reconnect failure ceiling reached")

	errNotConnected = errors.New("link: not connected yet")
)

// Status is the connection state of the radio link.
type Status uint32

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Interface is the network interface the link runs over.
type Interface interface {
	// Associate requests association with the given network. It may
	// return before the interface has an address.
	Associate(ctx context.Context, ssid, password string) error
	Connected() bool
	// SignalStrength returns the RSSI in dBm.
	SignalStrength() int
	LocalAddress() string
}

// Credentials of the WiFi network.
type Credentials struct {
	SSID     string
	Password string
}

// Placeholder reports whether the credentials are unset or still the
// template values.
func (c Credentials) Placeholder() bool {
	return c.SSID == "" || c.SSID == placeholderSSID || c.Password == placeholderPassword
}

// Manager keeps the WiFi link up.
type Manager struct {
	iface Interface
	creds Credentials

	status atomic.Uint32

	mu          sync.Mutex
	failures    int
	lastAttempt time.Time

	now            func() time.Time
	pollInterval   time.Duration
	connectTimeout time.Duration
}

// NewManager returns a link manager for iface.
func NewManager(iface Interface, creds Credentials) *Manager {
	return &Manager{
		iface:          iface,
		creds:          creds,
		now:            time.Now,
		pollInterval:   pollInterval,
		connectTimeout: ConnectTimeout,
	}
}

// Status returns the last observed link state.
func (m *Manager) Status() Status {
	return Status(m.status.Load())
}

// Connected reports whether the interface currently has a working link.
func (m *Manager) Connected() bool {
	return m.iface.Connected()
}

func (m *Manager) SignalStrength() int {
	return m.iface.SignalStrength()
}

func (m *Manager) LocalAddress() string {
	return m.iface.LocalAddress()
}

// Failures returns the number of consecutive failed reconnects.
func (m *Manager) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// Connect associates with the configured network and waits up to timeout
// for the link to come up.
func (m *Manager) Connect(ctx context.Context, timeout time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := m.connect(ctx, timeout)
	if ok {
		m.failures = 0
	}
	return ok
}

func (m *Manager) connect(ctx context.Context, timeout time.Duration) bool {
	if m.creds.Placeholder() {
		slog.Error("WiFi credentials are not configured", "error", ErrCredentials)
		return false
	}

	ctx, span := tracer.Start(ctx, "link.Connect", trace.WithAttributes(attribute.String("ssid", m.creds.SSID)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m.status.Store(uint32(StatusConnecting))
	slog.Info("Connecting to WiFi", "ssid", m.creds.SSID, "timeout", timeout)

	if err := m.iface.Associate(ctx, m.creds.SSID, m.creds.Password); err != nil {
		m.status.Store(uint32(StatusDisconnected))
		span.RecordError(err)
		span.SetStatus(codes.Error, "association failed")
		slog.Warn("WiFi association failed", "ssid", m.creds.SSID, "error", err)
		return false
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if m.iface.Connected() {
			return struct{}{}, nil
		}
		return struct{}{}, errNotConnected
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(m.pollInterval)),
		backoff.WithMaxElapsedTime(timeout),
	)
	if err != nil {
		m.status.Store(uint32(StatusDisconnected))
		span.SetStatus(codes.Error, "connect timed out")
		slog.Warn("WiFi connect timed out", "ssid", m.creds.SSID, "timeout", timeout)
		return false
	}

	m.status.Store(uint32(StatusConnected))
	slog.Info("WiFi connected",
		"ssid", m.creds.SSID,
		"ip", m.iface.LocalAddress(),
		"rssi", m.iface.SignalStrength(),
	)
	return true
}

// Maintain is called on every supervisory tick. It reconnects a dropped
// link and returns ErrUnrecoverable once MaxReconnectFailures consecutive
// attempts have failed. The failure count starts over after that, so the
// error is returned once per crossing.
func (m *Manager) Maintain(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.iface.Connected() {
		if m.Status() != StatusConnected {
			slog.Info("WiFi link up", "ip", m.iface.LocalAddress(), "rssi", m.iface.SignalStrength())
			m.status.Store(uint32(StatusConnected))
		}
		m.failures = 0
		return nil
	}

	if m.Status() == StatusConnected {
		slog.Warn("WiFi link lost")
		m.status.Store(uint32(StatusDisconnected))
	}
	if m.creds.Placeholder() {
		return nil
	}

	now := m.now()
	if !m.lastAttempt.IsZero() && now.Sub(m.lastAttempt) < ReconnectInterval {
		return nil
	}
	m.lastAttempt = now

	slog.Info("Reconnecting WiFi", "attempt", m.failures+1)
	if m.connect(ctx, m.connectTimeout) {
		m.failures = 0
		return nil
	}

	m.failures++
	reconnectFailuresCounter.Add(ctx, 1)
	slog.Warn("WiFi reconnect failed", "failures", m.failures, "max", MaxReconnectFailures)
	if m.failures >= MaxReconnectFailures {
		m.failures = 0
		return fmt.Errorf("%w after %d attempts", ErrUnrecoverable, MaxReconnectFailures)
	}
	return nil
}
