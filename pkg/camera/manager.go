package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	captureLockTimeout   = 200 * time.Millisecond
	profileLockTimeout   = 500 * time.Millisecond
	lifecycleLockTimeout = time.Second

	// RecoveryCooldown is the minimum spacing between two recoveries.
	RecoveryCooldown = 3 * time.Second
	settleDelay      = 80 * time.Millisecond
	// warmUpTimeout bounds the wait for the first frame after an init.
	warmUpTimeout = 3 * time.Second

	softwareEncodeQuality = 80
	xclkFreqHz            = 20_000_000
)

var (
	ErrInit             = errors.New("camera: init failed")
	ErrLockTimeout      = errors.New("camera: lock timeout")
	ErrNotReady         = errors.New("camera: not ready")
	ErrNoFrame          = errors.New("camera: no frame available")
	ErrEncode           = errors.New("camera: software encode failed")
	ErrRecoveryCooldown = errors.New("camera: recovery skipped, cooldown active")
)

// State is the lifecycle state of the camera.
type State uint32

const (
	StateUninitialized State = iota
	StateReady
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFaulted:
		return "faulted"
	default:
		return "uninitialized"
	}
}

// PowerControl drives the sensor power-down line.
type PowerControl interface {
	PowerCycle(settle time.Duration) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithPins overrides the default AI Thinker pin map.
func WithPins(p Pins) Option {
	return func(m *Manager) { m.pins = p }
}

// WithPowerControl lets recoveries power-cycle the sensor while it settles.
func WithPowerControl(pc PowerControl) Option {
	return func(m *Manager) { m.power = pc }
}

// WithRecoveryHook is called after every recovery attempt that passed the
// cooldown. err is nil on success.
func WithRecoveryHook(fn func(reason string, err error)) Option {
	return func(m *Manager) { m.onRecover = fn }
}

// Manager owns the capture device. Every operation that touches the
// device holds the exclusion lock; waits for it are bounded.
type Manager struct {
	dev       Device
	profiles  ProfileSettings
	pins      Pins
	power     PowerControl
	onRecover func(reason string, err error)

	lock chan struct{}

	// guarded by lock
	pending    Profile
	hasPending bool

	// written under lock, read without it
	state    atomic.Uint32
	active   atomic.Uint32
	interval atomic.Int64

	recoveryMu   sync.Mutex
	lastRecovery time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewManager returns a manager for dev. The camera stays uninitialized
// until Initialize is called.
func NewManager(dev Device, profiles ProfileSettings, opts ...Option) *Manager {
	m := &Manager{
		dev:      dev,
		profiles: profiles,
		pins:     AIThinkerPins,
		lock:     make(chan struct{}, 1),
		now:      time.Now,
		sleep:    time.Sleep,
	}
	m.commit(ProfileBalanced, profiles.Balanced)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) acquire(timeout time.Duration) bool {
	select {
	case m.lock <- struct{}{}:
		return true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m.lock <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

func (m *Manager) unlock() {
	<-m.lock
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Ready reports whether frames can be captured.
func (m *Manager) Ready() bool {
	return m.State() == StateReady
}

// ActiveProfile returns the profile last applied (or pending).
func (m *Manager) ActiveProfile() Profile {
	return Profile(m.active.Load())
}

// MinFrameInterval is the spacing between frames the active profile asks
// for.
func (m *Manager) MinFrameInterval() time.Duration {
	return time.Duration(m.interval.Load())
}

func (m *Manager) setState(s State) {
	m.state.Store(uint32(s))
}

func (m *Manager) commit(p Profile, t Targets) {
	m.active.Store(uint32(p))
	m.interval.Store(int64(FrameInterval(t.FPS)))
}

func (m *Manager) hardwareConfig() HardwareConfig {
	aux := m.dev.HasAuxMemory()
	_, t := m.profiles.Default(aux)
	cfg := HardwareConfig{
		Pins:        m.pins,
		XCLKFreqHz:  xclkFreqHz,
		PixelFormat: PixelFormatJPEG,
		FrameSize:   t.FrameSize,
		Quality:     t.Quality,
		BufferCount: 1,
		Location:    BufferInternal,
	}
	if aux {
		cfg.BufferCount = 2
		cfg.Location = BufferAuxMemory
		cfg.GrabLatest = true
	}
	return cfg
}

// Initialize brings the camera up. An error here at boot is fatal for the
// process.
func (m *Manager) Initialize() error {
	if !m.acquire(lifecycleLockTimeout) {
		return fmt.Errorf("%w: %w", ErrInit, ErrLockTimeout)
	}
	err := m.initLocked()
	m.unlock()
	if err != nil {
		return err
	}
	m.warmUp(context.Background())
	return nil
}

// warmUp waits for the first frame of a fresh init. It must run without
// the lock so captures and profile changes keep their bounded waits.
func (m *Manager) warmUp(ctx context.Context) {
	w, ok := m.dev.(Warmer)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, warmUpTimeout)
	defer cancel()
	if err := w.WaitWarm(ctx); err != nil {
		slog.Warn("No frame from camera yet", "waited", warmUpTimeout, "error", err)
	}
}

// applySensor pushes t to the sensor, as one batch when the device
// supports it.
func (m *Manager) applySensor(t Targets) (err error) {
	if b, ok := m.dev.(SettingsBatcher); ok {
		b.BeginSettings()
		defer func() {
			if cerr := b.CommitSettings(); cerr != nil && err == nil {
				err = fmt.Errorf("commit: %w", cerr)
			}
		}()
	}
	if err := m.dev.SetFrameSize(t.FrameSize); err != nil {
		return fmt.Errorf("frame size: %w", err)
	}
	if err := m.dev.SetQuality(t.Quality); err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	return nil
}

func (m *Manager) initLocked() error {
	cfg := m.hardwareConfig()
	if err := m.dev.Init(cfg); err != nil {
		m.setState(StateFaulted)
		return fmt.Errorf("%w: %w", ErrInit, err)
	}

	p, t := m.profiles.Default(m.dev.HasAuxMemory())
	if m.hasPending {
		p, t = m.profiles.Resolve(m.pending, m.dev.HasAuxMemory())
		m.hasPending = false
	}
	if err := m.applySensor(t); err != nil {
		slog.Warn("Failed to apply initial sensor settings", "frameSize", t.FrameSize, "quality", t.Quality, "error", err)
	}
	m.commit(p, t)
	m.setState(StateReady)
	slog.Info("Camera initialized",
		"profile", p,
		"frameSize", t.FrameSize,
		"quality", t.Quality,
		"buffers", cfg.BufferCount,
		"auxMemory", cfg.Location == BufferAuxMemory,
	)
	return nil
}

// Recover re-initializes the camera after runaway capture failures. Calls
// within RecoveryCooldown of the previous attempt return
// ErrRecoveryCooldown without touching the device.
func (m *Manager) Recover(ctx context.Context, reason string) error {
	now := m.now()
	m.recoveryMu.Lock()
	if !m.lastRecovery.IsZero() && now.Sub(m.lastRecovery) < RecoveryCooldown {
		m.recoveryMu.Unlock()
		return ErrRecoveryCooldown
	}
	m.lastRecovery = now
	m.recoveryMu.Unlock()

	ctx, span := tracer.Start(ctx, "camera.Recover", trace.WithAttributes(attribute.String("reason", reason)))
	defer span.End()
	recoveriesCounter.Add(ctx, 1)
	slog.Warn("Camera recovery triggered", "reason", reason)

	err := m.reinit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recovery failed")
		slog.Error("Camera recovery failed", "reason", reason, "error", err)
	} else {
		m.warmUp(ctx)
		slog.Info("Camera recovery succeeded", "reason", reason)
	}
	if m.onRecover != nil {
		m.onRecover(reason, err)
	}
	return err
}

func (m *Manager) reinit() error {
	if !m.acquire(lifecycleLockTimeout) {
		return ErrLockTimeout
	}
	defer m.unlock()

	if m.State() != StateUninitialized {
		if err := m.dev.Deinit(); err != nil {
			slog.Warn("Camera deinit failed", "error", err)
		}
		m.setState(StateUninitialized)
		m.settle()
	}
	return m.initLocked()
}

func (m *Manager) settle() {
	if m.power != nil {
		err := m.power.PowerCycle(settleDelay)
		if err == nil {
			return
		}
		slog.Warn("Camera power cycle failed", "error", err)
	}
	m.sleep(settleDelay)
}

// Capture grabs one JPEG frame. Lock contention, a missing frame and a
// failed re-encode are all transient; the caller should skip the frame.
func (m *Manager) Capture() (*Frame, error) {
	frame, err := m.capture()
	if err != nil {
		captureFailuresCounter.Add(context.Background(), 1)
	}
	return frame, err
}

func (m *Manager) capture() (*Frame, error) {
	if !m.acquire(captureLockTimeout) {
		return nil, ErrLockTimeout
	}
	defer m.unlock()

	if m.State() != StateReady {
		return nil, ErrNotReady
	}
	buf := m.dev.GetFrame()
	if buf == nil {
		return nil, ErrNoFrame
	}
	if buf.Format == PixelFormatJPEG {
		return borrowedFrame(buf), nil
	}

	owned, err := m.dev.SoftwareEncode(buf, softwareEncodeQuality)
	m.dev.ReturnFrame(buf)
	if err != nil {
		if owned != nil {
			owned.Free()
		}
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	if owned == nil {
		return nil, ErrEncode
	}
	if len(owned.Bytes()) == 0 {
		owned.Free()
		return nil, fmt.Errorf("%w: empty output", ErrEncode)
	}
	return ownedFrame(owned), nil
}

// Release gives a captured frame back. Releasing twice is a no-op.
func (m *Manager) Release(f *Frame) {
	if f == nil {
		return
	}
	f.release(m.dev)
}

// ApplyProfile pushes p to the sensor. Before the camera is initialized
// the profile is stored and used by the next initialization. Unless force
// is set, applying the active profile again does nothing.
func (m *Manager) ApplyProfile(p Profile, force bool) error {
	resolved, t := m.profiles.Resolve(p, m.dev.HasAuxMemory())

	if !m.acquire(profileLockTimeout) {
		return ErrLockTimeout
	}
	defer m.unlock()

	if !force && resolved == m.ActiveProfile() {
		return nil
	}

	if m.State() == StateReady {
		if err := m.applySensor(t); err != nil {
			m.setState(StateFaulted)
			return fmt.Errorf("camera: apply %s %w", resolved, err)
		}
	} else {
		m.pending = resolved
		m.hasPending = true
	}

	m.commit(resolved, t)
	slog.Info("Stream profile applied",
		"profile", resolved,
		"fps", t.FPS,
		"quality", t.Quality,
		"frameSize", t.FrameSize,
		"state", m.State(),
	)
	return nil
}
