package camera

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeDevice struct {
	mu sync.Mutex

	aux         bool
	raw         bool
	noFrame     bool
	initErr     error
	sensorErr   error
	encodeErr   error
	emptyEncode bool

	lastConfig HardwareConfig
	frameSize  FrameSize
	quality    int

	inits, deinits int
	gets, returns  int
	encodes, frees int
	frameSizeCalls int
	qualityCalls   int
}

type fakeOwned struct {
	dev  *fakeDevice
	data []byte
}

func (o *fakeOwned) Bytes() []byte { return o.data }

func (o *fakeOwned) Free() {
	o.dev.mu.Lock()
	o.dev.frees++
	o.dev.mu.Unlock()
}

func (d *fakeDevice) Init(cfg HardwareConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inits++
	d.lastConfig = cfg
	return d.initErr
}

func (d *fakeDevice) Deinit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deinits++
	return nil
}

func (d *fakeDevice) GetFrame() *Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.noFrame {
		return nil
	}
	d.gets++
	if d.raw {
		return &Buffer{Format: PixelFormatRGBA, Data: make([]byte, 4*4*4), Width: 4, Height: 4}
	}
	return &Buffer{Format: PixelFormatJPEG, Data: []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}}
}

func (d *fakeDevice) ReturnFrame(*Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.returns++
}

func (d *fakeDevice) SetFrameSize(fs FrameSize) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frameSizeCalls++
	if d.sensorErr != nil {
		return d.sensorErr
	}
	d.frameSize = fs
	return nil
}

func (d *fakeDevice) SetQuality(level int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.qualityCalls++
	if d.sensorErr != nil {
		return d.sensorErr
	}
	d.quality = level
	return nil
}

func (d *fakeDevice) SoftwareEncode(buf *Buffer, quality int) (OwnedBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.encodes++
	if d.encodeErr != nil {
		return nil, d.encodeErr
	}
	if d.emptyEncode {
		return &fakeOwned{dev: d}, nil
	}
	return &fakeOwned{dev: d, data: []byte{0xFF, 0xD8, 0x02, 0xFF, 0xD9}}, nil
}

func (d *fakeDevice) HasAuxMemory() bool { return d.aux }

func (d *fakeDevice) counts() (gets, returns, frees int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gets, d.returns, d.frees
}

// batchingDevice records how sensor changes are grouped and whether the
// warm-up wait runs while the manager lock is held.
type batchingDevice struct {
	*fakeDevice
	m *Manager

	commitErr error

	begins, commits int
	inBatch         bool
	unbatched       int
	warms           int
	lockedWarms     int
}

func (d *batchingDevice) BeginSettings() {
	d.begins++
	d.inBatch = true
}

func (d *batchingDevice) CommitSettings() error {
	d.commits++
	d.inBatch = false
	return d.commitErr
}

func (d *batchingDevice) SetFrameSize(fs FrameSize) error {
	if !d.inBatch {
		d.unbatched++
	}
	return d.fakeDevice.SetFrameSize(fs)
}

func (d *batchingDevice) SetQuality(level int) error {
	if !d.inBatch {
		d.unbatched++
	}
	return d.fakeDevice.SetQuality(level)
}

func (d *batchingDevice) WaitWarm(ctx context.Context) error {
	d.warms++
	if !d.m.acquire(0) {
		d.lockedWarms++
		return nil
	}
	d.m.unlock()
	return nil
}

type fakePower struct {
	cycles int
	err    error
}

func (p *fakePower) PowerCycle(time.Duration) error {
	p.cycles++
	return p.err
}

var errFake = errors.New("fake failure")

// testClock is a manual clock for cooldown tests.
type testClock struct {
	now   time.Time
	slept time.Duration
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Sleep(d time.Duration) { c.slept += d }

func newTestManager(dev Device, opts ...Option) (*Manager, *testClock) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewManager(dev, DefaultProfileSettings(), opts...)
	m.now = clock.Now
	m.sleep = clock.Sleep
	return m, clock
}
