//go:build linux && arm64

package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

const (
	rpicamFramerate = 15
	staleFrameAge   = 5 * time.Second
)

// RPiCam drives a Raspberry Pi camera module through libcamera-apps /
// rpicam-apps. A persistent rpicam-vid process streams MJPEG on stdout;
// the newest complete JPEG is copied into a device buffer slot on
// GetFrame.
type RPiCam struct {
	cmdName string

	mu          sync.Mutex
	cmd         *exec.Cmd
	initialized bool
	generation  int
	frameSize   FrameSize
	quality     int
	free        []*Buffer
	lent        map[*Buffer]int

	// settings changes made while batching restart the process once
	batching bool
	dirty    bool

	// latest survives a restart so the stream keeps frames while the new
	// process warms up; staleFrameAge bounds how long it is served.
	latest     []byte
	latestAt   time.Time
	latestSize FrameSize
	first      chan struct{}
}

// OpenPlatformDevice returns the native capture device of this platform.
func OpenPlatformDevice() (Device, error) {
	// Determine command name (rpicam-vid for newer OS, libcamera-vid for older)
	cmdName := "rpicam-vid"
	if _, err := exec.LookPath(cmdName); err != nil {
		cmdName = "libcamera-vid"
		if _, err := exec.LookPath(cmdName); err != nil {
			return nil, fmt.Errorf("neither rpicam-vid nor libcamera-vid found")
		}
	}
	return &RPiCam{cmdName: cmdName, lent: make(map[*Buffer]int)}, nil
}

// Init starts the capture process. GetFrame returns nil until the process
// delivers its first frame; WaitWarm blocks until then.
func (c *RPiCam) Init(cfg HardwareConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return errors.New("camera already initialized")
	}
	if cfg.PixelFormat != PixelFormatJPEG {
		return fmt.Errorf("unsupported pixel format %d", cfg.PixelFormat)
	}
	c.frameSize = cfg.FrameSize
	c.quality = cfg.Quality
	c.batching, c.dirty = false, false
	if err := c.startLocked(); err != nil {
		return err
	}

	count := max(cfg.BufferCount, 1)
	c.generation++
	c.free = make([]*Buffer, 0, count)
	for i := 0; i < count; i++ {
		c.free = append(c.free, &Buffer{Slot: i, Format: PixelFormatJPEG})
	}
	c.initialized = true
	return nil
}

// WaitWarm blocks until the running process has delivered a frame.
func (c *RPiCam) WaitWarm(ctx context.Context) error {
	c.mu.Lock()
	first := c.first
	c.mu.Unlock()
	if first == nil {
		return errors.New("camera not started")
	}
	select {
	case <-first:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *RPiCam) Deinit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return errors.New("camera not initialized")
	}
	c.initialized = false
	c.generation++
	c.free = nil
	c.latest = nil
	c.batching, c.dirty = false, false
	return c.stopLocked()
}

// startLocked starts the rpicam process in MJPEG streaming mode.
func (c *RPiCam) startLocked() error {
	size := c.frameSize
	width, height := size.Dimensions()
	cmd := exec.Command(
		c.cmdName,
		"--width", fmt.Sprintf("%d", width),
		"--height", fmt.Sprintf("%d", height),
		"--timeout", "0", // Run indefinitely
		"--nopreview",
		"--codec", "mjpeg",
		"--quality", fmt.Sprintf("%d", JPEGQuality(c.quality)),
		"--output", "-",
		"--framerate", fmt.Sprintf("%d", rpicamFramerate),
		"--awb", "auto",
		"--metering", "average",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w, stderr: %s", c.cmdName, err, stderr.String())
	}
	c.cmd = cmd
	first := make(chan struct{})
	c.first = first
	slog.Info("Started camera streaming process", "command", c.cmdName, "width", width, "height", height, "quality", c.quality)

	var once sync.Once
	publish := func(frame []byte) {
		c.mu.Lock()
		defer c.mu.Unlock()
		// frames of a replaced process are dropped
		if c.cmd != cmd {
			return
		}
		c.latest = frame
		c.latestAt = time.Now()
		c.latestSize = size
		once.Do(func() { close(first) })
	}

	go func() {
		if err := pumpFrames(stdout, publish); err != nil {
			slog.Error("Stream read error", "error", err)
		}
		// Wait only after stdout is drained.
		err := cmd.Wait()
		if err != nil {
			slog.Warn("Camera streaming process exited", "error", err, "stderr", stderr.String())
		} else {
			slog.Info("Camera streaming process exited cleanly")
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.cmd == cmd {
			c.cmd = nil
		}
	}()
	return nil
}

func (c *RPiCam) stopLocked() error {
	if c.cmd == nil || c.cmd.Process == nil {
		c.cmd = nil
		return nil
	}
	err := c.cmd.Process.Kill()
	c.cmd = nil
	if err != nil {
		return fmt.Errorf("failed to stop %s: %w", c.cmdName, err)
	}
	return nil
}

func (c *RPiCam) restartLocked() error {
	if err := c.stopLocked(); err != nil {
		slog.Warn("Failed to stop camera process", "error", err)
	}
	return c.startLocked()
}

func (c *RPiCam) GetFrame() *Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized || c.cmd == nil || len(c.free) == 0 {
		return nil
	}
	// Check if frame is stale (e.g. process hung but never exited)
	if len(c.latest) == 0 || time.Since(c.latestAt) > staleFrameAge {
		return nil
	}
	buf := c.free[len(c.free)-1]
	c.free = c.free[:len(c.free)-1]
	c.lent[buf] = c.generation

	buf.Data = append(buf.Data[:0], c.latest...)
	buf.Width, buf.Height = c.latestSize.Dimensions()
	return buf
}

func (c *RPiCam) ReturnFrame(buf *Buffer) {
	if buf == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	gen, ok := c.lent[buf]
	if !ok {
		return
	}
	delete(c.lent, buf)
	if gen == c.generation && c.initialized {
		c.free = append(c.free, buf)
	}
}

// BeginSettings defers the restarts of SetFrameSize and SetQuality to
// CommitSettings.
func (c *RPiCam) BeginSettings() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batching = true
}

// CommitSettings restarts the capture process once if a batched change
// needs it.
func (c *RPiCam) CommitSettings() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batching = false
	if !c.dirty {
		return nil
	}
	c.dirty = false
	if !c.initialized {
		return errors.New("sensor not available")
	}
	return c.restartLocked()
}

// changedLocked restarts the capture process, or marks it for restart
// while batching, because rpicam-vid cannot change settings while running.
func (c *RPiCam) changedLocked() error {
	if c.batching {
		c.dirty = true
		return nil
	}
	return c.restartLocked()
}

func (c *RPiCam) SetFrameSize(fs FrameSize) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return errors.New("sensor not available")
	}
	if fs == c.frameSize && c.cmd != nil {
		return nil
	}
	c.frameSize = fs
	return c.changedLocked()
}

func (c *RPiCam) SetQuality(level int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return errors.New("sensor not available")
	}
	if level == c.quality && c.cmd != nil {
		return nil
	}
	c.quality = level
	return c.changedLocked()
}

func (c *RPiCam) SoftwareEncode(buf *Buffer, quality int) (OwnedBuffer, error) {
	return encodeRGBA(buf, quality)
}

func (c *RPiCam) HasAuxMemory() bool {
	return true
}
