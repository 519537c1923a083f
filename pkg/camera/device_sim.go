package camera

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
)

// SimulatedOptions configures a Simulated device.
type SimulatedOptions struct {
	// AuxMemory reports whether the fake board has PSRAM.
	AuxMemory bool
	// RawFrames makes the sensor deliver RGBA frames so every capture
	// goes through the software encode path.
	RawFrames bool
}

// Simulated is a capture device that renders placeholder frames. It is
// used on development hosts and whenever no real sensor is available.
type Simulated struct {
	mu          sync.Mutex
	opts        SimulatedOptions
	initialized bool
	generation  int
	frameSize   FrameSize
	quality     int
	free        []*Buffer
	lent        map[*Buffer]int
	frames      int
}

// NewSimulated creates a simulated device.
func NewSimulated(opts SimulatedOptions) *Simulated {
	return &Simulated{
		opts: opts,
		lent: make(map[*Buffer]int),
	}
}

func (s *Simulated) Init(cfg HardwareConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return errors.New("simulated camera already initialized")
	}
	if cfg.PixelFormat != PixelFormatJPEG {
		return fmt.Errorf("unsupported pixel format %d", cfg.PixelFormat)
	}
	count := cfg.BufferCount
	if count < 1 {
		count = 1
	}
	s.generation++
	s.free = make([]*Buffer, 0, count)
	for i := 0; i < count; i++ {
		s.free = append(s.free, &Buffer{Slot: i})
	}
	s.frameSize = cfg.FrameSize
	s.quality = cfg.Quality
	s.initialized = true
	return nil
}

func (s *Simulated) Deinit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("simulated camera not initialized")
	}
	s.initialized = false
	s.generation++
	s.free = nil
	return nil
}

func (s *Simulated) GetFrame() *Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized || len(s.free) == 0 {
		return nil
	}
	buf := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.lent[buf] = s.generation
	s.frames++

	if err := s.render(buf); err != nil {
		s.free = append(s.free, buf)
		delete(s.lent, buf)
		return nil
	}
	return buf
}

func (s *Simulated) ReturnFrame(buf *Buffer) {
	if buf == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	gen, ok := s.lent[buf]
	if !ok {
		return
	}
	delete(s.lent, buf)
	if gen == s.generation && s.initialized {
		s.free = append(s.free, buf)
	}
}

// Outstanding returns the number of buffers handed out and not returned.
func (s *Simulated) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lent)
}

func (s *Simulated) SetFrameSize(fs FrameSize) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errors.New("sensor not available")
	}
	s.frameSize = fs
	return nil
}

func (s *Simulated) SetQuality(level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errors.New("sensor not available")
	}
	s.quality = level
	return nil
}

func (s *Simulated) SoftwareEncode(buf *Buffer, quality int) (OwnedBuffer, error) {
	return encodeRGBA(buf, quality)
}

func (s *Simulated) HasAuxMemory() bool {
	return s.opts.AuxMemory
}

// render draws a simple moving pattern into buf.
func (s *Simulated) render(buf *Buffer) error {
	width, height := s.frameSize.Dimensions()
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	shade := byte(s.frames % 256)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := y*img.Stride + x*4
			img.Pix[offset] = shade
			img.Pix[offset+1] = byte((x * 255) / width)
			img.Pix[offset+2] = byte((y * 255) / height)
			img.Pix[offset+3] = 255
		}
	}

	buf.Width = width
	buf.Height = height
	if s.opts.RawFrames {
		buf.Format = PixelFormatRGBA
		buf.Data = img.Pix
		return nil
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: JPEGQuality(s.quality)}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	buf.Format = PixelFormatJPEG
	buf.Data = out.Bytes()
	return nil
}
