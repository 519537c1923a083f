package camera

import "context"

// PixelFormat is the layout of a captured buffer.
type PixelFormat uint8

const (
	PixelFormatJPEG PixelFormat = iota
	PixelFormatRGBA
)

// BufferLocation selects where the device places its frame buffers.
type BufferLocation uint8

const (
	BufferInternal BufferLocation = iota
	BufferAuxMemory
)

// Pins is the camera connector pin map. Negative values mean the line is
// not wired.
type Pins struct {
	PowerDown int
	Reset     int
	XCLK      int
	SDA       int
	SCL       int
	Data      [8]int
	VSync     int
	HRef      int
	PCLK      int
}

// AIThinkerPins is the pin map of the AI Thinker ESP32-CAM module.
var AIThinkerPins = Pins{
	PowerDown: 32,
	Reset:     -1,
	XCLK:      0,
	SDA:       26,
	SCL:       27,
	Data:      [8]int{5, 18, 19, 21, 36, 39, 34, 35},
	VSync:     25,
	HRef:      23,
	PCLK:      22,
}

// HardwareConfig is handed to Device.Init.
type HardwareConfig struct {
	Pins        Pins
	XCLKFreqHz  int
	PixelFormat PixelFormat
	FrameSize   FrameSize
	Quality     int
	BufferCount int
	Location    BufferLocation
	GrabLatest  bool
}

// Buffer is a frame buffer slot owned by the device.
type Buffer struct {
	Data   []byte
	Format PixelFormat
	Width  int
	Height int

	// Slot identifies the buffer inside the device.
	Slot int
}

// OwnedBuffer is a heap buffer produced by a software encode. Free must be
// called exactly once.
type OwnedBuffer interface {
	Bytes() []byte
	Free()
}

// Device is the capture hardware. ReturnFrame must tolerate being called
// after Deinit for buffers handed out before it.
type Device interface {
	Init(cfg HardwareConfig) error
	Deinit() error
	// GetFrame returns nil when no frame is available.
	GetFrame() *Buffer
	ReturnFrame(buf *Buffer)
	SetFrameSize(fs FrameSize) error
	SetQuality(level int) error
	SoftwareEncode(buf *Buffer, quality int) (OwnedBuffer, error)
	HasAuxMemory() bool
}

// SettingsBatcher is implemented by devices where every sensor change is
// expensive. Changes made between BeginSettings and CommitSettings take
// effect together in CommitSettings.
type SettingsBatcher interface {
	BeginSettings()
	CommitSettings() error
}

// Warmer is implemented by devices that deliver their first frame some
// time after Init. WaitWarm blocks until then or until ctx is done.
type Warmer interface {
	WaitWarm(ctx context.Context) error
}
