package camera

import (
	"fmt"
	"strings"
	"time"
)

// Profile is a named bundle of frame rate, frame size and quality that is
// applied to the sensor as one unit.
type Profile uint8

const (
	ProfileHigh Profile = iota
	ProfileBalanced
	ProfileResilient
)

func (p Profile) String() string {
	switch p {
	case ProfileHigh:
		return "HIGH"
	case ProfileBalanced:
		return "BALANCED"
	case ProfileResilient:
		return "RESILIENT"
	default:
		return "UNKNOWN"
	}
}

// FrameSize is a sensor resolution class.
type FrameSize uint8

const (
	FrameSizeQQVGA FrameSize = iota // 160x120
	FrameSizeQVGA                   // 320x240
	FrameSizeCIF                    // 400x296
	FrameSizeVGA                    // 640x480
	FrameSizeSVGA                   // 800x600
)

var frameSizes = []struct {
	name          string
	width, height int
}{
	FrameSizeQQVGA: {"QQVGA", 160, 120},
	FrameSizeQVGA:  {"QVGA", 320, 240},
	FrameSizeCIF:   {"CIF", 400, 296},
	FrameSizeVGA:   {"VGA", 640, 480},
	FrameSizeSVGA:  {"SVGA", 800, 600},
}

func (f FrameSize) String() string {
	if int(f) < len(frameSizes) {
		return frameSizes[f].name
	}
	return fmt.Sprintf("FrameSize(%d)", f)
}

// Dimensions returns the pixel width and height of the class.
func (f FrameSize) Dimensions() (int, int) {
	if int(f) < len(frameSizes) {
		return frameSizes[f].width, frameSizes[f].height
	}
	return frameSizes[FrameSizeQVGA].width, frameSizes[FrameSizeQVGA].height
}

// ParseFrameSize parses a class name such as "CIF" or "qvga".
func ParseFrameSize(s string) (FrameSize, error) {
	for i, fs := range frameSizes {
		if strings.EqualFold(fs.name, s) {
			return FrameSize(i), nil
		}
	}
	return 0, fmt.Errorf("unknown frame size %q", s)
}

// Targets is what a profile asks of the sensor. Quality uses the sensor
// scale 0..63 where lower numbers mean better images.
type Targets struct {
	FPS       int
	FrameSize FrameSize
	Quality   int
}

// ProfileSettings holds the per-profile targets.
type ProfileSettings struct {
	High      Targets
	Balanced  Targets
	Resilient Targets
}

// DefaultProfileSettings returns the values tuned for an OV2640 on an
// ESP32-class board.
func DefaultProfileSettings() ProfileSettings {
	return ProfileSettings{
		High:      Targets{FPS: 8, FrameSize: FrameSizeCIF, Quality: 13},
		Balanced:  Targets{FPS: 6, FrameSize: FrameSizeCIF, Quality: 15},
		Resilient: Targets{FPS: 4, FrameSize: FrameSizeQVGA, Quality: 20},
	}
}

// Targets returns the unclamped targets of p.
func (s ProfileSettings) Targets(p Profile) Targets {
	switch p {
	case ProfileHigh:
		return s.High
	case ProfileResilient:
		return s.Resilient
	default:
		return s.Balanced
	}
}

// Resolve returns the profile that is actually applied and its targets.
// Without auxiliary memory the frame size drops to the resilient class,
// quality and frame rate are clamped, and HIGH collapses to BALANCED.
func (s ProfileSettings) Resolve(p Profile, auxMemory bool) (Profile, Targets) {
	t := s.Targets(p)
	if auxMemory {
		return p, t
	}
	t.FrameSize = s.Resilient.FrameSize
	if t.Quality < s.Resilient.Quality {
		t.Quality = s.Resilient.Quality
	}
	if t.FPS > s.Balanced.FPS {
		t.FPS = s.Balanced.FPS
	}
	if p == ProfileHigh {
		p = ProfileBalanced
	}
	return p, t
}

// Default returns the boot profile for the given memory situation.
func (s ProfileSettings) Default(auxMemory bool) (Profile, Targets) {
	if auxMemory {
		return ProfileBalanced, s.Balanced
	}
	return ProfileResilient, s.Resilient
}

// fallbackFrameInterval is used when a profile has no frame rate.
const fallbackFrameInterval = 250 * time.Millisecond

// FrameInterval converts a frame rate into the minimum spacing between
// frames.
func FrameInterval(fps int) time.Duration {
	if fps <= 0 {
		return fallbackFrameInterval
	}
	return time.Second / time.Duration(fps)
}

// JPEGQuality maps a sensor quality level (0..63, lower is better) to the
// 1..100 scale used by image/jpeg and rpicam.
func JPEGQuality(level int) int {
	if level < 0 {
		level = 0
	}
	if level > 63 {
		level = 63
	}
	q := 100 - level*100/63
	if q < 1 {
		q = 1
	}
	return q
}
