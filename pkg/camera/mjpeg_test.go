package camera

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"
)

func jpegBytes(payload ...byte) []byte {
	b := append([]byte{0xFF, 0xD8}, payload...)
	return append(b, 0xFF, 0xD9)
}

func TestPumpFrames(t *testing.T) {
	a := jpegBytes(0x01, 0x02, 0x03)
	b := jpegBytes(0x04, 0xFF, 0x00, 0x05)

	var stream []byte
	stream = append(stream, 0x00, 0x11) // garbage before the first image
	stream = append(stream, a...)
	stream = append(stream, 0x22)
	stream = append(stream, b...)
	stream = append(stream, 0xFF, 0xD8, 0x09) // truncated trailing image

	readers := map[string]func() io.Reader{
		"whole":    func() io.Reader { return bytes.NewReader(stream) },
		"one byte": func() io.Reader { return iotest.OneByteReader(bytes.NewReader(stream)) },
		"half":     func() io.Reader { return iotest.HalfReader(bytes.NewReader(stream)) },
	}
	for name, open := range readers {
		t.Run(name, func(t *testing.T) {
			var frames [][]byte
			if err := pumpFrames(open(), func(f []byte) { frames = append(frames, f) }); err != nil {
				t.Fatalf("pumpFrames failed: %v", err)
			}
			if len(frames) != 2 {
				t.Fatalf("got %d frames, want 2", len(frames))
			}
			if !bytes.Equal(frames[0], a) || !bytes.Equal(frames[1], b) {
				t.Errorf("frames = %x, want %x and %x", frames, a, b)
			}
		})
	}
}

func TestPumpFramesReadError(t *testing.T) {
	errBroken := errors.New("pipe broke")
	r := io.MultiReader(bytes.NewReader(jpegBytes(0x01)), iotest.ErrReader(errBroken))

	var n int
	err := pumpFrames(r, func([]byte) { n++ })
	if !errors.Is(err, errBroken) {
		t.Fatalf("expected read error, got %v", err)
	}
	if n != 1 {
		t.Errorf("published %d frames before the error, want 1", n)
	}
}
