package camera

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
)

const (
	readChunkSize = 4096
	maxFrameBytes = 10 * 1024 * 1024
)

// JPEG markers
var (
	soi = []byte{0xFF, 0xD8}
	eoi = []byte{0xFF, 0xD9}
)

// pumpFrames reads an MJPEG byte stream from r, cuts it into JPEG images
// at SOI/EOI markers and hands each complete image to publish. It returns
// nil when r reaches EOF.
func pumpFrames(r io.Reader, publish func([]byte)) error {
	buf := make([]byte, readChunkSize)
	var pending []byte
	scanFrom := len(soi)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				if !bytes.HasPrefix(pending, soi) {
					start := bytes.Index(pending, soi)
					if start == -1 {
						// A trailing 0xFF may be the first half of a split SOI.
						if len(pending) > 0 && pending[len(pending)-1] == soi[0] {
							pending = pending[len(pending)-1:]
						} else {
							pending = pending[:0]
						}
						scanFrom = len(soi)
						break
					}
					pending = pending[start:]
					scanFrom = len(soi)
				}

				end := bytes.Index(pending[scanFrom:], eoi)
				if end == -1 {
					// Resume one byte back in case EOI is split across reads.
					scanFrom = max(len(pending)-1, len(soi))
					break
				}
				end += scanFrom + len(eoi)

				frame := make([]byte, end)
				copy(frame, pending[:end])
				publish(frame)

				pending = pending[end:]
				scanFrom = len(soi)
			}

			// Safety: prevent buffer from growing indefinitely if no EOI found
			if len(pending) > maxFrameBytes {
				pending = nil
				scanFrom = len(soi)
				slog.Warn("Frame buffer overflow, resetting")
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
