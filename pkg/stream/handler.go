// Package stream serves the live MJPEG stream to a single client.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wachiwi/camlink/pkg/camera"
)

const (
	// ContentType is the response type of the stream endpoint.
	ContentType = "multipart/x-mixed-replace;boundary=frame"

	// ChunkSize is the largest single write of frame payload.
	ChunkSize = 1024
	// CaptureFailureLimit is the number of consecutive capture failures
	// after which the camera is recovered.
	CaptureFailureLimit = 15
	// ReadTimeout bounds reading the request of a stream client.
	ReadTimeout = 5 * time.Second
	// WriteTimeout bounds every write to the client.
	WriteTimeout = 3 * time.Second

	boundary          = "\r\n--frame\r\n"
	partHeader        = "Content-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n"
	captureRetryPause = 20 * time.Millisecond
)

// ErrLinkDown ends a session when the radio link is lost.
var ErrLinkDown = errors.New("stream: link down")

// Camera is the part of the camera manager a session uses.
type Camera interface {
	Capture() (*camera.Frame, error)
	Release(f *camera.Frame)
	MinFrameInterval() time.Duration
	Recover(ctx context.Context, reason string) error
}

// Link reports whether the radio link is up.
type Link interface {
	Connected() bool
}

// Writer is the client side of a session.
type Writer interface {
	io.Writer
	Flush() error
}

// Handler admits one stream session at a time.
type Handler struct {
	cam  Camera
	link Link

	sessions chan struct{}

	retryPause time.Duration
	now        func() time.Time
	wait       func(ctx context.Context, d time.Duration) error
}

// NewHandler returns a stream handler.
func NewHandler(cam Camera, link Link) *Handler {
	return &Handler{
		cam:        cam,
		link:       link,
		sessions:   make(chan struct{}, 1),
		retryPause: captureRetryPause,
		now:        time.Now,
		wait:       sleep,
	}
}

func (h *Handler) tryAcquire() bool {
	select {
	case h.sessions <- struct{}{}:
		return true
	default:
		return false
	}
}

func (h *Handler) release() {
	<-h.sessions
}

// Busy reports whether a session is running.
func (h *Handler) Busy() bool {
	return len(h.sessions) > 0
}

// Stream is the gin handler of the stream endpoint. A second client gets
// 503 while a session is running.
func (h *Handler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.tryAcquire() {
		sessionsCounter.Add(ctx, 1, outcomeBusy)
		slog.Info("Stream busy, rejecting client", "remote", c.ClientIP())
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream busy"})
		return
	}
	defer h.release()
	sessionsCounter.Add(ctx, 1, outcomeAdmitted)

	id := uuid.NewString()
	c.Header("Content-Type", ContentType)
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.Status(http.StatusOK)

	slog.Info("Stream session started", "session", id, "remote", c.ClientIP())
	start := h.now()
	frames, err := h.Serve(ctx, newResponseWriter(c.Writer))
	slog.Info("Stream session ended",
		"session", id,
		"frames", frames,
		"duration", h.now().Sub(start).Round(time.Millisecond),
		"reason", err,
	)
}

// Serve runs the send loop of one admitted session until the link drops,
// a write fails or ctx is done. It returns the number of frames sent and
// the reason the loop ended. Frames are spaced by the active profile's
// interval, counted from the previous send; a failed capture is retried
// after the short retry pause.
func (h *Handler) Serve(ctx context.Context, w Writer) (int, error) {
	var (
		frames    int
		failures  int
		lastFrame time.Time
	)
	for {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		if !h.link.Connected() {
			return frames, ErrLinkDown
		}

		// Re-read every frame so profile changes apply immediately.
		interval := h.cam.MinFrameInterval()
		if elapsed := h.now().Sub(lastFrame); elapsed < interval {
			if err := h.wait(ctx, interval-elapsed); err != nil {
				return frames, err
			}
		}

		frame, err := h.cam.Capture()
		if err != nil {
			failures++
			slog.Debug("Capture failed", "failures", failures, "error", err)
			if failures >= CaptureFailureLimit {
				slog.Warn("Too many capture failures, recovering camera", "failures", failures)
				if err := h.cam.Recover(ctx, "stream capture failures"); err != nil && !errors.Is(err, camera.ErrRecoveryCooldown) {
					slog.Error("Camera recovery from stream failed", "error", err)
				}
				failures = 0
			}
			if err := h.wait(ctx, h.retryPause); err != nil {
				return frames, err
			}
			continue
		}
		failures = 0

		err = writeFrame(w, frame.Bytes())
		h.cam.Release(frame)
		if err != nil {
			return frames, err
		}
		lastFrame = h.now()
		frames++
		framesCounter.Add(ctx, 1)
	}
}

func writeFrame(w Writer, payload []byte) error {
	if _, err := io.WriteString(w, boundary); err != nil {
		return fmt.Errorf("write boundary: %w", err)
	}
	if _, err := fmt.Fprintf(w, partHeader, len(payload)); err != nil {
		return fmt.Errorf("write part header: %w", err)
	}
	for off := 0; off < len(payload); off += ChunkSize {
		end := min(off+ChunkSize, len(payload))
		if _, err := w.Write(payload[off:end]); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}
	return w.Flush()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// responseWriter puts a deadline on every write to the client.
type responseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w: w, rc: http.NewResponseController(w)}
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	if err := rw.rc.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return 0, err
	}
	return rw.w.Write(p)
}

func (rw *responseWriter) Flush() error {
	return rw.rc.Flush()
}
