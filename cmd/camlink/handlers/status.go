package handlers

import (
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wachiwi/camlink/pkg/journal"
	"github.com/wachiwi/camlink/pkg/status"
)

const (
	// ReadTimeout and WriteTimeout bound the requests of the status server.
	ReadTimeout  = 5 * time.Second
	WriteTimeout = 5 * time.Second

	// recentEvents is the number of journal events shown on the index page.
	recentEvents = 10
)

type StatusHandler struct {
	Reporter   *status.Reporter
	Journal    *journal.Store
	StreamBusy func() bool
	StreamPort int

	tmpl *template.Template
}

// NewStatusHandler parses templates/index.html from fsys.
func NewStatusHandler(fsys fs.FS, reporter *status.Reporter, j *journal.Store, busy func() bool, streamPort int) (*StatusHandler, error) {
	tmpl, err := template.ParseFS(fsys, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &StatusHandler{
		Reporter:   reporter,
		Journal:    j,
		StreamBusy: busy,
		StreamPort: streamPort,
		tmpl:       tmpl,
	}, nil
}

func (h *StatusHandler) Index(c *gin.Context) {
	events, err := h.Journal.List()
	if err != nil {
		slog.Warn("Failed to read journal", "error", err)
	}
	if len(events) > recentEvents {
		events = events[:recentEvents]
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("Cache-Control", "no-store")
	err = h.tmpl.Execute(c.Writer, gin.H{
		"Status":     h.Reporter.Snapshot(),
		"StreamBusy": h.StreamBusy(),
		"StreamPort": h.StreamPort,
		"Events":     events,
	})
	if err != nil {
		slog.Error("Template execution error", "error", err)
		c.String(http.StatusInternalServerError, "Failed to render page")
	}
}

func (h *StatusHandler) Health(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, h.Reporter.Snapshot())
}
