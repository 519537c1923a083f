package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCronLoggerError(t *testing.T) {
	var buf bytes.Buffer
	l := &CronLogger{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	l.Error(errors.New("boom"), "job panicked", "entry", 3)

	out := buf.String()
	if !strings.Contains(out, "job panicked") || !strings.Contains(out, "error=boom") || !strings.Contains(out, "entry=3") {
		t.Errorf("unexpected log output: %s", out)
	}
}
