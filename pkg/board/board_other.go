//go:build !linux

package board

import (
	"log/slog"
	"time"
)

// Board is a mock for hosts without GPIO.
type Board struct {
	cfg Config
}

// Open returns a mock board.
func Open(cfg Config) (*Board, error) {
	if cfg.anyLine() {
		slog.Info("[MOCK] Initializing board without GPIO", "flashLED", cfg.FlashLED, "powerDown", cfg.PowerDown)
	}
	return &Board{cfg: cfg}, nil
}

func (b *Board) SetFlash(on bool) error {
	if b.cfg.FlashLED != Disabled {
		slog.Info("[MOCK] Flash LED", "on", on)
	}
	return nil
}

func (b *Board) PowerCycle(settle time.Duration) error {
	if b.cfg.PowerDown != Disabled {
		slog.Info("[MOCK] Sensor power cycle", "settle", settle)
	}
	time.Sleep(settle)
	return nil
}

func (b *Board) Close() error {
	return nil
}
