//go:build linux

package board

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Board holds the requested GPIO lines.
type Board struct {
	mu   sync.Mutex
	chip *gpiocdev.Chip
	led  *gpiocdev.Line
	pwdn *gpiocdev.Line
}

// Open requests the configured lines. The flash LED starts off and the
// sensor powered up. No chip is opened when no line is wired.
func Open(cfg Config) (*Board, error) {
	b := &Board{}
	if !cfg.anyLine() {
		slog.Info("No board GPIO lines configured")
		return b, nil
	}

	c, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("failed to open chip: %w", err)
	}
	b.chip = c

	if cfg.FlashLED != Disabled {
		b.led, err = c.RequestLine(cfg.FlashLED, gpiocdev.AsOutput(0))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to request flash LED line %d: %w", cfg.FlashLED, err)
		}
	}
	if cfg.PowerDown != Disabled {
		b.pwdn, err = c.RequestLine(cfg.PowerDown, gpiocdev.AsOutput(0))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to request power-down line %d: %w", cfg.PowerDown, err)
		}
	}
	slog.Info("Board GPIO ready", "chip", cfg.Chip, "flashLED", cfg.FlashLED, "powerDown", cfg.PowerDown)
	return b, nil
}

// SetFlash switches the flash LED.
func (b *Board) SetFlash(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.led == nil {
		return nil
	}
	v := 0
	if on {
		v = 1
	}
	return b.led.SetValue(v)
}

// PowerCycle holds the sensor in power-down for half of settle and waits
// the other half after powering it up. Without a power-down line it only
// waits.
func (b *Board) PowerCycle(settle time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pwdn == nil {
		time.Sleep(settle)
		return nil
	}
	if err := b.pwdn.SetValue(1); err != nil {
		return fmt.Errorf("failed to power down sensor: %w", err)
	}
	down := settle / 2
	time.Sleep(down)
	if err := b.pwdn.SetValue(0); err != nil {
		return fmt.Errorf("failed to power up sensor: %w", err)
	}
	time.Sleep(settle - down)
	return nil
}

// Close releases all lines. The LED is switched off first.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if b.led != nil {
		errs = append(errs, b.led.SetValue(0), b.led.Close())
		b.led = nil
	}
	if b.pwdn != nil {
		errs = append(errs, b.pwdn.Close())
		b.pwdn = nil
	}
	if b.chip != nil {
		errs = append(errs, b.chip.Close())
		b.chip = nil
	}
	return errors.Join(errs...)
}
