// Package board drives the GPIO lines around the camera: the flash LED and
// the sensor power-down line.
package board

// Disabled marks a line that is not wired.
const Disabled = -1

// Config selects the GPIO chip and line offsets.
type Config struct {
	Chip      string
	FlashLED  int
	PowerDown int
}

// DefaultConfig matches the AI Thinker wiring of the flash LED. The
// power-down line is not connected by default.
func DefaultConfig() Config {
	return Config{Chip: "gpiochip0", FlashLED: 4, PowerDown: Disabled}
}

func (c Config) anyLine() bool {
	return c.FlashLED != Disabled || c.PowerDown != Disabled
}
