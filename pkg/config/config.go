// Package config loads the controller configuration from defaults, an
// optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wachiwi/camlink/pkg/adaptive"
	"github.com/wachiwi/camlink/pkg/board"
	"github.com/wachiwi/camlink/pkg/camera"
	"github.com/wachiwi/camlink/pkg/journal"
	"github.com/wachiwi/camlink/pkg/link"
)

type Config struct {
	LogLevel   string     `yaml:"log_level" validate:"oneof=debug info warn error"`
	WiFi       WiFi       `yaml:"wifi"`
	Camera     Camera     `yaml:"camera"`
	Profiles   Profiles   `yaml:"profiles"`
	Thresholds Thresholds `yaml:"thresholds"`
	Server     Server     `yaml:"server"`
	Board      Board      `yaml:"board"`
	Journal    Journal    `yaml:"journal"`
	Telemetry  Telemetry  `yaml:"telemetry"`
}

type WiFi struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
	// Interface names the wireless interface; empty picks the first
	// station, "simulated" uses the in-memory link.
	Interface     string `yaml:"interface"`
	SimulatedRSSI int    `yaml:"simulated_rssi" validate:"lte=0"`
}

type Camera struct {
	// Device is auto, rpicam or simulated.
	Device    string `yaml:"device" validate:"oneof=auto rpicam simulated"`
	AuxMemory bool   `yaml:"aux_memory"`
	RawFrames bool   `yaml:"raw_frames"`
}

type Profile struct {
	FPS       int    `yaml:"fps" validate:"gt=0,lte=60"`
	FrameSize string `yaml:"frame_size" validate:"oneof=QQVGA QVGA CIF VGA SVGA"`
	Quality   int    `yaml:"quality" validate:"gte=0,lte=63"`
}

type Profiles struct {
	High      Profile `yaml:"high"`
	Balanced  Profile `yaml:"balanced"`
	Resilient Profile `yaml:"resilient"`
}

// Thresholds are RSSI bounds in dBm.
type Thresholds struct {
	Resilient int `yaml:"resilient" validate:"lt=0"`
	Balanced  int `yaml:"balanced" validate:"lte=0,gtfield=Resilient"`
}

type Server struct {
	IndexPort  int `yaml:"index_port" validate:"gt=0,lte=65535,nefield=StreamPort"`
	StreamPort int `yaml:"stream_port" validate:"gt=0,lte=65535"`
}

type Board struct {
	Chip      string `yaml:"chip" validate:"required"`
	FlashLED  int    `yaml:"flash_led" validate:"gte=-1"`
	PowerDown int    `yaml:"power_down" validate:"gte=-1"`
}

type Journal struct {
	Path      string        `yaml:"path" validate:"required"`
	Retention time.Duration `yaml:"retention" validate:"gte=0"`
}

type Telemetry struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Default returns the built-in configuration.
func Default() Config {
	th := adaptive.DefaultThresholds()
	bc := board.DefaultConfig()
	return Config{
		LogLevel: "info",
		WiFi: WiFi{
			SSID:          "YOUR_WIFI_SSID",
			Password:      "YOUR_WIFI_PASSWORD",
			SimulatedRSSI: -60,
		},
		Camera: Camera{Device: "auto", AuxMemory: true},
		Profiles: Profiles{
			High:      Profile{FPS: 8, FrameSize: "CIF", Quality: 13},
			Balanced:  Profile{FPS: 6, FrameSize: "CIF", Quality: 15},
			Resilient: Profile{FPS: 4, FrameSize: "QVGA", Quality: 20},
		},
		Thresholds: Thresholds{Resilient: th.Resilient, Balanced: th.Balanced},
		Server:     Server{IndexPort: 80, StreamPort: 81},
		Board:      Board{Chip: bc.Chip, FlashLED: bc.FlashLED, PowerDown: bc.PowerDown},
		Journal:    Journal{Path: "./camlink-data/journal.json", Retention: journal.DefaultRetention},
		Telemetry:  Telemetry{Insecure: true},
	}
}

// Load builds the configuration. A path that does not exist is ignored.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"WIFI_SSID":                   &c.WiFi.SSID,
		"WIFI_PASSWORD":               &c.WiFi.Password,
		"WIFI_INTERFACE":              &c.WiFi.Interface,
		"CAMLINK_LOG_LEVEL":           &c.LogLevel,
		"CAMLINK_CAMERA_DEVICE":       &c.Camera.Device,
		"CAMLINK_JOURNAL_PATH":        &c.Journal.Path,
		"OTEL_EXPORTER_OTLP_ENDPOINT": &c.Telemetry.Endpoint,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CAMLINK_INDEX_PORT":  &c.Server.IndexPort,
		"CAMLINK_STREAM_PORT": &c.Server.StreamPort,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks ranges and cross-field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ProfileSettings converts the profile section for the camera manager.
func (c Config) ProfileSettings() (camera.ProfileSettings, error) {
	var s camera.ProfileSettings
	for _, p := range []struct {
		name string
		in   Profile
		out  *camera.Targets
	}{
		{"high", c.Profiles.High, &s.High},
		{"balanced", c.Profiles.Balanced, &s.Balanced},
		{"resilient", c.Profiles.Resilient, &s.Resilient},
	} {
		fs, err := camera.ParseFrameSize(p.in.FrameSize)
		if err != nil {
			return s, fmt.Errorf("profile %s: %w", p.name, err)
		}
		*p.out = camera.Targets{FPS: p.in.FPS, FrameSize: fs, Quality: p.in.Quality}
	}
	return s, nil
}

func (c Config) AdaptiveThresholds() adaptive.Thresholds {
	return adaptive.Thresholds{Resilient: c.Thresholds.Resilient, Balanced: c.Thresholds.Balanced}
}

func (c Config) Credentials() link.Credentials {
	return link.Credentials{SSID: c.WiFi.SSID, Password: c.WiFi.Password}
}

func (c Config) BoardConfig() board.Config {
	return board.Config{Chip: c.Board.Chip, FlashLED: c.Board.FlashLED, PowerDown: c.Board.PowerDown}
}
