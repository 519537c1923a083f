package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/wachiwi/camlink/pkg/balena"
	"github.com/wachiwi/camlink/pkg/camera"
	"github.com/wachiwi/camlink/pkg/config"
	"github.com/wachiwi/camlink/pkg/journal"
	"github.com/wachiwi/camlink/pkg/link"
	"github.com/wachiwi/camlink/pkg/logger"
)

// escalator restarts the appliance after a fatal condition.
type escalator struct {
	journal    *journal.Store
	supervisor *balena.SupervisorClient
}

// restart records the condition, asks the supervisor for a reboot when one
// is available and exits. The container restart policy covers the rest.
func (e *escalator) restart(reason string, cause error) {
	record(e.journal, journal.Event{Kind: journal.KindFatal, Reason: reason, Error: cause.Error()})

	if e.supervisor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.supervisor.Reboot(ctx, true); err != nil {
			slog.Error("Supervisor reboot failed", "error", err)
		} else {
			slog.Warn("Device reboot requested", "reason", reason)
		}
	}
	logger.Fatal("Restarting after fatal condition", "reason", reason, "error", cause)
}

func openCamera(cfg config.Camera) camera.Device {
	sim := func() camera.Device {
		slog.Info("Using simulated camera", "auxMemory", cfg.AuxMemory, "rawFrames", cfg.RawFrames)
		return camera.NewSimulated(camera.SimulatedOptions{AuxMemory: cfg.AuxMemory, RawFrames: cfg.RawFrames})
	}

	switch cfg.Device {
	case "simulated":
		return sim()
	case "rpicam":
		dev, err := camera.OpenPlatformDevice()
		if err != nil {
			logger.Fatal("Failed to open camera", "error", err)
		}
		return dev
	default:
		dev, err := camera.OpenPlatformDevice()
		if err != nil {
			slog.Warn("No camera found, falling back to simulation", "error", err)
			return sim()
		}
		return dev
	}
}

func openInterface(cfg config.WiFi) (link.Interface, func() error) {
	noop := func() error { return nil }
	if cfg.Interface == "simulated" {
		slog.Info("Using simulated WiFi link", "rssi", cfg.SimulatedRSSI)
		return link.NewSimulated(cfg.SimulatedRSSI), noop
	}

	nm, err := link.NewNM(cfg.Interface)
	if err != nil {
		if cfg.Interface != "" {
			logger.Fatal("Failed to open wireless interface", "name", cfg.Interface, "error", err)
		}
		slog.Warn("No wireless interface found, falling back to simulation", "error", err)
		return link.NewSimulated(cfg.SimulatedRSSI), noop
	}
	return nm, nm.Close
}
