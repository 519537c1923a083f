package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wachiwi/camlink/cmd/camlink/handlers"
	"github.com/wachiwi/camlink/pkg/adaptive"
	"github.com/wachiwi/camlink/pkg/balena"
	"github.com/wachiwi/camlink/pkg/board"
	"github.com/wachiwi/camlink/pkg/camera"
	"github.com/wachiwi/camlink/pkg/config"
	"github.com/wachiwi/camlink/pkg/journal"
	"github.com/wachiwi/camlink/pkg/link"
	"github.com/wachiwi/camlink/pkg/logger"
	"github.com/wachiwi/camlink/pkg/status"
	"github.com/wachiwi/camlink/pkg/stream"
	"github.com/wachiwi/camlink/pkg/supervisor"
	"github.com/wachiwi/camlink/pkg/telemetry"
)

var version = "dev"

//go:embed templates/*
var templateFS embed.FS

func main() {
	configPath := flag.String("config", "camlink.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Setup("info")
		logger.Fatal("Failed to load config", "path", *configPath, "error", err)
	}
	logger.Setup(cfg.LogLevel)
	slog.Info("Starting camlink", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "camlink",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		slog.Warn("Failed to set up telemetry, continuing without export", "error", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	j := journal.New(cfg.Journal.Path, cfg.Journal.Retention)
	if last, ok, err := j.Last(journal.KindFatal); err == nil && ok {
		slog.Warn("Previous run ended with a fatal condition", "reason", last.Reason, "error", last.Error, "at", last.Timestamp)
	}
	record(j, journal.Event{Kind: journal.KindBoot, Reason: version})

	esc := &escalator{journal: j}
	if sc, err := balena.NewSupervisorClient("", ""); err != nil {
		slog.Info("Running without balena supervisor", "reason", err)
	} else {
		esc.supervisor = sc
		if state, err := sc.GetState(ctx); err != nil {
			slog.Warn("Failed to get supervisor state", "error", err)
		} else {
			slog.Info("Supervisor state", "status", state.Status, "appState", state.AppState, "os", state.OSVersion)
		}
	}

	// Board GPIO; the flash LED stays off.
	brd, err := board.Open(cfg.BoardConfig())
	if err != nil {
		slog.Warn("Board GPIO unavailable", "error", err)
	} else {
		if err := brd.SetFlash(false); err != nil {
			slog.Warn("Failed to switch off flash LED", "error", err)
		}
		defer brd.Close()
	}

	// Camera
	profiles, err := cfg.ProfileSettings()
	if err != nil {
		logger.Fatal("Invalid profile settings", "error", err)
	}
	camOpts := []camera.Option{
		camera.WithRecoveryHook(func(reason string, err error) {
			ev := journal.Event{Kind: journal.KindRecovery, Reason: reason}
			if err != nil {
				ev.Error = err.Error()
			}
			record(j, ev)
		}),
	}
	if brd != nil {
		camOpts = append(camOpts, camera.WithPowerControl(brd))
	}
	cam := camera.NewManager(openCamera(cfg.Camera), profiles, camOpts...)
	if err := cam.Initialize(); err != nil {
		esc.restart("camera init", err)
	}

	// WiFi
	iface, closeIface := openInterface(cfg.WiFi)
	defer closeIface()
	creds := cfg.Credentials()
	if creds.Placeholder() {
		slog.Error("WiFi credentials are not configured, set WIFI_SSID and WIFI_PASSWORD")
	}
	lm := link.NewManager(iface, creds)
	if !lm.Connect(ctx, link.ConnectTimeout) {
		esc.restart("wifi connect", errors.New("initial connection failed"))
	}

	thresholds := cfg.AdaptiveThresholds()
	initial := adaptive.SelectProfile(lm.SignalStrength(), thresholds)
	if err := cam.ApplyProfile(initial, true); err != nil {
		slog.Warn("Failed to apply initial profile", "profile", initial, "error", err)
	}
	ctrl := adaptive.NewController(lm, cam, thresholds)

	// HTTP
	reporter := status.NewReporter(lm, cam)
	streamHandler := stream.NewHandler(cam, lm)
	statusHandler, err := handlers.NewStatusHandler(templateFS, reporter, j, streamHandler.Busy, cfg.Server.StreamPort)
	if err != nil {
		logger.Fatal("Failed to parse templates", "error", err)
	}

	gin.SetMode(gin.ReleaseMode)
	indexRouter := gin.New()
	indexRouter.Use(gin.Recovery())
	indexRouter.GET("/", statusHandler.Index)
	indexRouter.GET("/health", statusHandler.Health)

	streamRouter := gin.New()
	streamRouter.Use(gin.Recovery())
	streamRouter.GET("/stream", streamHandler.Stream)

	indexSrv, streamSrv := newServers(ctx, cfg.Server, indexRouter, streamRouter)

	serverErr := make(chan error, 2)
	for _, srv := range []*http.Server{indexSrv, streamSrv} {
		go func() {
			slog.Info("HTTP server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("server %s: %w", srv.Addr, err)
			}
		}()
	}

	// Supervisory tick
	sup := supervisor.New(lm, ctrl, reporter)
	if err := sup.Start(ctx); err != nil {
		logger.Fatal("Failed to start supervisor", "error", err)
	}

	var fatal error
	var reason string
	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case fatal = <-sup.Fatal():
		reason = "wifi reconnect"
	case fatal = <-serverErr:
		reason = "http server"
	}

	stop()
	<-sup.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range []*http.Server{indexSrv, streamSrv} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP server shutdown failed", "addr", srv.Addr, "error", err)
		}
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("Telemetry shutdown failed", "error", err)
	}

	if fatal != nil {
		if brd != nil {
			brd.Close()
		}
		esc.restart(reason, fatal)
	}
}

func record(j *journal.Store, e journal.Event) {
	if err := j.Add(e); err != nil {
		slog.Warn("Failed to write journal", "kind", e.Kind, "error", err)
	}
}

// newServers returns the status server and the stream server. The stream
// server has no write timeout because the stream puts a deadline on every
// write itself.
func newServers(ctx context.Context, cfg config.Server, index, streamRouter http.Handler) (*http.Server, *http.Server) {
	baseContext := func(net.Listener) context.Context { return ctx }
	indexSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.IndexPort),
		Handler:      index,
		ReadTimeout:  handlers.ReadTimeout,
		WriteTimeout: handlers.WriteTimeout,
		BaseContext:  baseContext,
	}
	streamSrv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.StreamPort),
		Handler:     streamRouter,
		ReadTimeout: stream.ReadTimeout,
		BaseContext: baseContext,
	}
	return indexSrv, streamSrv
}
