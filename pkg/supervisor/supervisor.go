// Package supervisor runs the periodic link and profile maintenance.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/wachiwi/camlink/pkg/logger"
)

// TickSpec is the schedule of the supervisory tick.
const TickSpec = "@every 1s"

// Link is maintained on every tick. A non-nil error is unrecoverable.
type Link interface {
	Maintain(ctx context.Context) error
}

// Profiles is re-evaluated after the link on every tick.
type Profiles interface {
	Evaluate(ctx context.Context)
}

// Observer runs last on every tick.
type Observer interface {
	Record(ctx context.Context)
}

// Supervisor drives the tick and forwards unrecoverable conditions to the
// process through Fatal.
type Supervisor struct {
	link      Link
	profiles  Profiles
	observers []Observer

	cron  *cron.Cron
	fatal chan error
}

func New(l Link, p Profiles, observers ...Observer) *Supervisor {
	cronLogger := &logger.CronLogger{Logger: slog.Default()}
	return &Supervisor{
		link:      l,
		profiles:  p,
		observers: observers,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
		),
		fatal: make(chan error, 1),
	}
}

// Fatal delivers unrecoverable conditions. The supervisor never stops the
// process itself.
func (s *Supervisor) Fatal() <-chan error {
	return s.fatal
}

// Tick runs one round of maintenance.
func (s *Supervisor) Tick(ctx context.Context) {
	if err := s.link.Maintain(ctx); err != nil {
		slog.Error("Link is unrecoverable", "error", err)
		select {
		case s.fatal <- err:
		default:
		}
	}
	s.profiles.Evaluate(ctx)
	for _, o := range s.observers {
		o.Record(ctx)
	}
}

// Start schedules the tick. ctx is passed to every tick.
func (s *Supervisor) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(TickSpec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule supervisory tick: %w", err)
	}
	s.cron.Start()
	slog.Info("Supervisor started", "schedule", TickSpec)
	return nil
}

// Stop stops scheduling and returns a context that is done once a running
// tick has finished.
func (s *Supervisor) Stop() context.Context {
	return s.cron.Stop()
}
