// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/discovery"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/repository"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/service"
)

// ErrAlreadyRunning is returned by RunNow while an ingest is in progress.
var ErrAlreadyRunning = errors.New("ingest already running")

// Ingester runs one bulletin ingest.
type Ingester interface {
	Ingest(ctx context.Context, trigger repository.Trigger) (*service.Result, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	ingester Ingester
	spec     string
	timeout  time.Duration
	entry    cron.EntryID
	running  atomic.Bool
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that runs the bulletin ingest on spec
// ("@every 168h", "0 6 * * 1", ...), each run bounded by timeout.
func NewScheduler(ingester Ingester, spec string, timeout time.Duration, logger *slog.Logger) *Scheduler {
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(
		cron.WithLocation(discovery.Manila),
		cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))),
	)

	return &Scheduler{
		cron:     c,
		ingester: ingester,
		spec:     spec,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	id, err := s.cron.AddFunc(s.spec, func() { s.runIngest(repository.TriggerSchedule) })
	if err != nil {
		return fmt.Errorf("invalid ingest schedule %q: %w", s.spec, err)
	}
	s.entry = id

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("ingest_schedule", s.spec),
		slog.Time("next_run", s.Next()),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// Next returns the next scheduled ingest, zero before Start.
func (s *Scheduler) Next() time.Time {
	if s.entry == 0 {
		return time.Time{}
	}
	e := s.cron.Entry(s.entry)
	if e.Next.IsZero() && e.Schedule != nil {
		return e.Schedule.Next(time.Now())
	}
	return e.Next
}

// Running reports whether an ingest is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// RunNow manually triggers an ingest in the background (for admin use).
func (s *Scheduler) RunNow() error {
	if s.running.Load() {
		return ErrAlreadyRunning
	}
	go s.runIngest(repository.TriggerManual)
	return nil
}

// runIngest runs one ingest unless another is still in progress.
func (s *Scheduler) runIngest(trigger repository.Trigger) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("skipping ingest, previous run still in progress", slog.String("trigger", string(trigger)))
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.logger.Info("starting scheduled bulletin ingest", slog.String("trigger", string(trigger)))

	// The service logs and records the outcome of every run.
	if _, err := s.ingester.Ingest(ctx, trigger); err != nil {
		s.logger.Debug("scheduled ingest returned error", slog.Any("error", err))
	}
}
