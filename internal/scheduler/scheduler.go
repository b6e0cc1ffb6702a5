// Package scheduler triggers sync and ranking runs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sakif/playtracker/internal/ranking"
	"github.com/sakif/playtracker/internal/syncer"
)

// Runner is what the scheduler drives. *syncer.Syncer implements it.
type Runner interface {
	Run(ctx context.Context, opts syncer.Options) (syncer.Report, error)
	RunRankings(ctx context.Context, silent bool) ([]ranking.Result, error)
}

var _ Runner = (*syncer.Syncer)(nil)

type Config struct {
	// SyncSchedule and RankingSchedule are standard five-field cron
	// expressions (or descriptors such as "@hourly"). Empty disables the job.
	SyncSchedule    string
	RankingSchedule string
	Location        *time.Location
}

type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func New(runner Runner, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner: runner,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	for _, job := range []struct {
		name string
		spec string
		fn   func()
	}{
		{"sync", cfg.SyncSchedule, s.syncJob},
		{"ranking", cfg.RankingSchedule, s.rankingJob},
	} {
		if job.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, job.fn); err != nil {
			cancel()
			return nil, fmt.Errorf("scheduler: invalid %s schedule %q: %w", job.name, job.spec, err)
		}
		logger.Info("job scheduled", "job", job.name, "schedule", job.spec)
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs reports how many jobs are scheduled.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) syncJob() {
	report, err := s.runner.Run(s.ctx, syncer.Options{})
	switch {
	case errors.Is(err, syncer.ErrRunning):
		s.logger.Info("sync already running, skipping tick")
	case err != nil:
		s.logger.Error("scheduled sync failed", "error", err)
	default:
		s.logger.Info("scheduled sync done", "run_id", report.RunID, "entries", report.Entries)
	}
}

func (s *Scheduler) rankingJob() {
	_, err := s.runner.RunRankings(s.ctx, false)
	switch {
	case errors.Is(err, syncer.ErrRunning):
		s.logger.Info("ranking already running, skipping tick")
	case err != nil:
		s.logger.Error("scheduled ranking failed", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger. Cron's own chatter goes to debug.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
