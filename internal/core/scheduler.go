package core

// scheduler.go runs background maintenance for the staging area.
//
// The stale job reaper marks jobs FAILED when they have been PROCESSING for
// longer than StaleAfter. Ingest finishes its own jobs, so a stale one means
// the process died mid-upload. Individual reaper failures are logged and
// retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// StaleJobReason is stored as the error of reaped jobs.
const StaleJobReason = "stale: processing timed out"

// ReaperConfig holds configuration for the stale job reaper.
type ReaperConfig struct {
	StaleAfter    time.Duration // PROCESSING age that counts as stale (default: 30m)
	CheckInterval time.Duration // How often to run (default: 5m)
}

func (c ReaperConfig) withDefaults() ReaperConfig {
	if c.StaleAfter <= 0 {
		c.StaleAfter = 30 * time.Minute
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 5 * time.Minute
	}
	return c
}

// StartStaleJobReaper reaps stale jobs immediately, then every
// CheckInterval, until ctx is cancelled.
func (s *Service) StartStaleJobReaper(ctx context.Context, cfg ReaperConfig) {
	cfg = cfg.withDefaults()
	slog.Info("stale job reaper started",
		"stale_after", cfg.StaleAfter.String(),
		"check_interval", cfg.CheckInterval.String(),
	)

	s.runReaper(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stale job reaper stopped")
			return
		case <-ticker.C:
			s.runReaper(ctx, cfg)
		}
	}
}

func (s *Service) runReaper(ctx context.Context, cfg ReaperConfig) {
	start := time.Now()
	n, err := s.ReapStaleJobs(ctx, cfg.StaleAfter)
	if err != nil {
		slog.Error("reap stale jobs failed", "error", err)
		return
	}
	if n > 0 {
		slog.Warn("reaped stale jobs",
			"jobs_failed", n,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// ReapStaleJobs marks PROCESSING jobs created more than staleAfter ago as
// FAILED and returns how many changed.
func (s *Service) ReapStaleJobs(ctx context.Context, staleAfter time.Duration) (int64, error) {
	now := s.now()
	n, err := s.store.FailStaleJobs(ctx, now.Add(-staleAfter), StaleJobReason, now)
	if err != nil {
		return 0, persistenceError("", "fail stale jobs", err)
	}
	for range n {
		s.metrics.JobFinished("FAILED")
	}
	return n, nil
}
