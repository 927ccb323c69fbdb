// Package scheduler triggers monitoring runs on a fixed interval.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Config configures the scheduler.
type Config struct {
	// Interval between runs. Default: 6 hours.
	Interval time.Duration
	// SkipInitial disables the run performed immediately on start.
	SkipInitial bool
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 6 * time.Hour
	}
}

// RunFunc performs one scheduled invocation.
type RunFunc func(ctx context.Context) error

// Scheduler calls a RunFunc periodically.
type Scheduler struct {
	run    RunFunc
	config Config
	logger *slog.Logger
}

// New creates a Scheduler.
func New(run RunFunc, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{run: run, config: cfg, logger: logger}
}

// Interval returns the effective tick interval.
func (s *Scheduler) Interval() time.Duration { return s.config.Interval }

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if !s.config.SkipInitial {
		s.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()
	if err := s.run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduler: run failed", "error", err, "elapsed", time.Since(start))
		return
	}
	s.logger.Debug("scheduler: run done", "elapsed", time.Since(start))
}
