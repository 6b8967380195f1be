package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"azsnap/internal/snapshot/service"
	appErr "azsnap/pkg/errors"
	"azsnap/pkg/utils/logger"
)

// Config holds the sweep schedule.
type Config struct {
	// SweepSchedule is a cron expression, e.g. "@every 5m" or "*/10 * * * *".
	SweepSchedule string `yaml:"sweepSchedule"`
}

// DefaultConfig returns the default schedule.
func DefaultConfig() Config {
	return Config{SweepSchedule: "@every 5m"}
}

// Scheduler runs the expiry sweep on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *service.SweepService
}

// New creates a Scheduler and registers the sweep job.
func New(cfg Config, sweeper *service.SweepService) (*Scheduler, error) {
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = DefaultConfig().SweepSchedule
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		sweeper: sweeper,
	}
	if _, err := s.cron.AddFunc(cfg.SweepSchedule, s.runSweep); err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "invalid sweep schedule %q", cfg.SweepSchedule)
	}
	return s, nil
}

// Start begins running scheduled sweeps in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	ctx := context.Background()
	result, err := s.sweeper.Sweep(ctx)
	if err != nil {
		// Another instance holding the lock is normal, not a failure.
		if appErr.GetCode(err) == appErr.SweepInProgress {
			logger.Debug(ctx, "sweep skipped, another sweep in progress")
			return
		}
		logger.Error(ctx, "scheduled sweep failed", zap.Error(err))
		return
	}
	if result.Expired > 0 {
		logger.Info(ctx, "scheduled sweep",
			zap.Int("expired", result.Expired),
			zap.Int("deleted", result.Deleted),
			zap.Int("failed", result.Failed))
	}
}
