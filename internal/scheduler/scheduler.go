// Package scheduler runs periodic rebalance checks with cron.
package scheduler

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"go.uber.org/zap"
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler manages cron-driven jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New creates a scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// cronSpec maps a rebalance frequency onto a cron schedule. Monthly and
// quarterly runs fire on the first day of the period at midnight.
func cronSpec(f domain.Frequency) (string, error) {
	switch f {
	case domain.FrequencyDaily:
		return "@daily", nil
	case domain.FrequencyWeekly:
		return "@weekly", nil
	case domain.FrequencyMonthly:
		return "@monthly", nil
	case domain.FrequencyQuarterly:
		return "0 0 1 */3 *", nil
	default:
		return "", errors.Errorf("no cron schedule for frequency %q", f)
	}
}

// Add registers a job at the given frequency. The job runs with ctx so a
// service shutdown also cancels in-flight work.
func (s *Scheduler) Add(ctx context.Context, frequency domain.Frequency, job Job) error {
	spec, err := cronSpec(frequency)
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(spec, func() {
		s.logger.Debug("running scheduled job", zap.String("job", job.Name()))
		if err := job.Run(ctx); err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", job.Name()), zap.Error(err))
			return
		}
		s.logger.Debug("scheduled job finished", zap.String("job", job.Name()))
	})
	return errors.Wrapf(err, "schedule job %s", job.Name())
}

// Start launches the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
