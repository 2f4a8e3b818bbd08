// Package scheduler refreshes the displayed city on a fixed interval.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display-service/internal/display"
)

// Refresher re-fetches the selected city. Implemented by *display.Controller.
type Refresher interface {
	Refresh(ctx context.Context, trigger string) <-chan struct{}
}

// Scheduler runs Refresh every interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    Refresher
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// New returns a Scheduler. timeout bounds how long one job waits for its fetches.
func New(target Refresher, interval, timeout time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		target:    target,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the refresh job. An interval of 0 disables scheduling.
// The first run happens one interval after Start; the initial fetch is SetCity's job.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("scheduled refresh disabled")
		return nil
	}
	_, err := s.scheduler.Every(s.interval).WaitForSchedule().SingletonMode().Do(s.run)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("scheduled refresh started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	select {
	case <-s.target.Refresh(ctx, display.TriggerScheduled):
	case <-ctx.Done():
		s.logger.Warn("scheduled refresh did not settle in time", zap.Duration("timeout", s.timeout))
	}
}

// Stop cancels future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
