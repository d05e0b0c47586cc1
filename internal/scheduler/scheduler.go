package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// TickInterval is the fixed refresh period.
const TickInterval = 60 * time.Second

// Scheduler fires the periodic refresh. The first tick comes one interval
// after Start; the applet loop does its own startup refresh.
type Scheduler struct {
	scheduler *gocron.Scheduler
	interval  time.Duration
	tick      func(ctx context.Context) error
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a Scheduler that calls tick every TickInterval.
func New(tick func(ctx context.Context) error, logger *zap.Logger) *Scheduler {
	return newWithInterval(TickInterval, tick, logger)
}

func newWithInterval(interval time.Duration, tick func(ctx context.Context) error, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.Local),
		interval:  interval,
		tick:      tick,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(func() {
		if err := s.tick(s.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Warn("tick not delivered", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule tick: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("tick scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels pending ticks and stops the scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
