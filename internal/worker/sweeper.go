package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

type Expirer interface {
	Execute(ctx context.Context) (int64, error)
}

// ExpirySweeper periodically persists status=expired for overdue tickets.
type ExpirySweeper struct {
	scheduler gocron.Scheduler
	expirer   Expirer
	interval  time.Duration
	logger    *slog.Logger
}

func NewExpirySweeper(expirer Expirer, interval time.Duration, logger *slog.Logger) (*ExpirySweeper, error) {
	if interval <= 0 {
		interval = time.Minute
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &ExpirySweeper{scheduler: s, expirer: expirer, interval: interval, logger: logger}, nil
}

// Run schedules the sweep and blocks until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.sweep(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule expiry sweep: %w", err)
	}

	s.scheduler.Start()
	s.logger.Info("Expiry sweeper started", "interval", s.interval)

	<-ctx.Done()
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	if _, err := s.expirer.Execute(ctx); err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
	}
}
