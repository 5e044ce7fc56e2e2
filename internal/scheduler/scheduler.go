package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/lox/jmaweather/internal/forecast"
	"github.com/lox/jmaweather/internal/models"
)

const (
	DefaultInterval = 3 * time.Hour
	refreshTimeout  = time.Minute
)

// Refresher refreshes the forecast for one area. *forecast.Service satisfies it.
type Refresher interface {
	RefreshWithReport(ctx context.Context, areaCode string) ([]models.ForecastRecord, forecast.RefreshReport)
}

// Summary describes one pass over the configured areas.
type Summary struct {
	Areas     int
	Sentinels int
	Stored    int
	StoreErrs int
}

// Scheduler periodically refreshes forecasts for configured areas.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	areas     []string
	interval  time.Duration
	logger    *zap.Logger
}

func New(areas []string, interval time.Duration, refresher Refresher, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		areas:     areas,
		interval:  interval,
		logger:    logger.Named("scheduler"),
	}
}

// Start schedules the refresh job and starts the underlying scheduler. The
// first pass runs immediately.
func (s *Scheduler) Start() error {
	if len(s.areas) == 0 {
		s.logger.Info("no areas configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("started", zap.Strings("areas", s.areas), zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunOnce refreshes every configured area in order, one at a time.
func (s *Scheduler) RunOnce(ctx context.Context) Summary {
	s.logger.Info("running forecast refresh", zap.Int("areas", len(s.areas)))

	var sum Summary
	for _, area := range s.areas {
		if ctx.Err() != nil {
			break
		}
		areaCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
		_, report := s.refresher.RefreshWithReport(areaCtx, area)
		cancel()

		sum.Areas++
		sum.Stored += report.Stored
		if report.Sentinel {
			sum.Sentinels++
		}
		if report.StoreErr != nil {
			sum.StoreErrs++
		}
	}

	s.logger.Info("completed forecast refresh",
		zap.Int("areas", sum.Areas),
		zap.Int("stored", sum.Stored),
		zap.Int("sentinels", sum.Sentinels),
		zap.Int("store_errors", sum.StoreErrs))
	return sum
}
