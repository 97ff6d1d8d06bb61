package task

import (
	"context"
	"time"

	"creatorhub-platform/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultSweepHour   = 1 // off the midnight rush
	defaultSweepMinute = 0
)

type Scheduler struct {
	service *Service
	hour    int
	minute  int

	// current resolves the live configuration so a hot reload moves the
	// next run; nil snapshots fall back to the startup values.
	current func() *config.Config
}

func NewScheduler(svc *Service, cfg *config.Config) *Scheduler {
	hour, minute := resolveSweepTime(cfg)
	return &Scheduler{
		service: svc,
		hour:    hour,
		minute:  minute,
		current: config.Current,
	}
}

// resolveSweepTime applies defaults only for absent fields, so an explicit
// SWEEP_HOUR=0 schedules a midnight run.
func resolveSweepTime(cfg *config.Config) (hour, minute int) {
	hour, minute = defaultSweepHour, defaultSweepMinute
	if cfg == nil {
		return hour, minute
	}
	if cfg.Sweep.Hour != nil {
		hour = *cfg.Sweep.Hour
	}
	if cfg.Sweep.Minute != nil {
		minute = *cfg.Sweep.Minute
	}
	return hour, minute
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Scheduler) sweepTime() (int, int) {
	if s.current != nil {
		if cfg := s.current(); cfg != nil {
			return resolveSweepTime(cfg)
		}
	}
	return s.hour, s.minute
}

func (s *Scheduler) run(ctx context.Context) {
	hour, minute := s.sweepTime()
	zap.L().Info("[Scheduler] started sweep scheduler",
		zap.Int("hour", hour),
		zap.Int("minute", minute),
	)

	for {
		hour, minute = s.sweepTime()

		now := time.Now()
		next := nextRunTime(now, hour, minute)

		sleepDuration := next.Sub(now)
		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", sleepDuration),
		)
		select {
		case <-time.After(sleepDuration):
			s.runDaily(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) runDaily(ctx context.Context) {
	start := time.Now()
	zap.L().Info("[Scheduler] enqueuing daily sweeps")

	if err := s.service.EnqueueSweeps(ctx); err != nil {
		zap.L().Error("[Scheduler] failed to enqueue sweeps", zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] finished enqueuing sweeps",
		zap.Duration("duration", time.Since(start)),
	)
}

func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
