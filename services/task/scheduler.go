package task

import (
	"context"
	"time"

	"ugc-marketplace/pkg/config"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type triggerer interface {
	TriggerNow(ctx context.Context, trigger string) (*Job, error)
}

type Scheduler struct {
	sched   gocron.Scheduler
	service triggerer
}

// NewScheduler registers the daily reconciliation trigger at
// RECONCILE.HOUR:RECONCILE.MINUTE in RECONCILE.TIMEZONE.
func NewScheduler(cfg *config.Config, svc *Service) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Reconcile.Timezone)
	if err != nil {
		zap.L().Warn("[Scheduler] invalid timezone, using UTC", zap.String("timezone", cfg.Reconcile.Timezone), zap.Error(err))
		loc = time.UTC
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}

	s := &Scheduler{sched: sched, service: svc}
	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(cfg.Reconcile.Hour, cfg.Reconcile.Minute, 0))),
		gocron.NewTask(s.runDaily),
		gocron.WithName("daily-earnings-reconciliation"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// StartScheduler is invoked by fx on service start.
func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.sched.Start()
			for _, j := range s.sched.Jobs() {
				next, _ := j.NextRun()
				zap.L().Info("[Scheduler] next run scheduled", zap.String("job", j.Name()), zap.Time("next_run", next))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Warn("[Scheduler] stopped")
			return s.sched.Shutdown()
		},
	})
}

func (s *Scheduler) runDaily() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	zap.L().Info("[Scheduler] triggering daily reconciliation")

	job, err := s.service.TriggerNow(ctx, TriggerSchedule)
	if err != nil {
		zap.L().Error("[Scheduler] failed to trigger reconciliation", zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] reconciliation enqueued",
		zap.String("job_id", job.ID),
		zap.String("code", job.Code),
		zap.Duration("duration", time.Since(start)),
	)
}
