package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	taskq "creatorhub-platform/pkg/asynq"
	"creatorhub-platform/services/offer"
	"creatorhub-platform/services/payment"
	"creatorhub-platform/services/timeline"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Enqueuer is the slice of *asynq.Client the service needs; tests swap in a
// fake.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	asynq Enqueuer

	offers    *offer.Service
	timelines *timeline.Service
	payments  *payment.Processor
}

type Params struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Asynq *asynq.Client

	Offers    *offer.Service
	Timelines *timeline.Service
	Payments  *payment.Processor
}

func NewService(p Params) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		asynq: p.Asynq,

		offers:    p.Offers,
		timelines: p.Timelines,
		payments:  p.Payments,
	}
}

// RunSweep executes a sweep under a Job audit record.
func (s *Service) RunSweep(ctx context.Context, name string, fn func(context.Context) (string, error)) error {
	now := time.Now()
	job := Job{
		ID:        s.node.Generate().String(),
		TaskName:  name,
		Status:    "running",
		StartedAt: &now,
	}
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		return err
	}

	summary, err := fn(ctx)

	updates := map[string]any{
		"completed_at": time.Now(),
		"summary":      summary,
	}
	if err != nil {
		updates["status"] = "failed"
		updates["error_msg"] = err.Error()
	} else {
		updates["status"] = "success"
	}
	if uerr := s.db.WithContext(ctx).Model(&Job{}).Where("id = ?", job.ID).Updates(updates).Error; uerr != nil {
		zap.L().Error("failed to finalize job record", zap.String("job_id", job.ID), zap.Error(uerr))
	}

	return err
}

func (s *Service) HandleOfferExpire(ctx context.Context, t *asynq.Task) error {
	return s.RunSweep(ctx, taskq.OfferExpireTask, func(ctx context.Context) (string, error) {
		count, err := s.offers.ExpireDue(ctx, time.Now())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("expired=%d", count), nil
	})
}

func (s *Service) HandleTimelineCheck(ctx context.Context, t *asynq.Task) error {
	return s.RunSweep(ctx, taskq.TimelineCheckTask, func(ctx context.Context) (string, error) {
		summary, err := s.timelines.CheckDeadlines(ctx, time.Now())
		if err != nil {
			return "", err
		}
		return summary.String(), nil
	})
}

func (s *Service) HandlePaymentBatch(ctx context.Context, t *asynq.Task) error {
	return s.RunSweep(ctx, taskq.PaymentBatchTask, func(ctx context.Context) (string, error) {
		result, err := s.payments.RunPaymentBatch(ctx)
		if err != nil {
			return "", err
		}
		return result.String(), nil
	})
}

func (s *Service) HandleWithdrawalBatch(ctx context.Context, t *asynq.Task) error {
	return s.RunSweep(ctx, taskq.WithdrawalBatchTask, func(ctx context.Context) (string, error) {
		result, err := s.payments.RunWithdrawalBatch(ctx)
		if err != nil {
			return "", err
		}
		return result.String(), nil
	})
}

// EnqueueSweeps queues all periodic sweeps. Called by the scheduler loop.
func (s *Service) EnqueueSweeps(ctx context.Context) error {
	payload, _ := json.Marshal(taskq.SweepPayload{RequestedBy: "scheduler"})

	g := errgroup.Group{}
	for _, name := range []string{
		taskq.OfferExpireTask,
		taskq.TimelineCheckTask,
		taskq.PaymentBatchTask,
		taskq.WithdrawalBatchTask,
	} {
		name := name
		g.Go(func() error {
			if _, err := s.asynq.Enqueue(asynq.NewTask(name, payload)); err != nil {
				zap.L().Error("failed to enqueue sweep", zap.String("task", name), zap.Error(err))
				return err
			}
			zap.L().Info("sweep enqueued", zap.String("task", name))
			return nil
		})
	}
	return g.Wait()
}
