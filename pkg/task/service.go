package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ugc-marketplace/pkg/config"
	"ugc-marketplace/pkg/errutil"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// completed runs stay visible in the queue for a day so that a duplicate
// trigger with the same task id is rejected rather than re-run.
const retention = 24 * time.Hour

// ErrDuplicateRun means a task with the same id is already queued, running or
// retained as completed.
var ErrDuplicateRun = errors.New("reconciliation task already queued")

type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type enqueuer struct {
	client *asynq.Client
	queue  string
}

func NewEnqueuer(client *asynq.Client, cfg *config.Config) Enqueuer {
	return &enqueuer{client: client, queue: cfg.Reconcile.Queue}
}

// Enqueue submits task on the reconciliation queue. Caller options are applied
// after the defaults and win.
func (e *enqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := e.client.EnqueueContext(ctx, task, e.withDefaults(opts)...)
	if err != nil {
		return nil, enqueueError(task.Type(), err)
	}

	zap.L().Debug("[Asynq] task enqueued",
		zap.String("task_type", task.Type()),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return info, nil
}

func (e *enqueuer) withDefaults(opts []asynq.Option) []asynq.Option {
	defaults := []asynq.Option{asynq.Retention(retention)}
	if e.queue != "" {
		defaults = append(defaults, asynq.Queue(e.queue))
	}
	return append(defaults, opts...)
}

func enqueueError(taskType string, err error) error {
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return errutil.Conflict(fmt.Sprintf("task %s is already queued", taskType), ErrDuplicateRun)
	}
	return errutil.New(errutil.StatusServiceUnavailable,
		fmt.Sprintf("failed to enqueue task %s", taskType),
		errutil.WithErr(err),
	)
}
