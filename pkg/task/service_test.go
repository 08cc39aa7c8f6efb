package task

import (
	"errors"
	"fmt"
	"testing"

	"ugc-marketplace/pkg/errutil"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestEnqueueErrorMapsDuplicatesToConflict(t *testing.T) {
	for _, cause := range []error{asynq.ErrTaskIDConflict, asynq.ErrDuplicateTask} {
		err := enqueueError("reconcile:run", fmt.Errorf("enqueue: %w", cause))
		require.Equal(t, errutil.StatusConflict, errutil.StatusOf(err))
		require.ErrorIs(t, err, ErrDuplicateRun)
	}

	err := enqueueError("reconcile:run", errors.New("dial tcp 127.0.0.1:6379: connection refused"))
	require.Equal(t, errutil.StatusServiceUnavailable, errutil.StatusOf(err))
	require.Contains(t, err.Error(), "connection refused")
}

func TestWithDefaultsLetsCallerOverride(t *testing.T) {
	e := &enqueuer{queue: "reconcile"}

	opts := e.withDefaults([]asynq.Option{asynq.Queue("critical"), asynq.TaskID("job-1")})

	var queues []any
	var retained bool
	for _, o := range opts {
		switch o.Type() {
		case asynq.QueueOpt:
			queues = append(queues, o.Value())
		case asynq.RetentionOpt:
			retained = true
		}
	}
	require.True(t, retained)
	// asynq applies options in order, so the caller's queue is the last one
	require.Equal(t, []any{"reconcile", "critical"}, queues)

	require.Len(t, (&enqueuer{}).withDefaults(nil), 1)
}
