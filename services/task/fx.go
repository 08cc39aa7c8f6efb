package task

import (
	"ugc-marketplace/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("task.service",
	fx.Provide(
		NewService,
	),
)

// Worker registers the reconciliation handler on the asynq mux.
var Worker = fx.Module("task.worker",
	fx.Invoke(func(mux *asynq.ServeMux, s *Service) {
		mux.HandleFunc(taskname.ReconcileRun, s.HandleReconcileTask)
	}),
)

// Schedule runs the daily trigger inside the process.
var Schedule = fx.Module("task.scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(StartScheduler),
)
