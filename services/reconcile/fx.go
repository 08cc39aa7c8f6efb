package reconcile

import "go.uber.org/fx"

var Module = fx.Module("reconcile.orchestrator",
	fx.Provide(NewOrchestrator),
)
