package dashboard

import "go.uber.org/fx"

var Module = fx.Module("dashboard.http",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
