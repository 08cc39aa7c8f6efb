package application

import "go.uber.org/fx"

var Module = fx.Module("application.module",
	fx.Provide(
		NewService,
		func(s *Service) Source { return s },
	),
)
