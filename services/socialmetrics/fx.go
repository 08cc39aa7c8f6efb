package socialmetrics

import "go.uber.org/fx"

type registryParams struct {
	fx.In
	Platforms []Platform `group:"platforms"`
}

var Module = fx.Module("socialmetrics",
	fx.Provide(
		NewClient,
		fx.Annotate(NewInstagram, fx.As(new(Platform)), fx.ResultTags(`group:"platforms"`)),
		fx.Annotate(NewTikTok, fx.As(new(Platform)), fx.ResultTags(`group:"platforms"`)),
		func(p registryParams) *Registry { return NewRegistry(p.Platforms...) },
	),
)
