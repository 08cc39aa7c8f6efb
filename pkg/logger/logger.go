package logger

import (
	"context"

	"ugc-marketplace/pkg/config"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Module = fx.Module("zap",
	fx.Provide(
		New,
	),
)

type ConfigParams struct {
	fx.In
	Lc  fx.Lifecycle `optional:"true"`
	Cfg *config.Config
}

// New builds the process logger and installs it as the zap global. Every line
// carries the service identity and the snowflake node id, which tells
// reconciler replicas apart.
func New(p ConfigParams) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if p.Cfg != nil && p.Cfg.AppEnv == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.StacktraceKey = "stacktrace"
		cfg.EncoderConfig.LevelKey = "severity"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncoderConfig.CallerKey = "caller"
		cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		// a run logs one line per platform fetch; keep them all
		cfg.Sampling = nil
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}

	if p.Cfg != nil && p.Cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(p.Cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		cfg.Level = level
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	if p.Cfg != nil {
		log = log.With(
			zap.String("env", p.Cfg.AppEnv),
			zap.String("service_name", p.Cfg.AppName),
			zap.String("version", p.Cfg.AppVersion),
			zap.Int64("node_id", p.Cfg.Snowflake.NodeID),
		)
	}

	if p.Lc != nil {
		p.Lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				// stdout/stderr return EINVAL on sync
				_ = log.Sync()
				return nil
			},
		})
	}

	zap.ReplaceGlobals(log)

	return log, nil
}

// FromContext returns the global logger annotated with the trace id of the
// active span, if any, plus fields.
func FromContext(ctx context.Context, fields ...zap.Field) *zap.Logger {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	return zap.L().With(fields...)
}
