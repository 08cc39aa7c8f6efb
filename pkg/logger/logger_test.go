package logger

import (
	"context"
	"testing"

	"ugc-marketplace/pkg/config"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewHonoursLogLevel(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	cfg := &config.Config{AppEnv: "production", AppName: "earnings-reconciler", LogLevel: "warn"}
	log, err := New(ConfigParams{Cfg: cfg})
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.InfoLevel))
	require.True(t, log.Core().Enabled(zapcore.WarnLevel))
	require.Same(t, log, zap.L())

	cfg.LogLevel = "loud"
	_, err = New(ConfigParams{Cfg: cfg})
	require.Error(t, err)
}

func TestFromContextAddsTraceID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	FromContext(ctx, zap.String("run_id", "job-1")).Info("traced")
	FromContext(context.Background()).Info("untraced")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, map[string]any{"run_id": "job-1", "trace_id": traceID.String()}, entries[0].ContextMap())
	require.Empty(t, entries[1].ContextMap())
}
