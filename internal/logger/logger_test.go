package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/fulfillment/internal/config"
)

func TestBuildConfig(t *testing.T) {
	cfg := buildConfig(config.Observability{LogLevel: "debug", LogEncoding: "json"})
	assert.Equal(t, "json", cfg.Encoding)
	assert.Nil(t, cfg.Sampling)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level.Level())

	cfg = buildConfig(config.Observability{LogLevel: "shouting", LogEncoding: "console"})
	assert.Equal(t, "console", cfg.Encoding)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level.Level())
}

func TestNew(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	l, err := New(lc, config.Config{Observability: config.Observability{ServiceName: "fulfillment", LogLevel: "warn", LogEncoding: "json"}})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithTrace(context.Background(), base).Info("no span")
	assert.Empty(t, logs.All()[0].Context)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01},
		SpanID:     trace.SpanID{0x02},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	WithTrace(ctx, base).Info("order transitioned")

	fields := logs.All()[1].ContextMap()
	assert.Equal(t, sc.TraceID().String(), fields["trace_id"])
	assert.Equal(t, sc.SpanID().String(), fields["span_id"])
}
