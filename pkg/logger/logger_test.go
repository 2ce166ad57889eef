package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "taxledger/internal/core/context"
)

func TestFromContext_AddsTraceAndUserFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewFromCore(core)

	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "u-1", Role: appctx.RoleTaxpayer})
	ctx = WithLogger(ctx, log)

	Info(ctx, "payment recorded", "receipt", "REC-2026-00001")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "t-1", fields["trace_id"])
	assert.Equal(t, "r-1", fields["request_id"])
	assert.Equal(t, "u-1", fields["user_id"])
	assert.Equal(t, "taxpayer", fields["role"])
	assert.Equal(t, "REC-2026-00001", fields["receipt"])
}

func TestFromContext_WithoutLoggerUsesDefault(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := Default()
	SetDefault(NewFromCore(core))
	t.Cleanup(func() { SetDefault(prev) })

	Debug(context.Background(), "hidden")
	Warn(context.Background(), "shown")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
}

func TestNew_FallsBackToInfoOnBadLevel(t *testing.T) {
	l, err := New(Config{Level: "verbose", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}
