package ctxlogger

import (
	"context"
	"testing"

	"github.com/ramonsarchive/ascend/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsRequestMetadata(t *testing.T) {
	SetServiceName("ascend-test")
	core, logs := observer.New(zap.InfoLevel)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithActorID(ctx, "42")
	ctx = correlation.ContextWithCorrelationID(ctx, "corr-1")

	WithContext(ctx, zap.New(core)).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "42", fields["actor_id"])
	assert.Equal(t, "corr-1", fields["correlation_id"])
	assert.Equal(t, "ascend-test", fields["service"])
	assert.NotContains(t, fields, "trace_id")
}

func TestAnonymousRequestsHaveNoActor(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := ContextWithActorID(context.Background(), "")

	WithContext(ctx, zap.New(core)).Info("hello")

	assert.NotContains(t, logs.All()[0].ContextMap(), "actor_id")
	assert.Empty(t, ActorIDFromContext(ctx))
}
