// Package ctxlogger derives request-scoped zap loggers from context metadata.
package ctxlogger

import (
	"context"
	"sync/atomic"

	"github.com/ramonsarchive/ascend/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	requestIDKey struct{}
	actorIDKey   struct{}
)

var serviceName atomic.Pointer[string]

// SetServiceName sets the "service" field stamped on every derived logger.
func SetServiceName(name string) {
	serviceName.Store(&name)
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return withValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey{})
}

// ContextWithActorID records the authenticated user behind the request.
func ContextWithActorID(ctx context.Context, actorID string) context.Context {
	return withValue(ctx, actorIDKey{}, actorID)
}

func ActorIDFromContext(ctx context.Context) string {
	return stringValue(ctx, actorIDKey{})
}

func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext adds correlation, request, actor and trace ids found on ctx.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	fields := make([]zap.Field, 0, 6)
	for _, f := range []struct{ key, value string }{
		{"correlation_id", correlation.ExtractCorrelationID(ctx)},
		{"request_id", RequestIDFromContext(ctx)},
		{"actor_id", ActorIDFromContext(ctx)},
	} {
		if f.value != "" {
			fields = append(fields, zap.String(f.key, f.value))
		}
	}
	fields = append(fields, ExtractTrace(ctx)...)

	name := "unknown"
	if p := serviceName.Load(); p != nil {
		name = *p
	}
	return base.With(append(fields, zap.String("service", name))...)
}

func ExtractTrace(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

func withValue(ctx context.Context, key any, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
