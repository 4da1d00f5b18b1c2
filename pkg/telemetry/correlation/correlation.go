// Package correlation carries a cross-service correlation id on the context.
package correlation

import (
	"context"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
)

// MaxLength bounds inbound ids so they stay safe as log fields and span attributes.
const MaxLength = 64

type correlationKey struct{}

func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	cid, _ := ctx.Value(correlationKey{}).(string)
	return cid
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id = Sanitize(id); id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID returns ctx with a correlation id, minting a ULID when
// none is present.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if cid := ExtractCorrelationID(ctx); cid != "" {
		return ctx, cid
	}
	cid := ulid.Make().String()
	return context.WithValue(ctx, correlationKey{}, cid), cid
}

// Sanitize returns id when it is a short printable token and "" otherwise.
func Sanitize(id string) string {
	if id == "" || len(id) > MaxLength {
		return ""
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return ""
		}
	}
	return id
}

// TraceMetadata collects the correlation and span identifiers on ctx for
// attaching to outbound events. It returns nil when ctx carries neither.
func TraceMetadata(ctx context.Context) map[string]string {
	if ctx == nil {
		return nil
	}
	md := map[string]string{}
	if cid := ExtractCorrelationID(ctx); cid != "" {
		md["correlation_id"] = cid
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		md["trace_id"] = sc.TraceID().String()
		md["span_id"] = sc.SpanID().String()
	}
	if len(md) == 0 {
		return nil
	}
	return md
}
