package logger

import (
	"context"

	"github.com/google/uuid"
)

type traceIDCtxKey struct{}

// WithTraceID returns ctx carrying id. Records logged through
// Logger.WithContext(ctx) get a trace_id attribute.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDCtxKey{}, id)
}

// TraceIDFromContext returns the trace id of ctx or ""
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDCtxKey{}).(string)
	return id
}

// NewTraceContext keeps the trace id already present in ctx and starts a
// new one otherwise.
func NewTraceContext(ctx context.Context) (context.Context, string) {
	if id := TraceIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithTraceID(ctx, id), id
}
