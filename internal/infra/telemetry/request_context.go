package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type queryContextKey struct{}

// QueryMeta correlates log lines of one top-level query.
type QueryMeta struct {
	QueryID string
	TraceID string
	SpanID  string
}

func (m QueryMeta) IsZero() bool {
	return m.QueryID == "" && m.TraceID == "" && m.SpanID == ""
}

func WithQueryMeta(ctx context.Context, meta QueryMeta) context.Context {
	if meta.IsZero() {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, queryContextKey{}, meta)
}

func QueryMetaFromContext(ctx context.Context) (QueryMeta, bool) {
	if ctx == nil {
		return QueryMeta{}, false
	}
	meta, ok := ctx.Value(queryContextKey{}).(QueryMeta)
	return meta, ok && !meta.IsZero()
}

func QueryIDFromContext(ctx context.Context) (string, bool) {
	meta, ok := QueryMetaFromContext(ctx)
	if !ok || meta.QueryID == "" {
		return "", false
	}
	return meta.QueryID, true
}

// NewQueryID returns a time-ordered id, so archived queries sort by start.
func NewQueryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func TraceSpanFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return "", ""
	}
	return spanCtx.TraceID().String(), spanCtx.SpanID().String()
}

// EnsureQueryMeta attaches query metadata to ctx, reusing an existing id.
func EnsureQueryMeta(ctx context.Context, queryID string) (context.Context, QueryMeta) {
	if existing, ok := QueryMetaFromContext(ctx); ok && queryID == "" {
		queryID = existing.QueryID
	}
	if queryID == "" {
		queryID = NewQueryID()
	}
	traceID, spanID := TraceSpanFromContext(ctx)
	meta := QueryMeta{
		QueryID: queryID,
		TraceID: traceID,
		SpanID:  spanID,
	}
	return WithQueryMeta(ctx, meta), meta
}

func QueryFields(meta QueryMeta) []zap.Field {
	if meta.IsZero() {
		return nil
	}
	fields := make([]zap.Field, 0, 3)
	if meta.QueryID != "" {
		fields = append(fields, QueryIDField(meta.QueryID))
	}
	if meta.TraceID != "" {
		fields = append(fields, TraceIDField(meta.TraceID))
	}
	if meta.SpanID != "" {
		fields = append(fields, SpanIDField(meta.SpanID))
	}
	return fields
}

func LoggerWithQuery(ctx context.Context, base *zap.Logger) *zap.Logger {
	logger := base
	if logger == nil {
		logger = zap.NewNop()
	}
	meta, ok := QueryMetaFromContext(ctx)
	if !ok {
		return logger
	}
	return logger.With(QueryFields(meta)...)
}
