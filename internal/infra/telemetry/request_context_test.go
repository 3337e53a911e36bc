package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEnsureQueryMeta_GeneratesAndReuses(t *testing.T) {
	ctx, meta := EnsureQueryMeta(context.Background(), "")
	require.NotEmpty(t, meta.QueryID)

	id, ok := QueryIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, meta.QueryID, id)

	_, again := EnsureQueryMeta(ctx, "")
	assert.Equal(t, meta.QueryID, again.QueryID)

	_, explicit := EnsureQueryMeta(ctx, "fixed")
	assert.Equal(t, "fixed", explicit.QueryID)
}

func TestLoggerWithQuery_AddsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx, meta := EnsureQueryMeta(context.Background(), "q-1")

	LoggerWithQuery(ctx, zap.New(core)).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, meta.QueryID, entries[0].ContextMap()[FieldQueryID])
}

func TestLoggerWithQuery_NilBase(t *testing.T) {
	assert.NotNil(t, LoggerWithQuery(context.Background(), nil))
}
