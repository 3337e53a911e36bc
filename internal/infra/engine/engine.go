package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mcpchat/internal/domain"
	"mcpchat/internal/infra/registry"
	"mcpchat/internal/infra/telemetry"
)

// continuePrompt keeps roles alternating when the model answers with text
// that is not final.
const continuePrompt = "continue"

// ToolCatalog is the registry view the engine needs.
type ToolCatalog interface {
	Tools() []domain.ToolDefinition
	ToolNames() []string
	Resolve(kind registry.Kind, key string) (domain.Session, bool)
}

type state int

const (
	stateAwaitingModel state = iota
	stateDispatchingTools
	stateDone
)

// Result is the outcome of one top-level query.
type Result struct {
	QueryID    string
	Text       string
	Transcript domain.Transcript
	ToolCalls  int
	Rounds     int
}

type Options struct {
	Model     domain.Model
	Catalog   ToolCatalog
	Metrics   domain.Metrics
	History   domain.HistoryRecorder
	Logger    *zap.Logger
	MaxRounds int
}

// Engine resolves queries by alternating model completions and tool calls
// until the model answers with a single text block.
type Engine struct {
	model     domain.Model
	catalog   ToolCatalog
	metrics   domain.Metrics
	history   domain.HistoryRecorder
	logger    *zap.Logger
	maxRounds int

	modelProvider string
	modelName     string
}

func New(opts Options) *Engine {
	if opts.Model == nil {
		panic("engine.Engine requires a model")
	}
	if opts.Catalog == nil {
		panic("engine.Engine requires a tool catalog")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	provider, name := "unknown", "unknown"
	if info, ok := opts.Model.(domain.ModelInfo); ok {
		provider, name = info.Provider(), info.ModelName()
	}
	return &Engine{
		model:         opts.Model,
		catalog:       opts.Catalog,
		metrics:       metrics,
		history:       opts.History,
		logger:        logger.Named("engine"),
		maxRounds:     opts.MaxRounds,
		modelProvider: provider,
		modelName:     name,
	}
}

// Query runs one top-level query on a fresh transcript.
func (e *Engine) Query(ctx context.Context, query string) (Result, error) {
	const op = "engine.Query"

	ctx, meta := telemetry.EnsureQueryMeta(ctx, "")
	logger := telemetry.LoggerWithQuery(ctx, e.logger)
	started := time.Now()

	result := Result{
		QueryID:    meta.QueryID,
		Transcript: domain.NewTranscript(query),
	}
	tools := e.catalog.Tools()

	var (
		response []domain.ContentBlock
		err      error
	)
	st := stateAwaitingModel
	for st != stateDone {
		switch st {
		case stateAwaitingModel:
			if e.maxRounds > 0 && result.Rounds >= e.maxRounds {
				err = domain.E(domain.KindModelCall, op, fmt.Sprintf("%s after %d rounds", domain.ErrRoundLimit, result.Rounds), domain.ErrRoundLimit)
				return e.finish(logger, query, started, result, err)
			}
			response, err = e.complete(ctx, logger, result.Transcript, tools)
			result.Rounds++
			if err != nil {
				return e.finish(logger, query, started, result, domain.Wrap(domain.KindModelCall, op, err))
			}
			result.Transcript = result.Transcript.Append(domain.RoleAssistant, response...)
			if domain.IsFinalResponse(response) {
				result.Text = response[0].Text
				st = stateDone
				continue
			}
			st = stateDispatchingTools

		case stateDispatchingTools:
			invocations := domain.ToolInvocations(response)
			if len(invocations) == 0 {
				result.Transcript = result.Transcript.Append(domain.RoleUser, domain.TextBlock(continuePrompt))
				st = stateAwaitingModel
				continue
			}
			results := make([]domain.ContentBlock, 0, len(invocations))
			for _, inv := range invocations {
				results = append(results, e.dispatch(ctx, logger, inv))
			}
			result.ToolCalls += len(invocations)
			result.Transcript = result.Transcript.Append(domain.RoleUser, results...)
			st = stateAwaitingModel
		}
	}
	return e.finish(logger, query, started, result, nil)
}

func (e *Engine) complete(ctx context.Context, logger *zap.Logger, transcript domain.Transcript, tools []domain.ToolDefinition) ([]domain.ContentBlock, error) {
	started := time.Now()
	blocks, err := e.model.Complete(ctx, transcript, tools)
	if err == nil && len(blocks) == 0 {
		err = errors.New("model returned an empty response")
	}
	duration := time.Since(started)
	e.metrics.ObserveModelCall(e.modelProvider, e.modelName, duration, err)
	if err != nil {
		logger.Warn("model call failed",
			telemetry.EventField(telemetry.EventModelFailure),
			telemetry.DurationField(duration),
			zap.Error(err),
		)
		return nil, err
	}
	logger.Debug("model call",
		telemetry.EventField(telemetry.EventModelCall),
		telemetry.DurationField(duration),
		zap.Int("blocks", len(blocks)),
		zap.Int("turns", len(transcript)),
	)
	return blocks, nil
}

// dispatch runs one tool invocation. Every failure becomes an error result
// carrying the invocation id.
func (e *Engine) dispatch(ctx context.Context, logger *zap.Logger, inv domain.ToolInvocation) domain.ContentBlock {
	const op = "engine.dispatch"

	session, ok := e.catalog.Resolve(registry.KindTool, inv.Name)
	if !ok {
		err := domain.E(domain.KindUnknownTool, op, fmt.Sprintf("unknown tool %q (available: %s)", inv.Name, strings.Join(e.catalog.ToolNames(), ", ")), domain.ErrUnknownTool)
		e.metrics.ObserveToolCall("", inv.Name, domain.CallStatusUnknown, 0)
		logger.Warn("unknown tool requested",
			telemetry.EventField(telemetry.EventToolFailure),
			telemetry.ToolField(inv.Name),
		)
		return domain.ToolResultBlock(inv.ID, "Error: "+err.Message, true)
	}

	provider := session.Name()
	started := time.Now()
	outcome, err := session.CallTool(ctx, inv.Name, inv.Arguments)
	duration := time.Since(started)
	if err != nil {
		wrapped := domain.Wrap(domain.KindToolExecution, op, err)
		e.metrics.ObserveToolCall(provider, inv.Name, domain.CallStatusError, duration)
		logger.Warn("tool call failed",
			telemetry.EventField(telemetry.EventToolFailure),
			telemetry.ProviderField(provider),
			telemetry.ToolField(inv.Name),
			telemetry.DurationField(duration),
			zap.Error(wrapped),
		)
		return domain.ToolResultBlock(inv.ID, "Error: "+err.Error(), true)
	}

	status := domain.CallStatusSuccess
	if outcome.IsError {
		status = domain.CallStatusError
	}
	e.metrics.ObserveToolCall(provider, inv.Name, status, duration)
	logger.Info("tool call",
		telemetry.EventField(telemetry.EventToolCall),
		telemetry.ProviderField(provider),
		telemetry.ToolField(inv.Name),
		telemetry.DurationField(duration),
		zap.Bool("is_error", outcome.IsError),
	)
	return domain.ToolResultBlock(inv.ID, outcome.Text, outcome.IsError)
}

func (e *Engine) finish(logger *zap.Logger, query string, started time.Time, result Result, err error) (Result, error) {
	duration := time.Since(started)
	e.metrics.ObserveQuery(result.Rounds, duration, err)

	fields := []zap.Field{
		telemetry.EventField(telemetry.EventQueryDone),
		telemetry.DurationField(duration),
		zap.Int("rounds", result.Rounds),
		zap.Int("tool_calls", result.ToolCalls),
	}
	if err != nil {
		logger.Warn("query failed", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("query resolved", fields...)
	}

	if e.history != nil {
		entry := domain.HistoryEntry{
			ID:        result.QueryID,
			Query:     query,
			Answer:    result.Text,
			Rounds:    result.Rounds,
			ToolCalls: result.ToolCalls,
			Turns:     len(result.Transcript),
			StartedAt: started,
			Duration:  duration.Milliseconds(),
		}
		if err != nil {
			entry.Error = err.Error()
		}
		if recErr := e.history.Record(entry); recErr != nil {
			logger.Warn("history record failed", zap.Error(recErr))
		}
	}
	return result, err
}
