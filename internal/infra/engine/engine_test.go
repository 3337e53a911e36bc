package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mcpchat/internal/domain"
	"mcpchat/internal/infra/registry"
)

type toolCall struct {
	name string
	args map[string]any
}

type fakeSession struct {
	name    string
	outcome map[string]domain.ToolOutcome
	fail    map[string]error
	calls   []toolCall
}

func (s *fakeSession) Name() string { return s.name }

func (s *fakeSession) ListTools(context.Context) ([]domain.ToolDefinition, error) { return nil, nil }

func (s *fakeSession) ListPrompts(context.Context) ([]domain.PromptDefinition, error) {
	return nil, nil
}

func (s *fakeSession) ListResources(context.Context) ([]domain.ResourceHandle, error) {
	return nil, nil
}

func (s *fakeSession) ListResourceTemplates(context.Context) ([]domain.ResourceTemplate, error) {
	return nil, nil
}

func (s *fakeSession) CallTool(_ context.Context, name string, args map[string]any) (domain.ToolOutcome, error) {
	s.calls = append(s.calls, toolCall{name: name, args: args})
	if err := s.fail[name]; err != nil {
		return domain.ToolOutcome{}, err
	}
	return s.outcome[name], nil
}

func (s *fakeSession) GetPrompt(context.Context, string, map[string]string) (domain.RenderedPrompt, error) {
	return domain.RenderedPrompt{}, nil
}

func (s *fakeSession) ReadResource(context.Context, string) ([]domain.ResourceContent, error) {
	return nil, nil
}

func (s *fakeSession) Close() error { return nil }

// scriptedModel replays responses in order and records what it was sent.
type scriptedModel struct {
	responses [][]domain.ContentBlock
	errs      []error
	seen      []domain.Transcript
	tools     [][]domain.ToolDefinition
}

func (m *scriptedModel) Complete(_ context.Context, transcript domain.Transcript, tools []domain.ToolDefinition) ([]domain.ContentBlock, error) {
	idx := len(m.seen)
	snapshot := make(domain.Transcript, len(transcript))
	copy(snapshot, transcript)
	m.seen = append(m.seen, snapshot)
	m.tools = append(m.tools, tools)
	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	if idx >= len(m.responses) {
		return []domain.ContentBlock{domain.TextBlock("out of script")}, nil
	}
	return m.responses[idx], nil
}

func (m *scriptedModel) Provider() string  { return "fake" }
func (m *scriptedModel) ModelName() string { return "scripted" }

type historyStub struct {
	entries []domain.HistoryEntry
}

func (h *historyStub) Record(entry domain.HistoryEntry) error {
	h.entries = append(h.entries, entry)
	return nil
}

func newRegistry(t *testing.T, session *fakeSession, tools ...string) *registry.Registry {
	t.Helper()
	reg := registry.New(zap.NewNop(), nil)
	defs := make([]domain.ToolDefinition, 0, len(tools))
	for _, name := range tools {
		defs = append(defs, domain.ToolDefinition{Name: name, InputSchema: map[string]any{"type": "object"}})
	}
	reg.Register(session, registry.Capabilities{Tools: defs})
	return reg
}

func TestEngine_SingleTextTerminates(t *testing.T) {
	model := &scriptedModel{responses: [][]domain.ContentBlock{{domain.TextBlock("hello")}}}
	eng := New(Options{Model: model, Catalog: registry.New(nil, nil)})

	res, err := eng.Query(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, 1, res.Rounds)
	assert.Len(t, model.seen, 1)
	require.Len(t, res.Transcript, 2)
	assert.Equal(t, domain.RoleAssistant, res.Transcript[1].Role)
	assert.NotEmpty(t, res.QueryID)
}

func TestEngine_SearchScenario(t *testing.T) {
	session := &fakeSession{
		name:    "A",
		outcome: map[string]domain.ToolOutcome{"search": {Text: "R"}},
	}
	reg := newRegistry(t, session, "search")
	model := &scriptedModel{responses: [][]domain.ContentBlock{
		{domain.ToolUseBlock("1", "search", map[string]any{"q": "x"})},
		{domain.TextBlock("done")},
	}}
	eng := New(Options{Model: model, Catalog: reg, Logger: zap.NewNop()})

	res, err := eng.Query(context.Background(), "find x")
	require.NoError(t, err)
	assert.Equal(t, "done", res.Text)
	assert.Equal(t, 1, res.ToolCalls)
	assert.Equal(t, 2, res.Rounds)

	require.Len(t, session.calls, 1)
	assert.Equal(t, "search", session.calls[0].name)
	assert.Equal(t, map[string]any{"q": "x"}, session.calls[0].args)

	require.Len(t, model.seen, 2)
	second := model.seen[1]
	require.Len(t, second, 3)
	assert.Equal(t, domain.RoleUser, second[0].Role)
	assert.Equal(t, domain.RoleAssistant, second[1].Role)
	assert.Equal(t, domain.BlockToolUse, second[1].Content[0].Kind)
	assert.Equal(t, domain.RoleUser, second[2].Role)
	require.Len(t, second[2].Content, 1)
	result := second[2].Content[0].ToolResult
	require.NotNil(t, result)
	assert.Equal(t, "1", result.ID)
	assert.Equal(t, "R", result.Payload)
	assert.False(t, result.IsError)

	require.Len(t, model.tools[0], 1)
	assert.Equal(t, "search", model.tools[0][0].Name)
}

func TestEngine_MultiToolTurnEchoesIDsInOrder(t *testing.T) {
	session := &fakeSession{
		name: "A",
		outcome: map[string]domain.ToolOutcome{
			"search":  {Text: "ids"},
			"extract": {Text: "oops", IsError: true},
		},
		fail: map[string]error{"broken": errors.New("pipe closed")},
	}
	reg := newRegistry(t, session, "search", "extract", "broken")
	model := &scriptedModel{responses: [][]domain.ContentBlock{
		{
			domain.TextBlock("let me look"),
			domain.ToolUseBlock("t1", "search", nil),
			domain.ToolUseBlock("t2", "nope", nil),
			domain.ToolUseBlock("t3", "broken", nil),
			domain.ToolUseBlock("t4", "extract", nil),
		},
		{domain.TextBlock("final")},
	}}
	eng := New(Options{Model: model, Catalog: reg})

	res, err := eng.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "final", res.Text)
	assert.Equal(t, 4, res.ToolCalls)

	var names []string
	for _, call := range session.calls {
		names = append(names, call.name)
	}
	assert.Equal(t, []string{"search", "broken", "extract"}, names)

	assistant := model.seen[1][1]
	require.Len(t, assistant.Content, 5)
	assert.Equal(t, domain.BlockText, assistant.Content[0].Kind)

	results := model.seen[1][2].Content
	require.Len(t, results, 4)
	wantIDs := []string{"t1", "t2", "t3", "t4"}
	wantErr := []bool{false, true, true, true}
	for i, block := range results {
		require.Equal(t, domain.BlockToolResult, block.Kind)
		assert.Equal(t, wantIDs[i], block.ToolResult.ID)
		assert.Equal(t, wantErr[i], block.ToolResult.IsError, wantIDs[i])
	}
	assert.Contains(t, results[1].ToolResult.Payload, `unknown tool "nope"`)
	assert.Contains(t, results[1].ToolResult.Payload, "search")
	assert.Contains(t, results[2].ToolResult.Payload, "pipe closed")
	assert.Equal(t, "oops", results[3].ToolResult.Payload)
}

func TestEngine_SeveralTextBlocksContinue(t *testing.T) {
	model := &scriptedModel{responses: [][]domain.ContentBlock{
		{domain.TextBlock("part one"), domain.TextBlock("part two")},
		{domain.TextBlock("answer")},
	}}
	eng := New(Options{Model: model, Catalog: registry.New(nil, nil)})

	res, err := eng.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "answer", res.Text)
	assert.Equal(t, 0, res.ToolCalls)

	second := model.seen[1]
	require.Len(t, second, 3)
	assert.Equal(t, domain.RoleUser, second[2].Role)
	assert.Equal(t, continuePrompt, second[2].Content[0].Text)
}

func TestEngine_ModelFailurePropagates(t *testing.T) {
	history := &historyStub{}
	boom := errors.New("rate limited")
	model := &scriptedModel{errs: []error{boom}}
	eng := New(Options{Model: model, Catalog: registry.New(nil, nil), History: history})

	_, err := eng.Query(context.Background(), "q")
	require.ErrorIs(t, err, boom)
	kind, ok := domain.KindFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindModelCall, kind)

	require.Len(t, history.entries, 1)
	assert.Contains(t, history.entries[0].Error, "rate limited")
}

func TestEngine_EmptyResponseIsModelFailure(t *testing.T) {
	model := &scriptedModel{responses: [][]domain.ContentBlock{{}}}
	eng := New(Options{Model: model, Catalog: registry.New(nil, nil)})

	_, err := eng.Query(context.Background(), "q")
	require.Error(t, err)
	kind, _ := domain.KindFrom(err)
	assert.Equal(t, domain.KindModelCall, kind)
}

func TestEngine_RoundLimit(t *testing.T) {
	session := &fakeSession{name: "A", outcome: map[string]domain.ToolOutcome{"search": {Text: "R"}}}
	reg := newRegistry(t, session, "search")
	loop := []domain.ContentBlock{domain.ToolUseBlock("1", "search", nil)}
	model := &scriptedModel{responses: [][]domain.ContentBlock{loop, loop, loop, loop}}
	eng := New(Options{Model: model, Catalog: reg, MaxRounds: 2})

	res, err := eng.Query(context.Background(), "q")
	require.ErrorIs(t, err, domain.ErrRoundLimit)
	assert.Equal(t, 2, res.Rounds)
	assert.Len(t, session.calls, 2)
}

func TestEngine_RecordsHistory(t *testing.T) {
	history := &historyStub{}
	session := &fakeSession{name: "A", outcome: map[string]domain.ToolOutcome{"search": {Text: "R"}}}
	model := &scriptedModel{responses: [][]domain.ContentBlock{
		{domain.ToolUseBlock("1", "search", nil)},
		{domain.TextBlock("done")},
	}}
	eng := New(Options{Model: model, Catalog: newRegistry(t, session, "search"), History: history})

	res, err := eng.Query(context.Background(), "find")
	require.NoError(t, err)

	require.Len(t, history.entries, 1)
	entry := history.entries[0]
	assert.Equal(t, res.QueryID, entry.ID)
	assert.Equal(t, "find", entry.Query)
	assert.Equal(t, "done", entry.Answer)
	assert.Equal(t, 2, entry.Rounds)
	assert.Equal(t, 1, entry.ToolCalls)
	assert.Equal(t, 4, entry.Turns)
	assert.Empty(t, entry.Error)
}

func TestEngine_FreshTranscriptPerQuery(t *testing.T) {
	model := &scriptedModel{responses: [][]domain.ContentBlock{
		{domain.TextBlock("one")},
		{domain.TextBlock("two")},
	}}
	eng := New(Options{Model: model, Catalog: registry.New(nil, nil)})

	_, err := eng.Query(context.Background(), "first")
	require.NoError(t, err)
	_, err = eng.Query(context.Background(), "second")
	require.NoError(t, err)

	require.Len(t, model.seen, 2)
	require.Len(t, model.seen[1], 1)
	assert.Equal(t, "second", model.seen[1][0].Content[0].Text)
}
