package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mcpchat/internal/domain"
	"mcpchat/internal/infra/registry"
)

type closeLog struct {
	mu    sync.Mutex
	order []string
}

func (l *closeLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, name)
}

type fakeSession struct {
	name     string
	caps     *domain.CapabilitySet
	tools    []domain.ToolDefinition
	listErr  error
	closeErr error
	closed   *closeLog
	listed   []string
}

func (s *fakeSession) Name() string { return s.name }

func (s *fakeSession) ListTools(context.Context) ([]domain.ToolDefinition, error) {
	s.listed = append(s.listed, "tools")
	return s.tools, s.listErr
}

func (s *fakeSession) ListPrompts(context.Context) ([]domain.PromptDefinition, error) {
	s.listed = append(s.listed, "prompts")
	return nil, nil
}

func (s *fakeSession) ListResources(context.Context) ([]domain.ResourceHandle, error) {
	s.listed = append(s.listed, "resources")
	return nil, nil
}

func (s *fakeSession) ListResourceTemplates(context.Context) ([]domain.ResourceTemplate, error) {
	s.listed = append(s.listed, "templates")
	return nil, nil
}

func (s *fakeSession) CallTool(context.Context, string, map[string]any) (domain.ToolOutcome, error) {
	return domain.ToolOutcome{}, nil
}

func (s *fakeSession) GetPrompt(context.Context, string, map[string]string) (domain.RenderedPrompt, error) {
	return domain.RenderedPrompt{}, nil
}

func (s *fakeSession) ReadResource(context.Context, string) ([]domain.ResourceContent, error) {
	return nil, nil
}

func (s *fakeSession) Close() error {
	if s.closed != nil {
		s.closed.add(s.name)
	}
	return s.closeErr
}

type reportingSession struct {
	*fakeSession
}

func (s reportingSession) Capabilities() domain.CapabilitySet { return *s.caps }

type fakeConnector struct {
	sessions map[string]domain.Session
	fail     map[string]error
	calls    []string
}

func (c *fakeConnector) Connect(_ context.Context, spec domain.ProviderSpec) (domain.Session, error) {
	c.calls = append(c.calls, spec.Name)
	if err := c.fail[spec.Name]; err != nil {
		return nil, err
	}
	return c.sessions[spec.Name], nil
}

func specs(names ...string) []domain.ProviderSpec {
	out := make([]domain.ProviderSpec, 0, len(names))
	for _, name := range names {
		out = append(out, domain.ProviderSpec{Name: name, Command: name})
	}
	return out
}

func TestManager_ConnectAllBestEffort(t *testing.T) {
	log := &closeLog{}
	connector := &fakeConnector{
		sessions: map[string]domain.Session{
			"a": &fakeSession{name: "a", closed: log, tools: []domain.ToolDefinition{{Name: "search"}}},
			"c": &fakeSession{name: "c", closed: log},
			"e": &fakeSession{name: "e", closed: log, tools: []domain.ToolDefinition{{Name: "fetch"}}},
		},
		fail: map[string]error{
			"b": domain.ErrExecutableNotFound,
			"d": errors.New("handshake failed"),
		},
	}
	reg := registry.New(zap.NewNop(), nil)
	mgr := NewManager(connector, reg, nil, zap.NewNop())

	report := mgr.ConnectAll(context.Background(), specs("a", "b", "c", "d", "e"))

	assert.Equal(t, []string{"a", "c", "e"}, report.Connected)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, "b", report.Failures[0].Provider)
	assert.Equal(t, "d", report.Failures[1].Provider)
	for _, failure := range report.Failures {
		kind, ok := domain.KindFrom(failure.Err)
		require.True(t, ok)
		assert.Equal(t, domain.KindConnectionFailure, kind)
	}
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrExecutableNotFound)

	assert.Equal(t, []string{"a", "c", "e"}, mgr.Sessions())
	assert.Equal(t, []string{"search", "fetch"}, reg.ToolNames())
}

func TestManager_ConnectAllAllFail(t *testing.T) {
	connector := &fakeConnector{fail: map[string]error{"a": errors.New("x"), "b": errors.New("y")}}
	mgr := NewManager(connector, registry.New(nil, nil), nil, nil)

	report := mgr.ConnectAll(context.Background(), specs("a", "b"))

	assert.Empty(t, report.Connected)
	assert.Len(t, report.Failures, 2)
	assert.Empty(t, mgr.Sessions())
	assert.NoError(t, mgr.Shutdown(context.Background()))
}

func TestManager_SkipsDisabled(t *testing.T) {
	connector := &fakeConnector{sessions: map[string]domain.Session{"a": &fakeSession{name: "a"}}}
	mgr := NewManager(connector, registry.New(nil, nil), nil, nil)

	list := specs("a", "off")
	list[1].Disabled = true
	report := mgr.ConnectAll(context.Background(), list)

	assert.Equal(t, []string{"a"}, report.Connected)
	assert.Equal(t, []string{"off"}, report.Skipped)
	assert.Equal(t, []string{"a"}, connector.calls)
}

func TestManager_DiscoveryHonorsCapabilities(t *testing.T) {
	toolsOnly := &fakeSession{name: "a", caps: &domain.CapabilitySet{Tools: true}}
	connector := &fakeConnector{sessions: map[string]domain.Session{"a": reportingSession{toolsOnly}}}
	mgr := NewManager(connector, registry.New(nil, nil), nil, nil)

	require.NoError(t, mgr.Connect(context.Background(), specs("a")[0]))
	assert.Equal(t, []string{"tools"}, toolsOnly.listed)
}

func TestManager_DiscoveryFailureClosesSession(t *testing.T) {
	log := &closeLog{}
	broken := &fakeSession{name: "a", closed: log, listErr: errors.New("list failed")}
	connector := &fakeConnector{sessions: map[string]domain.Session{"a": broken}}
	mgr := NewManager(connector, registry.New(nil, nil), nil, nil)

	err := mgr.Connect(context.Background(), specs("a")[0])
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, log.order)
	assert.Empty(t, mgr.Sessions())
	assert.False(t, mgr.Connected("a"))
}

func TestManager_ConnectRejectsDuplicate(t *testing.T) {
	connector := &fakeConnector{sessions: map[string]domain.Session{"a": &fakeSession{name: "a"}}}
	mgr := NewManager(connector, registry.New(nil, nil), nil, nil)

	require.NoError(t, mgr.Connect(context.Background(), specs("a")[0]))
	err := mgr.Connect(context.Background(), specs("a")[0])
	require.ErrorIs(t, err, domain.ErrProviderExists)
	assert.Equal(t, []string{"a"}, connector.calls)
}

func TestManager_ShutdownReverseOrderAndIdempotent(t *testing.T) {
	log := &closeLog{}
	connector := &fakeConnector{sessions: map[string]domain.Session{
		"a": &fakeSession{name: "a", closed: log},
		"b": &fakeSession{name: "b", closed: log, closeErr: errors.New("stuck")},
		"c": &fakeSession{name: "c", closed: log},
	}}
	mgr := NewManager(connector, registry.New(nil, nil), nil, nil)
	mgr.ConnectAll(context.Background(), specs("a", "b", "c"))

	err := mgr.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close b")
	assert.Equal(t, []string{"c", "b", "a"}, log.order)

	require.NoError(t, mgr.Shutdown(context.Background()))
	assert.Equal(t, []string{"c", "b", "a"}, log.order)
	assert.Empty(t, mgr.Sessions())
}

func TestManager_ConnectAfterShutdown(t *testing.T) {
	connector := &fakeConnector{sessions: map[string]domain.Session{"a": &fakeSession{name: "a"}}}
	mgr := NewManager(connector, registry.New(nil, nil), nil, nil)
	require.NoError(t, mgr.Shutdown(context.Background()))

	err := mgr.Connect(context.Background(), specs("a")[0])
	require.ErrorIs(t, err, domain.ErrManagerClosed)
	assert.Empty(t, connector.calls)
}
