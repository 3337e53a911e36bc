package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mcpchat/internal/domain"
)

func newTestServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "research", Version: "0.1.0"}, &mcp.ServerOptions{
		HasTools:     true,
		HasPrompts:   true,
		HasResources: true,
	})
	server.AddTool(&mcp.Tool{
		Name:        "search",
		Description: "search papers",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"q": map[string]any{"type": "string"}},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: "1234.5678"},
				&mcp.TextContent{Text: "2345.6789"},
			},
		}, nil
	})
	server.AddTool(&mcp.Tool{
		Name:        "explode",
		InputSchema: map[string]any{"type": "object"},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "kaboom"}},
		}, nil
	})
	server.AddPrompt(&mcp.Prompt{
		Name:        "generate_search_prompt",
		Description: "search prompt",
		Arguments: []*mcp.PromptArgument{
			{Name: "topic", Required: true},
			{Name: "num_papers"},
		},
	}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Description: "rendered",
			Messages: []*mcp.PromptMessage{{
				Role:    "user",
				Content: &mcp.TextContent{Text: "find papers about " + req.Params.Arguments["topic"]},
			}},
		}, nil
	})
	server.AddResource(&mcp.Resource{
		URI:      "papers://folders",
		Name:     "folders",
		MIMEType: "text/markdown",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     "# Available Topics\n- physics",
		}}}, nil
	})
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "papers://{topic}",
		Name:        "topic",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
			URI:  req.Params.URI,
			Text: "topic " + req.Params.URI,
		}}}, nil
	})
	return server
}

func connectInMemory(t *testing.T, server *mcp.Server, cleanup func()) domain.Session {
	t.Helper()
	ctx := context.Background()
	ct, st := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	connector := NewConnector(ConnectorOptions{Logger: zap.NewNop()})
	session, err := connector.ConnectTransport(ctx, "research", ct, cleanup)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestSession_Discovery(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, newTestServer(), nil)

	assert.Equal(t, "research", session.Name())
	reporter, ok := session.(domain.CapabilityReporter)
	require.True(t, ok)
	assert.Equal(t, domain.CapabilitySet{Tools: true, Prompts: true, Resources: true}, reporter.Capabilities())

	tools, err := session.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	names := []string{tools[0].Name, tools[1].Name}
	assert.ElementsMatch(t, []string{"search", "explode"}, names)
	for _, tool := range tools {
		assert.Equal(t, "research", tool.Provider)
		assert.Equal(t, "object", tool.InputSchema["type"])
	}

	prompts, err := session.ListPrompts(ctx)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, []string{"topic", "num_papers"}, prompts[0].ArgumentNames())
	assert.True(t, prompts[0].Arguments[0].Required)

	resources, err := session.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "papers://folders", resources[0].URI)

	templates, err := session.ListResourceTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "papers://{topic}", templates[0].URITemplate)
}

func TestSession_CallTool(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, newTestServer(), nil)

	out, err := session.CallTool(ctx, "search", map[string]any{"q": "x"})
	require.NoError(t, err)
	assert.False(t, out.IsError)
	assert.Equal(t, "1234.5678\n2345.6789", out.Text)

	out, err = session.CallTool(ctx, "explode", nil)
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Equal(t, "kaboom", out.Text)
}

func TestSession_GetPromptAndReadResource(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, newTestServer(), nil)

	rendered, err := session.GetPrompt(ctx, "generate_search_prompt", map[string]string{"topic": "physics"})
	require.NoError(t, err)
	assert.Equal(t, "find papers about physics", rendered.Flatten())

	contents, err := session.ReadResource(ctx, "papers://folders")
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Contains(t, contents[0].Text, "Available Topics")

	contents, err = session.ReadResource(ctx, "papers://physics")
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, "topic papers://physics", contents[0].Text)

	_, err = session.GetPrompt(ctx, "missing", nil)
	require.Error(t, err)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	calls := 0
	session := connectInMemory(t, newTestServer(), func() { calls++ })

	first := session.Close()
	second := session.Close()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestConnector_HTTP(t *testing.T) {
	var sawHeader string
	server := newTestServer()
	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		sawHeader = r.Header.Get("X-Api-Key")
		return server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})
	httpServer := httptest.NewServer(handler)
	t.Cleanup(httpServer.Close)

	connector := NewConnector(ConnectorOptions{Logger: zap.NewNop(), MaxRetries: 1})
	session, err := connector.Connect(context.Background(), domain.ProviderSpec{
		Name:      "remote",
		Transport: domain.TransportHTTP,
		URL:       httpServer.URL,
		Headers:   map[string]string{"x-api-key": "secret"},
	})
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(context.Background())
	require.NoError(t, err)
	assert.Len(t, tools, 2)
	assert.Equal(t, "secret", sawHeader)
}

func TestConnector_InvalidSpecs(t *testing.T) {
	connector := NewConnector(ConnectorOptions{})
	ctx := context.Background()

	_, err := connector.Connect(ctx, domain.ProviderSpec{Name: "empty"})
	require.ErrorIs(t, err, domain.ErrInvalidCommand)

	_, err = connector.Connect(ctx, domain.ProviderSpec{Name: "remote", Transport: domain.TransportHTTP})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url is required")

	_, err = connector.Connect(ctx, domain.ProviderSpec{Name: "x", Transport: "carrier-pigeon"})
	require.Error(t, err)
}

func TestConnector_MissingExecutable(t *testing.T) {
	connector := NewConnector(ConnectorOptions{})
	_, err := connector.Connect(context.Background(), domain.ProviderSpec{
		Name:    "ghost",
		Command: "mcpchat-definitely-not-a-real-binary",
	})
	require.Error(t, err)
}

func TestClassifyStartError(t *testing.T) {
	err := classifyStartError(&exec.Error{Name: "ghost", Err: exec.ErrNotFound})
	assert.ErrorIs(t, err, domain.ErrExecutableNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, classifyStartError(other))
	assert.NoError(t, classifyStartError(nil))
}

func TestFormatEnvSorted(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=2"}, formatEnv(map[string]string{"B": "2", "A": "1"}))
	assert.Nil(t, formatEnv(nil))
}
