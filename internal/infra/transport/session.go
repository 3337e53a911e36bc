package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"mcpchat/internal/domain"
)

type mcpSession struct {
	name    string
	session *mcp.ClientSession
	caps    domain.CapabilitySet
	cleanup func()

	closeOnce sync.Once
	closeErr  error
}

func newSession(name string, cs *mcp.ClientSession, cleanup func()) *mcpSession {
	return &mcpSession{
		name:    name,
		session: cs,
		caps:    capabilitiesOf(cs.InitializeResult()),
		cleanup: cleanup,
	}
}

func capabilitiesOf(result *mcp.InitializeResult) domain.CapabilitySet {
	if result == nil || result.Capabilities == nil {
		return domain.CapabilitySet{}
	}
	caps := result.Capabilities
	return domain.CapabilitySet{
		Tools:     caps.Tools != nil,
		Prompts:   caps.Prompts != nil,
		Resources: caps.Resources != nil,
	}
}

func (s *mcpSession) Name() string { return s.name }

func (s *mcpSession) Capabilities() domain.CapabilitySet { return s.caps }

func (s *mcpSession) ListTools(ctx context.Context) ([]domain.ToolDefinition, error) {
	var out []domain.ToolDefinition
	params := &mcp.ListToolsParams{}
	for {
		res, err := s.session.ListTools(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		for _, tool := range res.Tools {
			if tool == nil {
				continue
			}
			schema, err := schemaMap(tool.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("tool %q input schema: %w", tool.Name, err)
			}
			out = append(out, domain.ToolDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: schema,
				Provider:    s.name,
			})
		}
		if res.NextCursor == "" {
			return out, nil
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
}

func (s *mcpSession) ListPrompts(ctx context.Context) ([]domain.PromptDefinition, error) {
	var out []domain.PromptDefinition
	params := &mcp.ListPromptsParams{}
	for {
		res, err := s.session.ListPrompts(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list prompts: %w", err)
		}
		for _, prompt := range res.Prompts {
			if prompt == nil {
				continue
			}
			def := domain.PromptDefinition{
				Name:        prompt.Name,
				Description: prompt.Description,
				Provider:    s.name,
			}
			for _, arg := range prompt.Arguments {
				if arg == nil {
					continue
				}
				def.Arguments = append(def.Arguments, domain.PromptArgument{
					Name:        arg.Name,
					Description: arg.Description,
					Required:    arg.Required,
				})
			}
			out = append(out, def)
		}
		if res.NextCursor == "" {
			return out, nil
		}
		params = &mcp.ListPromptsParams{Cursor: res.NextCursor}
	}
}

func (s *mcpSession) ListResources(ctx context.Context) ([]domain.ResourceHandle, error) {
	var out []domain.ResourceHandle
	params := &mcp.ListResourcesParams{}
	for {
		res, err := s.session.ListResources(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list resources: %w", err)
		}
		for _, resource := range res.Resources {
			if resource == nil {
				continue
			}
			out = append(out, domain.ResourceHandle{
				URI:         resource.URI,
				Name:        resource.Name,
				Description: resource.Description,
				MIMEType:    resource.MIMEType,
				Provider:    s.name,
			})
		}
		if res.NextCursor == "" {
			return out, nil
		}
		params = &mcp.ListResourcesParams{Cursor: res.NextCursor}
	}
}

func (s *mcpSession) ListResourceTemplates(ctx context.Context) ([]domain.ResourceTemplate, error) {
	var out []domain.ResourceTemplate
	params := &mcp.ListResourceTemplatesParams{}
	for {
		res, err := s.session.ListResourceTemplates(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list resource templates: %w", err)
		}
		for _, tmpl := range res.ResourceTemplates {
			if tmpl == nil {
				continue
			}
			out = append(out, domain.ResourceTemplate{
				URITemplate: tmpl.URITemplate,
				Name:        tmpl.Name,
				Description: tmpl.Description,
				MIMEType:    tmpl.MIMEType,
				Provider:    s.name,
			})
		}
		if res.NextCursor == "" {
			return out, nil
		}
		params = &mcp.ListResourceTemplatesParams{Cursor: res.NextCursor}
	}
}

func (s *mcpSession) CallTool(ctx context.Context, name string, args map[string]any) (domain.ToolOutcome, error) {
	if args == nil {
		args = map[string]any{}
	}
	res, err := s.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return domain.ToolOutcome{}, fmt.Errorf("call tool %q: %w", name, err)
	}
	text := flattenContent(res.Content)
	if text == "" && res.StructuredContent != nil {
		raw, err := json.Marshal(res.StructuredContent)
		if err == nil {
			text = string(raw)
		}
	}
	return domain.ToolOutcome{Text: text, IsError: res.IsError}, nil
}

func (s *mcpSession) GetPrompt(ctx context.Context, name string, args map[string]string) (domain.RenderedPrompt, error) {
	res, err := s.session.GetPrompt(ctx, &mcp.GetPromptParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return domain.RenderedPrompt{}, fmt.Errorf("get prompt %q: %w", name, err)
	}
	rendered := domain.RenderedPrompt{Description: res.Description}
	for _, msg := range res.Messages {
		if msg == nil {
			continue
		}
		role := domain.RoleUser
		if msg.Role == "assistant" {
			role = domain.RoleAssistant
		}
		text := flattenContent([]mcp.Content{msg.Content})
		rendered.Messages = append(rendered.Messages, domain.Turn{
			Role:    role,
			Content: []domain.ContentBlock{domain.TextBlock(text)},
		})
	}
	return rendered, nil
}

func (s *mcpSession) ReadResource(ctx context.Context, uri string) ([]domain.ResourceContent, error) {
	res, err := s.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, fmt.Errorf("read resource %q: %w", uri, err)
	}
	out := make([]domain.ResourceContent, 0, len(res.Contents))
	for _, content := range res.Contents {
		if content == nil {
			continue
		}
		out = append(out, domain.ResourceContent{
			URI:      content.URI,
			MIMEType: content.MIMEType,
			Text:     content.Text,
			Blob:     content.Blob,
		})
	}
	return out, nil
}

// Close ends the session and reaps the provider process. Safe to call twice.
func (s *mcpSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.session.Close()
		if s.cleanup != nil {
			s.cleanup()
		}
	})
	return s.closeErr
}

// flattenContent joins the textual parts of MCP content, one per line.
func flattenContent(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, item := range content {
		switch c := item.(type) {
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.EmbeddedResource:
			if c.Resource != nil && c.Resource.Text != "" {
				parts = append(parts, c.Resource.Text)
			}
		case *mcp.ResourceLink:
			parts = append(parts, c.URI)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s, %d bytes]", c.MIMEType, len(c.Data)))
		case *mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[audio %s, %d bytes]", c.MIMEType, len(c.Data)))
		}
	}
	return strings.Join(parts, "\n")
}

func schemaMap(schema any) (map[string]any, error) {
	switch v := schema.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var (
	_ domain.Session            = (*mcpSession)(nil)
	_ domain.CapabilityReporter = (*mcpSession)(nil)
)
