package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"mcpchat/internal/domain"
	"mcpchat/internal/infra/registry"
)

// AnthropicModel completes transcripts with the Anthropic Messages API.
type AnthropicModel struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	system    string
}

func NewAnthropicModel(cfg Config, apiKey string, extra ...option.RequestOption) *AnthropicModel {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(2),
		option.WithRequestTimeout(5 * time.Minute),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)
	return &AnthropicModel{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		system:    cfg.System,
	}
}

func (m *AnthropicModel) Provider() string  { return ProviderAnthropic }
func (m *AnthropicModel) ModelName() string { return m.model }

func (m *AnthropicModel) Complete(ctx context.Context, transcript domain.Transcript, tools []domain.ToolDefinition) ([]domain.ContentBlock, error) {
	messages, err := toAnthropicMessages(transcript)
	if err != nil {
		return nil, err
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: m.maxTokens,
		Messages:  messages,
	}
	if m.system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: m.system}}
	}
	if sdkTools := toAnthropicTools(tools); len(sdkTools) > 0 {
		params.Tools = sdkTools
	}

	result, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: create message: %w", err)
	}
	return fromAnthropicContent(result.Content)
}

const emptyToolOutput = "(no output)"

func toAnthropicMessages(transcript domain.Transcript) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(transcript))
	for i, turn := range transcript {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(turn.Content))
		for _, block := range turn.Content {
			switch block.Kind {
			case domain.BlockText:
				if block.Text == "" {
					continue
				}
				blocks = append(blocks, anthropic.NewTextBlock(block.Text))
			case domain.BlockToolUse:
				inv := block.ToolUse
				blocks = append(blocks, anthropic.NewToolUseBlock(inv.ID, inv.Arguments, inv.Name))
			case domain.BlockToolResult:
				res := block.ToolResult
				blocks = append(blocks, anthropic.NewToolResultBlock(res.ID, toolResultText(res.Payload, res.IsError), res.IsError))
			}
		}
		if len(blocks) == 0 {
			return nil, fmt.Errorf("anthropic: turn %d has no content", i)
		}
		switch turn.Role {
		case domain.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out, nil
}

// toolResultText keeps tool results non-empty; the Messages API rejects
// empty text blocks.
func toolResultText(payload string, isError bool) string {
	switch {
	case payload != "":
		return payload
	case isError:
		return "Error"
	default:
		return emptyToolOutput
	}
}

func toAnthropicTools(tools []domain.ToolDefinition) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{Type: "object"}
		if schema, err := registry.ParseSchema(tool.InputSchema); err == nil {
			if len(schema.Properties) > 0 {
				inputSchema.Properties = schema.Properties
			}
			if len(schema.Required) > 0 {
				inputSchema.Required = schema.Required
			}
		}
		param := &anthropic.ToolParam{
			Name:        tool.Name,
			InputSchema: inputSchema,
		}
		if tool.Description != "" {
			param.Description = anthropic.String(tool.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: param})
	}
	return out
}

func fromAnthropicContent(content []anthropic.ContentBlockUnion) ([]domain.ContentBlock, error) {
	out := make([]domain.ContentBlock, 0, len(content))
	for _, block := range content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			out = append(out, domain.TextBlock(v.Text))
		case anthropic.ToolUseBlock:
			args, err := decodeArguments(v.Input)
			if err != nil {
				return nil, fmt.Errorf("anthropic: tool %s arguments: %w", v.Name, err)
			}
			out = append(out, domain.ToolUseBlock(v.ID, v.Name, args))
		}
	}
	return out, nil
}

// decodeArguments turns a raw JSON object (or anything marshalable to one)
// into an argument map.
func decodeArguments(input any) (map[string]any, error) {
	var raw []byte
	switch v := input.(type) {
	case nil:
		return map[string]any{}, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{}, nil
	}
	args := map[string]any{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

var (
	_ domain.Model     = (*AnthropicModel)(nil)
	_ domain.ModelInfo = (*AnthropicModel)(nil)
)
