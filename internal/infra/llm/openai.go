package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/eino-contrib/jsonschema"

	"mcpchat/internal/domain"
)

// OpenAIModel completes transcripts through an eino tool-calling chat model
// backed by any OpenAI-compatible endpoint.
type OpenAIModel struct {
	chat   model.ToolCallingChatModel
	model  string
	system string
}

func NewOpenAIModel(ctx context.Context, cfg Config, apiKey string) (*OpenAIModel, error) {
	maxTokens := cfg.MaxTokens
	chat, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:     cfg.Model,
		APIKey:    apiKey,
		BaseURL:   cfg.BaseURL,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return newOpenAIModel(chat, cfg), nil
}

func newOpenAIModel(chat model.ToolCallingChatModel, cfg Config) *OpenAIModel {
	return &OpenAIModel{chat: chat, model: cfg.Model, system: cfg.System}
}

func (m *OpenAIModel) Provider() string  { return ProviderOpenAI }
func (m *OpenAIModel) ModelName() string { return m.model }

func (m *OpenAIModel) Complete(ctx context.Context, transcript domain.Transcript, tools []domain.ToolDefinition) ([]domain.ContentBlock, error) {
	chat := m.chat
	if len(tools) > 0 {
		infos, err := toToolInfos(tools)
		if err != nil {
			return nil, err
		}
		bound, err := chat.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
		chat = bound
	}

	messages, err := toSchemaMessages(m.system, transcript)
	if err != nil {
		return nil, err
	}
	resp, err := chat.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return fromSchemaMessage(resp)
}

func toSchemaMessages(system string, transcript domain.Transcript) ([]*schema.Message, error) {
	out := make([]*schema.Message, 0, len(transcript)+1)
	if system != "" {
		out = append(out, schema.SystemMessage(system))
	}
	for _, turn := range transcript {
		if turn.Role == domain.RoleAssistant {
			msg, err := assistantMessage(turn)
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
			continue
		}
		// Tool results become tool-role messages; any text in the same
		// turn follows as a user message.
		var text string
		for _, block := range turn.Content {
			switch block.Kind {
			case domain.BlockToolResult:
				payload := block.ToolResult.Payload
				if block.ToolResult.IsError && payload == "" {
					payload = "Error"
				}
				out = append(out, schema.ToolMessage(payload, block.ToolResult.ID))
			case domain.BlockText:
				text = joinText(text, block.Text)
			}
		}
		if text != "" {
			out = append(out, schema.UserMessage(text))
		}
	}
	return out, nil
}

func assistantMessage(turn domain.Turn) (*schema.Message, error) {
	var text string
	var calls []schema.ToolCall
	for _, block := range turn.Content {
		switch block.Kind {
		case domain.BlockText:
			text = joinText(text, block.Text)
		case domain.BlockToolUse:
			args, err := json.Marshal(block.ToolUse.Arguments)
			if err != nil {
				return nil, fmt.Errorf("encode arguments for %s: %w", block.ToolUse.Name, err)
			}
			calls = append(calls, schema.ToolCall{
				ID:   block.ToolUse.ID,
				Type: "function",
				Function: schema.FunctionCall{
					Name:      block.ToolUse.Name,
					Arguments: string(args),
				},
			})
		}
	}
	return schema.AssistantMessage(text, calls), nil
}

func fromSchemaMessage(msg *schema.Message) ([]domain.ContentBlock, error) {
	if msg == nil {
		return nil, nil
	}
	out := make([]domain.ContentBlock, 0, len(msg.ToolCalls)+1)
	if msg.Content != "" {
		out = append(out, domain.TextBlock(msg.Content))
	}
	for _, call := range msg.ToolCalls {
		args, err := decodeArguments(call.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("tool %s arguments: %w", call.Function.Name, err)
		}
		out = append(out, domain.ToolUseBlock(call.ID, call.Function.Name, args))
	}
	return out, nil
}

func toToolInfos(tools []domain.ToolDefinition) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, tool := range tools {
		params, err := toParamsSchema(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s schema: %w", tool.Name, err)
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        tool.Name,
			Desc:        tool.Description,
			ParamsOneOf: schema.NewParamsOneOfByJSONSchema(params),
		})
	}
	return infos, nil
}

func toParamsSchema(raw map[string]any) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return &jsonschema.Schema{Type: "object"}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var params jsonschema.Schema
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

func joinText(existing, next string) string {
	if existing == "" {
		return next
	}
	if next == "" {
		return existing
	}
	return existing + "\n" + next
}

var (
	_ domain.Model     = (*OpenAIModel)(nil)
	_ domain.ModelInfo = (*OpenAIModel)(nil)
)
