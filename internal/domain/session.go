package domain

import "context"

// Session is an open channel to one tool provider. Sessions are owned by the
// lifecycle manager; every other holder treats them as borrowed.
type Session interface {
	Name() string
	ListTools(ctx context.Context) ([]ToolDefinition, error)
	ListPrompts(ctx context.Context) ([]PromptDefinition, error)
	ListResources(ctx context.Context) ([]ResourceHandle, error)
	ListResourceTemplates(ctx context.Context) ([]ResourceTemplate, error)
	CallTool(ctx context.Context, name string, args map[string]any) (ToolOutcome, error)
	GetPrompt(ctx context.Context, name string, args map[string]string) (RenderedPrompt, error)
	ReadResource(ctx context.Context, uri string) ([]ResourceContent, error)
	Close() error
}

// CapabilitySet records which discovery lists a provider advertises.
type CapabilitySet struct {
	Tools     bool
	Prompts   bool
	Resources bool
}

// CapabilityReporter is implemented by sessions that know the provider's
// advertised capabilities from the initialize handshake.
type CapabilityReporter interface {
	Capabilities() CapabilitySet
}

// Connector opens sessions for provider specs.
type Connector interface {
	Connect(ctx context.Context, spec ProviderSpec) (Session, error)
}

// Model is the language-model boundary: one completion over the transcript
// with the available tools.
type Model interface {
	Complete(ctx context.Context, transcript Transcript, tools []ToolDefinition) ([]ContentBlock, error)
}

// ModelInfo is implemented by models that can name themselves for metrics.
type ModelInfo interface {
	Provider() string
	ModelName() string
}
