package domain

import "strings"

// TransportKind selects how a provider is reached.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// ProviderSpec is the launch descriptor of one tool provider.
type ProviderSpec struct {
	Name      string            `json:"name"`
	Transport TransportKind     `json:"transport"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Cwd       string            `json:"cwd,omitempty"`
	URL       string            `json:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Disabled  bool              `json:"disabled,omitempty"`
}

// ToolDefinition describes a callable tool as reported by its provider.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
	Provider    string         `json:"-"`
}

type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptDefinition describes a server-rendered prompt template.
type PromptDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
	Provider    string           `json:"-"`
}

// ArgumentNames returns the argument names in declaration order.
func (p PromptDefinition) ArgumentNames() []string {
	if len(p.Arguments) == 0 {
		return nil
	}
	names := make([]string, 0, len(p.Arguments))
	for _, arg := range p.Arguments {
		names = append(names, arg.Name)
	}
	return names
}

// ResourceHandle is a concrete URI-addressed resource.
type ResourceHandle struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
	Provider    string `json:"-"`
}

// ResourceTemplate is a parameterized resource URI such as papers://{topic}.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
	Provider    string `json:"-"`
}

// ResourceContent is one block returned by a resource read.
type ResourceContent struct {
	URI      string
	MIMEType string
	Text     string
	Blob     []byte
}

// ToolOutcome is the flattened result of a tool call.
type ToolOutcome struct {
	Text    string
	IsError bool
}

// RenderedPrompt is the server-side rendering of a prompt.
type RenderedPrompt struct {
	Description string
	Messages    []Turn
}

// Flatten joins the text of every rendered message into one query string.
func (p RenderedPrompt) Flatten() string {
	var out []string
	for _, msg := range p.Messages {
		for _, block := range msg.Content {
			if block.Kind == BlockText && block.Text != "" {
				out = append(out, block.Text)
			}
		}
	}
	return strings.Join(out, " ")
}
