package registry

import (
	"strings"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"mcpchat/internal/domain"
	"mcpchat/internal/infra/telemetry"
)

// Kind selects one of the registry lookup tables.
type Kind string

const (
	KindTool     Kind = "tool"
	KindPrompt   Kind = "prompt"
	KindResource Kind = "resource"
)

type toolEntry struct {
	def     domain.ToolDefinition
	session domain.Session
}

type promptEntry struct {
	def     domain.PromptDefinition
	session domain.Session
}

type resourceEntry struct {
	handle  domain.ResourceHandle
	session domain.Session
}

type templateEntry struct {
	template domain.ResourceTemplate
	session  domain.Session
}

// Capabilities groups what one provider reported during discovery.
type Capabilities struct {
	Tools     []domain.ToolDefinition
	Prompts   []domain.PromptDefinition
	Resources []domain.ResourceHandle
	Templates []domain.ResourceTemplate
}

// Registry maps tool names, prompt names and resource URIs to the session
// that owns them. It is append-only; sessions it holds are borrowed.
type Registry struct {
	logger  *zap.Logger
	metrics domain.Metrics

	mu        sync.RWMutex
	tools     *orderedmap.OrderedMap[string, toolEntry]
	prompts   *orderedmap.OrderedMap[string, promptEntry]
	resources *orderedmap.OrderedMap[string, resourceEntry]
	templates *orderedmap.OrderedMap[string, templateEntry]
	// schemes maps a scheme prefix to the first session that registered a
	// resource or template under it.
	schemes *orderedmap.OrderedMap[string, domain.Session]
}

func New(logger *zap.Logger, metrics domain.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Registry{
		logger:    logger.Named("registry"),
		metrics:   metrics,
		tools:     orderedmap.New[string, toolEntry](),
		prompts:   orderedmap.New[string, promptEntry](),
		resources: orderedmap.New[string, resourceEntry](),
		templates: orderedmap.New[string, templateEntry](),
		schemes:   orderedmap.New[string, domain.Session](),
	}
}

// Register inserts every discovered capability, mapped to session. A key
// that is already present keeps its position and takes the new owner.
func (r *Registry) Register(session domain.Session, caps Capabilities) {
	if session == nil {
		return
	}
	provider := session.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tool := range caps.Tools {
		if tool.Name == "" {
			continue
		}
		tool.Provider = provider
		schema, err := normalizeInputSchema(tool.InputSchema)
		if err != nil {
			r.logger.Warn("tool input schema rejected, using empty object schema",
				telemetry.ProviderField(provider),
				telemetry.ToolField(tool.Name),
				zap.Error(err),
			)
		}
		tool.InputSchema = schema
		if prev, ok := r.tools.Get(tool.Name); ok {
			r.warnCollision(KindTool, tool.Name, prev.session, session)
		}
		r.tools.Set(tool.Name, toolEntry{def: tool, session: session})
	}
	for _, prompt := range caps.Prompts {
		if prompt.Name == "" {
			continue
		}
		prompt.Provider = provider
		if prev, ok := r.prompts.Get(prompt.Name); ok {
			r.warnCollision(KindPrompt, prompt.Name, prev.session, session)
		}
		r.prompts.Set(prompt.Name, promptEntry{def: prompt, session: session})
	}
	for _, resource := range caps.Resources {
		if resource.URI == "" {
			continue
		}
		resource.Provider = provider
		if prev, ok := r.resources.Get(resource.URI); ok {
			r.warnCollision(KindResource, resource.URI, prev.session, session)
		}
		r.resources.Set(resource.URI, resourceEntry{handle: resource, session: session})
		r.claimScheme(resource.URI, session)
	}
	for _, tmpl := range caps.Templates {
		if tmpl.URITemplate == "" {
			continue
		}
		tmpl.Provider = provider
		r.templates.Set(tmpl.URITemplate, templateEntry{template: tmpl, session: session})
		r.claimScheme(tmpl.URITemplate, session)
	}

	r.metrics.SetRegisteredCapabilities(string(KindTool), r.tools.Len())
	r.metrics.SetRegisteredCapabilities(string(KindPrompt), r.prompts.Len())
	r.metrics.SetRegisteredCapabilities(string(KindResource), r.resources.Len()+r.templates.Len())

	r.logger.Debug("capabilities registered",
		telemetry.EventField(telemetry.EventDiscovery),
		telemetry.ProviderField(provider),
		zap.Int("tools", len(caps.Tools)),
		zap.Int("prompts", len(caps.Prompts)),
		zap.Int("resources", len(caps.Resources)),
		zap.Int("templates", len(caps.Templates)),
	)
}

func (r *Registry) claimScheme(uri string, session domain.Session) {
	prefix, ok := schemePrefix(uri)
	if !ok {
		return
	}
	if _, taken := r.schemes.Get(prefix); !taken {
		r.schemes.Set(prefix, session)
	}
}

func (r *Registry) warnCollision(kind Kind, key string, prev, next domain.Session) {
	r.logger.Warn("capability name collision, later provider wins",
		zap.String("kind", string(kind)),
		zap.String("key", key),
		zap.String("previous", prev.Name()),
		telemetry.ProviderField(next.Name()),
	)
}

// Resolve returns the session owning key in the kind's table.
func (r *Registry) Resolve(kind Kind, key string) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch kind {
	case KindTool:
		if entry, ok := r.tools.Get(key); ok {
			return entry.session, true
		}
	case KindPrompt:
		if entry, ok := r.prompts.Get(key); ok {
			return entry.session, true
		}
	case KindResource:
		if entry, ok := r.resources.Get(key); ok {
			return entry.session, true
		}
	}
	return nil, false
}

// ResolveResource looks up uri exactly, then falls back to the first session,
// in registration order, whose resources or templates share the uri's scheme.
func (r *Registry) ResolveResource(uri string) (domain.Session, bool) {
	if session, ok := r.Resolve(KindResource, uri); ok {
		return session, true
	}
	prefix, ok := schemePrefix(uri)
	if !ok {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.schemes.Get(prefix)
}

func schemePrefix(uri string) (string, bool) {
	idx := strings.Index(uri, "://")
	if idx <= 0 {
		return "", false
	}
	return uri[:idx+3], true
}

// Tools returns registered tool definitions in registration order.
func (r *Registry) Tools() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ToolDefinition, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.def)
	}
	return out
}

func (r *Registry) ToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Prompt returns the registered definition for name.
func (r *Registry) Prompt(name string) (domain.PromptDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.prompts.Get(name)
	return entry.def, ok
}

func (r *Registry) Prompts() []domain.PromptDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.PromptDefinition, 0, r.prompts.Len())
	for pair := r.prompts.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.def)
	}
	return out
}

func (r *Registry) Resources() []domain.ResourceHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ResourceHandle, 0, r.resources.Len())
	for pair := r.resources.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.handle)
	}
	return out
}

func (r *Registry) Templates() []domain.ResourceTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ResourceTemplate, 0, r.templates.Len())
	for pair := r.templates.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.template)
	}
	return out
}
