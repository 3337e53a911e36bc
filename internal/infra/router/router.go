package router

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"mcpchat/internal/domain"
	"mcpchat/internal/infra/engine"
	"mcpchat/internal/infra/registry"
	"mcpchat/internal/infra/telemetry"
)

// Outcome tells the input loop what to do after a line was handled.
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeExit
)

// Catalog is the registry view the router needs.
type Catalog interface {
	Resolve(kind registry.Kind, key string) (domain.Session, bool)
	ResolveResource(uri string) (domain.Session, bool)
	Prompt(name string) (domain.PromptDefinition, bool)
	Prompts() []domain.PromptDefinition
	Tools() []domain.ToolDefinition
	Resources() []domain.ResourceHandle
	Templates() []domain.ResourceTemplate
}

// Querier runs a top-level query.
type Querier interface {
	Query(ctx context.Context, query string) (engine.Result, error)
}

type Options struct {
	Catalog        Catalog
	Engine         Querier
	Out            io.Writer
	Logger         *zap.Logger
	ResourceScheme string
}

// Router classifies raw input lines and dispatches them.
type Router struct {
	catalog Catalog
	engine  Querier
	out     io.Writer
	logger  *zap.Logger
	scheme  string
}

func New(opts Options) *Router {
	if opts.Catalog == nil || opts.Engine == nil {
		panic("router.Router requires a catalog and an engine")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	scheme := strings.TrimSuffix(strings.TrimSpace(opts.ResourceScheme), "://")
	if scheme == "" {
		scheme = domain.DefaultResourceScheme
	}
	return &Router{
		catalog: opts.Catalog,
		engine:  opts.Engine,
		out:     out,
		logger:  logger.Named("router"),
		scheme:  scheme,
	}
}

// Handle processes one line. The returned error is informational: it has
// already been reported on the writer and the loop should continue.
func (r *Router) Handle(ctx context.Context, line string) (Outcome, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return OutcomeContinue, nil
	}
	lower := strings.ToLower(line)
	if lower == "exit" || lower == "quit" {
		return OutcomeExit, nil
	}

	var err error
	switch {
	case strings.HasPrefix(line, "@"):
		err = r.showResource(ctx, strings.TrimSpace(line[1:]))
	case strings.HasPrefix(line, "/"):
		err = r.command(ctx, line)
	default:
		err = r.query(ctx, line)
	}
	if err != nil {
		r.logger.Debug("command failed", zap.String("input", line), zap.Error(err))
	}
	return OutcomeContinue, err
}

func (r *Router) command(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "/list-prompts", "/prompts":
		r.listPrompts()
		return nil
	case "/run-prompt", "/prompt":
		if len(fields) < 2 {
			r.printf("Usage: /run-prompt <name> <arg1=value1> <arg2=value2>\n")
			return domain.E(domain.KindInvalidCommand, "router.command", "missing prompt name", domain.ErrInvalidCommand)
		}
		return r.runPrompt(ctx, fields[1], ParseArgs(fields[2:]))
	case "/list-tools", "/tools":
		r.listTools()
		return nil
	case "/list-resources", "/resources":
		r.listResources()
		return nil
	case "/help":
		r.help()
		return nil
	default:
		r.printf("Unknown command: %s (try /help)\n", fields[0])
		return domain.E(domain.KindInvalidCommand, "router.command", "unknown command "+fields[0], domain.ErrInvalidCommand)
	}
}

// ParseArgs turns k=v tokens into a map, splitting on the first '='.
// Tokens without '=' are ignored.
func ParseArgs(tokens []string) map[string]string {
	args := make(map[string]string, len(tokens))
	for _, token := range tokens {
		key, value, ok := strings.Cut(token, "=")
		if !ok || key == "" {
			continue
		}
		args[key] = value
	}
	return args
}

func (r *Router) query(ctx context.Context, text string) error {
	res, err := r.engine.Query(ctx, text)
	if err != nil {
		r.printf("Error: %v\n", err)
		return err
	}
	r.printf("%s\n", res.Text)
	return nil
}

func (r *Router) showResource(ctx context.Context, topic string) error {
	const op = "router.showResource"
	if topic == "" {
		r.printf("Usage: @<topic>\n")
		return domain.E(domain.KindInvalidCommand, op, "missing topic", domain.ErrInvalidCommand)
	}
	uri := topic
	if !strings.Contains(topic, "://") {
		uri = r.scheme + "://" + topic
	}

	session, ok := r.catalog.ResolveResource(uri)
	if !ok {
		r.printf("Resource not found: %s\n", uri)
		return domain.E(domain.KindUnknownResource, op, uri, domain.ErrUnknownResource)
	}
	contents, err := session.ReadResource(ctx, uri)
	if err != nil {
		r.printf("Error reading resource %s: %v\n", uri, err)
		r.logger.Warn("resource read failed",
			telemetry.ProviderField(session.Name()),
			telemetry.ResourceField(uri),
			zap.Error(err),
		)
		return err
	}
	for _, content := range contents {
		if content.Text != "" {
			r.printf("\nResource: %s\nContent:\n%s\n", uri, content.Text)
			return nil
		}
	}
	r.printf("No content found for %s\n", uri)
	return nil
}

func (r *Router) runPrompt(ctx context.Context, name string, args map[string]string) error {
	const op = "router.runPrompt"
	session, ok := r.catalog.Resolve(registry.KindPrompt, name)
	if !ok {
		r.printf("Prompt not found: %s\n", name)
		return domain.E(domain.KindUnknownPrompt, op, name, domain.ErrUnknownPrompt)
	}
	rendered, err := session.GetPrompt(ctx, name, args)
	if err != nil {
		r.printf("Error executing prompt %s: %v\n", name, err)
		r.logger.Warn("prompt render failed",
			telemetry.ProviderField(session.Name()),
			telemetry.PromptField(name),
			zap.Error(err),
		)
		return err
	}
	text := rendered.Flatten()
	if text == "" {
		r.printf("Prompt %s rendered no text\n", name)
		return nil
	}
	r.printf("\nExecuting prompt '%s'...\n", name)
	return r.query(ctx, text)
}

func (r *Router) listPrompts() {
	prompts := r.catalog.Prompts()
	if len(prompts) == 0 {
		r.printf("No prompts available.\n")
		return
	}
	r.printf("\nAvailable prompts:\n")
	for _, prompt := range prompts {
		r.printf("- %s: %s\n", prompt.Name, prompt.Description)
		if names := prompt.ArgumentNames(); len(names) > 0 {
			r.printf("  Arguments:\n")
			for _, arg := range names {
				r.printf("    - %s\n", arg)
			}
		}
	}
}

func (r *Router) listTools() {
	tools := r.catalog.Tools()
	if len(tools) == 0 {
		r.printf("No tools available.\n")
		return
	}
	r.printf("\nAvailable tools:\n")
	for _, tool := range tools {
		r.printf("- %s [%s]: %s\n", tool.Name, tool.Provider, tool.Description)
	}
}

func (r *Router) listResources() {
	resources := r.catalog.Resources()
	templates := r.catalog.Templates()
	if len(resources) == 0 && len(templates) == 0 {
		r.printf("No resources available.\n")
		return
	}
	r.printf("\nAvailable resources:\n")
	for _, res := range resources {
		r.printf("- %s [%s]\n", res.URI, res.Provider)
	}
	for _, tmpl := range templates {
		r.printf("- %s [%s] (template)\n", tmpl.URITemplate, tmpl.Provider)
	}
}

func (r *Router) help() {
	r.printf(`
Commands:
  @<topic>                          read %s://<topic>
  /list-prompts, /prompts           list prompts
  /run-prompt <name> <k=v> ...      render a prompt and run it as a query
  /list-tools, /tools               list tools
  /list-resources, /resources       list resources and templates
  /help                             show this help
  exit, quit                        leave
Anything else is sent to the model.
`, r.scheme)
}

func (r *Router) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}
