package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"mcpchat/internal/infra/catalog"
	"mcpchat/internal/infra/history"
	"mcpchat/internal/infra/lifecycle"
	"mcpchat/internal/infra/registry"
	"mcpchat/internal/infra/router"
	"mcpchat/internal/infra/telemetry"
)

const (
	shutdownTimeout = 10 * time.Second
	maxLineBytes    = 1 << 20
)

// ChatConfig is the per-run input of the chat application.
type ChatConfig struct {
	Settings Settings
	In       io.Reader
	Out      io.Writer
}

// Application runs the interactive chat loop over the connected providers.
type Application struct {
	settings Settings
	in       io.Reader
	out      io.Writer

	logger  *zap.Logger
	metrics *prometheus.Registry
	catalog *registry.Registry
	loader  *catalog.Loader
	manager *lifecycle.Manager
	router  *router.Router
	history *history.Store
}

// ApplicationOptions captures dependencies and settings for Application.
type ApplicationOptions struct {
	Config  ChatConfig
	Logger  *zap.Logger
	Metrics *prometheus.Registry
	Catalog *registry.Registry
	Loader  *catalog.Loader
	Manager *lifecycle.Manager
	Router  *router.Router
	History *history.Store
}

// NewApplication constructs the chat application.
func NewApplication(opts ApplicationOptions) *Application {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	in := opts.Config.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Config.Out
	if out == nil {
		out = os.Stdout
	}
	return &Application{
		settings: opts.Config.Settings,
		in:       in,
		out:      out,
		logger:   logger.Named("app"),
		metrics:  opts.Metrics,
		catalog:  opts.Catalog,
		loader:   opts.Loader,
		manager:  opts.Manager,
		router:   opts.Router,
		history:  opts.History,
	}
}

// Run connects the configured providers, serves the chat loop until the
// user exits, input ends or ctx is cancelled, then releases every session.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.close()

	a.connectProviders(ctx)
	a.startBackground(ctx)
	return a.chatLoop(ctx)
}

func (a *Application) connectProviders(ctx context.Context) {
	path := a.settings.Servers.Config
	result, err := a.loader.Load(path)
	if err != nil {
		a.logger.Warn("provider config load failed", zap.String("config", path), zap.Error(err))
		fmt.Fprintf(a.out, "Error loading server configuration: %v\n", err)
		return
	}
	printIssues(a.out, result.Issues)

	report := a.manager.ConnectAll(ctx, result.Providers)
	for _, failure := range report.Failures {
		fmt.Fprintf(a.out, "Failed to connect to server %s: %v\n", failure.Provider, failure.Err)
	}
	if len(report.Connected) > 0 {
		fmt.Fprintf(a.out, "Connected to servers: %v\n", report.Connected)
	}
	fmt.Fprintf(a.out, "Available tools: %v\n", a.catalog.ToolNames())
	a.logger.Info("providers connected",
		zap.String("config", path),
		zap.Int("connected", len(report.Connected)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failures)),
	)
}

func (a *Application) startBackground(ctx context.Context) {
	if addr := a.settings.Metrics.ListenAddress; addr != "" {
		go func() {
			err := telemetry.StartMetricsServer(ctx, telemetry.HTTPServerOptions{
				Addr:     addr,
				Registry: a.metrics,
			}, a.logger)
			if err != nil {
				a.logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}
	if a.settings.Servers.Watch {
		watcher := catalog.NewWatcher(a.settings.Servers.Config, a.loader, a.onReload, a.logger)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				a.logger.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	}
}

// onReload connects providers that appeared in the config since start.
// Connected providers are left as they are; the registry is append-only.
func (a *Application) onReload(ctx context.Context, result catalog.Result) {
	for _, issue := range result.Issues {
		a.logger.Warn("provider config issue", telemetry.ProviderField(issue.Name), zap.String("issue", issue.Message))
	}
	for _, spec := range result.Providers {
		if spec.Disabled {
			continue
		}
		if a.manager.Connected(spec.Name) {
			a.logger.Debug("provider already connected", telemetry.ProviderField(spec.Name))
			continue
		}
		if err := a.manager.Connect(ctx, spec); err != nil {
			a.logger.Warn("hot connect failed", telemetry.ProviderField(spec.Name), zap.Error(err))
			continue
		}
		a.logger.Info("provider added from config", telemetry.ProviderField(spec.Name))
	}
}

func (a *Application) chatLoop(ctx context.Context) error {
	fmt.Fprintln(a.out, "\nMCP Chatbot Started!")
	fmt.Fprintln(a.out, "Type your queries or 'quit' to exit. /help lists commands.")

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(a.in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(a.out, "\n"+a.settings.Chat.Prompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(a.out)
			return nil
		case err := <-readErr:
			fmt.Fprintln(a.out)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		case line := <-lines:
			outcome, _ := a.router.Handle(ctx, line)
			if outcome == router.OutcomeExit {
				fmt.Fprintln(a.out, "Exiting the chat. Goodbye!")
				return nil
			}
		}
	}
}

func (a *Application) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.manager.Shutdown(ctx); err != nil {
		a.logger.Warn("provider shutdown reported errors", zap.Error(err))
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("history close failed", zap.Error(err))
		}
	}
}

func printIssues(out io.Writer, issues []catalog.Issue) {
	for _, issue := range issues {
		switch issue.Kind {
		case catalog.IssueMissingEnv:
			fmt.Fprintf(out, "Warning: server %s: %s\n", issue.Name, issue.Message)
		default:
			fmt.Fprintf(out, "Skipping server %s: %s\n", issue.Name, issue.Message)
		}
	}
}
