package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"mcpchat/internal/domain"
	"mcpchat/internal/infra/catalog"
	"mcpchat/internal/infra/history"
)

type App struct {
	logger *zap.Logger
}

type ValidateConfig struct {
	ConfigPath string
	Out        io.Writer
}

type HistoryConfig struct {
	Path  string
	Limit int
	Out   io.Writer
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{logger: logger}
}

// Chat wires the application for cfg and runs it until the session ends.
func (a *App) Chat(ctx context.Context, cfg ChatConfig) error {
	application, err := InitializeApplication(ctx, cfg, LoggingConfig{Logger: a.logger})
	if err != nil {
		return err
	}
	return application.Run(ctx)
}

// ValidateConfig loads the provider config and reports what would be
// connected, without launching anything.
func (a *App) ValidateConfig(_ context.Context, cfg ValidateConfig) error {
	out := writerOrStdout(cfg.Out)
	loader := catalog.NewLoader(a.logger)
	result, err := loader.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Config: %s\n", result.Path)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTRANSPORT\tTARGET\tSTATUS")
	for _, spec := range result.Providers {
		status := "ok"
		if spec.Disabled {
			status = "disabled"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", spec.Name, transportLabel(spec), specTarget(spec), status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printIssues(out, result.Issues)

	a.logger.Info("configuration validated",
		zap.String("config", result.Path),
		zap.Int("servers", len(result.Providers)),
		zap.Int("issues", len(result.Issues)),
	)
	if n := invalidCount(result.Issues); n > 0 {
		return fmt.Errorf("%d server entries are invalid", n)
	}
	return nil
}

// History prints archived queries, newest first.
func (a *App) History(_ context.Context, cfg HistoryConfig) error {
	out := writerOrStdout(cfg.Out)
	path := cfg.Path
	if strings.TrimSpace(path) == "" {
		path = history.ResolveDefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("history database %s: %w", path, err)
	}
	store, err := history.OpenStore(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("history close failed", zap.Error(err))
		}
	}()

	entries, err := store.List(cfg.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No queries recorded.")
		return nil
	}
	for _, entry := range entries {
		printHistoryEntry(out, entry)
	}
	return nil
}

func printHistoryEntry(out io.Writer, entry domain.HistoryEntry) {
	fmt.Fprintf(out, "%s  %s  rounds=%d tools=%d %s\n",
		entry.StartedAt.Local().Format(time.DateTime),
		entry.ID,
		entry.Rounds,
		entry.ToolCalls,
		(time.Duration(entry.Duration) * time.Millisecond).String(),
	)
	fmt.Fprintf(out, "  Q: %s\n", entry.Query)
	if entry.Error != "" {
		fmt.Fprintf(out, "  Error: %s\n", entry.Error)
		return
	}
	fmt.Fprintf(out, "  A: %s\n", truncate(entry.Answer, 200))
}

func transportLabel(spec domain.ProviderSpec) string {
	if spec.Transport == "" {
		return string(domain.TransportStdio)
	}
	return string(spec.Transport)
}

func specTarget(spec domain.ProviderSpec) string {
	if spec.Transport == domain.TransportHTTP {
		return spec.URL
	}
	return strings.TrimSpace(strings.Join(append([]string{spec.Command}, spec.Args...), " "))
}

func invalidCount(issues []catalog.Issue) int {
	count := 0
	for _, issue := range issues {
		if issue.Kind != catalog.IssueMissingEnv {
			count++
		}
	}
	return count
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func writerOrStdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
