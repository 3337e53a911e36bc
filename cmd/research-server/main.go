package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mcpchat/internal/app"
	"mcpchat/internal/research"
)

type serverOptions struct {
	papersDir string
	logLevel  string
	logger    *zap.Logger
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := serverOptions{
		papersDir: "papers",
		logLevel:  "info",
		logger:    zap.NewNop(),
	}

	root := &cobra.Command{
		Use:          "research-server",
		Short:        "MCP stdio server for searching and browsing arXiv papers",
		Version:      app.Version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, err := zapcore.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs go to stderr.
			cfg := zap.NewProductionConfig()
			cfg.Level = zap.NewAtomicLevelAt(level)
			cfg.OutputPaths = []string{"stderr"}
			log, err := cfg.Build()
			if err != nil {
				return err
			}
			opts.logger = log
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			server, err := research.NewServer(research.Options{
				Store:   research.NewStore(opts.papersDir),
				Logger:  opts.logger,
				Version: app.Version,
			})
			if err != nil {
				return err
			}
			opts.logger.Info("research server starting", zap.String("papers_dir", opts.papersDir))
			return server.Run(ctx, &mcp.StdioTransport{})
		},
	}

	root.Flags().StringVar(&opts.papersDir, "papers-dir", opts.papersDir, "directory holding <topic>/papers_info.json")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level (debug, info, warn, error)")
	return root
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
