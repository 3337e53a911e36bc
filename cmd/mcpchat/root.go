package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mcpchat/internal/app"
	"mcpchat/internal/domain"
)

type cliOptions struct {
	settingsPath string
	logLevel     string
	logFile      string
	logger       *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{
		logLevel: domain.DefaultLogLevel,
		logger:   zap.NewNop(),
	}

	root := &cobra.Command{
		Use:           "mcpchat",
		Short:         "Interactive chat client over multiple MCP servers",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := app.BuildLogger(opts.logLevel, opts.logFile)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, &opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.settingsPath, "settings", "", "chat settings file (yaml, json or toml)")
	flags.StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")
	flags.String("config", domain.DefaultProviderConfigPath, "provider config file (json, yaml or toml)")
	flags.Bool("watch", false, "connect providers added to the config while running")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("history-db", "", "archive finished queries in this bbolt file")
	flags.String("provider", domain.DefaultModelProvider, "model provider (anthropic or openai)")
	flags.String("model", "", "model name")
	flags.Int("max-tokens", domain.DefaultMaxTokens, "max tokens per completion")
	flags.Int("max-rounds", 0, "max model rounds per query (0 is unlimited)")
	flags.String("resource-scheme", domain.DefaultResourceScheme, "URI scheme used by @topic")

	root.AddCommand(
		newChatCmd(&opts),
		newValidateCmd(&opts),
		newHistoryCmd(&opts),
	)
	return root
}

func loadSettings(cmd *cobra.Command, opts *cliOptions) (app.Settings, error) {
	return app.LoadSettings(opts.settingsPath, cmd.Flags())
}
