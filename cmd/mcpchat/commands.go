package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mcpchat/internal/app"
)

func newChatCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Connect to the configured servers and start chatting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts)
		},
	}
}

func runChat(cmd *cobra.Command, opts *cliOptions) error {
	settings, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}
	ctx, cancel := signalAwareContext(cmd.Context())
	defer cancel()

	return app.New(opts.logger).Chat(ctx, app.ChatConfig{
		Settings: settings,
		In:       cmd.InOrStdin(),
		Out:      cmd.OutOrStdout(),
	})
}

func newValidateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the provider config without launching servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings(cmd, opts)
			if err != nil {
				return err
			}
			err = app.New(opts.logger).ValidateConfig(cmd.Context(), app.ValidateConfig{
				ConfigPath: settings.Servers.Config,
				Out:        cmd.OutOrStdout(),
			})
			if err != nil {
				return exitWithMessage(2, fmt.Sprintf("invalid config: %v", err))
			}
			return nil
		},
	}
}

func newHistoryCmd(opts *cliOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived queries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings(cmd, opts)
			if err != nil {
				return err
			}
			return app.New(opts.logger).History(cmd.Context(), app.HistoryConfig{
				Path:  settings.History.Path,
				Limit: limit,
				Out:   cmd.OutOrStdout(),
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max entries to show (0 shows all)")
	return cmd
}
