package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/EasterCompany/dex-voice-bridge/app"
	"github.com/EasterCompany/dex-voice-bridge/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "dex-voice-bridge",
		Short:        "Bridge Discord voice channels to a realtime speech model",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	rootCmd.AddCommand(newVerifyConfigCmd())
	return rootCmd
}

func run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.LoadAllConfigs()
	if err != nil {
		return fmt.Errorf("fatal error loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}
