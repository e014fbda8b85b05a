package main

import (
	"fmt"
	"os"

	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "finance-bot",
		Short:         "Chat bot that turns text and voice notes into approved ledger entries.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file; variables already in the environment win.")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWebhookCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

// loadConfig reads the configuration and builds the logger it asks for.
func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)
	log := logger.New()
	if cfg.LogFormat == "json" {
		log = logger.NewJSON()
	}
	return cfg, log, nil
}
