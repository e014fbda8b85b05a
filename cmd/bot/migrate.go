package main

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-bot/internal/bqmigrate"
	"github.com/dvloznov/finance-bot/internal/cache/postgres"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"
)

const defaultLedgerTable = "ledger"

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the BigQuery tables and the Postgres cache schema.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			appliedBy, _ := cmd.Flags().GetString("applied-by")
			if appliedBy == "" {
				appliedBy = os.Getenv("USER")
			}
			return migrate(cmd.Context(), cfg, appliedBy, log)
		},
	}
	cmd.Flags().String("applied-by", "", "Recorded in schema_migrations (defaults to $USER).")
	return cmd
}

func migrate(ctx context.Context, cfg *config.Config, appliedBy string, log zerolog.Logger) error {
	ran := false

	if cfg.BigQueryProject != "" {
		var opts []option.ClientOption
		if cfg.GoogleCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
		}
		client, err := bigquery.NewClient(ctx, cfg.BigQueryProject, opts...)
		if err != nil {
			return fmt.Errorf("bigquery client: %w", err)
		}
		defer client.Close()

		runner := bqmigrate.NewRunner(client, migrationTarget(cfg), appliedBy, log)
		n, err := runner.Run(ctx, bqmigrate.Migrations())
		if err != nil {
			return err
		}
		log.Info().Int("applied", n).Str("dataset", cfg.BigQueryDataset).Msg("BigQuery migrations done")
		ran = true
	}

	if cfg.CacheBackend == config.CachePostgres {
		// Open applies the cache schema.
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		_ = pg.Close()
		log.Info().Msg("Postgres cache schema ready")
		ran = true
	}

	if !ran {
		log.Info().Msg("Nothing to migrate: neither BIGQUERY_PROJECT nor CACHE_BACKEND=postgres is set")
	}
	return nil
}

func migrationTarget(cfg *config.Config) bqmigrate.Target {
	ledger := cfg.BigQueryLedgerTable
	if ledger == "" {
		ledger = defaultLedgerTable
	}
	return bqmigrate.Target{
		Project:        cfg.BigQueryProject,
		Dataset:        cfg.BigQueryDataset,
		ReferenceTable: cfg.BigQueryReferenceTable,
		LedgerTable:    ledger,
	}
}
