package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/dvloznov/finance-bot/internal/api"
	"github.com/dvloznov/finance-bot/internal/api/handlers"
	"github.com/dvloznov/finance-bot/internal/approval"
	"github.com/dvloznov/finance-bot/internal/bot"
	"github.com/dvloznov/finance-bot/internal/cache"
	cacheinmem "github.com/dvloznov/finance-bot/internal/cache/inmemory"
	"github.com/dvloznov/finance-bot/internal/cache/postgres"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/extract"
	"github.com/dvloznov/finance-bot/internal/jobs"
	jobsinmem "github.com/dvloznov/finance-bot/internal/jobs/inmemory"
	"github.com/dvloznov/finance-bot/internal/llm"
	"github.com/dvloznov/finance-bot/internal/refdata"
	"github.com/dvloznov/finance-bot/internal/sink"
	"github.com/dvloznov/finance-bot/internal/telegram"
	"github.com/dvloznov/finance-bot/internal/transcribe"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"
)

const cacheSweepInterval = 5 * time.Minute

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and the update workers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().String("port", "", "HTTP server port (overrides PORT).")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	var gcpOpts []option.ClientOption
	if cfg.GoogleCredentialsFile != "" {
		gcpOpts = append(gcpOpts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
	}

	// Cache
	store, closeStore, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Chat platform
	tg, err := telegram.New(telegram.Config{
		Token:     cfg.BotToken,
		ServerURL: cfg.TelegramServerURL,
		Timeout:   cfg.HTTPTimeout,
	}, log)
	if err != nil {
		return err
	}

	// Language model
	gemini, err := llm.NewGemini(ctx, llm.Config{
		APIKey:          cfg.GeminiAPIKey,
		Model:           cfg.GeminiModel,
		TranscribeModel: cfg.TranscribeModel,
	})
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var bq *bigquery.Client
	if cfg.BigQueryProject != "" {
		bq, err = bigquery.NewClient(ctx, cfg.BigQueryProject, gcpOpts...)
		if err != nil {
			return fmt.Errorf("bigquery client: %w", err)
		}
		defer bq.Close()
	}

	// Reference data
	var source refdata.Source
	switch cfg.ReferenceSource {
	case config.ReferenceBigQuery:
		source = refdata.NewBigQuerySource(bq, cfg.BigQueryDataset, cfg.BigQueryReferenceTable)
	default:
		source = refdata.NewHTTPSource(cfg.ReferenceURL, httpClient)
	}
	fetcher := refdata.NewFetcher(source, store, cfg.ReferenceMaxAge, log)

	// Transcription
	var speech transcribe.Model = gemini
	if cfg.Transcriber == config.TranscriberWorkersAI {
		speech = transcribe.NewWorkersAI(transcribe.WorkersAIConfig{
			AccountID: cfg.WorkersAIAccountID,
			APIToken:  cfg.WorkersAIToken,
			Model:     cfg.WorkersAIModel,
			Timeout:   cfg.HTTPTimeout * 4,
		})
	}

	var archive transcribe.Archiver
	if cfg.VoiceArchiveBucket != "" {
		gcs, err := storage.NewClient(ctx, gcpOpts...)
		if err != nil {
			return fmt.Errorf("storage client: %w", err)
		}
		defer gcs.Close()
		archive = transcribe.NewGCSArchiver(gcs, cfg.VoiceArchiveBucket, "")
	}
	transcriber := transcribe.NewService(tg, speech, archive, log)

	// Extraction
	defaults := domain.Defaults{Category: cfg.DefaultCategory, PaymentMethod: cfg.DefaultPaymentMethod}
	extractor := extract.NewExtractor(gemini, defaults, cfg.Currency, log)

	// Sinks
	var sinks []sink.Sink
	if cfg.SinkURL != "" {
		sinks = append(sinks, sink.NewHTTPSink(cfg.SinkURL, httpClient))
	}
	if cfg.BigQueryLedgerTable != "" {
		sinks = append(sinks, sink.NewBigQuerySink(bq, cfg.BigQueryDataset, cfg.BigQueryLedgerTable, cfg.Currency))
	}
	if cfg.NotionDatabaseID != "" {
		sinks = append(sinks, sink.NewNotionSink(sink.NewNotionClient(cfg.NotionToken), cfg.NotionDatabaseID))
	}
	fanout := sink.NewFanout(sinks...)

	workflow := approval.NewWorkflow(store, fanout, tg, approval.Config{
		PendingTTL: cfg.PendingTTL,
		DebugEcho:  cfg.DebugEcho,
		Currency:   cfg.Currency,
	}, log)

	dispatcher := bot.NewDispatcher(tg, transcriber, fetcher, extractor, workflow)

	// Initialize job infrastructure
	jobStore := jobsinmem.NewStore(0)
	jobQueue := jobsinmem.NewQueue(jobsinmem.Config{
		Size:       cfg.QueueSize,
		Workers:    cfg.Workers,
		JobTimeout: cfg.JobTimeout,
	}, jobStore, log)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, func(ctx context.Context, job *jobs.UpdateJob) error {
		return dispatcher.Handle(ctx, job.Inbound)
	}); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	handler := api.NewRouter(api.RouterConfig{
		WebhookPath:  cfg.WebhookPath,
		Secret:       cfg.BotSecret,
		AdminToken:   cfg.AdminToken,
		Webhook:      handlers.NewWebhookHandler(jobQueue),
		Registration: handlers.NewRegistrationHandler(tg, cfg.BotSecret, cfg.PublicURL, cfg.WebhookPath),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
		Metrics:      promhttp.Handler(),
		Log:          log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("webhook_path", cfg.WebhookPath).
			Int("sinks", fanout.Len()).
			Str("transcriber", cfg.Transcriber).
			Msg("Starting bot server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for queued and in-flight updates
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
	return nil
}

// openCache opens the configured store and starts its expiry sweeper.
func openCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Store, func(), error) {
	switch cfg.CacheBackend {
	case config.CachePostgres:
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		sweepCtx, cancel := context.WithCancel(context.Background())
		go func() {
			ticker := time.NewTicker(cacheSweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-sweepCtx.Done():
					return
				case <-ticker.C:
					if n, err := pg.Purge(sweepCtx); err != nil {
						log.Warn().Err(err).Msg("Failed to purge expired cache entries")
					} else if n > 0 {
						log.Debug().Int64("purged", n).Msg("Expired cache entries purged")
					}
				}
			}
		}()
		return pg, func() {
			cancel()
			_ = pg.Close()
		}, nil

	default:
		mem := cacheinmem.NewStore()
		sweepCtx, cancel := context.WithCancel(context.Background())
		mem.StartJanitor(sweepCtx, cacheSweepInterval)
		return mem, cancel, nil
	}
}
