package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dvloznov/finance-bot/internal/telegram"
	"github.com/spf13/cobra"
)

func newWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the chat platform webhook registration.",
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Point the platform at this deployment's webhook URL.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			base, _ := cmd.Flags().GetString("url")
			if base == "" {
				base = cfg.PublicURL
			}
			if base == "" {
				return errors.New("webhook set: --url or PUBLIC_URL is required")
			}
			url := strings.TrimRight(base, "/") + cfg.WebhookPath

			tg, err := telegram.New(telegram.Config{Token: cfg.BotToken, ServerURL: cfg.TelegramServerURL, Timeout: cfg.HTTPTimeout}, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if err := tg.SetWebhook(ctx, url, cfg.BotSecret); err != nil {
				return err
			}
			log.Info().Str("url", url).Msg("Webhook registered")
			return nil
		},
	}
	set.Flags().String("url", "", "Public base URL (defaults to PUBLIC_URL).")

	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove the webhook registration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			tg, err := telegram.New(telegram.Config{Token: cfg.BotToken, ServerURL: cfg.TelegramServerURL, Timeout: cfg.HTTPTimeout}, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if err := tg.DeleteWebhook(ctx); err != nil {
				return err
			}
			log.Info().Msg("Webhook removed")
			return nil
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}
