// Package telegram wraps the Bot API calls the bot needs and turns raw
// updates into typed inbound events.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

// Config configures the Bot API client.
type Config struct {
	Token string
	// ServerURL overrides https://api.telegram.org, e.g. for a local Bot API server.
	ServerURL string
	Timeout   time.Duration
}

// Client performs one-shot Bot API calls. Nothing is retried; failures are
// logged and returned to the caller.
type Client struct {
	api  *bot.Bot
	http *http.Client
	log  zerolog.Logger
}

// New creates a Client. It does not contact the Bot API.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	opts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(cfg.Timeout, httpClient),
	}
	if cfg.ServerURL != "" {
		opts = append(opts, bot.WithServerURL(cfg.ServerURL))
	}

	api, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Client{
		api:  api,
		http: httpClient,
		log:  log,
	}, nil
}

// SendText sends a Markdown message to chatID and returns its message id.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	msg, err := c.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdownV1,
	})
	if err != nil {
		c.log.Error().Err(err).Int64("chat_id", chatID).Msg("Telegram sendMessage failed")
		return 0, fmt.Errorf("sendMessage: %w", err)
	}
	return msg.ID, nil
}

// EditText replaces the text of a message. A nil keyboard removes any
// buttons the message had.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, keyboard *models.InlineKeyboardMarkup) error {
	if keyboard == nil {
		keyboard = RemoveKeyboard()
	}

	_, err := c.api.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: keyboard,
	})
	if err != nil {
		c.log.Error().
			Err(err).
			Int64("chat_id", chatID).
			Int("message_id", messageID).
			Msg("Telegram editMessageText failed")
		return fmt.Errorf("editMessageText: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a button press so the client stops its spinner.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	_, err := c.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	})
	if err != nil {
		c.log.Warn().Err(err).Str("callback_id", callbackID).Msg("Telegram answerCallbackQuery failed")
		return fmt.Errorf("answerCallbackQuery: %w", err)
	}
	return nil
}

// DownloadFile resolves fileID and downloads its content. It returns the
// bytes and the platform file path (useful for picking a MIME type).
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	file, err := c.api.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, "", &domain.FileResolutionError{FileID: fileID, Err: err}
	}
	if file == nil || file.FilePath == "" {
		return nil, "", &domain.FileResolutionError{FileID: fileID}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api.FileDownloadLink(file), nil)
	if err != nil {
		return nil, "", &domain.DownloadError{FilePath: file.FilePath, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", &domain.DownloadError{FilePath: file.FilePath, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &domain.DownloadError{FilePath: file.FilePath, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &domain.DownloadError{FilePath: file.FilePath, Err: err}
	}

	return data, file.FilePath, nil
}

// SetWebhook points the bot at url; the platform will send secret in the
// X-Telegram-Bot-Api-Secret-Token header of every update.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	ok, err := c.api.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:         url,
		SecretToken: secret,
	})
	if err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	if !ok {
		return errors.New("setWebhook: not acknowledged")
	}
	return nil
}

// DeleteWebhook removes the webhook registration.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	ok, err := c.api.DeleteWebhook(ctx, &bot.DeleteWebhookParams{})
	if err != nil {
		return fmt.Errorf("deleteWebhook: %w", err)
	}
	if !ok {
		return errors.New("deleteWebhook: not acknowledged")
	}
	return nil
}
