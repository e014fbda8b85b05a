package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/dvloznov/finance-bot/internal/api/middleware"
	"github.com/dvloznov/finance-bot/internal/logger"
)

// WebhookRegistrar registers the bot's webhook with the platform.
type WebhookRegistrar interface {
	SetWebhook(ctx context.Context, url, secret string) error
	DeleteWebhook(ctx context.Context) error
}

// RegistrationHandler serves /registerWebhook and /unRegisterWebhook.
// The webhook URL always comes from configuration: the request's Host is
// caller-controlled and SetWebhook hands the secret to whatever it names.
type RegistrationHandler struct {
	registrar   WebhookRegistrar
	secret      string
	publicURL   string
	webhookPath string
}

// NewRegistrationHandler creates a registration handler.
func NewRegistrationHandler(registrar WebhookRegistrar, secret, publicURL, webhookPath string) *RegistrationHandler {
	return &RegistrationHandler{
		registrar:   registrar,
		secret:      secret,
		publicURL:   strings.TrimRight(publicURL, "/"),
		webhookPath: webhookPath,
	}
}

// WebhookURL returns the URL the platform should call, or "" when no public
// URL is configured.
func (h *RegistrationHandler) WebhookURL() string {
	if h.publicURL == "" {
		return ""
	}
	return h.publicURL + h.webhookPath
}

// Register handles GET|POST /registerWebhook.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	url := h.WebhookURL()
	if url == "" {
		log.Error().Msg("Refusing to register webhook without PUBLIC_URL")
		middleware.WriteError(w, http.StatusInternalServerError, "PUBLIC_URL is not configured")
		return
	}

	if err := h.registrar.SetWebhook(r.Context(), url, h.secret); err != nil {
		log.Error().Err(err).Str("url", url).Msg("Failed to register webhook")
		middleware.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	log.Info().Str("url", url).Msg("Webhook registered")
	middleware.WriteText(w, http.StatusOK, "Ok")
}

// Unregister handles GET|POST /unRegisterWebhook.
func (h *RegistrationHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if err := h.registrar.DeleteWebhook(r.Context()); err != nil {
		log.Error().Err(err).Msg("Failed to unregister webhook")
		middleware.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	log.Info().Msg("Webhook unregistered")
	middleware.WriteText(w, http.StatusOK, "Ok")
}
