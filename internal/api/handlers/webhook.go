// Package handlers implements the bot's HTTP endpoints.
package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/finance-bot/internal/api/middleware"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/metrics"
	"github.com/dvloznov/finance-bot/internal/telegram"
)

// maxUpdateBytes bounds a webhook body.
const maxUpdateBytes = 1 << 20

// WebhookHandler accepts platform updates and queues them for the workers.
// It answers before any processing happens.
type WebhookHandler struct {
	publisher jobs.Publisher
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(publisher jobs.Publisher) *WebhookHandler {
	return &WebhookHandler{publisher: publisher}
}

// ServeHTTP handles POST {webhookPath}. The secret is checked by
// middleware.WebhookSecret in front of this handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if r.Method != http.MethodPost {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	update, err := telegram.DecodeUpdate(http.MaxBytesReader(w, r.Body, maxUpdateBytes))
	if err != nil {
		log.Warn().Err(err).Msg("Malformed update")
		metrics.WebhookRejected.WithLabelValues("bad_request").Inc()
		middleware.WriteError(w, http.StatusBadRequest, "Invalid update")
		return
	}

	in := telegram.Classify(update)
	metrics.UpdatesReceived.WithLabelValues(in.Kind.String()).Inc()

	if in.Kind == telegram.KindIgnored {
		middleware.WriteText(w, http.StatusOK, "Ok")
		return
	}

	job := jobs.NewUpdateJob(in)
	if err := h.publisher.TryPublish(r.Context(), job); err != nil {
		log.Error().Err(err).Int64("update_id", in.UpdateID).Msg("Failed to enqueue update")
		if errors.Is(err, jobs.ErrQueueFull) {
			metrics.WebhookRejected.WithLabelValues("queue_full").Inc()
		} else {
			metrics.WebhookRejected.WithLabelValues("queue_closed").Inc()
		}
		// A non-2xx answer makes the platform deliver the update again.
		middleware.WriteError(w, http.StatusServiceUnavailable, "Busy")
		return
	}

	log.Debug().
		Str("job_id", job.JobID).
		Int64("update_id", in.UpdateID).
		Str("kind", in.Kind.String()).
		Msg("Update queued")

	middleware.WriteText(w, http.StatusOK, "Ok")
}
