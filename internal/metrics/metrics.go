// Package metrics holds the Prometheus collectors of the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesReceived counts webhook updates by classified kind.
	UpdatesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_received_total",
			Help: "Total number of webhook updates by kind",
		},
		[]string{"kind"}, // text, audio, unsupported, callback, ignored
	)

	// WebhookRejected counts webhook requests that were not accepted.
	WebhookRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_webhook_rejected_total",
			Help: "Total number of rejected webhook requests by reason",
		},
		[]string{"reason"}, // unauthorized, admin_unauthorized, bad_request, queue_full, queue_closed
	)

	// CallbacksProcessed counts button presses by action.
	CallbacksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_callbacks_processed_total",
			Help: "Total number of processed callback queries by action",
		},
		[]string{"action"}, // approve, approve_missing, refuse, unknown
	)

	// TransactionsProposed counts extraction results shown to the user.
	TransactionsProposed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_transactions_proposed_total",
			Help: "Total number of extraction results shown, by whether they parsed",
		},
		[]string{"parsed"}, // true, false
	)

	// TransactionsForwarded counts sink forwards by result.
	TransactionsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_transactions_forwarded_total",
			Help: "Total number of approved transactions forwarded to sinks",
		},
		[]string{"sink", "result"}, // result: ok, error
	)

	// ReferenceFetches counts live reference data fetches by result.
	ReferenceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_reference_fetches_total",
			Help: "Total number of reference data lookups by outcome",
		},
		[]string{"result"}, // cached, fetched, stale, empty
	)

	// Errors counts handled failures by type.
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type"}, // transcription, extraction, sink, cache, telegram, job
	)

	// JobDuration observes how long a background update job ran.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_job_duration_seconds",
			Help:    "Duration of background update jobs in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	// ModelDuration observes language and speech model latency.
	ModelDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_model_duration_seconds",
			Help:    "Duration of model calls in seconds",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16},
		},
		[]string{"call"}, // extract, transcribe
	)
)
