// Package api assembles the bot's HTTP surface.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/finance-bot/internal/api/handlers"
	"github.com/dvloznov/finance-bot/internal/api/middleware"
	"github.com/rs/zerolog"
)

// RouterConfig holds the handlers served by NewRouter.
type RouterConfig struct {
	WebhookPath string
	Secret      string
	// AdminToken guards the registration and jobs routes. Empty disables
	// them (every call gets 401).
	AdminToken   string
	Webhook      http.Handler
	Registration *handlers.RegistrationHandler
	Jobs         *handlers.JobsHandler
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	Log     zerolog.Logger
}

// NewRouter builds the mux and wraps it in the standard middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	// Webhook endpoint, guarded by the shared secret
	mux.Handle(cfg.WebhookPath, middleware.WebhookSecret(cfg.Secret, cfg.Log)(cfg.Webhook))

	admin := middleware.AdminToken(cfg.AdminToken, cfg.Log)

	// Webhook registration
	mux.Handle("/registerWebhook", admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodPost {
			cfg.Registration.Register(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	mux.Handle("/unRegisterWebhook", admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodPost {
			cfg.Registration.Unregister(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	// Jobs endpoints
	if cfg.Jobs != nil {
		mux.Handle("/api/jobs", admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				cfg.Jobs.ListJobs(w, r)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		})))

		mux.Handle("/api/jobs/", admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
				if jobID == "" {
					middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
					return
				}
				cfg.Jobs.GetJob(w, r, jobID)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		})))
	}

	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(cfg.Log)(
		middleware.RequestID(
			middleware.Logger(cfg.Log)(mux),
		),
	)
}
