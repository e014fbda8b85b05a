package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/finance-bot/internal/api/handlers"
	"github.com/dvloznov/finance-bot/internal/api/middleware"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/jobs/inmemory"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRegistrar struct {
	url, secret string
	deleted     bool
}

func (r *recordingRegistrar) SetWebhook(ctx context.Context, url, secret string) error {
	r.url, r.secret = url, secret
	return nil
}

func (r *recordingRegistrar) DeleteWebhook(ctx context.Context) error {
	r.deleted = true
	return nil
}

const adminToken = "admin-token"

func newTestRouter(t *testing.T) (http.Handler, *inmemory.Store) {
	h, store, _ := newTestRouterWithRegistrar(t, adminToken)
	return h, store
}

func newTestRouterWithRegistrar(t *testing.T, token string) (http.Handler, *inmemory.Store, *recordingRegistrar) {
	t.Helper()
	store := inmemory.NewStore(0)
	queue := inmemory.NewQueue(inmemory.Config{Size: 10}, store, zerolog.Nop())
	t.Cleanup(func() { _ = queue.Stop(context.Background()) })

	reg := &recordingRegistrar{}
	return NewRouter(RouterConfig{
		WebhookPath:  "/endpoint",
		Secret:       "top_secret",
		AdminToken:   token,
		Webhook:      handlers.NewWebhookHandler(queue),
		Registration: handlers.NewRegistrationHandler(reg, "top_secret", "https://bot.example.com", "/endpoint"),
		Jobs:         handlers.NewJobsHandler(store, zerolog.Nop()),
		Metrics:      promhttp.Handler(),
		Log:          zerolog.Nop(),
	}), store, reg
}

func adminRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	return req
}

const update = `{"update_id":1,"message":{"message_id":5,"date":1700000000,"chat":{"id":42,"type":"private"},"text":"coffee 2"}}`

func TestRouter_WebhookRequiresSecret(t *testing.T) {
	h, store := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/endpoint", strings.NewReader(update))
	req.Header.Set(middleware.SecretHeader, "nope")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, store.Len(), "no job for rejected call")

	req = httptest.NewRequest(http.MethodPost, "/endpoint", strings.NewReader(update))
	req.Header.Set(middleware.SecretHeader, "top_secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ok", rec.Body.String())

	list, err := store.ListJobs(context.Background(), jobs.JobFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "text", list[0].Kind)
}

func TestRouter_OtherRoutes(t *testing.T) {
	h, _ := newTestRouter(t)

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/registerWebhook", http.StatusOK},
		{http.MethodPost, "/unRegisterWebhook", http.StatusOK},
		{http.MethodDelete, "/registerWebhook", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/jobs", http.StatusOK},
		{http.MethodGet, "/api/jobs/unknown", http.StatusNotFound},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, adminRequest(tc.method, tc.path))
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
}

func TestRouter_ManagementRoutesRequireAdminToken(t *testing.T) {
	h, _, reg := newTestRouterWithRegistrar(t, adminToken)

	for _, path := range []string{"/registerWebhook", "/unRegisterWebhook", "/api/jobs", "/api/jobs/x"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Host = "attacker.example"
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set(middleware.SecretHeader, "top_secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		req = httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	assert.Empty(t, reg.url, "webhook never registered")
	assert.False(t, reg.deleted)

	req := adminRequest(http.MethodGet, "/registerWebhook")
	req.Host = "attacker.example"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://bot.example.com/endpoint", reg.url)
}

func TestRouter_EmptyAdminTokenDisablesManagement(t *testing.T) {
	h, _, reg := newTestRouterWithRegistrar(t, "")

	req := httptest.NewRequest(http.MethodGet, "/registerWebhook", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, reg.url)
}
