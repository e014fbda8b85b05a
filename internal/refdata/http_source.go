package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
)

// HTTPSource fetches the lists with a GET against the spreadsheet endpoint.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for url. A nil client gets a 15s timeout.
func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSource{url: url, client: client}
}

// Fetch implements Source. Every failure is a *domain.FetchError.
func (s *HTTPSource) Fetch(ctx context.Context) (*Lists, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &domain.FetchError{Source: "http", Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Source: "http", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.FetchError{Source: "http", StatusCode: resp.StatusCode}
	}

	var lists Lists
	if err := json.NewDecoder(resp.Body).Decode(&lists); err != nil {
		return nil, &domain.FetchError{Source: "http", Err: fmt.Errorf("decode body: %w", err)}
	}

	return &lists, nil
}
