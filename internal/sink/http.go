package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
)

// HTTPSink posts the transaction as JSON to the spreadsheet endpoint.
type HTTPSink struct {
	url    string
	client *http.Client
}

// NewHTTPSink creates a sink for url. A nil client gets a 15s timeout.
func NewHTTPSink(url string, client *http.Client) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSink{url: url, client: client}
}

// Name implements Sink.
func (s *HTTPSink) Name() string { return "sheets" }

// Forward implements Sink.
func (s *HTTPSink) Forward(ctx context.Context, txn domain.Transaction) error {
	body, err := json.Marshal(txn)
	if err != nil {
		return &domain.SinkForwardError{Sink: s.Name(), Err: fmt.Errorf("encode transaction: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return &domain.SinkForwardError{Sink: s.Name(), Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &domain.SinkForwardError{Sink: s.Name(), Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.SinkForwardError{Sink: s.Name(), StatusCode: resp.StatusCode}
	}
	return nil
}
