// Package extract turns free-form transaction text into a structured
// Transaction using a language model.
package extract

import (
	"context"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/metrics"
	"github.com/rs/zerolog"
)

// Generator is a language model that answers one system+user exchange.
type Generator interface {
	Generate(ctx context.Context, instruction, userText string) (string, error)
}

// Result is the outcome of one extraction. Transaction is nil when the reply
// could not be parsed; Summary then holds the raw reply.
type Result struct {
	Transaction *domain.Transaction
	Summary     string
}

// Extractor builds prompts, calls the model and parses its reply.
type Extractor struct {
	gen      Generator
	defaults domain.Defaults
	currency string
	now      func() time.Time
	log      zerolog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(gen Generator, defaults domain.Defaults, currency string, log zerolog.Logger) *Extractor {
	return &Extractor{
		gen:      gen,
		defaults: defaults,
		currency: currency,
		now:      time.Now,
		log:      log,
	}
}

// WithClock overrides the clock used for today's date.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// Extract asks the model to structure text. A failed model call returns
// *domain.ExtractionError; an unparseable reply is not an error.
func (e *Extractor) Extract(ctx context.Context, text string, categories, paymentMethods []string) (*Result, error) {
	today := e.now().Format("2006-01-02")
	prompt := BuildPrompt(text, categories, paymentMethods, today, e.defaults)

	raw, err := e.gen.Generate(ctx, prompt, text)
	if err != nil {
		metrics.Errors.WithLabelValues("extraction").Inc()
		return nil, &domain.ExtractionError{Err: err}
	}

	txn, err := ParseTransaction(raw)
	if err != nil {
		e.log.Warn().Err(err).Str("reply", raw).Msg("Model reply is not a transaction")
		metrics.TransactionsProposed.WithLabelValues("false").Inc()
		return &Result{Summary: PrettyReply(raw)}, nil
	}

	normalized := txn.Normalize(e.defaults)
	metrics.TransactionsProposed.WithLabelValues("true").Inc()

	return &Result{
		Transaction: &normalized,
		Summary:     domain.FormatTransaction(normalized, e.currency),
	}, nil
}
