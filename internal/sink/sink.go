// Package sink forwards approved transactions to where they are recorded.
package sink

import (
	"context"
	"errors"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/metrics"
)

// Sink receives approved transactions.
type Sink interface {
	Name() string
	Forward(ctx context.Context, txn domain.Transaction) error
}

// Fanout forwards to every configured sink in order.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a Fanout over sinks. Nil entries are skipped.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Name implements Sink.
func (f *Fanout) Name() string { return "fanout" }

// Len returns the number of sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// Forward implements Sink. Every sink is tried; failures are joined and each
// is reported as a *domain.SinkForwardError.
func (f *Fanout) Forward(ctx context.Context, txn domain.Transaction) error {
	var errs []error
	for _, s := range f.sinks {
		err := s.Forward(ctx, txn)
		if err == nil {
			metrics.TransactionsForwarded.WithLabelValues(s.Name(), "ok").Inc()
			continue
		}
		metrics.TransactionsForwarded.WithLabelValues(s.Name(), "error").Inc()

		var fwd *domain.SinkForwardError
		if !errors.As(err, &fwd) {
			err = &domain.SinkForwardError{Sink: s.Name(), Err: err}
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
