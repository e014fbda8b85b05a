package sink

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/google/uuid"
)

// LedgerRow is one approved transaction in the BigQuery ledger table.
type LedgerRow struct {
	TransactionID   string     `bigquery:"transaction_id"`   // REQUIRED
	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED STRING
	Type     string   `bigquery:"type"`     // Income or Expense

	Category      bigquery.NullString `bigquery:"category"`       // NULLABLE
	PaymentMethod bigquery.NullString `bigquery:"payment_method"` // NULLABLE
	Description   string              `bigquery:"description"`

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// Inserter streams rows into a table. *bigquery.Inserter satisfies it.
type Inserter interface {
	Put(ctx context.Context, src interface{}) error
}

// BigQuerySink appends approved transactions to a ledger table.
type BigQuerySink struct {
	inserter Inserter
	currency string
	now      func() time.Time
}

// NewBigQuerySink creates a sink writing to dataset.table.
func NewBigQuerySink(client *bigquery.Client, dataset, table, currency string) *BigQuerySink {
	return NewBigQuerySinkWithInserter(client.Dataset(dataset).Table(table).Inserter(), currency)
}

// NewBigQuerySinkWithInserter creates a sink on top of an existing inserter.
func NewBigQuerySinkWithInserter(inserter Inserter, currency string) *BigQuerySink {
	return &BigQuerySink{inserter: inserter, currency: currency, now: time.Now}
}

// Name implements Sink.
func (s *BigQuerySink) Name() string { return "bigquery" }

// Forward implements Sink.
func (s *BigQuerySink) Forward(ctx context.Context, txn domain.Transaction) error {
	row := s.ledgerRow(txn)
	if err := s.inserter.Put(ctx, []*LedgerRow{row}); err != nil {
		return &domain.SinkForwardError{Sink: s.Name(), Err: fmt.Errorf("inserting row: %w", err)}
	}
	return nil
}

func (s *BigQuerySink) ledgerRow(txn domain.Transaction) *LedgerRow {
	now := s.now().UTC()
	return &LedgerRow{
		TransactionID:   uuid.New().String(),
		TransactionDate: civil.DateOf(now),
		Amount:          txn.Amount.Rat(),
		Currency:        s.currency,
		Type:            string(txn.Type),
		Category:        nullString(txn.Category),
		PaymentMethod:   nullString(txn.PaymentMethod),
		Description:     txn.Description,
		CreatedTS:       now,
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
