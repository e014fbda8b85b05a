package refdata

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-bot/internal/domain"
	"google.golang.org/api/iterator"
)

// Reference value kinds stored in the BigQuery table.
const (
	KindCategory      = "category"
	KindPaymentMethod = "payment_method"
)

// ReferenceRow is one active entry of the reference values table.
type ReferenceRow struct {
	Kind string `bigquery:"kind"`
	Name string `bigquery:"name"`
}

// BigQuerySource reads the lists from a `kind, name, position, is_active`
// table, for setups where the spreadsheet is mirrored into BigQuery.
type BigQuerySource struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQuerySource creates a source over dataset.table using client.
func NewBigQuerySource(client *bigquery.Client, dataset, table string) *BigQuerySource {
	return &BigQuerySource{client: client, dataset: dataset, table: table}
}

// Fetch implements Source.
func (s *BigQuerySource) Fetch(ctx context.Context) (*Lists, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
		  kind,
		  name
		FROM %s.%s
		WHERE is_active = TRUE
		ORDER BY kind, position, name
	`, s.dataset, s.table))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, &domain.FetchError{Source: "bigquery", Err: fmt.Errorf("query read: %w", err)}
	}

	var rows []ReferenceRow
	for {
		var r ReferenceRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &domain.FetchError{Source: "bigquery", Err: fmt.Errorf("iter next: %w", err)}
		}
		rows = append(rows, r)
	}

	return ListsFromRows(rows), nil
}

// ListsFromRows splits rows by kind, keeping their order. Unknown kinds are skipped.
func ListsFromRows(rows []ReferenceRow) *Lists {
	lists := &Lists{
		Categories:     []string{},
		PaymentMethods: []string{},
	}
	for _, r := range rows {
		switch r.Kind {
		case KindCategory:
			lists.Categories = append(lists.Categories, r.Name)
		case KindPaymentMethod:
			lists.PaymentMethods = append(lists.PaymentMethods, r.Name)
		}
	}
	return lists
}
