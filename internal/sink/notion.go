package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/jomei/notionapi"
)

// PageCreator creates pages in a Notion database.
type PageCreator interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
}

// NotionClient is the PageCreator backed by the Notion SDK.
type NotionClient struct {
	client *notionapi.Client
}

// NewNotionClient creates a new NotionClient with the provided API token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token)),
	}
}

// CreatePage creates a new page in a Notion database with the given properties.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	page, err := n.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}

	return page, nil
}

// NotionSink records approved transactions as pages of a Notion database.
type NotionSink struct {
	pages      PageCreator
	databaseID string
	now        func() time.Time
}

// NewNotionSink creates a sink writing to databaseID.
func NewNotionSink(pages PageCreator, databaseID string) *NotionSink {
	return &NotionSink{pages: pages, databaseID: databaseID, now: time.Now}
}

// Name implements Sink.
func (s *NotionSink) Name() string { return "notion" }

// Forward implements Sink.
func (s *NotionSink) Forward(ctx context.Context, txn domain.Transaction) error {
	if _, err := s.pages.CreatePage(ctx, s.databaseID, TransactionToNotionProperties(txn, s.now())); err != nil {
		return &domain.SinkForwardError{Sink: s.Name(), Err: err}
	}
	return nil
}

// TransactionToNotionProperties maps a transaction onto the ledger database
// columns: Description (title), Amount, Category, Payment Method, Type, Date.
func TransactionToNotionProperties(txn domain.Transaction, at time.Time) notionapi.Properties {
	day := notionapi.Date(time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC))

	props := notionapi.Properties{
		"Description": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: txn.Description,
					},
				},
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: txn.Amount.InexactFloat64(),
		},
		"Type": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(txn.Type)},
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &day},
		},
	}

	if txn.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: txn.Category},
		}
	}
	if txn.PaymentMethod != "" {
		props["Payment Method"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: txn.PaymentMethod},
		}
	}

	return props
}
