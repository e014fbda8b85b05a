package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionType tells whether money came in or went out.
type TransactionType string

const (
	// TransactionTypeIncome marks money received (salary, refunds, incoming transfers).
	TransactionTypeIncome TransactionType = "Income"
	// TransactionTypeExpense marks everything else: purchases, payments, gifts given.
	TransactionTypeExpense TransactionType = "Expense"
)

// ParseTransactionType maps a model label to a TransactionType.
// Anything that is not recognised as income is an expense.
func ParseTransactionType(label string) TransactionType {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "income", "entrata", "in":
		return TransactionTypeIncome
	default:
		return TransactionTypeExpense
	}
}

// UnmarshalJSON normalizes the label through ParseTransactionType.
func (t *TransactionType) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return fmt.Errorf("transaction type: %w", err)
	}
	*t = ParseTransactionType(label)
	return nil
}

// Transaction is one parsed financial movement awaiting approval.
type Transaction struct {
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	PaymentMethod string          `json:"paymentMethod"`
	Type          TransactionType `json:"type"`
	Description   string          `json:"description"`
}

// transactionJSON is the wire shape; amount is written as a bare JSON number.
type transactionJSON struct {
	Amount        json.Number     `json:"amount"`
	Category      string          `json:"category"`
	PaymentMethod string          `json:"paymentMethod"`
	Type          TransactionType `json:"type"`
	Description   string          `json:"description"`
}

// MarshalJSON writes the amount as a number rather than decimal's default quoted string.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		Amount:        json.Number(t.Amount.String()),
		Category:      t.Category,
		PaymentMethod: t.PaymentMethod,
		Type:          t.Type,
		Description:   t.Description,
	})
}

// Defaults holds the fallback values applied to fields the model left empty.
type Defaults struct {
	Category      string
	PaymentMethod string
}

// Normalize applies defaults and keeps the amount a magnitude.
func (t Transaction) Normalize(d Defaults) Transaction {
	t.Amount = t.Amount.Abs()
	t.Category = strings.TrimSpace(t.Category)
	t.PaymentMethod = strings.TrimSpace(t.PaymentMethod)
	t.Description = strings.TrimSpace(t.Description)
	if t.Category == "" {
		t.Category = d.Category
	}
	if t.PaymentMethod == "" {
		t.PaymentMethod = d.PaymentMethod
	}
	if t.Type == "" {
		t.Type = TransactionTypeExpense
	}
	return t
}

// IsIncome reports whether the transaction is money received.
func (t Transaction) IsIncome() bool {
	return t.Type == TransactionTypeIncome
}
