package extract

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDefaults = domain.Defaults{Category: "General", PaymentMethod: "Card"}

type fakeGenerator struct {
	reply          string
	err            error
	gotInstruction string
	gotUserText    string
}

func (g *fakeGenerator) Generate(ctx context.Context, instruction, userText string) (string, error) {
	g.gotInstruction = instruction
	g.gotUserText = userText
	return g.reply, g.err
}

func newTestExtractor(gen Generator) *Extractor {
	return NewExtractor(gen, testDefaults, "€", zerolog.New(io.Discard)).
		WithClock(func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) })
}

func TestExtract_StructuredReply(t *testing.T) {
	gen := &fakeGenerator{reply: "```json\n{\"amount\": 12.5, \"category\": \"Food\", \"paymentMethod\": \"Cash\", \"type\": \"Uscita\", \"description\": \"lunch\"}\n```"}
	ex := newTestExtractor(gen)

	res, err := ex.Extract(context.Background(), "lunch 12.50 cash", []string{"Food"}, []string{"Cash", "Card"})
	require.NoError(t, err)
	require.NotNil(t, res.Transaction)

	assert.True(t, decimal.RequireFromString("12.5").Equal(res.Transaction.Amount))
	assert.Equal(t, domain.TransactionTypeExpense, res.Transaction.Type)
	assert.Equal(t, "📤 *12.5€*\n🏷️ Food\n💳 Cash\n💭 lunch", res.Summary)
	assert.Equal(t, "lunch 12.50 cash", gen.gotUserText)
	assert.Contains(t, gen.gotInstruction, "2025-03-14")
	assert.Contains(t, gen.gotInstruction, `["Cash","Card"]`)
}

func TestExtract_AppliesDefaults(t *testing.T) {
	gen := &fakeGenerator{reply: `{"amount": -40, "type": "Income", "description": " salary "}`}
	res, err := newTestExtractor(gen).Extract(context.Background(), "+40 salary", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Transaction)

	assert.Equal(t, "General", res.Transaction.Category)
	assert.Equal(t, "Card", res.Transaction.PaymentMethod)
	assert.Equal(t, "salary", res.Transaction.Description)
	assert.True(t, res.Transaction.Amount.Equal(decimal.NewFromInt(40)))
	assert.True(t, strings.HasPrefix(res.Summary, "📥 *40€*"))
}

func TestExtract_UnparsedReplyFallsBackToRawText(t *testing.T) {
	gen := &fakeGenerator{reply: `["not","an","object"]`}
	res, err := newTestExtractor(gen).Extract(context.Background(), "???", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Transaction)
	assert.Equal(t, "[\n    \"not\",\n    \"an\",\n    \"object\"\n]", res.Summary)
}

func TestExtract_ModelFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("deadline exceeded")}
	_, err := newTestExtractor(gen).Extract(context.Background(), "coffee 2", nil, nil)

	var target *domain.ExtractionError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "deadline exceeded", err.Error())
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("gift for mum 30", nil, []string{"Card"}, "2025-01-02", testDefaults)

	assert.Contains(t, p, `- Text: "gift for mum 30"`)
	assert.Contains(t, p, "- Available categories: []")
	assert.Contains(t, p, `- Available payment methods: ["Card"]`)
	assert.Contains(t, p, "- Today's date: 2025-01-02")
	for _, cue := range []string{`"+"`, `"received"`, `"salary"`, `"refund"`, `"transfer from"`} {
		assert.Contains(t, p, cue)
	}
	assert.Contains(t, p, "Amazon, eBay, Vinted, PayPal")
	assert.Contains(t, p, `If in doubt, "General"`)
}

func TestParseTransaction(t *testing.T) {
	txn, err := ParseTransaction("Here you go: {\"amount\": \"7.20\", \"category\": \"Transport\", \"paymentMethod\": \"Card\", \"type\": \"expense\", \"description\": \"bus\"} hope it helps")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("7.2").Equal(txn.Amount))
	assert.Equal(t, "Transport", txn.Category)

	_, err = ParseTransaction(`{"category": "Food"}`)
	var perr *domain.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, `{"category": "Food"}`, perr.Raw)

	_, err = ParseTransaction("I could not understand that")
	require.ErrorAs(t, err, &perr)
}

func TestPrettyReply(t *testing.T) {
	assert.Equal(t, "{\n    \"a\": 1\n}", PrettyReply(`{"a":1}`))
	assert.Equal(t, "plain words", PrettyReply("  plain words \n"))
}
