package domain

import (
	"fmt"
	"strings"
)

const (
	incomeGlyph  = "📥"
	expenseGlyph = "📤"
)

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// EscapeMarkdown escapes the legacy Markdown entities so arbitrary text
// cannot break message parsing.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatTransaction renders the chat summary shown under the approval buttons.
// Field values come from the model and the reference sheet, so they are
// escaped; only the amount line carries markup.
func FormatTransaction(t Transaction, currency string) string {
	glyph := expenseGlyph
	if t.IsIncome() {
		glyph = incomeGlyph
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s%s*\n", glyph, t.Amount.String(), EscapeMarkdown(currency))
	fmt.Fprintf(&b, "🏷️ %s\n", EscapeMarkdown(t.Category))
	fmt.Fprintf(&b, "💳 %s\n", EscapeMarkdown(t.PaymentMethod))
	fmt.Fprintf(&b, "💭 %s", EscapeMarkdown(t.Description))
	return b.String()
}
