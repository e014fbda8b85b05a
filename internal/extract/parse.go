package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
)

// ParseTransaction decodes a model reply into a Transaction. Markdown fences
// and prose around the JSON object are dropped first.
func ParseTransaction(raw string) (*domain.Transaction, error) {
	clean := cleanModelJSON(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(clean), &fields); err != nil {
		return nil, &domain.ParseError{What: "transaction", Raw: raw, Err: err}
	}
	if _, ok := fields["amount"]; !ok {
		return nil, &domain.ParseError{What: "transaction", Raw: raw, Err: errors.New("missing amount")}
	}

	var txn domain.Transaction
	if err := json.Unmarshal([]byte(clean), &txn); err != nil {
		return nil, &domain.ParseError{What: "transaction", Raw: raw, Err: err}
	}
	return &txn, nil
}

// PrettyReply renders an unparsed reply for display: valid JSON is
// re-indented with four spaces, anything else is returned trimmed.
func PrettyReply(raw string) string {
	trimmed := strings.TrimSpace(raw)
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(trimmed), "", "    "); err != nil {
		return trimmed
	}
	return out.String()
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost object if the model added prose around it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
