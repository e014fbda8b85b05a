package transcribe

import (
	"bytes"
	"encoding/json"
	"strings"
)

// NormalizeReply reduces a speech model reply to plain text. It accepts a
// JSON string, an object carrying `text` or `transcript` (optionally wrapped
// in `response`), and otherwise returns the reply re-encoded as JSON.
// It never fails on a malformed-but-present reply.
func NormalizeReply(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return strings.TrimSpace(string(raw))
	}

	if obj, ok := v.(map[string]any); ok {
		if inner, ok := obj["response"]; ok && inner != nil {
			v = inner
		}
	}

	switch r := v.(type) {
	case string:
		return strings.TrimSpace(r)
	case map[string]any:
		for _, field := range []string{"text", "transcript"} {
			if s, ok := r[field].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	case nil:
		return ""
	}

	out, err := json.Marshal(v)
	if err != nil {
		return strings.TrimSpace(string(raw))
	}
	return string(out)
}

// NormalizeText applies NormalizeReply to a text reply that is a JSON string
// or object. Anything else, including bare JSON numbers and arrays, is
// spoken text and is returned trimmed.
func NormalizeText(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || (trimmed[0] != '"' && trimmed[0] != '{') || !json.Valid([]byte(trimmed)) {
		return trimmed
	}
	return NormalizeReply(json.RawMessage(trimmed))
}
