package upstream

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/arkamarket/checkout/internal/domain"
	"github.com/arkamarket/checkout/internal/platform/textutil"
)

// GenericErrorMessage is the fallback shown when an upstream error body
// cannot be interpreted at all.
const GenericErrorMessage = "unknown server error"

// stockVocabulary lists substrings that mark a stock or availability
// failure. The order service mixes English and Persian wording, so both
// appear here; matching is case-insensitive after digit folding.
var stockVocabulary = []string{
	"out of stock",
	"insufficient stock",
	"not available",
	"unavailable",
	"stock",
	"موجودی",
	"ناموجود",
	"موجود نیست",
	"اتمام",
}

// Normalize flattens an arbitrary upstream error body into one
// human-readable message plus a coarse kind. Resolution order, first
// match wins: string, array join, detail, message, non_field_errors,
// per-field aggregation, raw JSON dump, generic fallback. It never
// fails; garbage input yields the generic message.
func Normalize(raw []byte) (string, domain.ErrorKind) {
	message := normalizeMessage(raw)
	return message, KindFromMessage(message)
}

// KindFromMessage classifies a normalized message by vocabulary lookup.
func KindFromMessage(message string) domain.ErrorKind {
	folded := strings.ToLower(textutil.FoldDigits(message))
	for _, term := range stockVocabulary {
		if strings.Contains(folded, term) {
			return domain.ErrorKindOutOfStock
		}
	}
	return domain.ErrorKindGeneric
}

func normalizeMessage(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return GenericErrorMessage
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// Upstream occasionally returns bare text bodies.
		return trimmed
	}

	switch v := decoded.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
		return GenericErrorMessage
	case []any:
		if joined := joinEntries(v); joined != "" {
			return joined
		}
	case map[string]any:
		if msg := objectMessage(v); msg != "" {
			return msg
		}
	}

	if dump := compactDump(raw); dump != "" {
		return dump
	}
	return GenericErrorMessage
}

func objectMessage(obj map[string]any) string {
	if msg := entryText(obj["detail"]); msg != "" {
		return msg
	}
	if msg := entryText(obj["message"]); msg != "" {
		return msg
	}
	if msg := entryText(obj["non_field_errors"]); msg != "" {
		return msg
	}
	return fieldErrors(obj)
}

// fieldErrors aggregates Django-style per-field error maps into
// "field: m1, m2" segments joined with " | ". Keys are sorted so the
// output is deterministic.
func fieldErrors(obj map[string]any) string {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		switch key {
		case "detail", "message", "non_field_errors":
			continue
		}
		msg := entryText(obj[key])
		if msg == "" {
			continue
		}
		// Per-field messages are comma-joined, fields pipe-joined.
		msg = strings.ReplaceAll(msg, " | ", ", ")
		parts = append(parts, key+": "+msg)
	}
	return strings.Join(parts, " | ")
}

// entryText renders one error entry: a plain string, an array of
// entries, or an object carrying message/detail.
func entryText(entry any) string {
	switch v := entry.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		return joinEntries(v)
	case map[string]any:
		if msg := strings.TrimSpace(asString(v["message"])); msg != "" {
			return msg
		}
		return strings.TrimSpace(asString(v["detail"]))
	default:
		return ""
	}
}

func joinEntries(entries []any) string {
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		if msg := entryText(entry); msg != "" {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, " | ")
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func compactDump(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return ""
	}
	dump := strings.TrimSpace(buf.String())
	if dump == "" || dump == "{}" || dump == "[]" || dump == "null" {
		return ""
	}
	return dump
}
