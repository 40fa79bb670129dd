// Package logging builds the process-wide structured logger (SPEC_FULL.md
// §4.11): log/slog with a JSON handler, as the teacher does in
// cmd/api/main.go, wrapped by a redacting handler that masks sensitive
// attributes before they reach any sink. spec.md §7 requires "sensitive
// payloads are scrubbed before any error is logged" — this is the one place
// that guarantee is enforced, rather than leaving every call site to
// remember not to log a buyer_secret or payment header.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// sensitiveKeys are masked wherever they appear as a top-level attribute
// key, case-insensitively. A handful of payment and capability-token
// headers are the only values spec.md explicitly calls out as sensitive.
var sensitiveKeys = map[string]struct{}{
	"secrets":            {},
	"buyer_secret":       {},
	"x-payment":          {},
	"x-payment-response": {},
}

const maskedValue = "***MASKED***"

// New builds the default JSON slog.Logger at the given level, wrapped with
// redaction. level is one of DEBUG/INFO/WARNING/ERROR/CRITICAL per spec.md
// §6; unrecognized values fall back to INFO.
func New(level string) *slog.Logger {
	base := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(&redactingHandler{next: base})
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redactingHandler wraps another slog.Handler, masking sensitive attribute
// values before delegating. It implements slog.Handler directly rather than
// via slog.Handler composition helpers, matching the shape of a simple
// decorator the teacher's middleware package already uses for wrapping
// http.Handler.
type redactingHandler struct {
	next  slog.Handler
	attrs []slog.Attr
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, record slog.Record) error {
	redacted := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	for _, a := range h.attrs {
		redacted.AddAttrs(redactAttr(a))
	}
	record.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, redacted)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		merged = append(merged, redactAttr(a))
	}
	return &redactingHandler{next: h.next, attrs: merged}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name), attrs: h.attrs}
}

func redactAttr(a slog.Attr) slog.Attr {
	if _, sensitive := sensitiveKeys[strings.ToLower(a.Key)]; sensitive {
		return slog.String(a.Key, maskedValue)
	}
	if a.Value.Kind() == slog.KindString {
		if scrubbed, changed := RedactJSON(a.Value.String()); changed {
			return slog.String(a.Key, scrubbed)
		}
	}
	return a
}

// RedactJSON scrubs sensitive keys in a JSON object logged as a single
// string attribute (e.g. a raw request body logged under a "body"
// attribute), using sjson to set masked values in place without a
// hand-rolled tree walker. Only the object's top-level keys are checked
// (in their lower-case, upper-case and first-letter-capitalized forms);
// objects nested inside it are not searched. It returns the input
// unchanged with changed=false if raw is not a JSON object or has none of
// those keys at its top level.
func RedactJSON(raw string) (scrubbed string, changed bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return raw, false
	}
	result := raw
	for key := range sensitiveKeys {
		if !strings.Contains(strings.ToLower(result), strings.ToLower(key)) {
			continue
		}
		for _, candidate := range []string{key, strings.ToUpper(key), titleCase(key)} {
			if !gjson.Get(result, candidate).Exists() {
				continue
			}
			if updated, err := sjson.Set(result, candidate, maskedValue); err == nil && updated != result {
				result = updated
				changed = true
			}
		}
	}
	return result, changed
}

// titleCase upper-cases the first byte of s, leaving the rest untouched.
// Sensitive keys here are plain ASCII identifiers, so this avoids reaching
// for the deprecated strings.Title for a single-character transform.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
