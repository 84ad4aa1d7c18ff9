package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

var (
	emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phoneRe = regexp.MustCompile(`\b\+?\d[\d\s\-]{7,}\d\b`)
)

// Fields that carry customer contact data inside webhook payloads and logs.
var sensitiveKeys = map[string]struct{}{
	"phone":    {},
	"email":    {},
	"address":  {},
	"customer": {},
}

// SetEnabled toggles PII redaction.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Enabled returns true when redaction is active.
func Enabled() bool {
	return enabled.Load()
}

// Text redacts emails and phone numbers when enabled.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := emailRe.ReplaceAllString(in, "[REDACTED_EMAIL]")
	out = phoneRe.ReplaceAllString(out, "[REDACTED_PHONE]")
	return out
}

// Map returns a copy of m with sensitive string values redacted. Nested maps
// under sensitive keys are replaced wholesale. Used when logging webhook
// payload fragments.
func Map(m map[string]any) map[string]any {
	if !enabled.Load() || len(m) == 0 {
		return m
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, sensitive := sensitiveKeys[strings.ToLower(k)]; sensitive {
			out[k] = "[REDACTED]"
			continue
		}
		switch tv := v.(type) {
		case string:
			out[k] = Text(tv)
		case map[string]any:
			out[k] = Map(tv)
		default:
			out[k] = v
		}
	}
	return out
}
