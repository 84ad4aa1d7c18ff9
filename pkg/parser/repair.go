package parser

import "strings"

// RepairTruncated attempts a best-effort recovery of a truncated JSON object.
//
// Supported malformations:
//   - output cut off between tokens (missing "}"/"]" closers)
//   - output cut off inside a string literal (the quote is closed first)
//   - a dangling "," or ":" before the cut
//
// The scan is string-aware, so braces inside string values do not skew the
// balance. Input that is damaged in other ways (interleaved prose, dropped
// opening brackets) is returned unchanged and the caller falls back to the
// raw text.
func RepairTruncated(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if len(stack) == 0 || stack[len(stack)-1] != '{' {
				return s
			}
			stack = stack[:len(stack)-1]
		case ']':
			if len(stack) == 0 || stack[len(stack)-1] != '[' {
				return s
			}
			stack = stack[:len(stack)-1]
		}
	}
	if !inString && len(stack) == 0 {
		return s
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		if escaped {
			// A lone trailing backslash would escape our closing quote.
			b.WriteByte('\\')
		}
		b.WriteByte('"')
	}
	trimmed := strings.TrimRight(b.String(), " \t\n\r")
	if strings.HasSuffix(trimmed, ",") {
		trimmed = strings.TrimSuffix(trimmed, ",")
	} else if strings.HasSuffix(trimmed, ":") {
		// "key": was cut before the value; null keeps the object valid.
		trimmed += " null"
	}
	b.Reset()
	b.WriteString(trimmed)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}
