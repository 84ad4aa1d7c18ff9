package parser

import (
	"encoding/json"
	"strings"
)

// Thinking mirrors the contract's nested reasoning block.
type Thinking struct {
	Intent    string `json:"intent"`
	Persona   string `json:"persona"`
	Reasoning string `json:"reasoning"`
}

// StructuredResponse is the parsed form of one LLM completion. FinalAnswer is
// always non-empty; when parsing fails entirely it carries the raw text and
// Fallback is set.
type StructuredResponse struct {
	Thinking    Thinking       `json:"thinking"`
	FinalAnswer string         `json:"final_answer"`
	WebhookData map[string]any `json:"webhook_data,omitempty"`
	Fallback    bool           `json:"-"`
}

// Intent returns the declared intent, preferring the thinking block over the
// top-level field, defaulting to "unknown".
func (r StructuredResponse) Intent() string {
	if in := strings.TrimSpace(r.Thinking.Intent); in != "" {
		return in
	}
	return "unknown"
}

type rawEnvelope struct {
	Thinking    Thinking       `json:"thinking"`
	Intent      string         `json:"intent"`
	FinalAnswer string         `json:"final_answer"`
	WebhookData map[string]any `json:"webhook_data"`
}

// Parse extracts a StructuredResponse from raw model output. It never fails:
// unusable input degrades to a fallback response wrapping the raw text.
func Parse(raw string) StructuredResponse {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback("...")
	}

	candidate, ok := extractJSONBlock(trimmed)
	if !ok {
		// No fence; maybe the whole response is the object.
		if strings.HasPrefix(trimmed, "{") {
			candidate = trimmed
		} else {
			return fallback(trimmed)
		}
	}

	env, err := decode(candidate)
	if err != nil {
		repaired := RepairTruncated(candidate)
		if repaired == candidate {
			return fallback(trimmed)
		}
		env, err = decode(repaired)
		if err != nil {
			return fallback(trimmed)
		}
	}
	return finalize(env, trimmed)
}

func decode(candidate string) (rawEnvelope, error) {
	var env rawEnvelope
	dec := json.NewDecoder(strings.NewReader(candidate))
	if err := dec.Decode(&env); err != nil {
		return rawEnvelope{}, err
	}
	return env, nil
}

func finalize(env rawEnvelope, raw string) StructuredResponse {
	out := StructuredResponse{
		Thinking:    env.Thinking,
		FinalAnswer: strings.TrimSpace(env.FinalAnswer),
		WebhookData: env.WebhookData,
	}
	if out.Thinking.Intent == "" && env.Intent != "" {
		out.Thinking.Intent = env.Intent
	}
	if out.FinalAnswer == "" {
		// The answer must never be empty, even for a structurally valid but
		// hollow payload.
		out.FinalAnswer = raw
		out.Fallback = true
	}
	return out
}

func fallback(raw string) StructuredResponse {
	return StructuredResponse{
		Thinking:    Thinking{Intent: "unknown"},
		FinalAnswer: raw,
		Fallback:    true,
	}
}

// extractJSONBlock pulls the contents of the first fenced code block that
// looks like a JSON object.
func extractJSONBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop a language tag like "json" on the fence line.
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || !strings.HasPrefix(firstLine, "{") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "{") {
		return "", false
	}
	return rest, true
}
