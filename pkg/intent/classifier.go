package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rahmatgani/aruna/pkg/errorsx"
	"github.com/rahmatgani/aruna/pkg/llm"
	"github.com/rahmatgani/aruna/pkg/redact"
	"github.com/rahmatgani/aruna/pkg/session"
)

// Classifier combines the pattern scorer with an LLM classification call and
// reconciles disagreement. Classify never returns an error to the caller;
// every failure path degrades to Information with confidence 0.5.
type Classifier struct {
	scorer  *PatternScorer
	adapter llm.Adapter
	logger  *slog.Logger
	timeout time.Duration
	window  int
}

type ClassifierOption func(*Classifier)

func WithTimeout(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHistoryWindow(n int) ClassifierOption {
	return func(c *Classifier) {
		if n > 0 {
			c.window = n
		}
	}
}

func NewClassifier(adapter llm.Adapter, logger *slog.Logger, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		scorer:  NewPatternScorer(),
		adapter: adapter,
		logger:  logger,
		timeout: 3 * time.Second,
		window:  6,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

type llmVerdict struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Reasoning  string            `json:"reasoning"`
	Hints      map[string]string `json:"hints"`
}

// Classify resolves the message intent using both phases.
func (c *Classifier) Classify(ctx context.Context, message, industry string, history []session.Turn) Result {
	patternIntent, patternScore := c.scorer.Score(message, industry)

	verdict, err := c.askLLM(ctx, message, industry, history)
	if err != nil {
		c.logger.Warn("intent_llm_failed", "reason", errorsx.Reason(err), "error", err)
		if patternScore > 0.7 {
			return Result{
				Intent:     patternIntent,
				Confidence: patternScore,
				Reasoning:  "pattern match; llm unavailable",
			}
		}
		return Result{
			Intent:     Information,
			Confidence: 0.5,
			Reasoning:  fmt.Sprintf("llm classification failed: %v", err),
		}
	}

	llmIntent := Normalize(verdict.Intent)
	if llmIntent == Unknown {
		llmIntent = Information
	}
	llmConf := verdict.Confidence
	if llmConf <= 0 || llmConf > 1 {
		llmConf = 0.5
	}

	switch {
	case llmIntent == patternIntent:
		conf := llmConf
		if patternScore > conf {
			conf = patternScore
		}
		conf += 0.15
		if conf > 0.95 {
			conf = 0.95
		}
		return Result{Intent: llmIntent, Confidence: conf, Reasoning: verdict.Reasoning, Hints: verdict.Hints}
	case llmConf > patternScore+0.2:
		return Result{Intent: llmIntent, Confidence: llmConf, Reasoning: verdict.Reasoning, Hints: verdict.Hints}
	case patternScore > 0.7:
		return Result{Intent: patternIntent, Confidence: patternScore, Reasoning: "strong pattern match over llm disagreement"}
	default:
		conf := llmConf
		if conf < 0.5 {
			conf = 0.5
		}
		return Result{Intent: llmIntent, Confidence: conf, Reasoning: verdict.Reasoning, Hints: verdict.Hints}
	}
}

func (c *Classifier) askLLM(ctx context.Context, message, industry string, history []session.Turn) (llmVerdict, error) {
	if c.adapter == nil {
		return llmVerdict{}, fmt.Errorf("no llm adapter configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]llm.Message, 0, c.window+1)
	start := len(history) - c.window
	if start < 0 {
		start = 0
	}
	for _, turn := range history[start:] {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: message})

	resp, err := c.adapter.Generate(ctx, llm.Context{
		System:    classifierPrompt(industry),
		Messages:  messages,
		ForceJSON: true,
	})
	if err != nil {
		return llmVerdict{}, errorsx.Wrap(err, errorsx.ReasonIntentLLM)
	}
	var verdict llmVerdict
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text)), &verdict); err != nil {
		c.logger.Warn("intent_verdict_unparsable", "text", redact.Text(clip(resp.Text, 200)), "error", err)
		return llmVerdict{}, errorsx.Wrap(fmt.Errorf("unparsable verdict: %w", err), errorsx.ReasonIntentLLM)
	}
	if strings.TrimSpace(verdict.Intent) == "" {
		return llmVerdict{}, errorsx.Wrap(fmt.Errorf("empty intent in verdict"), errorsx.ReasonIntentLLM)
	}
	return verdict, nil
}

func classifierPrompt(industry string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You classify customer messages for a %s business.
Respond with ONLY valid JSON:
{"intent":"place_order|update_order|check_quantity|information","confidence":0.0-1.0,"reasoning":"...","hints":{"item_name":"...","order_code":"..."}}
Omit hint keys you cannot extract. If unsure, use "information" with low confidence.
`, industryLabel(industry)))
}

func industryLabel(industry string) string {
	industry = strings.TrimSpace(strings.ToLower(industry))
	if industry == "" {
		return "general"
	}
	return industry
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
