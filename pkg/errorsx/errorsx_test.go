package errorsx

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonWebhookDeliver)
	if Reason(err) != ReasonWebhookDeliver {
		t.Fatalf("expected reason %s, got %s", ReasonWebhookDeliver, Reason(err))
	}
	if !HasReason(err, ReasonWebhookDeliver) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonRetrievalQuery)
	second := Wrap(first, ReasonLLMGenerate)
	if Reason(second) != ReasonRetrievalQuery {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonParsePayload) != nil {
		t.Fatalf("expected nil passthrough")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil error")
	}
}

func TestReasonedErrorLogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Error("delivery_failed", "error", Wrap(assertErr{}, ReasonWebhookDeliver))
	out := buf.String()
	if !strings.Contains(out, string(ReasonWebhookDeliver)) {
		t.Fatalf("expected reason code in log output, got %s", out)
	}
	if !strings.Contains(out, "boom") {
		t.Fatalf("expected error message in log output, got %s", out)
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
