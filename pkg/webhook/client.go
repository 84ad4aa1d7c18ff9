package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rahmatgani/aruna/pkg/errorsx"
)

const (
	// HeaderSignature carries "v1=<hex hmac-sha256>" over "<timestamp>:<body>".
	HeaderSignature = "X-Aruna-Signature"
	HeaderTimestamp = "X-Aruna-Timestamp"
	HeaderEventType = "X-Aruna-Event"
	HeaderEventID   = "X-Aruna-Delivery"
	HeaderAttempt   = "X-Aruna-Attempt"
)

// Client posts signed events to the external endpoint. One call, one attempt;
// retry policy lives in the Deliverer.
type Client struct {
	endpoint string
	secret   string
	http     *http.Client
	now      func() time.Time
}

func NewClient(endpoint, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		secret:   secret,
		http:     &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

// Post sends one attempt. The returned status code is zero for transport
// errors.
func (c *Client) Post(ctx context.Context, ev Event) (int, error) {
	body, err := json.Marshal(map[string]any{
		"event":     string(ev.Type),
		"eventId":   ev.ID,
		"tenantId":  ev.TenantID,
		"timestamp": ev.CreatedAt.UTC().Format(time.RFC3339),
		"data":      ev.Payload,
	})
	if err != nil {
		return 0, errorsx.Wrap(err, errorsx.ReasonWebhookDeliver)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, errorsx.Wrap(err, errorsx.ReasonWebhookDeliver)
	}
	ts := strconv.FormatInt(c.now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, Sign(c.secret, ts, body))
	req.Header.Set(HeaderEventType, string(ev.Type))
	req.Header.Set(HeaderEventID, ev.ID)
	if ev.Attempts > 0 {
		req.Header.Set(HeaderAttempt, strconv.Itoa(ev.Attempts))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errorsx.Wrap(err, errorsx.ReasonWebhookDeliver)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, errorsx.Wrap(
		fmt.Errorf("endpoint returned %d", resp.StatusCode), errorsx.ReasonWebhookDeliver)
}

// Sign computes the shared-secret signature for a request body.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte(":"))
	_, _ = mac.Write(body)
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature validates a received signature, for endpoint implementations
// and tests.
func VerifySignature(secret, signature, timestamp string, body []byte) bool {
	expected := Sign(secret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
