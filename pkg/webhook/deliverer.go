package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rahmatgani/aruna/pkg/errorsx"
	"github.com/rahmatgani/aruna/pkg/metrics"
	"github.com/rahmatgani/aruna/pkg/redact"
)

// Poster is the single-attempt transport boundary, satisfied by Client.
type Poster interface {
	Post(ctx context.Context, ev Event) (int, error)
}

// DeliveryResult is the terminal outcome of one event.
type DeliveryResult struct {
	Status    Status
	Attempts  int
	LastCode  int
	Err       error
	Durations []time.Duration
}

// RetryConfig bounds the delivery attempts.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Sleep       func(time.Duration)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 2 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	return c
}

// Deliverer drives one event to a terminal state with at-least-once
// semantics: bounded attempts, exponential backoff, and immediate failure on
// non-retryable status classes.
type Deliverer struct {
	poster Poster
	cfg    RetryConfig
	logger *slog.Logger
	obs    metrics.Observer
}

func NewDeliverer(poster Poster, cfg RetryConfig, logger *slog.Logger, obs metrics.Observer) *Deliverer {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Deliverer{poster: poster, cfg: cfg.withDefaults(), logger: logger, obs: obs}
}

// Deliver attempts the event until delivered, permanently rejected, or
// attempts are exhausted.
func (d *Deliverer) Deliver(ctx context.Context, ev Event) DeliveryResult {
	res := DeliveryResult{Status: StatusCreated}
	delay := d.cfg.BaseDelay
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			res.Status = StatusFailed
			res.Err = errorsx.Wrap(ctx.Err(), errorsx.ReasonWebhookDeliver)
			return res
		}
		ev.Attempts = attempt
		res.Attempts = attempt
		res.Status = StatusAttempted

		code, err := d.poster.Post(ctx, ev)
		res.LastCode = code
		res.Err = err
		metrics.Count(d.obs, "webhook_attempt", map[string]string{
			"event": string(ev.Type), "tenant_id": ev.TenantID,
		})
		if err == nil {
			res.Status = StatusDelivered
			d.logger.Info("webhook_delivered",
				"event", ev.Type, "event_id", ev.ID, "attempts", attempt)
			return res
		}

		if !Retryable(code) {
			res.Status = StatusFailed
			res.Err = errorsx.Wrap(err, errorsx.ReasonWebhookRejected)
			d.logger.Warn("webhook_rejected",
				"event", ev.Type, "event_id", ev.ID, "status", code, "error", err)
			return res
		}

		if attempt == d.cfg.MaxAttempts {
			break
		}
		res.Status = StatusRetried
		ev.NextRetry = time.Now().Add(delay)
		d.logger.Warn("webhook_retrying",
			"event", ev.Type, "event_id", ev.ID, "attempt", attempt, "status", code, "delay", delay)
		res.Durations = append(res.Durations, delay)
		d.cfg.Sleep(delay)
		delay *= 2
		if delay > d.cfg.MaxDelay {
			delay = d.cfg.MaxDelay
		}
	}

	res.Status = StatusFailed
	res.Err = errorsx.Wrap(res.Err, errorsx.ReasonWebhookExhausted)
	d.logger.Error("webhook_failed_permanently",
		"event", ev.Type, "event_id", ev.ID, "attempts", res.Attempts, "error", res.Err,
		"payload", redact.Map(ev.Payload))
	metrics.Count(d.obs, "webhook_failed", map[string]string{
		"event": string(ev.Type), "tenant_id": ev.TenantID,
	})
	return res
}

// Retryable classifies a status code. Transport errors (code 0), 429 and 5xx
// are retried; any other 4xx is a permanent rejection.
func Retryable(code int) bool {
	if code == 0 {
		return true
	}
	if code == http.StatusTooManyRequests {
		return true
	}
	if code >= 400 && code < 500 {
		return false
	}
	return code >= 500
}
