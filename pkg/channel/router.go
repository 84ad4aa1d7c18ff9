package channel

import (
	"context"
	"log/slog"

	"github.com/rahmatgani/aruna/pkg/errorsx"
	"github.com/rahmatgani/aruna/pkg/metrics"
	"github.com/rahmatgani/aruna/pkg/resilience"
)

// Router holds the registered channel adapters and forwards finished
// replies to the right one. Forward failures never reach the end user;
// they are logged and counted.
type Router struct {
	forwarders map[string]Forwarder
	retry      resilience.RetryPolicy
	logger     *slog.Logger
	observer   metrics.Observer
}

func NewRouter(retry resilience.RetryPolicy, logger *slog.Logger, observer metrics.Observer) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		forwarders: make(map[string]Forwarder),
		retry:      retry,
		logger:     logger,
		observer:   observer,
	}
}

// Register binds an adapter to a channel name. Later registrations for the
// same name win.
func (r *Router) Register(channelName string, f Forwarder) {
	r.forwarders[channelName] = f
}

// ForwarderFor returns the adapter registered for the channel, if any.
func (r *Router) ForwarderFor(channelName string) (Forwarder, bool) {
	f, ok := r.forwarders[channelName]
	return f, ok
}

// Forward delivers the reply to its channel adapter with retries. A missing
// adapter is not an error for interactive channels; the caller already has
// the response on the wire.
func (r *Router) Forward(ctx context.Context, reply Reply) error {
	f, ok := r.forwarders[reply.Channel]
	if !ok {
		r.logger.Debug("no_forwarder_registered", "channel", reply.Channel)
		return nil
	}
	err := r.retry.Do(func() error {
		return f.Forward(ctx, reply)
	})
	if err != nil {
		metrics.Count(r.observer, "channel_forward_failed", map[string]string{"channel": reply.Channel})
		r.logger.Error("channel_forward_failed",
			"channel", reply.Channel,
			"adapter", f.Name(),
			"error", err)
		return errorsx.Wrap(err, errorsx.ReasonChannelSend)
	}
	metrics.Count(r.observer, "channel_forward_ok", map[string]string{"channel": reply.Channel})
	return nil
}
