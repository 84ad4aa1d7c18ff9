package webhook

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rahmatgani/aruna/pkg/errorsx"
	"github.com/rahmatgani/aruna/pkg/metrics"
	"github.com/rahmatgani/aruna/pkg/redact"
)

// Sequence is one turn's deliveries. The conversation event must reach a
// terminal state before the business event is attempted; if the conversation
// event exhausts its retries the business event is still sent, logged as
// unlinked, because losing the order is worse than losing the linkage.
type Sequence struct {
	Conversation *Event
	Business     *Event
}

// DispatcherOptions sizes the background delivery pool.
type DispatcherOptions struct {
	Workers   int
	QueueSize int
	// OnResult, when set, observes every terminal delivery. Used by tests
	// and the engine's bookkeeping.
	OnResult func(Event, DeliveryResult)
}

// Dispatcher consumes a bounded queue of sequences with a small worker pool,
// keeping retry/backoff waits off the user-facing response path.
type Dispatcher struct {
	deliverer *Deliverer
	queue     chan Sequence
	opts      DispatcherOptions
	logger    *slog.Logger
	obs       metrics.Observer

	wg sync.WaitGroup

	// mu orders Enqueue sends against Close: the channel must never be
	// closed while a send is in flight.
	mu     sync.Mutex
	closed bool
}

func NewDispatcher(deliverer *Deliverer, opts DispatcherOptions, logger *slog.Logger, obs metrics.Observer) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	d := &Dispatcher{
		deliverer: deliverer,
		queue:     make(chan Sequence, opts.QueueSize),
		opts:      opts,
		logger:    logger,
		obs:       obs,
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue schedules a sequence without blocking. A full queue is reported,
// not waited on; the caller decides whether to drop or retry.
func (d *Dispatcher) Enqueue(seq Sequence) error {
	if seq.Conversation == nil && seq.Business == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errorsx.Wrap(errClosed, errorsx.ReasonChannelClosed)
	}
	select {
	case d.queue <- seq:
		return nil
	default:
		metrics.Count(d.obs, "webhook_queue_full", nil)
		return errorsx.Wrap(errQueueFull, errorsx.ReasonWebhookQueueFull)
	}
}

// Close stops intake and waits for in-flight sequences to reach terminal
// states. Scheduled work always completes, client disconnects included.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for seq := range d.queue {
		d.process(seq)
	}
}

func (d *Dispatcher) process(seq Sequence) {
	// Detached from any request context: durability over responsiveness.
	ctx := context.Background()

	linked := true
	if seq.Conversation != nil {
		res := d.deliverer.Deliver(ctx, *seq.Conversation)
		d.report(*seq.Conversation, res)
		linked = res.Status == StatusDelivered
	}
	if seq.Business == nil {
		return
	}
	if !linked {
		d.logger.Warn("business_event_sent_without_conversation_linkage",
			"event", seq.Business.Type, "event_id", seq.Business.ID, "tenant_id", seq.Business.TenantID,
			"payload", redact.Map(seq.Business.Payload))
	}
	res := d.deliverer.Deliver(ctx, *seq.Business)
	d.report(*seq.Business, res)
}

func (d *Dispatcher) report(ev Event, res DeliveryResult) {
	if d.opts.OnResult != nil {
		d.opts.OnResult(ev, res)
	}
}

var (
	errQueueFull = queueError("webhook queue full")
	errClosed    = queueError("webhook dispatcher closed")
)

type queueError string

func (e queueError) Error() string { return string(e) }
