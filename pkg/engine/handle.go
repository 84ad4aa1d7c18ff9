package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rahmatgani/aruna/pkg/channel"
	"github.com/rahmatgani/aruna/pkg/errorsx"
	"github.com/rahmatgani/aruna/pkg/intent"
	"github.com/rahmatgani/aruna/pkg/language"
	"github.com/rahmatgani/aruna/pkg/llm"
	"github.com/rahmatgani/aruna/pkg/metrics"
	"github.com/rahmatgani/aruna/pkg/order"
	"github.com/rahmatgani/aruna/pkg/parser"
	"github.com/rahmatgani/aruna/pkg/prompt"
	"github.com/rahmatgani/aruna/pkg/retrieval"
	"github.com/rahmatgani/aruna/pkg/session"
	"github.com/rahmatgani/aruna/pkg/tenant"
	"github.com/rahmatgani/aruna/pkg/webhook"
)

var (
	errEmptyMessage = errors.New("empty message")
	errNoTenant     = errors.New("tenant id required")
	errCircuitOpen  = errors.New("llm circuit open")
)

// turnContext is the fan-in result of one request's understanding phase.
type turnContext struct {
	key       session.Key
	firstTurn bool
	history   []session.Turn
	lang      language.Result
	intent    intent.Result
	profile   tenant.Profile
	inventory []tenant.InventoryItem
	passages  retrieval.Result
}

// Handle runs one buffered turn: the completion is generated in full and the
// final payload is returned to the caller. Relay channels additionally get
// the reply forwarded before Handle returns.
func (e *Engine) Handle(ctx context.Context, req Request) (Reply, error) {
	started := time.Now()
	tc, err := e.understand(ctx, req)
	if err != nil {
		return Reply{}, err
	}

	lctx := e.assemble(req, tc)
	resp, genErr := e.complete(ctx, lctx)
	reply := e.conclude(ctx, req, tc, resp.Text, genErr)

	if channel.Classify(req.Channel) == channel.ModeRelay && e.deps.Router != nil {
		if err := e.deps.Router.Forward(ctx, e.channelReply(req, reply)); err != nil {
			e.deps.Logger.Error("relay_forward_failed", "channel", req.Channel, "error", err)
		}
	}

	metrics.Duration(e.deps.Observer, "turn_handled", time.Since(started), map[string]string{
		"tenant":  req.TenantID,
		"channel": req.Channel,
		"intent":  string(reply.Intent.Intent),
	})
	return reply, nil
}

// HandleStream runs one interactive turn: deltas are sent to sink as they
// arrive, followed by a done chunk with the parsed response. The structured
// summary is forwarded to the channel adapter asynchronously afterwards.
func (e *Engine) HandleStream(ctx context.Context, req Request, sink channel.StreamSink) (Reply, error) {
	started := time.Now()
	tc, err := e.understand(ctx, req)
	if err != nil {
		return Reply{}, err
	}

	lctx := e.assemble(req, tc)
	raw, genErr := e.streamComplete(ctx, lctx, sink)
	reply := e.conclude(ctx, req, tc, raw, genErr)

	if err := sink.Send(channel.Chunk{Type: channel.ChunkDone, Response: &reply.Response}); err != nil {
		e.deps.Logger.Warn("stream_done_send_failed", "error", err)
	}

	if e.deps.Router != nil {
		// The caller already has the answer; the summary forward must not
		// block them or die with their connection.
		go func() {
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			if err := e.deps.Router.Forward(fctx, e.channelReply(req, reply)); err != nil {
				e.deps.Logger.Error("summary_forward_failed", "channel", req.Channel, "error", err)
			}
		}()
	}

	metrics.Duration(e.deps.Observer, "turn_streamed", time.Since(started), map[string]string{
		"tenant":  req.TenantID,
		"channel": req.Channel,
		"intent":  string(reply.Intent.Intent),
	})
	return reply, nil
}

// understand validates the request, loads history and fans out the
// understanding phase: intent, retrieval and inventory run concurrently.
// Every branch has a safe default so a failed lookup degrades the answer
// instead of failing the turn.
func (e *Engine) understand(ctx context.Context, req Request) (turnContext, error) {
	if strings.TrimSpace(req.Message) == "" {
		return turnContext{}, errEmptyMessage
	}
	tc := turnContext{key: session.NewKey(req.TenantID, req.UserID, req.DeviceID, req.SessionID)}
	if !tc.key.Valid() {
		return turnContext{}, errNoTenant
	}

	count, err := e.deps.Store.Count(ctx, tc.key)
	if err != nil {
		e.deps.Logger.Warn("session_count_failed", "session", tc.key.String(), "error", err)
	}
	tc.firstTurn = count == 0

	tc.history, err = e.deps.Store.Get(ctx, tc.key)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		e.deps.Logger.Warn("session_read_failed", "session", tc.key.String(),
			"error", errorsx.Wrap(err, errorsx.ReasonSessionRead))
		tc.history = nil
	}

	tc.lang = e.deps.Detector.Detect(req.Message)

	tc.profile, err = e.deps.Profiles.Profile(ctx, req.TenantID)
	if err != nil {
		e.deps.Logger.Warn("tenant_profile_failed", "tenant", req.TenantID,
			"error", errorsx.Wrap(err, errorsx.ReasonTenantLookup))
		tc.profile = tenant.Profile{ID: req.TenantID}
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		tc.intent = e.deps.Classifier.Classify(ctx, req.Message, tc.profile.Industry, tc.history)
	}()
	go func() {
		defer wg.Done()
		tc.passages = e.deps.Retriever.Retrieve(ctx, req.TenantID, req.Message, retrieval.Options{
			Industry:        tc.profile.Industry,
			CorpusLanguages: tc.profile.CorpusLanguages,
			QueryLanguage:   tc.lang.Language,
		})
	}()
	go func() {
		defer wg.Done()
		items, err := e.deps.Inventory.Snapshot(ctx, req.TenantID)
		if err != nil {
			e.deps.Logger.Warn("inventory_snapshot_failed", "tenant", req.TenantID,
				"error", errorsx.Wrap(err, errorsx.ReasonTenantLookup))
			return
		}
		tc.inventory = items
	}()
	wg.Wait()
	return tc, nil
}

func (e *Engine) assemble(req Request, tc turnContext) llm.Context {
	return e.deps.Assembler.Assemble(prompt.Input{
		Profile:   tc.profile,
		Inventory: tc.inventory,
		Passages:  tc.passages,
		History:   tc.history,
		Message:   req.Message,
		Intent:    tc.intent.Intent,
		Language:  tc.lang.Language,
		Hints:     tc.intent.Hints,
	})
}

// complete generates the full completion behind the circuit breaker and the
// retry policy.
func (e *Engine) complete(ctx context.Context, lctx llm.Context) (llm.Response, error) {
	if !e.deps.Breaker.Allow() {
		metrics.Count(e.deps.Observer, "llm_circuit_open", nil)
		return llm.Response{}, errorsx.Wrap(errCircuitOpen, errorsx.ReasonLLMCircuit)
	}
	resp, err := llm.Retry(ctx, e.deps.Retry, func(ctx context.Context) (llm.Response, error) {
		return e.deps.Adapter.Generate(ctx, lctx)
	})
	if err != nil {
		e.deps.Breaker.OnError(err)
		return resp, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	e.deps.Breaker.OnSuccess()
	return resp, nil
}

// streamComplete streams the completion, relaying each delta to sink while
// accumulating the full text for parsing.
func (e *Engine) streamComplete(ctx context.Context, lctx llm.Context, sink channel.StreamSink) (string, error) {
	if !e.deps.Breaker.Allow() {
		metrics.Count(e.deps.Observer, "llm_circuit_open", nil)
		return "", errorsx.Wrap(errCircuitOpen, errorsx.ReasonLLMCircuit)
	}
	ch, err := e.deps.Adapter.Stream(ctx, lctx)
	if err != nil {
		e.deps.Breaker.OnError(err)
		return "", errorsx.Wrap(err, errorsx.ReasonLLMStream)
	}
	acc := channel.NewAccumulator()
	for tok := range ch {
		acc.AddToken(tok)
		if err := sink.Send(channel.Chunk{Type: channel.ChunkDelta, Content: tok}); err != nil {
			// Caller is gone. Keep draining so the turn still concludes.
			e.deps.Logger.Debug("stream_sink_closed", "error", err)
			sink = dropSink{}
		}
	}
	if acc.TokenCount() == 0 {
		if err := ctx.Err(); err != nil {
			return "", errorsx.Wrap(err, errorsx.ReasonLLMStream)
		}
		return "", errorsx.Wrap(errors.New("empty stream"), errorsx.ReasonLLMStream)
	}
	e.deps.Breaker.OnSuccess()
	return acc.String(), nil
}

// conclude turns the raw completion (or its absence) into the final reply,
// persists the turn and hands the webhook sequence to the dispatcher. It
// always produces a usable reply; generation failure degrades to an apology
// in the detected language.
func (e *Engine) conclude(ctx context.Context, req Request, tc turnContext, raw string, genErr error) Reply {
	var resp parser.StructuredResponse
	if genErr != nil {
		e.deps.Logger.Error("generation_failed", "tenant", req.TenantID, "error", genErr)
		metrics.Count(e.deps.Observer, "generation_failed", map[string]string{"tenant": req.TenantID})
		resp = apologyResponse(tc.lang.Language)
	} else {
		resp = parser.Parse(raw)
		if resp.Fallback {
			metrics.Count(e.deps.Observer, "parse_fallback", map[string]string{"tenant": req.TenantID})
		}
	}

	final := intent.Normalize(resp.Intent())
	if final == intent.Unknown {
		final = tc.intent.Intent
	}
	decision := e.deps.Tracker.Evaluate(final, resp.WebhookData)

	// Persistence is read-after-write: both turns are durable before the
	// handler returns, and a dropped client must not lose them.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	now := time.Now().UTC()
	err := e.deps.Store.Append(pctx, tc.key,
		session.Turn{Role: session.RoleUser, Content: req.Message, Timestamp: now, Intent: string(final), Language: tc.lang.Language},
		session.Turn{Role: session.RoleAssistant, Content: resp.FinalAnswer, Timestamp: now, Intent: string(final), Language: tc.lang.Language},
	)
	if err != nil {
		e.deps.Logger.Error("session_append_failed", "session", tc.key.String(),
			"error", errorsx.Wrap(err, errorsx.ReasonSessionAppend))
	}

	e.dispatch(req, tc, resp, decision, final)

	return Reply{
		Text:     resp.FinalAnswer,
		Response: resp,
		Language: tc.lang,
		Intent:   tc.intent,
		Decision: decision,
	}
}

// dispatch builds the turn's webhook sequence and enqueues it. The
// conversation event always fires; the business event only when the gate is
// ready.
func (e *Engine) dispatch(req Request, tc turnContext, resp parser.StructuredResponse, decision order.Decision, final intent.Intent) {
	if e.deps.Dispatcher == nil {
		return
	}
	info := webhook.ConversationInfo{
		ConversationID: tc.key.String(),
		SessionID:      req.SessionID,
		Channel:        req.Channel,
		Intent:         final,
		Thinking:       resp.Thinking,
		MessageCount:   len(tc.history) + 2,
		LastUserMsg:    req.Message,
		LastAIResponse: resp.FinalAnswer,
	}
	if decision.Order != nil {
		info.Customer = decision.Order.Customer
	}

	conv := webhook.ConversationEvent(req.TenantID, tc.firstTurn, info)
	seq := webhook.Sequence{Conversation: &conv}
	if decision.Ready() {
		var biz webhook.Event
		switch {
		case decision.Order != nil:
			biz = webhook.OrderCreatedEvent(req.TenantID, info, *decision.Order)
		case decision.Update != nil:
			biz = webhook.OrderUpdatedEvent(req.TenantID, *decision.Update)
		case decision.Check != nil:
			biz = webhook.QuantityCheckEvent(req.TenantID, info, *decision.Check)
		}
		if biz.Type != "" {
			seq.Business = &biz
		}
	}
	if err := e.deps.Dispatcher.Enqueue(seq); err != nil {
		e.deps.Logger.Error("webhook_enqueue_failed", "tenant", req.TenantID, "error", err)
	}
}

func (e *Engine) channelReply(req Request, reply Reply) channel.Reply {
	return channel.Reply{
		TenantID: req.TenantID,
		Channel:  req.Channel,
		To:       req.ReplyTo,
		Text:     reply.Text,
		Intent:   string(reply.Decision.Intent),
	}
}

type dropSink struct{}

func (dropSink) Send(channel.Chunk) error { return nil }
