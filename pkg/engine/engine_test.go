package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rahmatgani/aruna/pkg/channel"
	"github.com/rahmatgani/aruna/pkg/intent"
	"github.com/rahmatgani/aruna/pkg/language"
	"github.com/rahmatgani/aruna/pkg/llm"
	"github.com/rahmatgani/aruna/pkg/metrics"
	"github.com/rahmatgani/aruna/pkg/prompt"
	"github.com/rahmatgani/aruna/pkg/providers/mock"
	"github.com/rahmatgani/aruna/pkg/resilience"
	"github.com/rahmatgani/aruna/pkg/retrieval"
	"github.com/rahmatgani/aruna/pkg/session"
	"github.com/rahmatgani/aruna/pkg/tenant"
	"github.com/rahmatgani/aruna/pkg/webhook"
)

type stubIndex struct {
	hits []retrieval.Hit
}

func (s *stubIndex) Search(ctx context.Context, tenantID, query string, limit int, threshold float64) ([]retrieval.Hit, error) {
	return s.hits, nil
}

type recordingPoster struct {
	mu    sync.Mutex
	types []webhook.EventType
}

func (p *recordingPoster) Post(ctx context.Context, ev webhook.Event) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, ev.Type)
	return 200, nil
}

func (p *recordingPoster) delivered() []webhook.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]webhook.EventType, len(p.types))
	copy(out, p.types)
	return out
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type harness struct {
	engine     *Engine
	store      *session.MemoryStore
	poster     *recordingPoster
	dispatcher *webhook.Dispatcher
}

func newHarness(t *testing.T, adapter llm.Adapter) *harness {
	t.Helper()
	store := session.NewMemoryStore(50)
	poster := &recordingPoster{}
	deliverer := webhook.NewDeliverer(poster, webhook.RetryConfig{MaxAttempts: 1, Sleep: func(time.Duration) {}}, discard(), nil)
	dispatcher := webhook.NewDispatcher(deliverer, webhook.DispatcherOptions{Workers: 1, QueueSize: 16}, discard(), nil)

	profiles := tenant.NewStaticProvider()
	profiles.SetProfile(tenant.Profile{ID: "t1", Name: "Kopi Gani", Industry: "retail", CorpusLanguages: []string{"en"}})
	profiles.SetInventory("t1", []tenant.InventoryItem{
		{SKU: "KG-01", Name: "Arabica beans", Price: 12, Currency: "USD", Available: 40, Unit: "bag"},
	})

	failLLM := mock.NewLLMAdapter(mock.LLMConfig{Err: errors.New("classifier offline")})
	eng := New(Deps{
		Detector:   language.NewDetector("en"),
		Classifier: intent.NewClassifier(failLLM, discard()),
		Retriever:  retrieval.NewRetriever(&stubIndex{hits: []retrieval.Hit{{Content: "We ship nationwide.", Score: 0.9, Kind: retrieval.KindDocument}}}, nil, discard()),
		Assembler:  prompt.NewAssembler(12),
		Adapter:    adapter,
		Store:      store,
		Profiles:   profiles,
		Inventory:  profiles,
		Dispatcher: dispatcher,
		Retry:      llm.RetryConfig{MaxAttempts: 1, Sleep: func(time.Duration) {}},
		Logger:     discard(),
	})
	return &harness{engine: eng, store: store, poster: poster, dispatcher: dispatcher}
}

const completeOrderJSON = `{
  "thinking": {"intent": "place_order", "persona": "helpful", "reasoning": "all fields present"},
  "final_answer": "Your order for 2 bags of Arabica beans is confirmed, Jane!",
  "webhook_data": {
    "order_data": {
      "complete": true,
      "customer": {"name": "Jane", "phone": "555-0100"},
      "items": [{"name": "Arabica beans", "quantity": 2}]
    }
  }
}`

func TestHandleCompleteOrderEmitsOneBusinessEvent(t *testing.T) {
	h := newHarness(t, mock.NewLLMAdapter(mock.LLMConfig{ResponseText: completeOrderJSON}))

	reply, err := h.engine.Handle(context.Background(), Request{
		TenantID: "t1", UserID: "u1", Channel: "widget",
		Message: "I want to order 2 bags of arabica beans. I'm Jane, 555-0100.",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(reply.Text, "confirmed") {
		t.Fatalf("unexpected reply text: %q", reply.Text)
	}
	if !reply.Decision.Ready() {
		t.Fatalf("expected order gate ready, got %+v", reply.Decision)
	}
	h.dispatcher.Close()

	types := h.poster.delivered()
	var created, business int
	for _, ty := range types {
		if ty == webhook.ConversationCreated {
			created++
		}
		if ty == webhook.OrderCreated {
			business++
		}
	}
	if created != 1 {
		t.Fatalf("expected one conversation.created, got %v", types)
	}
	if business != 1 {
		t.Fatalf("expected exactly one order.created, got %v", types)
	}
}

func TestHandleIncompleteOrderHoldsBusinessEvent(t *testing.T) {
	incomplete := `{
	  "thinking": {"intent": "place_order", "persona": "helpful", "reasoning": "missing contact"},
	  "final_answer": "Could you share your name and phone number?",
	  "webhook_data": {
	    "order_data": {"complete": false, "items": [{"name": "Arabica beans", "quantity": 2}]}
	  }
	}`
	h := newHarness(t, mock.NewLLMAdapter(mock.LLMConfig{ResponseText: incomplete}))

	reply, err := h.engine.Handle(context.Background(), Request{
		TenantID: "t1", UserID: "u1", Channel: "widget", Message: "2 bags of arabica please",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Decision.Ready() {
		t.Fatalf("expected collecting state, got %+v", reply.Decision)
	}
	h.dispatcher.Close()

	for _, ty := range h.poster.delivered() {
		if !ty.Conversation() {
			t.Fatalf("expected only conversation events, got %v", ty)
		}
	}
}

func TestHandlePersistsBothTurns(t *testing.T) {
	h := newHarness(t, mock.NewLLMAdapter(mock.LLMConfig{ResponseText: completeOrderJSON}))
	req := Request{TenantID: "t1", UserID: "u1", Channel: "widget", Message: "order please"}

	if _, err := h.engine.Handle(context.Background(), req); err != nil {
		t.Fatalf("handle: %v", err)
	}
	turns, err := h.store.Get(context.Background(), session.NewKey("t1", "u1", "", ""))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(turns))
	}
	if turns[0].Role != session.RoleUser || turns[1].Role != session.RoleAssistant {
		t.Fatalf("unexpected roles: %+v", turns)
	}
	h.dispatcher.Close()
}

func TestHandleSecondTurnIsConversationUpdated(t *testing.T) {
	h := newHarness(t, mock.NewLLMAdapter(mock.LLMConfig{ResponseText: completeOrderJSON}))
	req := Request{TenantID: "t1", UserID: "u1", Channel: "widget", Message: "hello"}

	if _, err := h.engine.Handle(context.Background(), req); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if _, err := h.engine.Handle(context.Background(), req); err != nil {
		t.Fatalf("second turn: %v", err)
	}
	h.dispatcher.Close()

	var updated bool
	for _, ty := range h.poster.delivered() {
		if ty == webhook.ConversationUpdated {
			updated = true
		}
	}
	if !updated {
		t.Fatalf("expected conversation.updated on second turn, got %v", h.poster.delivered())
	}
}

func TestHandleGenerationFailureApologizesInDetectedLanguage(t *testing.T) {
	h := newHarness(t, mock.NewLLMAdapter(mock.LLMConfig{Err: errors.New("provider down")}))

	reply, err := h.engine.Handle(context.Background(), Request{
		TenantID: "t1", UserID: "u1", Channel: "widget",
		Message: "saya mau pesan kopi dong, berapa harga yang ada?",
	})
	if err != nil {
		t.Fatalf("handle should degrade, not fail: %v", err)
	}
	if reply.Language.Language != "id" {
		t.Fatalf("expected indonesian detection, got %s", reply.Language.Language)
	}
	if reply.Text != apologies["id"] {
		t.Fatalf("expected indonesian apology, got %q", reply.Text)
	}
	if !reply.Response.Fallback {
		t.Fatalf("expected fallback response")
	}
	h.dispatcher.Close()

	// The conversation is still recorded even when generation fails.
	var conv int
	for _, ty := range h.poster.delivered() {
		if ty.Conversation() {
			conv++
		}
	}
	if conv != 1 {
		t.Fatalf("expected conversation event despite failure, got %v", h.poster.delivered())
	}
}

func TestHandleRecordsTurnMetric(t *testing.T) {
	h := newHarness(t, mock.NewLLMAdapter(mock.LLMConfig{ResponseText: completeOrderJSON}))
	obs := metrics.NewMemoryObserver()
	h.engine.deps.Observer = obs

	if _, err := h.engine.Handle(context.Background(), Request{
		TenantID: "t1", UserID: "u1", Channel: "widget", Message: "order 2 bags please",
	}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	h.dispatcher.Close()

	handled := obs.Named("turn_handled")
	if len(handled) != 1 {
		t.Fatalf("expected one turn_handled event, got %d", len(handled))
	}
	if handled[0].Tags["tenant"] != "t1" || handled[0].Tags["channel"] != "widget" {
		t.Fatalf("unexpected tags: %v", handled[0].Tags)
	}
	if handled[0].Value < 0 {
		t.Fatalf("expected non-negative latency, got %f", handled[0].Value)
	}
}

func TestHandleRejectsEmptyMessage(t *testing.T) {
	h := newHarness(t, mock.NewLLMAdapter(mock.LLMConfig{}))
	if _, err := h.engine.Handle(context.Background(), Request{TenantID: "t1", UserID: "u1", Message: "   "}); err == nil {
		t.Fatalf("expected error for empty message")
	}
	if _, err := h.engine.Handle(context.Background(), Request{Message: "hi"}); err == nil {
		t.Fatalf("expected error for missing tenant")
	}
	h.dispatcher.Close()
}

type chunkSink struct {
	mu     sync.Mutex
	chunks []channel.Chunk
}

func (s *chunkSink) Send(c channel.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, c)
	return nil
}

func (s *chunkSink) all() []channel.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]channel.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

func TestHandleStreamDeltasThenDone(t *testing.T) {
	parts := []string{}
	for i := 0; i < len(completeOrderJSON); i += 40 {
		end := i + 40
		if end > len(completeOrderJSON) {
			end = len(completeOrderJSON)
		}
		parts = append(parts, completeOrderJSON[i:end])
	}
	h := newHarness(t, mock.NewLLMAdapter(mock.LLMConfig{StreamChunks: parts}))

	sink := &chunkSink{}
	reply, err := h.engine.HandleStream(context.Background(), Request{
		TenantID: "t1", UserID: "u1", Channel: "widget", Message: "order 2 bags, Jane 555-0100",
	}, sink)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	h.dispatcher.Close()

	chunks := sink.all()
	if len(chunks) != len(parts)+1 {
		t.Fatalf("expected %d chunks, got %d", len(parts)+1, len(chunks))
	}
	var acc strings.Builder
	for _, c := range chunks[:len(chunks)-1] {
		if c.Type != channel.ChunkDelta {
			t.Fatalf("expected delta before done, got %s", c.Type)
		}
		acc.WriteString(c.Content)
	}
	last := chunks[len(chunks)-1]
	if last.Type != channel.ChunkDone || last.Response == nil {
		t.Fatalf("expected terminal done chunk with response, got %+v", last)
	}
	if acc.String() != completeOrderJSON {
		t.Fatalf("streamed text does not reassemble the completion")
	}
	if last.Response.FinalAnswer != reply.Text {
		t.Fatalf("done chunk and reply disagree")
	}
	if !reply.Decision.Ready() {
		t.Fatalf("expected ready decision from streamed completion")
	}
}

func TestHandleStreamSinkFailureStillConcludes(t *testing.T) {
	h := newHarness(t, mock.NewLLMAdapter(mock.LLMConfig{StreamChunks: []string{completeOrderJSON}}))

	_, err := h.engine.HandleStream(context.Background(), Request{
		TenantID: "t1", UserID: "u1", Channel: "widget", Message: "order please",
	}, failingSink{})
	if err != nil {
		t.Fatalf("expected turn to conclude despite dead sink: %v", err)
	}
	turns, err := h.store.Get(context.Background(), session.NewKey("t1", "u1", "", ""))
	if err != nil || len(turns) != 2 {
		t.Fatalf("expected persisted turns after sink failure, got %v %v", turns, err)
	}
	h.dispatcher.Close()
}

type failingSink struct{}

func (failingSink) Send(channel.Chunk) error { return errors.New("client gone") }

func TestHandleRelayForwardsSynchronously(t *testing.T) {
	h := newHarness(t, mock.NewLLMAdapter(mock.LLMConfig{ResponseText: completeOrderJSON}))
	fwd := &captureForwarder{}
	router := channelRouter(fwd)
	h.engine.deps.Router = router

	reply, err := h.engine.Handle(context.Background(), Request{
		TenantID: "t1", UserID: "u1", Channel: "whatsapp", ReplyTo: "+628111", Message: "pesan 2 bags",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(fwd.replies) != 1 {
		t.Fatalf("expected synchronous relay forward, got %d", len(fwd.replies))
	}
	if fwd.replies[0].To != "+628111" || fwd.replies[0].Text != reply.Text {
		t.Fatalf("unexpected forwarded reply: %+v", fwd.replies[0])
	}
	h.dispatcher.Close()
}

type captureForwarder struct {
	mu      sync.Mutex
	replies []channel.Reply
}

func (c *captureForwarder) Name() string { return "capture" }

func (c *captureForwarder) Forward(ctx context.Context, reply channel.Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, reply)
	return nil
}

func channelRouter(f channel.Forwarder) *channel.Router {
	r := channel.NewRouter(resilience.RetryPolicy{MaxRetries: 1, Sleep: func(time.Duration) {}}, discard(), nil)
	r.Register("whatsapp", f)
	return r
}
