package engine

import (
	"log/slog"
	"time"

	"github.com/rahmatgani/aruna/pkg/channel"
	"github.com/rahmatgani/aruna/pkg/intent"
	"github.com/rahmatgani/aruna/pkg/language"
	"github.com/rahmatgani/aruna/pkg/llm"
	"github.com/rahmatgani/aruna/pkg/metrics"
	"github.com/rahmatgani/aruna/pkg/order"
	"github.com/rahmatgani/aruna/pkg/parser"
	"github.com/rahmatgani/aruna/pkg/prompt"
	"github.com/rahmatgani/aruna/pkg/resilience"
	"github.com/rahmatgani/aruna/pkg/retrieval"
	"github.com/rahmatgani/aruna/pkg/session"
	"github.com/rahmatgani/aruna/pkg/tenant"
	"github.com/rahmatgani/aruna/pkg/webhook"
)

// Request is one inbound user message with its addressing context.
type Request struct {
	TenantID  string
	UserID    string
	DeviceID  string
	SessionID string
	Channel   string
	// ReplyTo is the relay destination address (phone number, chat id).
	ReplyTo string
	Message string
}

// Reply is the finished outcome of one turn.
type Reply struct {
	Text     string
	Response parser.StructuredResponse
	Language language.Result
	Intent   intent.Result
	Decision order.Decision
}

// Deps are the engine's collaborators. All are required except Dispatcher,
// Router and Observer, which degrade to no-ops when nil.
type Deps struct {
	Detector   *language.Detector
	Classifier *intent.Classifier
	Retriever  *retrieval.Retriever
	Assembler  *prompt.Assembler
	Adapter    llm.Adapter
	Tracker    *order.Tracker
	Store      session.Store
	Profiles   tenant.ProfileProvider
	Inventory  tenant.InventoryProvider
	Dispatcher *webhook.Dispatcher
	Router     *channel.Router
	Breaker    *resilience.CircuitBreaker
	Retry      llm.RetryConfig
	Logger     *slog.Logger
	Observer   metrics.Observer
}

// Engine runs the per-turn pipeline: understand, retrieve, generate, gate,
// persist, notify.
type Engine struct {
	deps Deps
}

func New(deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Breaker == nil {
		deps.Breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	if deps.Tracker == nil {
		deps.Tracker = order.NewTracker()
	}
	return &Engine{deps: deps}
}
