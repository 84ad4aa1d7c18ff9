package webhook

import (
	"time"

	"github.com/google/uuid"
)

// EventType names the business meaning of a delivery.
type EventType string

const (
	ConversationCreated EventType = "conversation.created"
	ConversationUpdated EventType = "conversation.updated"
	OrderCreated        EventType = "order.created"
	OrderUpdated        EventType = "order.updated"
	QuantityCheck       EventType = "quantity.check"
)

// Conversation reports whether the event is a conversation-lifecycle event,
// which must reach a terminal state before any dependent business event is
// attempted.
func (t EventType) Conversation() bool {
	return t == ConversationCreated || t == ConversationUpdated
}

// Status is the delivery lifecycle of one event.
type Status string

const (
	StatusCreated   Status = "created"
	StatusAttempted Status = "attempted"
	StatusDelivered Status = "delivered"
	StatusRetried   Status = "retried"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further attempts will be made.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// Event is one typed payload bound for the external system of record.
type Event struct {
	ID       string
	Type     EventType
	TenantID string
	Payload  map[string]any
	// Attempts and NextRetry are stamped by the Deliverer before each
	// attempt, so receivers can distinguish retries from fresh deliveries.
	Attempts  int
	NextRetry time.Time
	CreatedAt time.Time
}

// NewEvent stamps identity and creation time onto a payload.
func NewEvent(t EventType, tenantID string, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		TenantID:  tenantID,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}
