package webhook

import (
	"github.com/rahmatgani/aruna/pkg/intent"
	"github.com/rahmatgani/aruna/pkg/order"
	"github.com/rahmatgani/aruna/pkg/parser"
)

// ConversationInfo is the turn context shared by all payload builders.
type ConversationInfo struct {
	ConversationID string
	SessionID      string
	Channel        string
	Intent         intent.Intent
	Thinking       parser.Thinking
	Customer       order.Customer
	MessageCount   int
	LastUserMsg    string
	LastAIResponse string
}

// ConversationEvent builds conversation.created for a session's first turn
// and conversation.updated afterwards.
func ConversationEvent(tenantID string, firstTurn bool, info ConversationInfo) Event {
	t := ConversationUpdated
	if firstTurn {
		t = ConversationCreated
	}
	return NewEvent(t, tenantID, map[string]any{
		"conversationId": info.ConversationID,
		"sessionId":      info.SessionID,
		"channel":        info.Channel,
		"intent":         string(info.Intent),
		"userInfo":       customerMap(info.Customer),
		"thinking": map[string]any{
			"intent":    info.Thinking.Intent,
			"persona":   info.Thinking.Persona,
			"reasoning": info.Thinking.Reasoning,
		},
		"messageCount":    info.MessageCount,
		"lastUserMessage": info.LastUserMsg,
		"lastAiResponse":  info.LastAIResponse,
	})
}

// OrderCreatedEvent builds the order.created payload from a ready draft.
func OrderCreatedEvent(tenantID string, info ConversationInfo, data order.OrderData) Event {
	items := make([]map[string]any, 0, len(data.Items))
	for _, item := range data.Items {
		items = append(items, map[string]any{
			"name":     item.Name,
			"quantity": item.Quantity,
			"price":    item.Price,
			"notes":    item.Notes,
		})
	}
	return NewEvent(OrderCreated, tenantID, map[string]any{
		"conversationId": info.ConversationID,
		"customer":       customerMap(data.Customer),
		"items":          items,
		"channel":        info.Channel,
		"payment":        map[string]any{"method": data.Payment.Method},
		"delivery": map[string]any{
			"address": data.Delivery.Address,
			"method":  data.Delivery.Method,
			"time":    data.Delivery.Time,
		},
		"notes":    data.Notes,
		"metadata": data.Metadata,
	})
}

// OrderUpdatedEvent builds the PUT-style order.updated payload keyed by order
// code.
func OrderUpdatedEvent(tenantID string, data order.UpdateData) Event {
	return NewEvent(OrderUpdated, tenantID, map[string]any{
		"orderCode":  data.OrderCode,
		"updateType": data.UpdateType,
		"changes":    data.Changes,
		"customer":   customerMap(data.Customer),
		"notes":      data.Notes,
		"complete":   data.Complete,
	})
}

// QuantityCheckEvent builds the quantity.check payload for a manual
// inventory check consented to by the customer.
func QuantityCheckEvent(tenantID string, info ConversationInfo, data order.CheckQuantityData) Event {
	metadata := map[string]any{"requestedQuantity": data.RequestedQuantity}
	for k, v := range data.Specifications {
		metadata[k] = v
	}
	return NewEvent(QuantityCheck, tenantID, map[string]any{
		"companyId": tenantID,
		"itemName":  data.ItemName,
		"customer":  customerMap(data.Customer),
		"channel":   info.Channel,
		"metadata":  metadata,
	})
}

func customerMap(c order.Customer) map[string]any {
	return map[string]any{
		"name":    c.Name,
		"phone":   c.Phone,
		"email":   c.Email,
		"address": c.Address,
	}
}
