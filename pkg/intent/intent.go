package intent

import "strings"

// Intent is the resolved purpose of one inbound message.
type Intent string

const (
	PlaceOrder    Intent = "place_order"
	UpdateOrder   Intent = "update_order"
	CheckQuantity Intent = "check_quantity"
	Information   Intent = "information"
	Unknown       Intent = "unknown"
)

// Business reports whether the intent can produce a side-effecting webhook.
func (i Intent) Business() bool {
	switch i {
	case PlaceOrder, UpdateOrder, CheckQuantity:
		return true
	}
	return false
}

// Normalize maps free-form LLM intent strings onto the known enum,
// case-insensitively.
func Normalize(raw string) Intent {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch Intent(raw) {
	case PlaceOrder, UpdateOrder, CheckQuantity, Information:
		return Intent(raw)
	}
	switch raw {
	case "order", "create_order", "new_order":
		return PlaceOrder
	case "modify_order", "change_order", "cancel_order":
		return UpdateOrder
	case "stock", "availability", "quantity", "stock_check":
		return CheckQuantity
	case "question", "faq", "info", "general":
		return Information
	}
	return Unknown
}

// Result is the reconciled classification outcome.
type Result struct {
	Intent     Intent
	Confidence float64
	Reasoning  string
	// Hints are structured fragments the LLM extracted alongside the intent
	// (item names, order codes) that downstream prompt assembly can use.
	Hints map[string]string
}
