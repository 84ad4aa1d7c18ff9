package order

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/rahmatgani/aruna/pkg/intent"
)

// State of an intent's draft within the current turn.
type State string

const (
	StateCollecting State = "collecting"
	StateReady      State = "ready"
)

// Decision is the gate outcome for one turn. Exactly one of Order, Update or
// Check is set when the matching block was present and decodable.
type Decision struct {
	Intent  intent.Intent
	State   State
	Missing []string

	Order  *OrderData
	Update *UpdateData
	Check  *CheckQuantityData
}

// Ready reports whether a side-effecting event may fire.
func (d Decision) Ready() bool { return d.State == StateReady }

// Tracker gates side effects on the completeness of one turn's webhook_data.
// Gates are pure: multi-turn accumulation is the model's job, the tracker only
// inspects the current payload. Missing or placeholder fields keep the state
// at collecting, never raise.
type Tracker struct{}

func NewTracker() *Tracker { return &Tracker{} }

// Evaluate inspects the parsed webhook_data for the resolved intent.
func (t *Tracker) Evaluate(in intent.Intent, webhookData map[string]any) Decision {
	d := Decision{Intent: in, State: StateCollecting}
	if len(webhookData) == 0 {
		d.Missing = []string{"webhook_data"}
		return d
	}
	switch in {
	case intent.PlaceOrder:
		return t.gatePlaceOrder(webhookData, d)
	case intent.UpdateOrder:
		return t.gateUpdateOrder(webhookData, d)
	case intent.CheckQuantity:
		return t.gateCheckQuantity(webhookData, d)
	default:
		return d
	}
}

func (t *Tracker) gatePlaceOrder(payload map[string]any, d Decision) Decision {
	var data OrderData
	if !decodeBlock(payload, "order_data", &data) {
		d.Missing = []string{"order_data"}
		return d
	}
	d.Order = &data
	if !data.Complete {
		d.Missing = append(d.Missing, "complete")
	}
	if len(usableItems(data.Items)) == 0 {
		d.Missing = append(d.Missing, "items")
	}
	if isPlaceholder(data.Customer.Name) {
		d.Missing = append(d.Missing, "customer.name")
	}
	if isPlaceholder(data.Customer.Phone) {
		d.Missing = append(d.Missing, "customer.phone")
	}
	if len(d.Missing) == 0 {
		d.State = StateReady
	}
	return d
}

func (t *Tracker) gateUpdateOrder(payload map[string]any, d Decision) Decision {
	var data UpdateData
	if !decodeBlock(payload, "update_data", &data) {
		d.Missing = []string{"update_data"}
		return d
	}
	d.Update = &data
	if !data.Complete {
		d.Missing = append(d.Missing, "complete")
	}
	if isPlaceholderOrderCode(data.OrderCode) {
		d.Missing = append(d.Missing, "order_code")
	}
	if len(d.Missing) == 0 {
		d.State = StateReady
	}
	return d
}

func (t *Tracker) gateCheckQuantity(payload map[string]any, d Decision) Decision {
	var data CheckQuantityData
	if !decodeBlock(payload, "check_quantity_data", &data) {
		d.Missing = []string{"check_quantity_data"}
		return d
	}
	d.Check = &data
	if !data.Consented {
		d.Missing = append(d.Missing, "consented")
	}
	if isPlaceholder(data.ItemName) {
		d.Missing = append(d.Missing, "item_name")
	}
	if isPlaceholder(data.Customer.Name) {
		d.Missing = append(d.Missing, "customer.name")
	}
	if isPlaceholder(data.Customer.Contact()) {
		d.Missing = append(d.Missing, "customer.contact")
	}
	if len(d.Missing) == 0 {
		d.State = StateReady
	}
	return d
}

func decodeBlock(payload map[string]any, key string, out any) bool {
	raw, ok := payload[key].(map[string]any)
	if !ok || len(raw) == 0 {
		return false
	}
	cfg := &mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
	}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return false
	}
	return dec.Decode(raw) == nil
}

func usableItems(items []Item) []Item {
	out := items[:0:0]
	for _, item := range items {
		if isPlaceholder(item.Name) {
			continue
		}
		out = append(out, item)
	}
	return out
}

var placeholders = map[string]struct{}{
	"":            {},
	"null":        {},
	"none":        {},
	"n/a":         {},
	"na":          {},
	"unknown":     {},
	"placeholder": {},
	"tbd":         {},
	"xxx":         {},
	"...":         {},
	"-":           {},
}

func isPlaceholder(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if _, ok := placeholders[v]; ok {
		return true
	}
	// Template-style leftovers like "<name>" or "[your name]".
	if strings.HasPrefix(v, "<") || strings.HasPrefix(v, "[") {
		return true
	}
	return strings.HasPrefix(v, "your ")
}

func isPlaceholderOrderCode(code string) bool {
	if isPlaceholder(code) {
		return true
	}
	c := strings.ToUpper(strings.TrimSpace(code))
	return strings.Contains(c, "XXX") || c == "ORDER_CODE" || c == "ORD-0000"
}
