package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rahmatgani/aruna/pkg/intent"
	"github.com/rahmatgani/aruna/pkg/llm"
	"github.com/rahmatgani/aruna/pkg/retrieval"
	"github.com/rahmatgani/aruna/pkg/session"
	"github.com/rahmatgani/aruna/pkg/tenant"
)

// Input is everything the assembler combines into one completion request.
type Input struct {
	Profile   tenant.Profile
	Inventory []tenant.InventoryItem
	Passages  retrieval.Result
	History   []session.Turn
	Message   string
	Intent    intent.Intent
	Language  string
	Hints     map[string]string
}

// Assembler builds the structured instruction prompt. Pure: no I/O,
// deterministic for a given Input.
type Assembler struct {
	maxHistory  int
	maxPassages int
}

func NewAssembler(maxHistory int) *Assembler {
	if maxHistory <= 0 {
		maxHistory = 12
	}
	return &Assembler{maxHistory: maxHistory, maxPassages: 8}
}

// Assemble produces the provider-ready context. The system block carries the
// tenant profile, grounding data and the machine-readable output contract;
// the message list carries the bounded history window plus the current turn.
func (a *Assembler) Assemble(in Input) llm.Context {
	var sys strings.Builder

	sys.WriteString("You are the customer assistant for ")
	sys.WriteString(orDefault(in.Profile.Name, "this business"))
	sys.WriteString(" (")
	sys.WriteString(orDefault(in.Profile.Industry, "general"))
	sys.WriteString(").\n")
	if desc := strings.TrimSpace(in.Profile.Description); desc != "" {
		sys.WriteString(desc)
		sys.WriteString("\n")
	}
	if in.Language != "" {
		fmt.Fprintf(&sys, "Reply in language %q.\n", in.Language)
	}
	fmt.Fprintf(&sys, "Detected intent for this turn: %s.\n", in.Intent)
	if len(in.Hints) > 0 {
		sys.WriteString("Extracted hints: ")
		sys.WriteString(formatHints(in.Hints))
		sys.WriteString("\n")
	}

	// Inventory is ground truth for price and availability; documents rank
	// below it.
	if len(in.Inventory) > 0 {
		sys.WriteString("\n## LIVE INVENTORY (authoritative for price and availability)\n")
		for _, item := range in.Inventory {
			fmt.Fprintf(&sys, "- %s (%s): %s %.0f, %d %s available\n",
				item.Name, item.SKU, orDefault(item.Currency, "IDR"), item.Price, item.Available, orDefault(item.Unit, "pcs"))
		}
	}

	sys.WriteString("\n## BUSINESS DOCUMENTS (secondary to inventory)\n")
	if len(in.Passages.Hits) == 0 {
		sys.WriteString(orDefault(in.Passages.Note, retrieval.Sentinel))
		sys.WriteString("\n")
	} else {
		passages := in.Passages.Hits
		if len(passages) > a.maxPassages {
			passages = passages[:a.maxPassages]
		}
		for _, hit := range passages {
			fmt.Fprintf(&sys, "- [%s] %s\n", orDefault(hit.Source, "doc"), strings.TrimSpace(hit.Content))
		}
	}

	sys.WriteString("\n")
	sys.WriteString(OutputContract)

	return llm.Context{
		System:    sys.String(),
		Messages:  a.window(in),
		ForceJSON: true,
	}
}

func (a *Assembler) window(in Input) []llm.Message {
	history := in.History
	if len(history) > a.maxHistory {
		history = history[len(history)-a.maxHistory:]
	}
	messages := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return append(messages, llm.Message{Role: session.RoleUser, Content: in.Message})
}

func formatHints(hints map[string]string) string {
	// Deterministic ordering keeps Assemble pure.
	keys := make([]string, 0, len(hints))
	for k := range hints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+hints[k])
	}
	return strings.Join(parts, ", ")
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
