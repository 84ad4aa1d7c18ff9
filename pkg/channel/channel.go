package channel

import (
	"context"
	"strings"

	"github.com/rahmatgani/aruna/pkg/parser"
)

// Mode is the response transport discipline for a channel.
type Mode string

const (
	// ModeInteractive streams tokens to the caller as they arrive, then
	// forwards a structured summary to the channel adapter asynchronously.
	ModeInteractive Mode = "interactive"
	// ModeRelay buffers the whole completion and hands the final structured
	// payload to the adapter synchronously. The caller never sees partials.
	ModeRelay Mode = "relay"
)

var relayChannels = map[string]struct{}{
	"whatsapp":  {},
	"telegram":  {},
	"line":      {},
	"messenger": {},
	"zalo":      {},
	"sms":       {},
}

// Classify maps a declared channel name onto a transport mode. Unknown
// channels are treated as interactive (the demo widget case).
func Classify(channelName string) Mode {
	if _, ok := relayChannels[strings.ToLower(strings.TrimSpace(channelName))]; ok {
		return ModeRelay
	}
	return ModeInteractive
}

// Chunk is one element of the streaming protocol: a sequence of partial
// content chunks terminated by a single done chunk carrying the parsed
// response.
type Chunk struct {
	Type     string                     `json:"type"` // "delta" or "done"
	Content  string                     `json:"content,omitempty"`
	Response *parser.StructuredResponse `json:"response,omitempty"`
}

const (
	ChunkDelta = "delta"
	ChunkDone  = "done"
)

// StreamSink receives protocol chunks for an interactive caller.
type StreamSink interface {
	Send(chunk Chunk) error
}

// Reply is the final, channel-bound form of one turn's answer.
type Reply struct {
	TenantID string
	Channel  string
	To       string
	Text     string
	Intent   string
	Meta     map[string]string
}

// Forwarder hands a finished reply to an external channel adapter.
type Forwarder interface {
	Name() string
	Forward(ctx context.Context, reply Reply) error
}
