package llm

import "context"

// Message is one entry of a chat-completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context carries everything a provider needs for one completion.
type Context struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	ForceJSON   bool
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Adapter is the provider boundary. Generate returns the full completion;
// Stream returns a channel of text deltas that is closed when the completion
// ends or ctx is cancelled.
type Adapter interface {
	Generate(ctx context.Context, input Context) (Response, error)
	Stream(ctx context.Context, input Context) (<-chan string, error)
	Name() string
}
