package channel

import (
	"strings"
	"sync"
)

// Accumulator buffers streamed tokens so the full completion can be parsed
// after the stream ends. Safe for concurrent producers.
type Accumulator struct {
	mu     sync.Mutex
	sb     strings.Builder
	tokens int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) AddToken(tok string) {
	a.mu.Lock()
	a.sb.WriteString(tok)
	a.tokens++
	a.mu.Unlock()
}

func (a *Accumulator) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sb.String()
}

func (a *Accumulator) TokenCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokens
}
