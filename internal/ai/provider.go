package ai

import "context"

type Message struct {
	Role    string
	Content string
}

// Result is one completed generation. Tokens and Cost are nil when the
// backend does not report them.
type Result struct {
	Text   string
	Tokens *int
	Cost   *float64
}

// Provider is the opaque AI backend. The final message in messages is the
// current user query; everything before it is conversation context.
type Provider interface {
	Generate(ctx context.Context, model, sessionID string, messages []Message) (*Result, error)
}
