// Package llm defines the Provider interface for Large Language Model
// backends.
//
// The call pipeline is turn-based: one completed caller utterance produces one
// request and one full response. Streaming token output is therefore not part
// of this interface; a provider that only streams should accumulate
// internally.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Well-known message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the model needs to produce a response.
// Messages must be non-empty; the last message is typically the caller's turn.
type CompletionRequest struct {
	// Messages is the ordered conversation history, system turn first.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0].
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Usage holds token accounting returned by the backend. Counts may be zero
// for providers that do not report usage.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is the model's full reply to one request.
type CompletionResponse struct {
	// Content is the assistant's reply text.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled before the
	// completion arrives. An empty Content with a nil error is a valid
	// no-output condition; the caller decides what to do with it.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
