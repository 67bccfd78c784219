package llm

import "context"

// Message is a single entry of a completion request.
type Message struct {
	Role    string
	Content string
}

// Request message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completion is the common response model for completion providers.
type Completion struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Completer is the completion-service abstraction used by the orchestrator.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (Completion, error)
}
