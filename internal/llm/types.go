package llm

import (
	"context"
	"errors"
)

// Message represents a chat message for LLM communication.
type Message struct {
	Role    string `json:"role"`    // "user", "assistant", "system", "tool"
	Content string `json:"content"` // The message text
}

// LLMProvider defines the interface for all LLM implementations.
// Any OpenAI-compatible endpoint (litellm, Ollama, Azure, vLLM, etc.)
// can be used by implementing this interface.
type LLMProvider interface {
	// CallLLM sends messages to the LLM and returns the complete response.
	CallLLM(ctx context.Context, messages []Message) (Message, error)
}

// ProviderFunc adapts a plain function to LLMProvider.
type ProviderFunc func(ctx context.Context, messages []Message) (Message, error)

// CallLLM implements LLMProvider.
func (f ProviderFunc) CallLLM(ctx context.Context, messages []Message) (Message, error) {
	return f(ctx, messages)
}

// ErrEmptyResponse is returned when the model answers with no content.
var ErrEmptyResponse = errors.New("llm: empty response")

// Role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)
