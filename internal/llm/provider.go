package llm

import (
	"context"

	"github.com/kbukum/medscribe/internal/provider"
)

// Provider is a chat-completion backend.
type Provider interface {
	provider.Provider

	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
