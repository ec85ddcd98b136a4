// Package transcription defines the transcription provider interface and
// common types for interacting with speech-to-text backends.
package transcription

import (
	"context"

	"github.com/kbukum/medscribe/internal/provider"
)

// Provider is the interface that transcription backends must implement.
type Provider interface {
	provider.Provider // embeds Name() and IsAvailable()

	// Transcribe sends audio for transcription and returns the result.
	// Implementations must honor ctx cancellation and deadlines.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
