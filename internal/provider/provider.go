// Package provider defines the minimal contract shared by all external
// service backends (transcription engines, language models).
package provider

import "context"

// Provider is the base interface implemented by all backends.
type Provider interface {
	// Name returns the backend's registered name.
	Name() string
	// IsAvailable reports whether the backend is reachable and ready.
	IsAvailable(ctx context.Context) bool
}
