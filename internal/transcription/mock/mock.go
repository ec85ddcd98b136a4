// Package mock provides a deterministic in-process transcription backend for
// development and tests.
package mock

import (
	"context"
	"fmt"

	"github.com/kbukum/medscribe/internal/transcription"
)

// ProviderName is the registered name for the mock provider.
const ProviderName = "mock"

// Provider implements transcription.Provider with canned segments.
type Provider struct {
	// Segments is returned verbatim when non-nil.
	Segments []transcription.Segment
	// Err, when set, is returned from every Transcribe call.
	Err error
}

// NewProvider creates a mock provider that fabricates placeholder segments.
func NewProvider() *Provider { return &Provider{} }

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable always reports true.
func (p *Provider) IsAvailable(_ context.Context) bool { return true }

// Transcribe returns the configured segments, or a fixed placeholder
// conversation when none are configured.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}

	segments := p.Segments
	if segments == nil {
		segLen := 15.0
		for i := 0; i < 4; i++ {
			start := float64(i) * segLen
			segments = append(segments, transcription.Segment{
				Start: start,
				End:   start + segLen,
				Text:  fmt.Sprintf("Placeholder transcript from %.0fs to %.0fs", start, start+segLen),
			})
		}
	}

	var duration float64
	if len(segments) > 0 {
		duration = segments[len(segments)-1].End
	}
	return &transcription.Result{
		Text:     joinTexts(segments),
		Segments: segments,
		Duration: duration,
		Language: req.Language,
	}, nil
}

func joinTexts(segments []transcription.Segment) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += " "
		}
		out += s.Text
	}
	return out
}
