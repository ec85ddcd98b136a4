package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kbukum/medscribe/internal/dialogue"
	"github.com/kbukum/medscribe/internal/llm"
	"github.com/kbukum/medscribe/internal/logger"
)

type stubProvider struct {
	lastReq llm.CompletionRequest
	content string
	err     error
}

func (s *stubProvider) Name() string                         { return "stub" }
func (s *stubProvider) IsAvailable(_ context.Context) bool   { return true }
func (s *stubProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content, Model: "stub-model"}, nil
}

func testDialogue() []dialogue.Utterance {
	return []dialogue.Utterance{
		{Role: dialogue.RoleDoctor, Start: 0, End: 2, Text: "How are you feeling today?"},
		{Role: dialogue.RolePatient, Start: 2, End: 5, Text: "I have a headache since yesterday."},
	}
}

func TestSummarize(t *testing.T) {
	provider := &stubProvider{content: "  Patient reports a headache.\n"}
	gen := NewGenerator(provider, Config{}, logger.NewDefault("test"))

	got, err := gen.Summarize(context.Background(), "John Smith", "Garcia", testDialogue())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if got != "Patient reports a headache." {
		t.Errorf("expected trimmed summary, got %q", got)
	}

	if provider.lastReq.SystemPrompt == "" {
		t.Error("expected a system prompt")
	}
	if len(provider.lastReq.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(provider.lastReq.Messages))
	}
	prompt := provider.lastReq.Messages[0].Content
	for _, want := range []string{"John Smith", "Garcia", "Doctor: How are you feeling today?", "Patient: I have a headache since yesterday."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSummarizeErrors(t *testing.T) {
	t.Run("empty dialogue", func(t *testing.T) {
		gen := NewGenerator(&stubProvider{content: "x"}, Config{}, logger.NewDefault("test"))
		if _, err := gen.Summarize(context.Background(), "p", "d", nil); err == nil {
			t.Error("expected an error for empty dialogue")
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		gen := NewGenerator(&stubProvider{err: errors.New("model offline")}, Config{}, logger.NewDefault("test"))
		if _, err := gen.Summarize(context.Background(), "p", "d", testDialogue()); err == nil {
			t.Error("expected the provider error to propagate")
		}
	})

	t.Run("empty completion", func(t *testing.T) {
		gen := NewGenerator(&stubProvider{content: "   "}, Config{}, logger.NewDefault("test"))
		if _, err := gen.Summarize(context.Background(), "p", "d", testDialogue()); err == nil {
			t.Error("expected an error for an empty completion")
		}
	})
}

func TestRenderTranscriptTruncation(t *testing.T) {
	long := make([]dialogue.Utterance, 0, 2000)
	for i := 0; i < 2000; i++ {
		long = append(long, dialogue.Utterance{Role: dialogue.RolePatient, Text: strings.Repeat("a", 40)})
	}
	out := renderTranscript(long)
	if len(out) > maxTranscriptChars {
		t.Errorf("expected transcript capped at %d chars, got %d", maxTranscriptChars, len(out))
	}
	if !strings.HasPrefix(out, "Patient: ") {
		t.Errorf("expected truncated transcript to start on a line boundary, got %q", out[:20])
	}
}
