// Package summary generates a short clinical summary of a completed
// consultation dialogue using an LLM provider.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbukum/medscribe/internal/dialogue"
	"github.com/kbukum/medscribe/internal/llm"
	"github.com/kbukum/medscribe/internal/logger"
)

const systemPrompt = "You are a clinical documentation assistant. Summarize the " +
	"consultation transcript in 3-5 sentences: the patient's presenting complaint, " +
	"relevant findings discussed, and any plan or follow-up the doctor stated. " +
	"Use only information present in the transcript. Do not invent diagnoses."

// maxTranscriptChars bounds the prompt size for long consultations. The tail
// is kept because plans and follow-ups come at the end.
const maxTranscriptChars = 12000

// Config tunes summary generation.
type Config struct {
	// Enabled toggles summary generation.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Model overrides the provider's default model.
	Model string `yaml:"model" mapstructure:"model"`

	// Temperature controls randomness. Summaries want determinism.
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 0.2
	}
}

// Generator produces consultation summaries via an LLM provider.
type Generator struct {
	provider llm.Provider
	cfg      Config
	log      *logger.Logger
}

// NewGenerator creates a summary generator backed by the given provider.
func NewGenerator(provider llm.Provider, cfg Config, log *logger.Logger) *Generator {
	cfg.ApplyDefaults()
	return &Generator{
		provider: provider,
		cfg:      cfg,
		log:      log.WithComponent("summary"),
	}
}

// Summarize renders the dialogue as a transcript and asks the model for a
// summary.
func (g *Generator) Summarize(ctx context.Context, patientName, doctorName string, utterances []dialogue.Utterance) (string, error) {
	if len(utterances) == 0 {
		return "", fmt.Errorf("nothing to summarize")
	}

	transcript := renderTranscript(utterances)
	prompt := fmt.Sprintf("Consultation between Dr. %s and patient %s:\n\n%s",
		doctorName, patientName, transcript)

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Model:        g.cfg.Model,
		SystemPrompt: systemPrompt,
		Temperature:  g.cfg.Temperature,
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("model returned an empty summary")
	}

	g.log.Debug("Summary generated", map[string]interface{}{
		"model":  resp.Model,
		"tokens": resp.Usage.TotalTokens,
	})
	return text, nil
}

// renderTranscript formats the dialogue as "Role: text" lines, truncated from
// the front when too long.
func renderTranscript(utterances []dialogue.Utterance) string {
	var b strings.Builder
	for _, u := range utterances {
		b.WriteString(u.Role.DisplayName())
		b.WriteString(": ")
		b.WriteString(u.Text)
		b.WriteString("\n")
	}

	out := b.String()
	if len(out) > maxTranscriptChars {
		out = out[len(out)-maxTranscriptChars:]
		// Resync to a line boundary so the prompt does not open mid-word.
		if i := strings.IndexByte(out, '\n'); i >= 0 {
			out = out[i+1:]
		}
	}
	return out
}
