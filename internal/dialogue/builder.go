package dialogue

import "strings"

// Utterance is one or more merged same-role segments, the unit of the final
// dialogue. Utterances are contiguous, ordered by start time, and no two
// adjacent utterances share the same role.
type Utterance struct {
	Role       Role    `json:"role"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Duration returns the utterance length in seconds.
func (u Utterance) Duration() float64 {
	return u.End - u.Start
}

// Build merges maximal consecutive runs of identical roles into utterances.
// It is a pure fold over the input: no reordering, texts joined with a single
// space, confidence of a merged utterance is the minimum among its
// constituents. Building an already-merged sequence yields it unchanged.
func Build(labeled []LabeledSegment) []Utterance {
	if len(labeled) == 0 {
		return []Utterance{}
	}

	utterances := make([]Utterance, 0, len(labeled))
	var texts []string
	current := Utterance{
		Role:       labeled[0].Role,
		Start:      labeled[0].Start,
		End:        labeled[0].End,
		Confidence: labeled[0].Confidence,
	}
	texts = append(texts, strings.TrimSpace(labeled[0].Text))

	for _, ls := range labeled[1:] {
		if ls.Role == current.Role {
			current.End = ls.End
			if ls.Confidence < current.Confidence {
				current.Confidence = ls.Confidence
			}
			texts = append(texts, strings.TrimSpace(ls.Text))
			continue
		}

		current.Text = strings.Join(texts, " ")
		utterances = append(utterances, current)

		current = Utterance{
			Role:       ls.Role,
			Start:      ls.Start,
			End:        ls.End,
			Confidence: ls.Confidence,
		}
		texts = texts[:0]
		texts = append(texts, strings.TrimSpace(ls.Text))
	}

	current.Text = strings.Join(texts, " ")
	utterances = append(utterances, current)

	return utterances
}
