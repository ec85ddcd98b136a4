package dialogue

import (
	"strings"

	"github.com/kbukum/medscribe/internal/transcription"
)

// Signal identifies which heuristic contributed to a role decision.
type Signal string

const (
	// SignalLexical means the keyword scorer voted for the role.
	SignalLexical Signal = "lexical"
	// SignalGap means a silence gap above the threshold indicated a speaker change.
	SignalGap Signal = "gap"
	// SignalOpening means the opening-turn prior was applied.
	SignalOpening Signal = "opening"
	// SignalCarryover means the role was carried over from the previous segment.
	SignalCarryover Signal = "carryover"
)

// Confidence tiers derived from signal agreement.
const (
	ConfidenceHigh   = 0.9
	ConfidenceMedium = 0.6
	ConfidenceLow    = 0.3
)

// LabeledSegment is a transcript segment with its resolved speaker role,
// the confidence of that resolution, and the signals that produced it.
type LabeledSegment struct {
	transcription.Segment
	Role       Role     `json:"role"`
	Confidence float64  `json:"confidence"`
	Signals    []Signal `json:"signals,omitempty"`
}

// Attribute assigns a role to every segment in order. It is total: the
// output always has exactly one entry per input segment, in input order,
// and attribution never fails — ambiguity resolves to RoleUnknown, not an
// error. Confidence is informational only; downstream merging does not
// depend on it.
func Attribute(segments []transcription.Segment, cfg Config) []LabeledSegment {
	cfg.ApplyDefaults()

	out := make([]LabeledSegment, 0, len(segments))
	for i, seg := range segments {
		if i == 0 {
			out = append(out, attributeOpening(seg, cfg))
			continue
		}
		out = append(out, attributeNext(seg, out[i-1], cfg))
	}
	return out
}

// attributeOpening resolves the first segment of a session. By clinical
// convention the doctor opens the encounter, so the opening-turn prior is
// Doctor unless the lexical signal strongly contradicts it. A first segment
// with no text at all is totally ambiguous and stays Unknown.
func attributeOpening(seg transcription.Segment, cfg Config) LabeledSegment {
	ls := LabeledSegment{Segment: seg}

	if strings.TrimSpace(seg.Text) == "" {
		ls.Role = RoleUnknown
		ls.Confidence = ConfidenceLow
		return ls
	}

	role, strength := lexicalVote(seg.Text, cfg)
	switch {
	case role == RolePatient && strength >= cfg.StrongLexicalScore:
		ls.Role = RolePatient
		ls.Confidence = ConfidenceMedium
		ls.Signals = []Signal{SignalLexical}
	case role == RoleDoctor:
		ls.Role = RoleDoctor
		ls.Confidence = ConfidenceHigh
		ls.Signals = []Signal{SignalOpening, SignalLexical}
	default:
		ls.Role = RoleDoctor
		ls.Confidence = ConfidenceLow
		ls.Signals = []Signal{SignalOpening}
	}
	return ls
}

// attributeNext resolves a non-opening segment by combining the turn-taking
// signal against the previous resolved role with the lexical vote.
func attributeNext(seg transcription.Segment, prev LabeledSegment, cfg Config) LabeledSegment {
	ls := LabeledSegment{Segment: seg}

	gap := seg.Start - prev.End
	strongGap := gap > cfg.GapThreshold

	vote := RoleUnknown
	if strings.TrimSpace(seg.Text) != "" {
		vote, _ = lexicalVote(seg.Text, cfg)
	}

	switch {
	case vote != RoleUnknown && strongGap:
		expected := switched(prev.Role)
		switch {
		case expected == RoleUnknown:
			// No defined switch target; the lexical vote stands alone.
			ls.Role = vote
			ls.Confidence = ConfidenceMedium
			ls.Signals = []Signal{SignalLexical, SignalGap}
		case vote == expected:
			ls.Role = vote
			ls.Confidence = ConfidenceHigh
			ls.Signals = []Signal{SignalLexical, SignalGap}
		default:
			// Conflict: the gap says switch, the lexicon says stay. A strong
			// gap still records the switch, at reduced confidence.
			ls.Role = expected
			ls.Confidence = ConfidenceLow
			ls.Signals = []Signal{SignalGap}
		}

	case vote != RoleUnknown:
		// Weak turn-taking signal: the lexical vote wins. Agreement with the
		// continuation suggestion raises confidence.
		ls.Role = vote
		if vote == prev.Role {
			ls.Confidence = ConfidenceHigh
		} else {
			ls.Confidence = ConfidenceMedium
		}
		ls.Signals = []Signal{SignalLexical}

	case strongGap:
		target := switched(prev.Role)
		if target == RoleUnknown {
			ls.Role = RoleUnknown
			ls.Confidence = ConfidenceLow
		} else {
			ls.Role = target
			ls.Confidence = ConfidenceMedium
		}
		ls.Signals = []Signal{SignalGap}

	default:
		// No signal at all: sticky default.
		ls.Role = prev.Role
		ls.Confidence = ConfidenceLow
		ls.Signals = []Signal{SignalCarryover}
	}
	return ls
}

// lexicalVote scores the segment text against both keyword sets and returns
// the winning role with its score margin. A tie yields no vote.
func lexicalVote(text string, cfg Config) (Role, int) {
	lower := strings.ToLower(text)

	doctorScore := countMatches(lower, cfg.DoctorKeywords)
	patientScore := countMatches(lower, cfg.PatientKeywords)

	switch {
	case doctorScore > patientScore:
		return RoleDoctor, doctorScore - patientScore
	case patientScore > doctorScore:
		return RolePatient, patientScore - doctorScore
	default:
		return RoleUnknown, 0
	}
}

func countMatches(text string, keywords []string) int {
	score := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			score++
		}
	}
	return score
}
