package dialogue

import "strings"

// SpeakerStats aggregates talk time and volume for one role.
type SpeakerStats struct {
	TalkTime   float64 `json:"talk_time_seconds"`
	WordCount  int     `json:"word_count"`
	Utterances int     `json:"utterances"`
}

// Stats summarizes a built conversation for dashboard display.
type Stats struct {
	TotalDuration float64                `json:"total_duration_seconds"`
	Utterances    int                    `json:"utterances"`
	Speakers      map[Role]*SpeakerStats `json:"speakers"`
}

// ComputeStats derives per-speaker statistics from a built conversation.
func ComputeStats(utterances []Utterance) Stats {
	stats := Stats{
		Utterances: len(utterances),
		Speakers:   make(map[Role]*SpeakerStats),
	}

	for _, u := range utterances {
		if u.End > stats.TotalDuration {
			stats.TotalDuration = u.End
		}

		s, ok := stats.Speakers[u.Role]
		if !ok {
			s = &SpeakerStats{}
			stats.Speakers[u.Role] = s
		}
		s.TalkTime += u.Duration()
		s.WordCount += len(strings.Fields(u.Text))
		s.Utterances++
	}
	return stats
}
