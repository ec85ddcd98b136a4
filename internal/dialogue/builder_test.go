package dialogue

import (
	"reflect"
	"testing"
)

func labeled(role Role, start, end float64, text string, confidence float64) LabeledSegment {
	ls := LabeledSegment{Role: role, Confidence: confidence}
	ls.Start = start
	ls.End = end
	ls.Text = text
	return ls
}

func TestBuild_Empty(t *testing.T) {
	out := Build(nil)
	if len(out) != 0 {
		t.Fatalf("expected no utterances, got %d", len(out))
	}
}

func TestBuild_MergesConsecutiveSameRole(t *testing.T) {
	in := []LabeledSegment{
		labeled(RoleDoctor, 0, 2, "Good morning.", 0.9),
		labeled(RoleDoctor, 2, 4, "How are you?", 0.6),
		labeled(RolePatient, 4, 8, "Not great.", 0.9),
		labeled(RolePatient, 8, 10, "I have a headache.", 0.3),
		labeled(RoleDoctor, 10, 12, "Since when?", 0.6),
	}

	out := Build(in)
	want := []Utterance{
		{Role: RoleDoctor, Start: 0, End: 4, Text: "Good morning. How are you?", Confidence: 0.6},
		{Role: RolePatient, Start: 4, End: 10, Text: "Not great. I have a headache.", Confidence: 0.3},
		{Role: RoleDoctor, Start: 10, End: 12, Text: "Since when?", Confidence: 0.6},
	}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("Build mismatch:\n got  %+v\n want %+v", out, want)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	in := []LabeledSegment{
		labeled(RoleDoctor, 0, 2, "Hello", 0.9),
		labeled(RoleDoctor, 2, 4, "there", 0.9),
		labeled(RolePatient, 4, 6, "Hi", 0.6),
		labeled(RoleUnknown, 6, 7, "...", 0.3),
		labeled(RolePatient, 7, 9, "again", 0.6),
	}

	first := Build(in)

	// Feed the merged output back through the same merge rule.
	refed := make([]LabeledSegment, len(first))
	for i, u := range first {
		refed[i] = labeled(u.Role, u.Start, u.End, u.Text, u.Confidence)
	}
	second := Build(refed)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Build is not idempotent:\n first  %+v\n second %+v", first, second)
	}
}

func TestBuild_NoAdjacentSameRole(t *testing.T) {
	in := []LabeledSegment{
		labeled(RoleDoctor, 0, 1, "a", 0.9),
		labeled(RoleDoctor, 1, 2, "b", 0.9),
		labeled(RolePatient, 2, 3, "c", 0.9),
		labeled(RoleDoctor, 3, 4, "d", 0.9),
		labeled(RoleDoctor, 4, 5, "e", 0.9),
	}

	out := Build(in)
	for i := 1; i < len(out); i++ {
		if out[i].Role == out[i-1].Role {
			t.Errorf("adjacent utterances %d and %d share role %s", i-1, i, out[i].Role)
		}
	}
}

func TestBuild_TrimsSegmentTexts(t *testing.T) {
	in := []LabeledSegment{
		labeled(RoleDoctor, 0, 1, "  Hello", 0.9),
		labeled(RoleDoctor, 1, 2, "there  ", 0.9),
	}
	out := Build(in)
	if out[0].Text != "Hello there" {
		t.Errorf("expected single-space join of trimmed texts, got %q", out[0].Text)
	}
}

func TestComputeStats(t *testing.T) {
	utterances := []Utterance{
		{Role: RoleDoctor, Start: 0, End: 4, Text: "How are you feeling today", Confidence: 0.9},
		{Role: RolePatient, Start: 4, End: 10, Text: "I have a headache", Confidence: 0.6},
		{Role: RoleDoctor, Start: 10, End: 12, Text: "Since when", Confidence: 0.6},
	}

	stats := ComputeStats(utterances)
	if stats.TotalDuration != 12 {
		t.Errorf("expected total duration 12, got %f", stats.TotalDuration)
	}
	if stats.Utterances != 3 {
		t.Errorf("expected 3 utterances, got %d", stats.Utterances)
	}

	doc := stats.Speakers[RoleDoctor]
	if doc == nil || doc.Utterances != 2 || doc.TalkTime != 6 || doc.WordCount != 7 {
		t.Errorf("unexpected doctor stats: %+v", doc)
	}
	pat := stats.Speakers[RolePatient]
	if pat == nil || pat.Utterances != 1 || pat.TalkTime != 6 || pat.WordCount != 4 {
		t.Errorf("unexpected patient stats: %+v", pat)
	}
}
