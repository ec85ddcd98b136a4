// Package export renders a completed session as a downloadable plain-text
// transcript.
package export

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kbukum/medscribe/internal/dialogue"
)

const headerRule = "============================================================"

// Header holds the session metadata printed above the dialogue.
type Header struct {
	PatientName string
	DoctorName  string
	SessionDate string
	Notes       string
}

// Render produces the transcript text for a session: a header block followed
// by one line per utterance. The output is deterministic for a given input.
func Render(header Header, utterances []dialogue.Utterance) string {
	var b strings.Builder

	b.WriteString(headerRule + "\n")
	b.WriteString("MEDICAL CONSULTATION TRANSCRIPT\n")
	b.WriteString(headerRule + "\n")
	fmt.Fprintf(&b, "Patient: %s\n", header.PatientName)
	fmt.Fprintf(&b, "Doctor: %s\n", header.DoctorName)
	fmt.Fprintf(&b, "Date: %s\n", header.SessionDate)
	if header.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", header.Notes)
	}
	b.WriteString(headerRule + "\n")

	for _, u := range utterances {
		fmt.Fprintf(&b, "[%s-%s] %s: %s\n",
			FormatTimestamp(u.Start), FormatTimestamp(u.End), u.Role.DisplayName(), u.Text)
	}

	return b.String()
}

// FormatTimestamp renders seconds as MM:SS, truncated to the second.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Line is one parsed transcript line.
type Line struct {
	Start   float64
	End     float64
	Speaker string
	Text    string
}

var linePattern = regexp.MustCompile(`^\[(\d{2,}):(\d{2})-(\d{2,}):(\d{2})\] (Doctor|Patient|Unknown): (.*)$`)

// Parse recovers the ordered (speaker, text) pairs from a rendered
// transcript. Timestamps come back rounded to the second. Header lines and
// anything that does not look like an utterance line are skipped.
func Parse(rendered string) []Line {
	var lines []Line
	for _, raw := range strings.Split(rendered, "\n") {
		m := linePattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		lines = append(lines, Line{
			Start:   parseTimestamp(m[1], m[2]),
			End:     parseTimestamp(m[3], m[4]),
			Speaker: m[5],
			Text:    m[6],
		})
	}
	return lines
}

func parseTimestamp(minutes, seconds string) float64 {
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	return float64(m*60 + s)
}
