// Package session owns the durable session record: the GORM models, the
// store that enforces the processing state machine, and the service that
// runs the transcription pipeline against it.
package session

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbukum/medscribe/internal/dialogue"
)

// Status is the processing state of a session.
type Status string

const (
	// StatusPending means the audio is uploaded but processing has not started.
	StatusPending Status = "pending"
	// StatusProcessing means the transcription pipeline is running.
	StatusProcessing Status = "processing"
	// StatusCompleted means the dialogue is built and persisted.
	StatusCompleted Status = "completed"
	// StatusFailed means a pipeline stage errored; FailureReason records why.
	StatusFailed Status = "failed"
)

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Session is one recorded clinical encounter with its metadata, audio
// reference, and resulting dialogue. Once completed or failed it is immutable
// except for notes edits and deletion.
type Session struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	PatientName   string      `gorm:"not null;index" json:"patient_name"`
	DoctorName    string      `gorm:"not null;index" json:"doctor_name"`
	SessionDate   time.Time   `gorm:"not null;index" json:"session_date"`
	Notes         string      `json:"notes"`
	AudioRef      string      `gorm:"not null" json:"audio_ref"`
	AudioSize     int64       `json:"audio_size"`
	Duration      float64     `json:"duration"`
	ModelSize     string      `json:"model_size"`
	Status        Status      `gorm:"not null;index" json:"status"`
	FailureReason string      `json:"failure_reason,omitempty"`
	Summary       string      `json:"summary,omitempty"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	Utterances    []Utterance `gorm:"constraint:OnDelete:CASCADE" json:"utterances,omitempty"`
}

// BeforeCreate generates a UUID if not already set.
func (s *Session) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Utterance is one persisted dialogue turn, ordered within its session by
// Position. Utterances are written exactly once, when the session completes.
type Utterance struct {
	ID         uint          `gorm:"primaryKey" json:"-"`
	SessionID  uuid.UUID     `gorm:"type:uuid;not null;index" json:"-"`
	Position   int           `gorm:"not null" json:"position"`
	Role       dialogue.Role `gorm:"not null" json:"role"`
	Start      float64       `gorm:"not null" json:"start"`
	End        float64       `gorm:"not null" json:"end"`
	Text       string        `gorm:"not null" json:"text"`
	Confidence float64       `json:"confidence"`
}

// Dialogue converts the persisted utterances back to their pipeline form,
// e.g. for export rendering or statistics.
func Dialogue(utterances []Utterance) []dialogue.Utterance {
	out := make([]dialogue.Utterance, len(utterances))
	for i, u := range utterances {
		out[i] = dialogue.Utterance{
			Role:       u.Role,
			Start:      u.Start,
			End:        u.End,
			Text:       u.Text,
			Confidence: u.Confidence,
		}
	}
	return out
}
