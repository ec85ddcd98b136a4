package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbukum/medscribe/internal/database"
	"github.com/kbukum/medscribe/internal/dialogue"
	apperrors "github.com/kbukum/medscribe/internal/errors"
	"github.com/kbukum/medscribe/internal/logger"
	"github.com/kbukum/medscribe/internal/validation"
)

// AcceptedAudioExtensions lists the audio container formats a session may
// reference. Extensions are matched case-insensitively.
var AcceptedAudioExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac"}

// ModelSizes lists the transcription model sizes a session may request.
var ModelSizes = []string{"tiny", "base", "small", "medium", "large"}

const (
	// DefaultMaxAudioBytes caps uploaded audio at 50 MB.
	DefaultMaxAudioBytes = 50 << 20

	maxNameLength  = 200
	maxNotesLength = 10000
)

// Store persists sessions and their utterances and enforces the processing
// state machine. Status transitions are compare-and-swap updates, so
// concurrent pipeline runs against the same session cannot double-process it.
type Store struct {
	db            *gorm.DB
	log           *logger.Logger
	maxAudioBytes int64
}

// NewStore migrates the schema and returns a ready store.
func NewStore(db *gorm.DB, log *logger.Logger) (*Store, error) {
	if err := db.AutoMigrate(&Session{}, &Utterance{}); err != nil {
		return nil, fmt.Errorf("migrate session schema: %w", err)
	}
	return &Store{
		db:            db,
		log:           log.WithComponent("session-store"),
		maxAudioBytes: DefaultMaxAudioBytes,
	}, nil
}

// CreateParams holds the fields required to register a new session.
type CreateParams struct {
	PatientName string
	DoctorName  string
	SessionDate time.Time
	Notes       string
	AudioRef    string
	AudioSize   int64
	ModelSize   string
}

// AcceptedAudioRef reports whether ref carries one of the accepted audio
// extensions.
func AcceptedAudioRef(ref string) bool {
	ext := strings.ToLower(filepath.Ext(ref))
	for _, a := range AcceptedAudioExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// Create validates the parameters and persists a new pending session.
func (s *Store) Create(ctx context.Context, p CreateParams) (*Session, error) {
	if p.ModelSize == "" {
		p.ModelSize = "tiny"
	}

	v := validation.New()
	v.Required("patient_name", p.PatientName).MaxLength("patient_name", p.PatientName, maxNameLength)
	v.Required("doctor_name", p.DoctorName).MaxLength("doctor_name", p.DoctorName, maxNameLength)
	v.Custom(!p.SessionDate.IsZero(), "session_date", "is required")
	v.MaxLength("notes", p.Notes, maxNotesLength)
	v.Required("audio_ref", p.AudioRef)
	if p.AudioRef != "" {
		v.Custom(AcceptedAudioRef(p.AudioRef), "audio_ref",
			fmt.Sprintf("must have one of the extensions: %s", strings.Join(AcceptedAudioExtensions, ", ")))
	}
	v.Custom(p.AudioSize > 0, "audio_size", "must be greater than zero")
	v.Custom(p.AudioSize <= s.maxAudioBytes, "audio_size",
		fmt.Sprintf("must be %d bytes or less", s.maxAudioBytes))
	v.OneOf("model_size", p.ModelSize, ModelSizes)
	if err := v.Validate(); err != nil {
		return nil, err
	}

	sess := &Session{
		PatientName: p.PatientName,
		DoctorName:  p.DoctorName,
		SessionDate: p.SessionDate,
		Notes:       p.Notes,
		AudioRef:    p.AudioRef,
		AudioSize:   p.AudioSize,
		ModelSize:   p.ModelSize,
		Status:      StatusPending,
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	s.log.Info("Session created", logger.Fields(logger.FieldSessionID, sess.ID.String()))
	return sess, nil
}

// Get loads a session with its utterances in dialogue order.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).
		Preload("Utterances", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&sess, "id = ?", id).Error
	if err != nil {
		return nil, database.FromDatabase(err, "session", id.String())
	}
	return &sess, nil
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	// From and To bound the session date, inclusive.
	From time.Time
	To   time.Time
	// Status restricts to one processing state.
	Status Status
	// Search is a case-insensitive substring matched against patient name,
	// doctor name, notes, and utterance text.
	Search string
}

// List returns sessions matching the filter, newest session date first.
// Utterances are not loaded; use Get for the full dialogue.
func (s *Store) List(ctx context.Context, f Filter) ([]Session, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown status %q", f.Status))
	}

	q := s.db.WithContext(ctx).Model(&Session{})
	if !f.From.IsZero() {
		q = q.Where("session_date >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("session_date <= ?", f.To)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if needle := strings.TrimSpace(f.Search); needle != "" {
		pattern := "%" + strings.ToLower(needle) + "%"
		q = q.Where(
			"lower(patient_name) LIKE ? OR lower(doctor_name) LIKE ? OR lower(notes) LIKE ? OR id IN (?)",
			pattern, pattern, pattern,
			s.db.Model(&Utterance{}).Select("session_id").Where("lower(text) LIKE ?", pattern),
		)
	}

	var sessions []Session
	if err := q.Order("session_date DESC").Find(&sessions).Error; err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return sessions, nil
}

// BeginProcessing transitions a pending session to processing.
func (s *Store) BeginProcessing(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, []Status{StatusPending}, StatusProcessing, map[string]interface{}{
		"failure_reason": "",
	})
}

// Complete transitions a processing session to completed and writes its
// utterances. The status flip and the utterance rows land in one transaction:
// a completed session always has its full dialogue, never a partial one.
func (s *Store) Complete(ctx context.Context, id uuid.UUID, utterances []dialogue.Utterance, duration float64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Session{}).
			Where("id = ? AND status = ?", id, StatusProcessing).
			Updates(map[string]interface{}{
				"status":   StatusCompleted,
				"duration": duration,
			})
		if res.Error != nil {
			return apperrors.DatabaseError(res.Error)
		}
		if res.RowsAffected == 0 {
			return s.transitionConflict(tx, id, StatusProcessing)
		}

		if len(utterances) == 0 {
			return nil
		}
		rows := make([]Utterance, len(utterances))
		for i, u := range utterances {
			rows[i] = Utterance{
				SessionID:  id,
				Position:   i,
				Role:       u.Role,
				Start:      u.Start,
				End:        u.End,
				Text:       u.Text,
				Confidence: u.Confidence,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return apperrors.DatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("Session completed", map[string]interface{}{
		logger.FieldSessionID: id.String(),
		"utterances":          len(utterances),
	})
	return nil
}

// Fail transitions a pending or processing session to failed and records the
// reason.
func (s *Store) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	return s.transition(ctx, id, []Status{StatusPending, StatusProcessing}, StatusFailed, map[string]interface{}{
		"failure_reason": reason,
	})
}

// Retry resets a failed session to pending so it can be processed again.
func (s *Store) Retry(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, []Status{StatusFailed}, StatusPending, map[string]interface{}{
		"failure_reason": "",
	})
}

// UpdateNotes replaces the free-text notes. Notes are editable in any state.
func (s *Store) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error {
	if err := validation.New().MaxLength("notes", notes, maxNotesLength).Validate(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", id).
		Update("notes", notes)
	if res.Error != nil {
		return apperrors.DatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("session", id.String())
	}
	return nil
}

// SetSummary stores a generated summary on a completed session.
func (s *Store) SetSummary(ctx context.Context, id uuid.UUID, summary string) error {
	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND status = ?", id, StatusCompleted).
		Update("summary", summary)
	if res.Error != nil {
		return apperrors.DatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return s.transitionConflict(s.db.WithContext(ctx), id, StatusCompleted)
	}
	return nil
}

// Delete removes a session and its utterances and returns the audio reference
// so the caller can clean up blob storage.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) (audioRef string, err error) {
	var sess Session
	if err := s.db.WithContext(ctx).Select("id", "audio_ref").First(&sess, "id = ?", id).Error; err != nil {
		return "", database.FromDatabase(err, "session", id.String())
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&Utterance{}).Error; err != nil {
			return apperrors.DatabaseError(err)
		}
		if err := tx.Delete(&Session{}, "id = ?", id).Error; err != nil {
			return apperrors.DatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.log.Info("Session deleted", logger.Fields(logger.FieldSessionID, id.String()))
	return sess.AudioRef, nil
}

// Stats summarizes the stored sessions for the dashboard.
type Stats struct {
	Total         int64            `json:"total"`
	ThisMonth     int64            `json:"this_month"`
	ByStatus      map[Status]int64 `json:"by_status"`
	TotalDuration float64          `json:"total_duration"`
	AvgConfidence float64          `json:"avg_confidence"`
}

// Stats counts sessions per status, sessions dated in the current month, the
// total completed audio duration, and the mean attribution confidence.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStatus: make(map[Status]int64)}

	type statusCount struct {
		Status Status
		Count  int64
	}
	var counts []statusCount
	err := s.db.WithContext(ctx).Model(&Session{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
		stats.Total += c.Count
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	err = s.db.WithContext(ctx).Model(&Session{}).
		Where("session_date >= ?", monthStart).
		Count(&stats.ThisMonth).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	err = s.db.WithContext(ctx).Model(&Session{}).
		Where("status = ?", StatusCompleted).
		Select("COALESCE(SUM(duration), 0)").
		Scan(&stats.TotalDuration).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	err = s.db.WithContext(ctx).Model(&Utterance{}).
		Select("COALESCE(AVG(confidence), 0)").
		Scan(&stats.AvgConfidence).Error
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return stats, nil
}

// transition performs a compare-and-swap status update. Zero rows affected
// means the session either does not exist or is not in an allowed state; the
// follow-up read tells the two apart.
func (s *Store) transition(ctx context.Context, id uuid.UUID, from []Status, to Status, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}

	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return apperrors.DatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return s.transitionConflict(s.db.WithContext(ctx), id, from...)
	}

	s.log.Debug("Session status changed", map[string]interface{}{
		logger.FieldSessionID: id.String(),
		logger.FieldStatus:    string(to),
	})
	return nil
}

func (s *Store) transitionConflict(db *gorm.DB, id uuid.UUID, wanted ...Status) error {
	var sess Session
	if err := db.Select("id", "status").First(&sess, "id = ?", id).Error; err != nil {
		return database.FromDatabase(err, "session", id.String())
	}
	want := make([]string, len(wanted))
	for i, w := range wanted {
		want[i] = string(w)
	}
	return apperrors.InvalidState("session", string(sess.Status), strings.Join(want, "|"))
}
