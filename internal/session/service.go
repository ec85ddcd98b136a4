package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/medscribe/internal/dialogue"
	apperrors "github.com/kbukum/medscribe/internal/errors"
	"github.com/kbukum/medscribe/internal/logger"
	"github.com/kbukum/medscribe/internal/storage"
	"github.com/kbukum/medscribe/internal/transcription"
)

// Failure reasons recorded on the session when a pipeline stage errors.
const (
	ReasonTranscriptionTimeout = "TranscriptionTimeout"
	ReasonUnsupportedFormat    = "UnsupportedFormat"
	ReasonEngineFailure        = "EngineFailure"
)

// Summarizer produces a short clinical summary of a completed dialogue.
type Summarizer interface {
	Summarize(ctx context.Context, patientName, doctorName string, utterances []dialogue.Utterance) (string, error)
}

// ServiceConfig tunes the processing pipeline.
type ServiceConfig struct {
	// TranscribeTimeout bounds a single transcription engine call.
	TranscribeTimeout time.Duration `yaml:"transcribe_timeout" mapstructure:"transcribe_timeout"`

	// SummaryTimeout bounds the optional summary generation call.
	SummaryTimeout time.Duration `yaml:"summary_timeout" mapstructure:"summary_timeout"`

	// Dialogue configures speaker attribution.
	Dialogue dialogue.Config `yaml:"dialogue" mapstructure:"dialogue"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *ServiceConfig) ApplyDefaults() {
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = 5 * time.Minute
	}
	if c.SummaryTimeout <= 0 {
		c.SummaryTimeout = 60 * time.Second
	}
	c.Dialogue.ApplyDefaults()
}

// Service runs the transcription pipeline for a session: transcribe the
// audio, attribute speakers, build the dialogue, and persist the result.
type Service struct {
	store      *Store
	blobs      storage.Storage
	engine     transcription.Provider
	summarizer Summarizer
	cfg        ServiceConfig
	log        *logger.Logger
}

// NewService wires the pipeline. summarizer may be nil, in which case no
// summaries are generated.
func NewService(store *Store, blobs storage.Storage, engine transcription.Provider, summarizer Summarizer, cfg ServiceConfig, log *logger.Logger) *Service {
	cfg.ApplyDefaults()
	return &Service{
		store:      store,
		blobs:      blobs,
		engine:     engine,
		summarizer: summarizer,
		cfg:        cfg,
		log:        log.WithComponent("session-service"),
	}
}

// Process runs the full pipeline for a pending session. Exactly one caller
// wins the pending-to-processing transition; any other concurrent call
// returns an invalid-state error without touching the session. A pipeline
// failure marks the session failed with a reason and returns the error.
func (s *Service) Process(ctx context.Context, id uuid.UUID) error {
	if err := s.Begin(ctx, id); err != nil {
		return err
	}
	return s.Run(ctx, id)
}

// Begin claims a pending session for processing. Callers that want to run
// the pipeline asynchronously use Begin to surface conflicts synchronously,
// then Run in the background.
func (s *Service) Begin(ctx context.Context, id uuid.UUID) error {
	return s.store.BeginProcessing(ctx, id)
}

// Run executes the pipeline stages for a session already in processing state.
func (s *Service) Run(ctx context.Context, id uuid.UUID) error {
	log := s.log.WithFields(logger.Fields(logger.FieldSessionID, id.String()))

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	log.Info("Processing started", logger.Fields("model_size", sess.ModelSize))
	start := time.Now()

	result, err := s.transcribe(ctx, sess)
	if err != nil {
		reason := failureReason(err)
		s.markFailed(ctx, id, reason, log)
		return err
	}

	labeled := dialogue.Attribute(result.Segments, s.cfg.Dialogue)
	utterances := dialogue.Build(labeled)

	duration := result.Duration
	if duration == 0 && len(result.Segments) > 0 {
		duration = result.Segments[len(result.Segments)-1].End
	}

	if err := s.store.Complete(ctx, id, utterances, duration); err != nil {
		return err
	}
	log.Info("Processing finished", logger.DurationFields("process", time.Since(start)))

	s.maybeSummarize(ctx, sess, utterances, log)
	return nil
}

func (s *Service) transcribe(ctx context.Context, sess *Session) (*transcription.Result, error) {
	asrCtx, cancel := context.WithTimeout(ctx, s.cfg.TranscribeTimeout)
	defer cancel()

	return s.engine.Transcribe(asrCtx, transcription.Request{
		AudioPath: s.blobs.FullPath(sess.AudioRef),
		Model:     sess.ModelSize,
	})
}

// markFailed records the failure even when the request context is already
// dead, otherwise a timed-out session would be stuck in processing forever.
func (s *Service) markFailed(ctx context.Context, id uuid.UUID, reason string, log *logger.Logger) {
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.store.Fail(failCtx, id, reason); err != nil {
		log.Error("Failed to record session failure", logger.ErrorFields("fail", err))
		return
	}
	log.Warn("Processing failed", logger.Fields("reason", reason))
}

func (s *Service) maybeSummarize(ctx context.Context, sess *Session, utterances []dialogue.Utterance, log *logger.Logger) {
	if s.summarizer == nil || len(utterances) == 0 {
		return
	}

	sumCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SummaryTimeout)
	defer cancel()

	text, err := s.summarizer.Summarize(sumCtx, sess.PatientName, sess.DoctorName, utterances)
	if err != nil {
		// The dialogue is already persisted; a missing summary is not fatal.
		log.Warn("Summary generation failed", logger.ErrorFields("summarize", err))
		return
	}
	if err := s.store.SetSummary(sumCtx, sess.ID, text); err != nil {
		log.Warn("Failed to store summary", logger.ErrorFields("set_summary", err))
	}
}

// failureReason maps a pipeline error to the reason recorded on the session.
func failureReason(err error) string {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ReasonTranscriptionTimeout
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		switch appErr.Code {
		case apperrors.ErrCodeTimeout:
			return ReasonTranscriptionTimeout
		case apperrors.ErrCodeUnsupportedFormat:
			return fmt.Sprintf("%s: %s", ReasonUnsupportedFormat, appErr.Message)
		}
	}
	return fmt.Sprintf("%s: %v", ReasonEngineFailure, err)
}
