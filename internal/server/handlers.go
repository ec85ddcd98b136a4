package server

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/medscribe/internal/dialogue"
	apperrors "github.com/kbukum/medscribe/internal/errors"
	"github.com/kbukum/medscribe/internal/export"
	"github.com/kbukum/medscribe/internal/logger"
	"github.com/kbukum/medscribe/internal/session"
	"github.com/kbukum/medscribe/internal/storage"
	"github.com/kbukum/medscribe/internal/transcription"
	"github.com/kbukum/medscribe/internal/validation"
)

// Handlers wires the session store, pipeline service, and blob storage into
// the HTTP API.
type Handlers struct {
	store  *session.Store
	svc    *session.Service
	blobs  storage.Storage
	engine transcription.Provider
	log    *logger.Logger
}

// NewHandlers creates the API handler set.
func NewHandlers(store *session.Store, svc *session.Service, blobs storage.Storage, engine transcription.Provider, log *logger.Logger) *Handlers {
	return &Handlers{
		store:  store,
		svc:    svc,
		blobs:  blobs,
		engine: engine,
		log:    log.WithComponent("handlers"),
	}
}

// Register mounts all routes on the engine.
func (h *Handlers) Register(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api")
	api.POST("/sessions", h.createSession)
	api.GET("/sessions", h.listSessions)
	api.GET("/sessions/:id", h.getSession)
	api.PATCH("/sessions/:id/notes", h.updateNotes)
	api.DELETE("/sessions/:id", h.deleteSession)
	api.POST("/sessions/:id/transcribe", h.transcribeSession)
	api.POST("/sessions/:id/retry", h.retrySession)
	api.GET("/sessions/:id/export", h.exportSession)
	api.GET("/sessions/:id/summary", h.getSummary)
	api.GET("/sessions/:id/audio", h.downloadAudio)
	api.GET("/stats", h.stats)
}

func (h *Handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	engineUp := h.engine.IsAvailable(ctx)
	if !engineUp {
		status = "degraded"
	}

	c.JSON(200, gin.H{
		"status": status,
		"checks": gin.H{
			"transcription": engineUp,
		},
	})
}

// createSession accepts a multipart form with the session metadata and the
// audio file, stores the blob, and registers a pending session.
func (h *Handlers) createSession(c *gin.Context) {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		RespondWithError(c, apperrors.MissingField("audio"))
		return
	}

	sessionDate, err := parseDate(c.PostForm("session_date"))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	audioRef := fmt.Sprintf("%s/%s%s", sessionDate.Format("2006/01"), uuid.NewString(), ext)

	file, err := fileHeader.Open()
	if err != nil {
		RespondWithError(c, apperrors.Internal(err))
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	if err := h.blobs.Upload(ctx, audioRef, file); err != nil {
		RespondWithError(c, apperrors.Internal(err))
		return
	}

	sess, err := h.store.Create(ctx, session.CreateParams{
		PatientName: c.PostForm("patient_name"),
		DoctorName:  c.PostForm("doctor_name"),
		SessionDate: sessionDate,
		Notes:       c.PostForm("notes"),
		AudioRef:    audioRef,
		AudioSize:   fileHeader.Size,
		ModelSize:   c.PostForm("model_size"),
	})
	if err != nil {
		// The blob has no owner without a session row.
		if delErr := h.blobs.Delete(ctx, audioRef); delErr != nil {
			h.log.Warn("Orphaned audio cleanup failed", logger.ErrorFields("delete_blob", delErr))
		}
		RespondWithError(c, err)
		return
	}

	RespondCreated(c, sess)
}

func (h *Handlers) listSessions(c *gin.Context) {
	var f session.Filter

	if v := c.Query("from"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			RespondWithError(c, apperrors.InvalidFormat("from", "YYYY-MM-DD"))
			return
		}
		f.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			RespondWithError(c, apperrors.InvalidFormat("to", "YYYY-MM-DD"))
			return
		}
		// Make the upper bound inclusive for a bare date.
		f.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	f.Status = session.Status(c.Query("status"))
	f.Search = c.Query("q")

	sessions, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOKWithMeta(c, sessions, &Meta{Total: len(sessions)})
}

// sessionDetail is the full session plus derived per-speaker statistics.
type sessionDetail struct {
	*session.Session
	SpeakerStats *dialogue.Stats `json:"speaker_stats,omitempty"`
}

func (h *Handlers) getSession(c *gin.Context) {
	id, err := validation.ValidateUUID("id", c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	sess, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	detail := sessionDetail{Session: sess}
	if sess.Status == session.StatusCompleted && len(sess.Utterances) > 0 {
		stats := dialogue.ComputeStats(session.Dialogue(sess.Utterances))
		detail.SpeakerStats = &stats
	}
	RespondOK(c, detail)
}

func (h *Handlers) updateNotes(c *gin.Context) {
	id, err := validation.ValidateUUID("id", c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	var body struct {
		Notes *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondWithError(c, apperrors.Validation("request body must be valid JSON"))
		return
	}
	if body.Notes == nil {
		RespondWithError(c, apperrors.MissingField("notes"))
		return
	}

	ctx := c.Request.Context()
	if err := h.store.UpdateNotes(ctx, id, *body.Notes); err != nil {
		RespondWithError(c, err)
		return
	}
	sess, err := h.store.Get(ctx, id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, sess)
}

func (h *Handlers) deleteSession(c *gin.Context) {
	id, err := validation.ValidateUUID("id", c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	audioRef, err := h.store.Delete(ctx, id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if audioRef != "" {
		if err := h.blobs.Delete(ctx, audioRef); err != nil {
			h.log.Warn("Audio cleanup failed", logger.ErrorFields("delete_blob", err))
		}
	}
	RespondNoContent(c)
}

// transcribeSession claims the session for processing and runs the pipeline
// in the background. Conflicts (already processing, already completed) are
// reported synchronously.
func (h *Handlers) transcribeSession(c *gin.Context) {
	id, err := validation.ValidateUUID("id", c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	if err := h.svc.Begin(c.Request.Context(), id); err != nil {
		RespondWithError(c, err)
		return
	}

	go func() {
		if err := h.svc.Run(context.Background(), id); err != nil {
			h.log.Error("Pipeline run failed", map[string]interface{}{
				logger.FieldSessionID: id.String(),
				logger.FieldError:     err.Error(),
			})
		}
	}()

	RespondAccepted(c, gin.H{
		"id":     id,
		"status": session.StatusProcessing,
	})
}

func (h *Handlers) retrySession(c *gin.Context) {
	id, err := validation.ValidateUUID("id", c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if err := h.store.Retry(c.Request.Context(), id); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"id":     id,
		"status": session.StatusPending,
	})
}

func (h *Handlers) exportSession(c *gin.Context) {
	id, err := validation.ValidateUUID("id", c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	sess, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if sess.Status != session.StatusCompleted {
		RespondWithError(c, apperrors.InvalidState("session", string(sess.Status), string(session.StatusCompleted)))
		return
	}

	text := export.Render(export.Header{
		PatientName: sess.PatientName,
		DoctorName:  sess.DoctorName,
		SessionDate: sess.SessionDate.Format("2006-01-02"),
		Notes:       sess.Notes,
	}, session.Dialogue(sess.Utterances))

	filename := fmt.Sprintf("transcript-%s.txt", sess.ID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(200, "text/plain; charset=utf-8", []byte(text))
}

func (h *Handlers) getSummary(c *gin.Context) {
	id, err := validation.ValidateUUID("id", c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	sess, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if sess.Status != session.StatusCompleted {
		RespondWithError(c, apperrors.InvalidState("session", string(sess.Status), string(session.StatusCompleted)))
		return
	}
	if sess.Summary == "" {
		RespondWithError(c, apperrors.NotFound("summary", id.String()))
		return
	}
	RespondOK(c, gin.H{
		"id":      sess.ID,
		"summary": sess.Summary,
	})
}

func (h *Handlers) downloadAudio(c *gin.Context) {
	id, err := validation.ValidateUUID("id", c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	sess, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	rc, err := h.blobs.Download(c.Request.Context(), sess.AudioRef)
	if err != nil {
		RespondWithError(c, apperrors.NotFound("audio", id.String()).WithCause(err))
		return
	}
	defer rc.Close()

	c.DataFromReader(200, sess.AudioSize, audioContentType(sess.AudioRef), rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filepath.Base(sess.AudioRef)),
	})
}

func (h *Handlers) stats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, stats)
}

// parseDate accepts a bare date or an RFC 3339 timestamp.
func parseDate(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, apperrors.MissingField("session_date")
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, apperrors.InvalidFormat("session_date", "YYYY-MM-DD or RFC 3339")
}

func audioContentType(ref string) string {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
