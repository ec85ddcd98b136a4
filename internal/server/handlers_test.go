package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/medscribe/internal/database"
	"github.com/kbukum/medscribe/internal/logger"
	"github.com/kbukum/medscribe/internal/session"
	"github.com/kbukum/medscribe/internal/storage"
	"github.com/kbukum/medscribe/internal/transcription"
	"github.com/kbukum/medscribe/internal/transcription/mock"
)

type testEnv struct {
	router *gin.Engine
	store  *session.Store
	blobs  storage.Storage
}

func newTestEnv(t *testing.T, engine transcription.Provider) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New(&logger.Config{Level: "error", Format: "console"}, "test")
	db, err := database.Open(database.Config{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	}, log)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	store, err := session.NewStore(db, log)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	blobs, err := storage.NewLocal(t.TempDir(), log)
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}

	svc := session.NewService(store, blobs, engine, nil, session.ServiceConfig{}, log)

	router := gin.New()
	NewHandlers(store, svc, blobs, engine, log).Register(router)

	return &testEnv{router: router, store: store, blobs: blobs}
}

func (e *testEnv) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func multipartSession(t *testing.T, fields map[string]string, filename string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("audio", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte("fake audio bytes")); err != nil {
			t.Fatalf("write audio: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return buf, mw.FormDataContentType()
}

func defaultFields() map[string]string {
	return map[string]string{
		"patient_name": "John Smith",
		"doctor_name":  "Dr. Garcia",
		"session_date": "2026-03-10",
		"notes":        "Follow-up visit",
	}
}

func createSession(t *testing.T, env *testEnv) session.Session {
	t.Helper()
	body, contentType := multipartSession(t, defaultFields(), "consult.wav")
	w := env.do(t, http.MethodPost, "/api/sessions", body, contentType)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data session.Session `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Data
}

func waitForStatus(t *testing.T, env *testEnv, id uuid.UUID, want session.Status) *session.Session {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := env.store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		if sess.Status == want {
			return sess
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session %s never reached status %s", id, want)
	return nil
}

func TestCreateSessionEndpoint(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())

	sess := createSession(t, env)
	if sess.ID == uuid.Nil {
		t.Error("expected a session ID")
	}
	if sess.Status != session.StatusPending {
		t.Errorf("expected status %s, got %s", session.StatusPending, sess.Status)
	}

	// The audio blob is stored under the returned reference.
	exists, err := env.blobs.Exists(context.Background(), sess.AudioRef)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Errorf("expected audio blob at %s", sess.AudioRef)
	}
}

func TestCreateSessionMissingAudio(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())

	body, contentType := multipartSession(t, defaultFields(), "")
	w := env.do(t, http.MethodPost, "/api/sessions", body, contentType)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateSessionRejectsBadExtension(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())

	body, contentType := multipartSession(t, defaultFields(), "notes.txt")
	w := env.do(t, http.MethodPost, "/api/sessions", body, contentType)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateSessionMissingFields(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())

	fields := defaultFields()
	delete(fields, "patient_name")
	body, contentType := multipartSession(t, fields, "consult.wav")
	w := env.do(t, http.MethodPost, "/api/sessions", body, contentType)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTranscribeEndpoint(t *testing.T) {
	engine := &mock.Provider{Segments: []transcription.Segment{
		{Start: 0.0, End: 2.5, Text: "How are you feeling today?"},
		{Start: 3.0, End: 6.0, Text: "I have a headache since yesterday."},
	}}
	env := newTestEnv(t, engine)
	sess := createSession(t, env)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%s/transcribe", sess.ID), nil, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	done := waitForStatus(t, env, sess.ID, session.StatusCompleted)
	if len(done.Utterances) == 0 {
		t.Error("expected utterances after processing")
	}

	// The detail response includes derived speaker statistics.
	w = env.do(t, http.MethodGet, "/api/sessions/"+sess.ID.String(), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "speaker_stats") {
		t.Error("expected speaker_stats in the detail response")
	}
}

func TestTranscribeConflict(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())
	sess := createSession(t, env)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%s/transcribe", sess.ID), nil, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("first transcribe: expected 202, got %d", w.Code)
	}
	waitForStatus(t, env, sess.ID, session.StatusCompleted)

	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%s/transcribe", sess.ID), nil, "")
	if w.Code != http.StatusConflict {
		t.Errorf("second transcribe: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetSessionErrors(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())

	w := env.do(t, http.MethodGet, "/api/sessions/"+uuid.NewString(), nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id: expected 404, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/sessions/not-a-uuid", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", w.Code)
	}
}

func TestListSessionsEndpoint(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())
	createSession(t, env)

	w := env.do(t, http.MethodGet, "/api/sessions?q=smith", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data []session.Session `json:"data"`
		Meta *Meta             `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Errorf("expected 1 session, got %d", len(resp.Data))
	}
	if resp.Meta == nil || resp.Meta.Total != 1 {
		t.Errorf("expected meta total 1, got %+v", resp.Meta)
	}

	w = env.do(t, http.MethodGet, "/api/sessions?from=bogus", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad from date: expected 400, got %d", w.Code)
	}
}

func TestUpdateNotesEndpoint(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())
	sess := createSession(t, env)

	body := bytes.NewBufferString(`{"notes": "Reviewed with specialist"}`)
	w := env.do(t, http.MethodPatch, "/api/sessions/"+sess.ID.String()+"/notes", body, "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data session.Session `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Notes != "Reviewed with specialist" {
		t.Errorf("expected updated notes, got %q", resp.Data.Notes)
	}

	body = bytes.NewBufferString(`{}`)
	w = env.do(t, http.MethodPatch, "/api/sessions/"+sess.ID.String()+"/notes", body, "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing notes: expected 400, got %d", w.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	engine := &mock.Provider{Segments: []transcription.Segment{
		{Start: 0.0, End: 2.5, Text: "How are you feeling today?"},
		{Start: 3.0, End: 6.0, Text: "I have a headache since yesterday."},
	}}
	env := newTestEnv(t, engine)
	sess := createSession(t, env)

	// Export before completion is a conflict.
	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/sessions/%s/export", sess.ID), nil, "")
	if w.Code != http.StatusConflict {
		t.Errorf("export pending: expected 409, got %d", w.Code)
	}

	env.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%s/transcribe", sess.ID), nil, "")
	waitForStatus(t, env, sess.ID, session.StatusCompleted)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/sessions/%s/export", sess.ID), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain content type, got %q", ct)
	}
	text := w.Body.String()
	for _, want := range []string{"MEDICAL CONSULTATION TRANSCRIPT", "Patient: John Smith", "Doctor: Dr. Garcia", "headache"} {
		if !strings.Contains(text, want) {
			t.Errorf("transcript missing %q", want)
		}
	}
}

func TestDeleteEndpoint(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())
	sess := createSession(t, env)

	w := env.do(t, http.MethodDelete, "/api/sessions/"+sess.ID.String(), nil, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	exists, err := env.blobs.Exists(context.Background(), sess.AudioRef)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("expected audio blob removed with the session")
	}

	w = env.do(t, http.MethodDelete, "/api/sessions/"+sess.ID.String(), nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())
	createSession(t, env)

	w := env.do(t, http.MethodGet, "/api/stats", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data session.Stats `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Total != 1 {
		t.Errorf("expected 1 total session, got %d", resp.Data.Total)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, mock.NewProvider())

	w := env.do(t, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health body: %s", w.Body.String())
	}
}
