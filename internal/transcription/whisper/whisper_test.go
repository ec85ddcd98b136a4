package whisper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/kbukum/medscribe/internal/errors"
	"github.com/kbukum/medscribe/internal/transcription"
)

func writeAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "consult.wav")
	if err := os.WriteFile(path, []byte("fake audio bytes"), 0o644); err != nil {
		t.Fatalf("write audio file: %v", err)
	}
	return path
}

func TestTranscribe(t *testing.T) {
	var gotModel, gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		if _, _, err := r.FormFile("audio"); err != nil {
			t.Errorf("missing audio part: %v", err)
		}

		json.NewEncoder(w).Encode(whisperResponse{
			Text:     "How are you feeling today? I have a headache.",
			Language: "en",
			Segments: []whisperSegment{
				{Start: 0.0, End: 2.5, Text: "How are you feeling today?"},
				{Start: 3.0, End: 6.0, Text: "I have a headache."},
			},
		})
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL, Model: "base", Language: "en"})
	result, err := p.Transcribe(context.Background(), transcription.Request{AudioPath: writeAudioFile(t)})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}

	if gotModel != "base" {
		t.Errorf("expected model base, got %q", gotModel)
	}
	if gotLanguage != "en" {
		t.Errorf("expected language en, got %q", gotLanguage)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(result.Segments))
	}
	if result.Duration != 6.0 {
		t.Errorf("expected duration 6.0, got %v", result.Duration)
	}
	if result.Segments[0].Text != "How are you feeling today?" {
		t.Errorf("unexpected first segment %q", result.Segments[0].Text)
	}
}

func TestTranscribeRequestModelOverride(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(10 << 20)
		gotModel = r.FormValue("model")
		json.NewEncoder(w).Encode(whisperResponse{})
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL, Model: "tiny"})
	_, err := p.Transcribe(context.Background(), transcription.Request{
		AudioPath: writeAudioFile(t),
		Model:     "medium",
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if gotModel != "medium" {
		t.Errorf("expected per-request model medium, got %q", gotModel)
	}
}

func TestTranscribeUnsupportedFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "cannot decode audio", http.StatusUnsupportedMediaType)
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL})
	_, err := p.Transcribe(context.Background(), transcription.Request{AudioPath: writeAudioFile(t)})
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}
	if appErr.Code != apperrors.ErrCodeUnsupportedFormat {
		t.Errorf("expected code %s, got %s", apperrors.ErrCodeUnsupportedFormat, appErr.Code)
	}
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL})
	_, err := p.Transcribe(context.Background(), transcription.Request{AudioPath: writeAudioFile(t)})
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}
	if appErr.Code != apperrors.ErrCodeExternalService {
		t.Errorf("expected code %s, got %s", apperrors.ErrCodeExternalService, appErr.Code)
	}
	if !appErr.Retryable {
		t.Error("expected external service errors to be retryable")
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	p := NewProvider(Config{URL: "http://localhost:1"})
	_, err := p.Transcribe(context.Background(), transcription.Request{AudioPath: "/does/not/exist.wav"})
	if err == nil {
		t.Fatal("expected an error for a missing audio file")
	}
}

func TestTranscribeContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProvider(Config{URL: srv.URL})
	_, err := p.Transcribe(ctx, transcription.Request{AudioPath: writeAudioFile(t)})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
