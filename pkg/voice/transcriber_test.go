package voice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranscribeEmptyAudio(t *testing.T) {
	tr := NewWhisperTranscriber("key", "https://example.com/v1", "whisper-large-v3")
	if _, err := tr.Transcribe(context.Background(), nil); !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("Transcribe(nil) error = %v, want ErrNoSpeech", err)
	}
}

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth header = %s", r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("not multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3" {
			t.Errorf("model field = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "  Hey Marcus, tell me about the coding test.  "}`))
	}))
	defer server.Close()

	tr := NewWhisperTranscriber("test-key", server.URL, "whisper-large-v3")
	text, err := tr.Transcribe(context.Background(), []byte{0x4f, 0x67, 0x67})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "Hey Marcus, tell me about the coding test." {
		t.Errorf("text = %q", text)
	}
}

func TestTranscribeEmptyResultIsNoSpeech(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": "   "}`))
	}))
	defer server.Close()

	tr := NewWhisperTranscriber("k", server.URL, "m")
	if _, err := tr.Transcribe(context.Background(), []byte{1}); !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("blank transcription error = %v, want ErrNoSpeech", err)
	}
}

func TestTranscribeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := NewWhisperTranscriber("k", server.URL, "m")
	if _, err := tr.Transcribe(context.Background(), []byte{1}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestTranscriberImplementsInterface(t *testing.T) {
	var _ Transcriber = (*WhisperTranscriber)(nil)
}
