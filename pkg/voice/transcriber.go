package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/parleyhq/parley/pkg/logger"
)

// WhisperTranscriber talks to an OpenAI-compatible /audio/transcriptions
// endpoint (Groq, OpenAI, or a local whisper server).
type WhisperTranscriber struct {
	apiKey     string
	apiBase    string
	model      string
	httpClient *http.Client
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func NewWhisperTranscriber(apiKey, apiBase, model string) *WhisperTranscriber {
	return &WhisperTranscriber{
		apiKey:  apiKey,
		apiBase: strings.TrimRight(apiBase, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Transcribe uploads the audio and returns the recognized text.
// Empty audio and empty transcriptions both surface as ErrNoSpeech.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrNoSpeech
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "utterance.ogg")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("failed to write response_format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := t.apiBase + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.Error("voice", "Transcription API error", map[string]any{
			"status": resp.StatusCode,
			"body":   string(respBody),
		})
		return "", fmt.Errorf("transcription API error (status %d)", resp.StatusCode)
	}

	var result transcriptionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal transcription: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", ErrNoSpeech
	}

	logger.Debug("voice", "Transcription complete", map[string]any{
		"audio_bytes": len(audio),
		"text_length": len(text),
	})
	return text, nil
}

func (t *WhisperTranscriber) IsAvailable() bool {
	return t.apiKey != "" || strings.Contains(t.apiBase, "localhost") || strings.Contains(t.apiBase, "127.0.0.1")
}
