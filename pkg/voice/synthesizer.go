package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/parleyhq/parley/pkg/logger"
)

const streamChunkSize = 4096

// SpeechSynthesizer talks to an OpenAI-compatible /v1/audio/speech
// endpoint (Kokoro, OpenAI) and streams the response body as ordered
// chunks instead of buffering a whole file.
type SpeechSynthesizer struct {
	apiBase    string
	model      string
	apiKey     string
	httpClient *http.Client
}

type speechRequest struct {
	Model  string `json:"model"`
	Input  string `json:"input"`
	Voice  string `json:"voice"`
	Format string `json:"response_format,omitempty"`
}

func NewSpeechSynthesizer(apiBase, model, apiKey string) *SpeechSynthesizer {
	return &SpeechSynthesizer{
		apiBase: strings.TrimRight(apiBase, "/"),
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Stream synthesizes text and emits the audio as it arrives.
func (s *SpeechSynthesizer) Stream(ctx context.Context, text, voiceID string) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte, 8)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		reqBody := speechRequest{
			Model:  s.model,
			Input:  text,
			Voice:  voiceID,
			Format: "mp3",
		}
		bodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			errs <- fmt.Errorf("failed to marshal speech request: %w", err)
			return
		}

		url := s.apiBase + "/v1/audio/speech"
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
		if err != nil {
			errs <- fmt.Errorf("failed to create speech request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if s.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.apiKey)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			errs <- fmt.Errorf("speech request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			errs <- fmt.Errorf("speech API error (status %d): %s", resp.StatusCode, string(msg))
			return
		}

		total := 0
		for {
			buf := make([]byte, streamChunkSize)
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				total += n
				select {
				case chunks <- buf[:n]:
				case <-ctx.Done():
					return
				}
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("speech stream read failed: %w", readErr)
				}
				return
			}
		}

		logger.Debug("voice", "Speech stream complete", map[string]any{
			"voice":       voiceID,
			"text_length": len(text),
			"audio_bytes": total,
		})
	}()

	return chunks, errs
}

// IsAvailable probes the TTS server's model listing.
func (s *SpeechSynthesizer) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", s.apiBase+"/v1/models", nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
