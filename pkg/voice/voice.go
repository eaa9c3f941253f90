package voice

import (
	"context"
	"errors"
)

// ErrNoSpeech is returned when audio holds no usable speech.
var ErrNoSpeech = errors.New("no usable speech in audio")

// Transcriber converts captured audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
	IsAvailable() bool
}

// Synthesizer converts text to speech as an ordered stream of audio
// chunks. The chunk channel closes at end of stream; the error channel
// delivers at most one error and then closes. Cancelling ctx abandons
// the stream.
type Synthesizer interface {
	Stream(ctx context.Context, text, voiceID string) (<-chan []byte, <-chan error)
	IsAvailable() bool
}
