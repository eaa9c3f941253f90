package convo

import (
	"time"

	"github.com/google/uuid"
)

// Status is the externally visible conversation state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusListening Status = "listening"
	StatusThinking  Status = "thinking"
	StatusSpeaking  Status = "speaking"
)

// Speaker values for Message. Agent messages carry the agent id instead.
const (
	SpeakerUser   = "user"
	SpeakerSystem = "system"
)

// Message is one finalized contribution. Immutable once created.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Speaker        string    `json:"speaker"`
	Text           string    `json:"text"`
	AudioRef       string    `json:"audio_ref,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewMessage(conversationID, speaker, text string) Message {
	return Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Speaker:        speaker,
		Text:           text,
		Timestamp:      time.Now().UTC(),
	}
}

// PreparedTurn is a speculatively generated and synthesized follow-up,
// cached while the current turn's audio is still playing.
type PreparedTurn struct {
	AgentID   string
	Text      string
	Score     float64
	Audio     [][]byte
	StartedAt time.Time
}
