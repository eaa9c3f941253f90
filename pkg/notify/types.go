package notify

import "github.com/parleyhq/parley/pkg/convo"

type Kind string

const (
	KindStatus      Kind = "status"
	KindSpeaking    Kind = "speaking"
	KindAudio       Kind = "audio"
	KindTranscript  Kind = "transcript"
	KindError       Kind = "error"
	KindWarning     Kind = "warning"
	KindInterrupted Kind = "interrupted"
	KindEnded       Kind = "ended"
)

// Event is one notification to the session's remote consumer. Only the
// fields relevant to Kind are set.
type Event struct {
	ConversationID string         `json:"conversation_id"`
	Kind           Kind           `json:"kind"`
	Status         convo.Status   `json:"status,omitempty"`
	AgentID        string         `json:"agent_id,omitempty"`
	Text           string         `json:"text,omitempty"`
	Audio          []byte         `json:"-"`
	Message        *convo.Message `json:"message,omitempty"`
}

// Notifier is the orchestrator's view of the outbound channel.
type Notifier interface {
	Status(conversationID string, status convo.Status)
	Speaking(conversationID, agentID, text string)
	Audio(conversationID string, chunk []byte)
	Transcript(conversationID string, msg convo.Message)
	Error(conversationID, message string)
	Warning(conversationID, message string)
	Interrupted(conversationID string)
	Ended(conversationID string)
}
