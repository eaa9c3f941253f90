package notify

import (
	"context"
	"sync"

	"github.com/parleyhq/parley/pkg/convo"
	"github.com/parleyhq/parley/pkg/logger"
)

// Feed is a channel-backed Notifier scoped to one client session. Each
// websocket connection gets its own Feed; conversations never multiplex
// through a shared bus.
type Feed struct {
	events chan Event
	mu     sync.RWMutex
	closed bool
}

// NewFeed creates a Feed. Audio chunks dominate the volume, so the
// buffer is sized for a few seconds of synthesized audio.
func NewFeed() *Feed {
	return &Feed{events: make(chan Event, 256)}
}

func (f *Feed) publish(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.events <- ev:
	default:
		// A consumer that stopped draining must not stall the
		// coordinator; drop and log instead.
		logger.Warn("notify", "Event dropped, feed full", map[string]any{
			"conversation": ev.ConversationID,
			"kind":         string(ev.Kind),
		})
	}
}

// Next blocks for the next event. The bool is false when the context is
// cancelled or the feed is closed.
func (f *Feed) Next(ctx context.Context) (Event, bool) {
	select {
	case ev, ok := <-f.events:
		return ev, ok
	case <-ctx.Done():
		return Event{}, false
	}
}

func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.events)
}

func (f *Feed) Status(conversationID string, status convo.Status) {
	f.publish(Event{ConversationID: conversationID, Kind: KindStatus, Status: status})
}

func (f *Feed) Speaking(conversationID, agentID, text string) {
	f.publish(Event{ConversationID: conversationID, Kind: KindSpeaking, AgentID: agentID, Text: text})
}

func (f *Feed) Audio(conversationID string, chunk []byte) {
	f.publish(Event{ConversationID: conversationID, Kind: KindAudio, Audio: chunk})
}

func (f *Feed) Transcript(conversationID string, msg convo.Message) {
	f.publish(Event{ConversationID: conversationID, Kind: KindTranscript, Message: &msg})
}

func (f *Feed) Error(conversationID, message string) {
	f.publish(Event{ConversationID: conversationID, Kind: KindError, Text: message})
}

func (f *Feed) Warning(conversationID, message string) {
	f.publish(Event{ConversationID: conversationID, Kind: KindWarning, Text: message})
}

func (f *Feed) Interrupted(conversationID string) {
	f.publish(Event{ConversationID: conversationID, Kind: KindInterrupted})
}

func (f *Feed) Ended(conversationID string) {
	f.publish(Event{ConversationID: conversationID, Kind: KindEnded})
}
