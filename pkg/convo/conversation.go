package convo

import (
	"sync"
	"time"
)

// Conversation is the mutable per-session state. All turn logic runs on
// the conversation's own coordinator goroutine; external signals
// (interrupt, playback-ended) only flip flags or fire the armed
// PlaybackSignal, so a single mutex suffices.
type Conversation struct {
	ID        string
	AgentIDs  []string
	Topic     string
	UserName  string
	UserRole  string
	AgentOnly bool

	mu             sync.Mutex
	messages       []Message
	status         Status
	currentSpeaker string
	interrupted    bool
	playback       *PlaybackSignal
	prepared       *PreparedTurn
	agentTurnRun   int
}

func New(id string, agentIDs []string, topic string) *Conversation {
	return &Conversation{
		ID:       id,
		AgentIDs: agentIDs,
		Topic:    topic,
		status:   StatusIdle,
	}
}

// Append adds a finalized message. User messages reset the consecutive
// agent-turn counter; agent messages advance it.
func (c *Conversation) Append(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	switch msg.Speaker {
	case SpeakerUser:
		c.agentTurnRun = 0
	case SpeakerSystem:
	default:
		c.agentTurnRun++
	}
}

// Messages returns a snapshot of the history in append order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// LastUserMessage returns the most recent user message, if any.
func (c *Conversation) LastUserMessage() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Speaker == SpeakerUser {
			return c.messages[i], true
		}
	}
	return Message{}, false
}

// AgentTurnRun reports consecutive agent turns since the last user message.
func (c *Conversation) AgentTurnRun() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentTurnRun
}

func (c *Conversation) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus transitions the state machine. Leaving speaking always
// clears the current speaker. Returns false when the status is unchanged
// so callers can skip duplicate notifications.
func (c *Conversation) SetStatus(s Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == s {
		return false
	}
	c.status = s
	if s != StatusSpeaking {
		c.currentSpeaker = ""
	}
	return true
}

func (c *Conversation) SetSpeaker(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentSpeaker = agentID
}

func (c *Conversation) CurrentSpeaker() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSpeaker
}

// Interrupt raises the interruption flag and fires any armed playback
// signal so a blocked playback wait wakes immediately.
func (c *Conversation) Interrupt() {
	c.mu.Lock()
	c.interrupted = true
	sig := c.playback
	c.mu.Unlock()
	if sig != nil {
		sig.Fire()
	}
}

// Interrupted peeks at the flag without consuming it.
func (c *Conversation) Interrupted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interrupted
}

// TakeInterrupt consumes the flag: it returns whether an interruption
// was pending and clears it, so exactly one suspension point observes
// each interruption.
func (c *Conversation) TakeInterrupt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.interrupted
	c.interrupted = false
	return was
}

// ArmPlayback installs a fresh single-use playback signal and returns
// it. Any previously armed signal is fired first so it can never be left
// dangling.
func (c *Conversation) ArmPlayback() *PlaybackSignal {
	c.mu.Lock()
	stale := c.playback
	sig := newPlaybackSignal()
	c.playback = sig
	c.mu.Unlock()
	if stale != nil {
		stale.Fire()
	}
	return sig
}

// FirePlayback completes the armed signal, if any, and clears the slot.
// Returns false when no signal was armed.
func (c *Conversation) FirePlayback() bool {
	c.mu.Lock()
	sig := c.playback
	c.playback = nil
	c.mu.Unlock()
	if sig == nil {
		return false
	}
	sig.Fire()
	return true
}

// DisarmPlayback clears the slot without requiring the signal to have
// fired; used once a wait has concluded.
func (c *Conversation) DisarmPlayback(sig *PlaybackSignal) {
	c.mu.Lock()
	if c.playback == sig {
		c.playback = nil
	}
	c.mu.Unlock()
}

// SetPrepared caches a speculative follow-up, replacing any stale entry.
// At most one prepared turn exists per conversation.
func (c *Conversation) SetPrepared(p *PreparedTurn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prepared = p
}

// OfferPrepared publishes a speculative follow-up unless stale reports
// the producing round has been torn down. The check and the write share
// the conversation lock, so a cancel-then-clear sequence on the
// coordinator can never be overwritten by a late producer. stale must
// not call back into the conversation.
func (c *Conversation) OfferPrepared(p *PreparedTurn, stale func() bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stale() {
		return false
	}
	c.prepared = p
	return true
}

// TakePrepared removes and returns the cached follow-up.
func (c *Conversation) TakePrepared() *PreparedTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.prepared
	c.prepared = nil
	return p
}

// Age is how long the conversation has existed, judged from its oldest
// message; zero when empty.
func (c *Conversation) Age() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return 0
	}
	return time.Since(c.messages[0].Timestamp)
}
