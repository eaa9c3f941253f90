// Package orchestrator runs the per-conversation turn machinery: it
// picks which agent speaks, streams the synthesized turn to the remote
// consumer, decides whether another agent continues, and prepares the
// likely next turn while the current one is still playing.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/pkg/agent"
	"github.com/parleyhq/parley/pkg/brain"
	"github.com/parleyhq/parley/pkg/config"
	"github.com/parleyhq/parley/pkg/convo"
	"github.com/parleyhq/parley/pkg/logger"
	"github.com/parleyhq/parley/pkg/notify"
	"github.com/parleyhq/parley/pkg/voice"
)

// ErrNotFound mirrors the store's error for callers that only import
// this package.
var ErrNotFound = convo.ErrNotFound

// ResponseGenerator produces one agent's candidate text.
type ResponseGenerator interface {
	Generate(ctx context.Context, req brain.Request) (string, error)
}

// ResponseScorer rates a candidate 0-10; the bool marks a placeholder
// score substituted under upstream rate limiting.
type ResponseScorer interface {
	Score(ctx context.Context, a *agent.Agent, text string, history []convo.Message) (float64, bool, error)
}

// TranscriptSink receives every finalized message for durable storage.
// Appends must not block.
type TranscriptSink interface {
	Append(msg convo.Message)
}

type Orchestrator struct {
	store    *convo.Store
	registry *agent.Registry
	gen      ResponseGenerator
	scorer   ResponseScorer
	synth    voice.Synthesizer
	stt      voice.Transcriber
	sink     TranscriptSink
	cfg      config.ConversationConfig

	mu       sync.Mutex
	sessions map[string]*session
}

// session pairs a conversation with its notifier and serializes turn
// cycles: only one coordinator execution mutates a conversation at a
// time.
type session struct {
	conv     *convo.Conversation
	notifier notify.Notifier
	turnMu   sync.Mutex
	// prepCancel aborts the in-flight speculative round. Touched only
	// by the coordinator goroutine holding turnMu.
	prepCancel context.CancelFunc
}

// cancelPrep tears down any in-flight speculative round so it can
// never cache a result into a later cycle.
func (s *session) cancelPrep() {
	if s.prepCancel != nil {
		s.prepCancel()
		s.prepCancel = nil
	}
}

func New(store *convo.Store, registry *agent.Registry, gen ResponseGenerator, scorer ResponseScorer,
	synth voice.Synthesizer, stt voice.Transcriber, sink TranscriptSink, cfg config.ConversationConfig) *Orchestrator {
	return &Orchestrator{
		store:    store,
		registry: registry,
		gen:      gen,
		scorer:   scorer,
		synth:    synth,
		stt:      stt,
		sink:     sink,
		cfg:      cfg,
		sessions: make(map[string]*session),
	}
}

// StartOptions configures a new conversation.
type StartOptions struct {
	ConversationID string // empty generates one
	AgentIDs       []string
	Topic          string
	UserName       string
	UserRole       string
	AgentOnly      bool
	// AutoStart makes the first listed agent open the conversation
	// without user input.
	AutoStart bool
	Notifier  notify.Notifier
}

// Start registers a conversation and returns its id. With AutoStart the
// opening turn runs on a fresh goroutine.
func (o *Orchestrator) Start(ctx context.Context, opts StartOptions) (string, error) {
	if len(opts.AgentIDs) == 0 || len(opts.AgentIDs) > 3 {
		return "", fmt.Errorf("conversation needs 1-3 agents, got %d", len(opts.AgentIDs))
	}
	if _, err := o.registry.Resolve(opts.AgentIDs); err != nil {
		return "", err
	}
	if opts.Notifier == nil {
		return "", errors.New("notifier is required")
	}

	id := opts.ConversationID
	if id == "" {
		id = uuid.NewString()
	}

	c := convo.New(id, opts.AgentIDs, opts.Topic)
	c.UserName = opts.UserName
	c.UserRole = opts.UserRole
	c.AgentOnly = opts.AgentOnly

	if err := o.store.Put(c); err != nil {
		return "", err
	}

	s := &session{conv: c, notifier: opts.Notifier}
	o.mu.Lock()
	o.sessions[id] = s
	o.mu.Unlock()

	logger.Info("orchestrator", "Conversation started", map[string]any{
		"conversation": id,
		"agents":       opts.AgentIDs,
		"agent_only":   opts.AgentOnly,
		"auto_start":   opts.AutoStart,
	})
	s.notifier.Status(id, convo.StatusIdle)

	if opts.AutoStart {
		go o.runOpeningTurn(ctx, s)
	}
	return id, nil
}

func (o *Orchestrator) session(id string) (*session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[id]
	if !ok {
		return nil, convo.ErrNotFound
	}
	return s, nil
}

// SubmitUserAudio transcribes a user utterance, appends it to history
// and runs a full turn cycle. It blocks until the conversation returns
// to idle, so callers normally run it on its own goroutine.
func (o *Orchestrator) SubmitUserAudio(ctx context.Context, conversationID string, audio []byte) error {
	s, err := o.session(conversationID)
	if err != nil {
		return err
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	c := s.conv

	o.setStatus(s, convo.StatusListening)

	text, err := o.stt.Transcribe(ctx, audio)
	if err != nil {
		if errors.Is(err, voice.ErrNoSpeech) {
			s.notifier.Error(c.ID, "I couldn't make out any speech, please try again.")
		} else {
			logger.Error("orchestrator", "Transcription failed", map[string]any{
				"conversation": c.ID,
				"error":        err.Error(),
			})
			s.notifier.Error(c.ID, "Transcription failed.")
		}
		o.setStatus(s, convo.StatusIdle)
		return nil
	}

	msg := convo.NewMessage(c.ID, convo.SpeakerUser, text)
	o.commit(s, msg)

	o.runTurnCycle(ctx, s)
	return nil
}

// Interrupt flags the conversation; the coordinator observes the flag
// at its next checkpoint. An idle conversation just swallows the flag.
func (o *Orchestrator) Interrupt(conversationID string) error {
	s, err := o.session(conversationID)
	if err != nil {
		return err
	}
	c := s.conv
	c.Interrupt()
	if c.Status() == convo.StatusIdle {
		c.TakeInterrupt()
		return nil
	}
	logger.Info("orchestrator", "Interruption requested", map[string]any{
		"conversation": c.ID,
		"status":       string(c.Status()),
	})
	return nil
}

// SignalPlaybackEnded fires the armed playback completion for the
// conversation. Unknown ids error; an unarmed signal is a no-op (the
// consumer may race a just-finished interruption).
func (o *Orchestrator) SignalPlaybackEnded(conversationID string) error {
	s, err := o.session(conversationID)
	if err != nil {
		return err
	}
	s.conv.FirePlayback()
	return nil
}

// End interrupts any in-flight turn, removes the conversation and
// emits the ended notification.
func (o *Orchestrator) End(conversationID string) error {
	s, err := o.session(conversationID)
	if err != nil {
		return err
	}

	s.conv.Interrupt()

	o.mu.Lock()
	delete(o.sessions, conversationID)
	o.mu.Unlock()
	o.store.Remove(conversationID)

	s.notifier.Ended(conversationID)
	logger.Info("orchestrator", "Conversation ended", map[string]any{
		"conversation": conversationID,
		"messages":     len(s.conv.Messages()),
		"age":          s.conv.Age().Round(time.Second).String(),
	})
	return nil
}

// EndAll sweeps every live conversation; used at shutdown.
func (o *Orchestrator) EndAll() {
	o.mu.Lock()
	ids := make([]string, 0, len(o.sessions))
	for id := range o.sessions {
		ids = append(ids, id)
	}
	o.mu.Unlock()
	for _, id := range ids {
		o.End(id)
	}
}

// setStatus transitions the state machine and notifies on real changes.
func (o *Orchestrator) setStatus(s *session, status convo.Status) {
	if s.conv.SetStatus(status) {
		s.notifier.Status(s.conv.ID, status)
	}
}

// commit appends a finalized message, notifies the transcript and hands
// it to the durable sink.
func (o *Orchestrator) commit(s *session, msg convo.Message) {
	s.conv.Append(msg)
	s.notifier.Transcript(s.conv.ID, msg)
	if o.sink != nil {
		o.sink.Append(msg)
	}
}
