package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/parleyhq/parley/pkg/agent"
	"github.com/parleyhq/parley/pkg/brain"
	"github.com/parleyhq/parley/pkg/config"
	"github.com/parleyhq/parley/pkg/convo"
	"github.com/parleyhq/parley/pkg/notify"
)

// recorder collects notifications and optionally reacts to them, which
// is how tests drive the playback handshake.
type recorder struct {
	mu     sync.Mutex
	events []notify.Event
	onEvent func(ev notify.Event)
}

func (r *recorder) record(ev notify.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	hook := r.onEvent
	r.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (r *recorder) snapshot() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) kinds() []notify.Kind {
	var out []notify.Kind
	for _, ev := range r.snapshot() {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) Status(id string, s convo.Status) {
	r.record(notify.Event{ConversationID: id, Kind: notify.KindStatus, Status: s})
}

func (r *recorder) Speaking(id, agentID, text string) {
	r.record(notify.Event{ConversationID: id, Kind: notify.KindSpeaking, AgentID: agentID, Text: text})
}

func (r *recorder) Audio(id string, chunk []byte) {
	r.record(notify.Event{ConversationID: id, Kind: notify.KindAudio, Audio: chunk})
}

func (r *recorder) Transcript(id string, msg convo.Message) {
	r.record(notify.Event{ConversationID: id, Kind: notify.KindTranscript, Message: &msg})
}

func (r *recorder) Error(id, msg string) {
	r.record(notify.Event{ConversationID: id, Kind: notify.KindError, Text: msg})
}

func (r *recorder) Warning(id, msg string) {
	r.record(notify.Event{ConversationID: id, Kind: notify.KindWarning, Text: msg})
}

func (r *recorder) Interrupted(id string) {
	r.record(notify.Event{ConversationID: id, Kind: notify.KindInterrupted})
}

func (r *recorder) Ended(id string) {
	r.record(notify.Event{ConversationID: id, Kind: notify.KindEnded})
}

// fakeGen scripts per-agent responses.
type fakeGen struct {
	mu    sync.Mutex
	fn    func(req brain.Request) (string, error)
	calls []string // agent ids in request order
}

func (f *fakeGen) Generate(ctx context.Context, req brain.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Agent.ID)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(req)
	}
	return "reply from " + req.Agent.Name, nil
}

// fakeScorer scores by agent id with an optional override.
type fakeScorer struct {
	scores map[string]float64
	fn     func(a *agent.Agent, text string) (float64, bool, error)
}

func (f *fakeScorer) Score(ctx context.Context, a *agent.Agent, text string, history []convo.Message) (float64, bool, error) {
	if f.fn != nil {
		return f.fn(a, text)
	}
	if s, ok := f.scores[a.ID]; ok {
		return s, false, nil
	}
	return 7, false, nil
}

// fakeSynth yields the text itself as a single audio chunk.
type fakeSynth struct{}

func (fakeSynth) Stream(ctx context.Context, text, voiceID string) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte, 1)
	errs := make(chan error)
	chunks <- []byte(text)
	close(chunks)
	close(errs)
	return chunks, errs
}

func (fakeSynth) IsAvailable() bool { return true }

// fakeSTT maps any audio to a fixed transcription.
type fakeSTT struct {
	text string
	err  error
}

func (f fakeSTT) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f fakeSTT) IsAvailable() bool { return true }

func testRegistry() *agent.Registry {
	r := agent.NewRegistry()
	r.Add(&agent.Agent{ID: "marcus", Name: "Marcus Webb", Role: "engineer", Voice: "am_adam"})
	r.Add(&agent.Agent{ID: "jennifer", Name: "Jennifer Ortiz", Role: "recruiter", Voice: "af_nova"})
	r.Add(&agent.Agent{ID: "priya", Name: "Priya Nair", Role: "designer", Voice: "af_bella"})
	return r
}

func testConfig() config.ConversationConfig {
	return config.ConversationConfig{
		MaxAgentTurns:     3,
		ContinueThreshold: 6,
		PlaybackPollMS:    5,
	}
}

// newTestOrchestrator wires fakes and an auto-player that signals
// playback completion shortly after each audio chunk arrives.
func newTestOrchestrator(gen *fakeGen, scorer *fakeScorer, autoplay bool) (*Orchestrator, *recorder) {
	o := New(convo.NewStore(), testRegistry(), gen, scorer, fakeSynth{}, fakeSTT{text: "hello"}, nil, testConfig())
	rec := &recorder{}
	if autoplay {
		rec.onEvent = func(ev notify.Event) {
			if ev.Kind == notify.KindAudio {
				o.SignalPlaybackEnded(ev.ConversationID)
			}
		}
	}
	return o, rec
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
