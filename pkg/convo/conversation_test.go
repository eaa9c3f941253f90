package convo

import (
	"testing"
	"time"
)

func TestAppendTracksAgentTurnRun(t *testing.T) {
	c := New("c1", []string{"a1", "a2"}, "testing")

	c.Append(NewMessage(c.ID, SpeakerUser, "hello"))
	if got := c.AgentTurnRun(); got != 0 {
		t.Fatalf("run after user message = %d, want 0", got)
	}

	c.Append(NewMessage(c.ID, "a1", "hi"))
	c.Append(NewMessage(c.ID, "a2", "hey"))
	if got := c.AgentTurnRun(); got != 2 {
		t.Fatalf("run after two agent turns = %d, want 2", got)
	}

	c.Append(NewMessage(c.ID, SpeakerSystem, "marker"))
	if got := c.AgentTurnRun(); got != 2 {
		t.Fatalf("system message changed run: %d", got)
	}

	c.Append(NewMessage(c.ID, SpeakerUser, "back"))
	if got := c.AgentTurnRun(); got != 0 {
		t.Fatalf("run after user reset = %d, want 0", got)
	}
}

func TestMessagesSnapshotIsIndependent(t *testing.T) {
	c := New("c1", nil, "")
	c.Append(NewMessage(c.ID, SpeakerUser, "one"))
	snap := c.Messages()
	c.Append(NewMessage(c.ID, SpeakerUser, "two"))
	if len(snap) != 1 {
		t.Fatalf("snapshot grew to %d entries", len(snap))
	}
	if len(c.Messages()) != 2 {
		t.Fatalf("history = %d entries, want 2", len(c.Messages()))
	}
}

func TestLastUserMessage(t *testing.T) {
	c := New("c1", nil, "")
	if _, ok := c.LastUserMessage(); ok {
		t.Fatal("empty conversation reported a user message")
	}
	c.Append(NewMessage(c.ID, SpeakerUser, "first"))
	c.Append(NewMessage(c.ID, "a1", "reply"))
	c.Append(NewMessage(c.ID, SpeakerUser, "second"))
	c.Append(NewMessage(c.ID, "a2", "reply2"))
	msg, ok := c.LastUserMessage()
	if !ok || msg.Text != "second" {
		t.Fatalf("LastUserMessage = %+v, ok=%v", msg, ok)
	}
}

func TestStatusTransitionClearsSpeaker(t *testing.T) {
	c := New("c1", nil, "")
	c.SetStatus(StatusSpeaking)
	c.SetSpeaker("a1")
	if c.CurrentSpeaker() != "a1" {
		t.Fatal("speaker not set")
	}
	if !c.SetStatus(StatusIdle) {
		t.Fatal("transition to idle reported unchanged")
	}
	if c.CurrentSpeaker() != "" {
		t.Fatal("leaving speaking did not clear the speaker")
	}
	if c.SetStatus(StatusIdle) {
		t.Fatal("idle->idle should report unchanged")
	}
}

func TestTakeInterruptConsumesFlag(t *testing.T) {
	c := New("c1", nil, "")
	if c.TakeInterrupt() {
		t.Fatal("fresh conversation reported interrupted")
	}
	c.Interrupt()
	if !c.Interrupted() {
		t.Fatal("peek missed the flag")
	}
	if !c.TakeInterrupt() {
		t.Fatal("TakeInterrupt missed the flag")
	}
	if c.TakeInterrupt() {
		t.Fatal("flag observed twice")
	}
}

func TestInterruptFiresArmedPlayback(t *testing.T) {
	c := New("c1", nil, "")
	sig := c.ArmPlayback()
	c.Interrupt()
	select {
	case <-sig.Done():
	case <-time.After(time.Second):
		t.Fatal("interrupt did not fire the playback signal")
	}
}

func TestPlaybackSignalFiresOnce(t *testing.T) {
	c := New("c1", nil, "")
	sig := c.ArmPlayback()
	if !c.FirePlayback() {
		t.Fatal("FirePlayback found no armed signal")
	}
	if c.FirePlayback() {
		t.Fatal("second FirePlayback found a signal")
	}
	sig.Fire() // must be safe
	if !sig.Fired() {
		t.Fatal("signal not fired")
	}
}

func TestArmPlaybackReplacesStaleSignal(t *testing.T) {
	c := New("c1", nil, "")
	old := c.ArmPlayback()
	fresh := c.ArmPlayback()
	if !old.Fired() {
		t.Fatal("stale signal left dangling")
	}
	if fresh.Fired() {
		t.Fatal("fresh signal fired prematurely")
	}
}

func TestPreparedSlotHoldsOneEntry(t *testing.T) {
	c := New("c1", nil, "")
	c.SetPrepared(&PreparedTurn{AgentID: "a1", Text: "first"})
	c.SetPrepared(&PreparedTurn{AgentID: "a2", Text: "second"})
	p := c.TakePrepared()
	if p == nil || p.AgentID != "a2" {
		t.Fatalf("TakePrepared = %+v, want the replacement", p)
	}
	if c.TakePrepared() != nil {
		t.Fatal("slot not cleared after take")
	}
}

func TestOfferPreparedRespectsStaleCheck(t *testing.T) {
	c := New("c1", nil, "")
	if c.OfferPrepared(&PreparedTurn{AgentID: "a1"}, func() bool { return true }) {
		t.Fatal("stale offer accepted")
	}
	if c.TakePrepared() != nil {
		t.Fatal("stale offer landed in the slot")
	}
	if !c.OfferPrepared(&PreparedTurn{AgentID: "a1"}, func() bool { return false }) {
		t.Fatal("live offer rejected")
	}
	p := c.TakePrepared()
	if p == nil || p.AgentID != "a1" {
		t.Fatalf("TakePrepared = %+v, want the offered turn", p)
	}
}
