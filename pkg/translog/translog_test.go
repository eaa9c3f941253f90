package translog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/parleyhq/parley/pkg/convo"
)

func TestAppendAndHistory(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "transcript.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer l.Close()

	base := time.Now().UTC().Truncate(time.Second)
	msgs := []convo.Message{
		{ID: "m1", ConversationID: "c1", Speaker: convo.SpeakerUser, Text: "hello", Timestamp: base},
		{ID: "m2", ConversationID: "c1", Speaker: "marcus", Text: "hi there", Timestamp: base.Add(time.Second)},
		{ID: "m3", ConversationID: "c2", Speaker: convo.SpeakerUser, Text: "other convo", Timestamp: base},
	}
	for _, m := range msgs {
		l.Append(m)
	}

	// Append is async; poll until the writer catches up.
	deadline := time.Now().Add(2 * time.Second)
	var got []convo.Message
	for time.Now().Before(deadline) {
		got, err = l.History(context.Background(), "c1")
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(got) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(got) != 2 {
		t.Fatalf("History(c1) = %d messages, want 2", len(got))
	}
	if got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("History order = [%s %s]", got[0].ID, got[1].ID)
	}
	if got[1].Text != "hi there" || got[1].Speaker != "marcus" {
		t.Fatalf("round-trip mismatch: %+v", got[1])
	}
}

func TestCloseDrainsPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.db")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		l.Append(convo.NewMessage("c1", convo.SpeakerUser, "msg"))
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	l2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()
	got, err := l2.History(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 50 {
		t.Fatalf("persisted %d messages, want 50", len(got))
	}
}

// Turn goroutines can still be committing while shutdown closes the
// log; late appends are dropped, never a panic.
func TestAppendAfterClose(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "transcript.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	l.Append(convo.NewMessage("c1", convo.SpeakerUser, "too late"))

	if err := l.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
