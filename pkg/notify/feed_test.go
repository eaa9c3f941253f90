package notify

import (
	"context"
	"testing"
	"time"

	"github.com/parleyhq/parley/pkg/convo"
)

func TestFeedDeliversInOrder(t *testing.T) {
	f := NewFeed()
	f.Status("c1", convo.StatusListening)
	f.Speaking("c1", "a1", "hello")
	f.Ended("c1")

	ctx := context.Background()
	for i, want := range []Kind{KindStatus, KindSpeaking, KindEnded} {
		ev, ok := f.Next(ctx)
		if !ok {
			t.Fatalf("event %d missing", i)
		}
		if ev.Kind != want {
			t.Fatalf("event %d kind = %s, want %s", i, ev.Kind, want)
		}
	}
}

func TestFeedNextHonorsContext(t *testing.T) {
	f := NewFeed()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok := f.Next(ctx); ok {
		t.Fatal("Next returned an event from an empty feed")
	}
}

func TestFeedDropsWhenFull(t *testing.T) {
	f := NewFeed()
	for i := 0; i < 300; i++ {
		f.Audio("c1", []byte{0x01})
	}
	// Publish must not have blocked; drain what fit.
	n := 0
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	for {
		if _, ok := f.Next(ctx); !ok {
			break
		}
		n++
	}
	if n != 256 {
		t.Fatalf("drained %d events, want buffer size 256", n)
	}
}

func TestFeedCloseIsIdempotentAndStopsPublish(t *testing.T) {
	f := NewFeed()
	f.Close()
	f.Close()
	f.Error("c1", "late") // must not panic on closed channel
	if _, ok := f.Next(context.Background()); ok {
		t.Fatal("closed feed yielded an event")
	}
}
