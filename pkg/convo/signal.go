package convo

import "sync"

// PlaybackSignal is a single-use completion primitive. A fresh one is
// armed for every playback wait; Fire is safe to call from both the
// natural-completion path and the interruption path, and only the first
// call has effect.
type PlaybackSignal struct {
	once sync.Once
	ch   chan struct{}
}

func newPlaybackSignal() *PlaybackSignal {
	return &PlaybackSignal{ch: make(chan struct{})}
}

// Fire completes the signal. Subsequent calls are no-ops.
func (s *PlaybackSignal) Fire() {
	s.once.Do(func() { close(s.ch) })
}

// Done is closed once the signal has fired.
func (s *PlaybackSignal) Done() <-chan struct{} {
	return s.ch
}

// Fired reports whether the signal has completed without blocking.
func (s *PlaybackSignal) Fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}
