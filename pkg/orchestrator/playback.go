package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/parleyhq/parley/pkg/convo"
	"github.com/parleyhq/parley/pkg/logger"
)

func (o *Orchestrator) pollInterval() time.Duration {
	ms := o.cfg.PlaybackPollMS
	if ms <= 0 {
		ms = 100
	}
	return time.Duration(ms) * time.Millisecond
}

type playResult int

const (
	playCompleted playResult = iota
	playInterrupted
	playFailed
)

// playTurn dispatches the turn's audio to the remote consumer and
// blocks until playback completes or the conversation is interrupted.
// The playback signal is armed before the first chunk leaves, so a fast
// consumer cannot signal completion into a missing slot.
func (o *Orchestrator) playTurn(ctx context.Context, s *session, t *turnCandidate) playResult {
	c := s.conv
	sig := c.ArmPlayback()

	var interrupted bool
	var err error
	if t.audio != nil {
		interrupted = o.sendCached(c, s, t.audio)
	} else {
		interrupted, err = o.streamLive(ctx, s, t)
	}
	if err != nil {
		c.DisarmPlayback(sig)
		o.failTurn(s, "Speech synthesis failed.", err)
		return playFailed
	}
	if interrupted {
		c.DisarmPlayback(sig)
		c.TakeInterrupt()
		return playInterrupted
	}

	if o.waitPlayback(c, sig) {
		return playInterrupted
	}
	return playCompleted
}

// sendCached pushes pre-synthesized chunks, checking the interruption
// flag between chunks.
func (o *Orchestrator) sendCached(c *convo.Conversation, s *session, audio [][]byte) bool {
	for _, chunk := range audio {
		if c.Interrupted() {
			return true
		}
		s.notifier.Audio(c.ID, chunk)
	}
	return false
}

// streamLive synthesizes the turn and forwards chunks as they arrive.
func (o *Orchestrator) streamLive(ctx context.Context, s *session, t *turnCandidate) (interrupted bool, err error) {
	c := s.conv
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, errs := o.synth.Stream(streamCtx, t.text, t.agent.Voice)
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if c.Interrupted() {
				cancel()
				return true, nil
			}
			s.notifier.Audio(c.ID, chunk)
		case streamErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if streamErr != nil {
				return false, fmt.Errorf("synthesis stream: %w", streamErr)
			}
		}
	}
	return false, nil
}

// synthesizeAll collects a full synthesized turn for the speculative
// cache, abandoning on interruption.
func (o *Orchestrator) synthesizeAll(ctx context.Context, c *convo.Conversation, t *turnCandidate) ([][]byte, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var audio [][]byte
	chunks, errs := o.synth.Stream(streamCtx, t.text, t.agent.Voice)
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if c.Interrupted() {
				cancel()
				return nil, context.Canceled
			}
			audio = append(audio, chunk)
		case streamErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if streamErr != nil {
				return nil, streamErr
			}
		}
	}
	return audio, nil
}

// waitPlayback suspends the coordinator until the remote consumer
// signals completion or an interruption fires the armed signal. The
// flag is also polled on a short interval as a backstop. Returns true
// when the wake-up was an interruption.
func (o *Orchestrator) waitPlayback(c *convo.Conversation, sig *convo.PlaybackSignal) bool {
	ticker := time.NewTicker(o.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-sig.Done():
			c.DisarmPlayback(sig)
			if c.TakeInterrupt() {
				return true
			}
			logger.Debug("orchestrator", "Playback completed", map[string]any{
				"conversation": c.ID,
			})
			return false
		case <-ticker.C:
			if c.Interrupted() {
				c.DisarmPlayback(sig)
				sig.Fire()
				c.TakeInterrupt()
				return true
			}
		}
	}
}
