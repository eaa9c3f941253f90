package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/parleyhq/parley/pkg/brain"
	"github.com/parleyhq/parley/pkg/convo"
	"github.com/parleyhq/parley/pkg/logger"
)

var errNoCandidates = errors.New("no candidate produced a response")

// prep tracks one speculative preparation round. done closes when the
// round finishes, whether it produced a cached follow-up or decided to
// stop; the outcome lives in the conversation's prepared slot.
// abandoned is set before done closes when the round died to an error
// rather than deciding anything, so continuation can retry it
// synchronously instead of reading the empty slot as a stop.
type prep struct {
	done      chan struct{}
	abandoned bool
}

// runOpeningTurn lets the designated opener (the first listed agent)
// start an auto-start conversation, then hands off to the normal
// continuation cycle.
func (o *Orchestrator) runOpeningTurn(ctx context.Context, s *session) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	c := s.conv

	opener := o.registry.Get(c.AgentIDs[0])
	if opener == nil {
		return
	}
	o.setStatus(s, convo.StatusThinking)

	text, err := o.gen.Generate(ctx, brain.Request{
		Agent:    opener,
		History:  c.Messages(),
		Topic:    c.Topic,
		UserName: c.UserName,
		UserRole: c.UserRole,
	})
	if err != nil {
		o.failTurn(s, "Could not open the conversation.", err)
		return
	}
	if c.TakeInterrupt() {
		o.abortToIdle(s)
		return
	}

	// The opener speaks unconditionally; scores only matter once
	// there is a round to win.
	o.runCycleFrom(ctx, s, &turnCandidate{agent: opener, text: text, score: 10})
}

// runTurnCycle answers the latest user message: one competitive
// selection round, then the continuation loop.
func (o *Orchestrator) runTurnCycle(ctx context.Context, s *session) {
	c := s.conv
	o.setStatus(s, convo.StatusThinking)

	winner, err := o.selectTurn(ctx, s, o.candidateAgents(c, ""))
	if err != nil {
		o.failTurn(s, "No agent could respond, please try again.", err)
		return
	}
	if c.TakeInterrupt() {
		o.abortToIdle(s)
		return
	}
	o.runCycleFrom(ctx, s, winner)
}

// runCycleFrom commits and plays current, then loops on the
// continuation decision until it says stop. Each iteration starts the
// next turn's speculative preparation before the current turn's audio
// is synthesized, hiding generation latency behind playback time.
func (o *Orchestrator) runCycleFrom(ctx context.Context, s *session, current *turnCandidate) {
	c := s.conv

	for {
		msg := convo.NewMessage(c.ID, current.agent.ID, current.text)
		o.commit(s, msg)
		o.setStatus(s, convo.StatusSpeaking)
		c.SetSpeaker(current.agent.ID)
		s.notifier.Speaking(c.ID, current.agent.ID, current.text)

		var p *prep
		if o.mayContinue(c) {
			p = o.startPrep(ctx, s, current.agent.ID)
		}

		switch o.playTurn(ctx, s, current) {
		case playInterrupted:
			s.cancelPrep()
			c.SetPrepared(nil)
			o.abortToIdle(s)
			return
		case playFailed:
			// failTurn already surfaced the error and forced idle.
			s.cancelPrep()
			c.SetPrepared(nil)
			return
		}

		decision := o.decideContinuation(ctx, s, p, current.agent.ID)
		if c.TakeInterrupt() {
			s.cancelPrep()
			c.SetPrepared(nil)
			o.abortToIdle(s)
			return
		}
		if decision.next == nil {
			s.cancelPrep()
			o.setStatus(s, convo.StatusIdle)
			return
		}
		current = decision.next
	}
}

// mayContinue applies the continuation policy's bound: unbounded in
// agent-only mode, at most cfg.MaxAgentTurns consecutive agent turns
// since the last user message otherwise.
func (o *Orchestrator) mayContinue(c *convo.Conversation) bool {
	if c.AgentOnly {
		return true
	}
	return c.AgentTurnRun() < o.cfg.MaxAgentTurns
}

// continuation is the tagged outcome of the continuation decision:
// next set means continue with that turn, nil means stop.
type continuation struct {
	next    *turnCandidate
	outcome string // hit | wait | miss | stop
}

// decideContinuation consults the speculative pipeline once the current
// turn's playback has completed. p==nil means no speculative round was
// eligible; a populated prepared slot is a pipeline hit, an unfinished
// round is awaited, and a miss falls back to a synchronous round.
func (o *Orchestrator) decideContinuation(ctx context.Context, s *session, p *prep, lastSpeaker string) continuation {
	c := s.conv

	if !o.mayContinue(c) {
		return continuation{outcome: "stop"}
	}

	if p != nil {
		outcome := "hit"
		select {
		case <-p.done:
		default:
			outcome = "wait"
			if o.awaitPrep(c, p) {
				return continuation{outcome: "stop"}
			}
		}
		prepared := c.TakePrepared()
		if prepared != nil {
			logger.Debug("orchestrator", "Pipeline "+outcome, map[string]any{
				"conversation": c.ID,
				"agent":        prepared.AgentID,
				"lead_time":    time.Since(prepared.StartedAt).Round(time.Millisecond),
			})
			return continuation{
				next: &turnCandidate{
					agent: o.registry.Get(prepared.AgentID),
					text:  prepared.Text,
					score: prepared.Score,
					audio: prepared.Audio,
				},
				outcome: outcome,
			}
		}
		if !p.abandoned {
			// The speculative round ran and decided to stop.
			return continuation{outcome: "stop"}
		}
		// The round died to an error, not a decision. Treat it like a
		// miss and retry synchronously.
		logger.Debug("orchestrator", "Retrying abandoned speculative round", map[string]any{
			"conversation": c.ID,
		})
	}

	// Pipeline miss: generate synchronously.
	o.setStatus(s, convo.StatusThinking)
	next, err := o.selectTurn(ctx, s, o.candidateAgents(c, lastSpeaker))
	if err != nil {
		logger.Warn("orchestrator", "Continuation round failed", map[string]any{
			"conversation": c.ID,
			"error":        err.Error(),
		})
		return continuation{outcome: "stop"}
	}
	if !c.AgentOnly && next.score < o.cfg.ContinueThreshold {
		return continuation{outcome: "stop"}
	}
	return continuation{next: next, outcome: "miss"}
}

// awaitPrep blocks until the in-flight speculative round finishes,
// waking early on interruption. Returns true when interrupted.
func (o *Orchestrator) awaitPrep(c *convo.Conversation, p *prep) bool {
	ticker := time.NewTicker(o.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return false
		case <-ticker.C:
			if c.Interrupted() {
				return true
			}
		}
	}
}

// startPrep launches the speculative round for the turn after current:
// competitive selection among the other agents, the continuation
// threshold, and full synthesis, all without blocking playback. Any
// failure abandons the round silently; the user is not waiting on it.
func (o *Orchestrator) startPrep(ctx context.Context, s *session, currentSpeaker string) *prep {
	c := s.conv
	c.SetPrepared(nil) // always invalidate stale speculation first
	s.cancelPrep()
	prepCtx, cancel := context.WithCancel(ctx)
	s.prepCancel = cancel
	p := &prep{done: make(chan struct{})}
	started := time.Now()

	go func() {
		defer close(p.done)

		next, err := o.selectTurn(prepCtx, s, o.candidateAgents(c, currentSpeaker))
		if err != nil {
			p.abandoned = prepCtx.Err() == nil
			logger.Debug("orchestrator", "Speculative round abandoned", map[string]any{
				"conversation": c.ID,
				"error":        err.Error(),
			})
			return
		}
		if c.Interrupted() || prepCtx.Err() != nil {
			return
		}
		if !c.AgentOnly && next.score < o.cfg.ContinueThreshold {
			return
		}

		audio, err := o.synthesizeAll(prepCtx, c, next)
		if err != nil {
			p.abandoned = prepCtx.Err() == nil
			logger.Debug("orchestrator", "Speculative synthesis abandoned", map[string]any{
				"conversation": c.ID,
				"agent":        next.agent.ID,
				"error":        err.Error(),
			})
			return
		}
		if c.Interrupted() {
			return
		}

		c.OfferPrepared(&convo.PreparedTurn{
			AgentID:   next.agent.ID,
			Text:      next.text,
			Score:     next.score,
			Audio:     audio,
			StartedAt: started,
		}, func() bool { return prepCtx.Err() != nil })
	}()
	return p
}

// failTurn surfaces an active-path failure and returns the conversation
// to a usable idle state.
func (o *Orchestrator) failTurn(s *session, userMessage string, err error) {
	logger.Error("orchestrator", "Turn failed", map[string]any{
		"conversation": s.conv.ID,
		"error":        err.Error(),
	})
	s.notifier.Error(s.conv.ID, userMessage)
	o.setStatus(s, convo.StatusIdle)
}

// abortToIdle is the interruption epilogue: discard results, notify,
// settle on idle with no speaker.
func (o *Orchestrator) abortToIdle(s *session) {
	s.notifier.Interrupted(s.conv.ID)
	o.setStatus(s, convo.StatusIdle)
	logger.Info("orchestrator", "Turn interrupted", map[string]any{
		"conversation": s.conv.ID,
	})
}
