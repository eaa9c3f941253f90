package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/parleyhq/parley/pkg/agent"
	"github.com/parleyhq/parley/pkg/brain"
	"github.com/parleyhq/parley/pkg/convo"
	"github.com/parleyhq/parley/pkg/logger"
)

// turnCandidate is one agent's scored proposal for the pending turn.
// It lives only within a selection round, except for the winner, which
// may carry pre-synthesized audio through the pipeline.
type turnCandidate struct {
	agent       *agent.Agent
	text        string
	score       float64
	placeholder bool
	audio       [][]byte
}

// selectTurn runs the competitive round: parallel generation and
// scoring for every candidate agent, joined before any state mutation.
// A failed candidate drops out without aborting its siblings; the round
// fails only when every candidate fails. The winner is the strictly
// highest score, ties going to the earliest candidate in fan-out order.
func (o *Orchestrator) selectTurn(ctx context.Context, s *session, candidates []*agent.Agent) (*turnCandidate, error) {
	c := s.conv
	history := c.Messages()
	results := make([]*turnCandidate, len(candidates))
	failures := make([]error, len(candidates))

	var g errgroup.Group
	for i, a := range candidates {
		g.Go(func() error {
			text, err := o.gen.Generate(ctx, brain.Request{
				Agent:    a,
				History:  history,
				Topic:    c.Topic,
				UserName: c.UserName,
				UserRole: c.UserRole,
			})
			if err != nil {
				failures[i] = err
				logger.Warn("orchestrator", "Candidate dropped out of selection round", map[string]any{
					"conversation": c.ID,
					"agent":        a.ID,
					"error":        err.Error(),
				})
				return nil
			}

			score, placeholder, err := o.scorer.Score(ctx, a, text, history)
			if err != nil {
				failures[i] = err
				logger.Warn("orchestrator", "Candidate scoring failed", map[string]any{
					"conversation": c.ID,
					"agent":        a.ID,
					"error":        err.Error(),
				})
				return nil
			}
			results[i] = &turnCandidate{agent: a, text: text, score: score, placeholder: placeholder}
			return nil
		})
	}
	g.Wait()

	var winner *turnCandidate
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.placeholder {
			s.notifier.Warning(c.ID, "Scoring was rate limited; "+r.agent.Name+"'s turn used an estimated score.")
		}
		if winner == nil || r.score > winner.score {
			winner = r
		}
	}
	if winner == nil {
		for _, err := range failures {
			if err != nil {
				return nil, err
			}
		}
		return nil, errNoCandidates
	}

	logger.Debug("orchestrator", "Selection round complete", map[string]any{
		"conversation": c.ID,
		"winner":       winner.agent.ID,
		"score":        winner.score,
		"candidates":   len(candidates),
	})
	return winner, nil
}

// candidateAgents applies addressing to the latest user message, then
// removes exclude (the agent that just spoke) for continuation rounds.
func (o *Orchestrator) candidateAgents(c *convo.Conversation, exclude string) []*agent.Agent {
	participants, err := o.registry.Resolve(c.AgentIDs)
	if err != nil {
		return nil
	}

	if exclude == "" {
		if last, ok := c.LastUserMessage(); ok {
			participants = resolveAddressing(last.Text, participants)
		}
		return participants
	}

	out := make([]*agent.Agent, 0, len(participants))
	for _, a := range participants {
		if a.ID != exclude {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		// Single-agent conversation: the same agent keeps the floor.
		return participants
	}
	return out
}
