package orchestrator

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/pkg/agent"
	"github.com/parleyhq/parley/pkg/brain"
	"github.com/parleyhq/parley/pkg/notify"
)

func startTestConversation(t *testing.T, o *Orchestrator, rec *recorder, agentIDs []string) *session {
	t.Helper()
	id, err := o.Start(context.Background(), StartOptions{
		AgentIDs: agentIDs,
		Topic:    "tech interviews",
		UserName: "Alex",
		UserRole: "candidate",
		Notifier: rec,
	})
	require.NoError(t, err)
	s, err := o.session(id)
	require.NoError(t, err)
	return s
}

func TestSelectTurnPicksHighestScore(t *testing.T) {
	gen := &fakeGen{}
	scorer := &fakeScorer{scores: map[string]float64{"marcus": 4, "jennifer": 8, "priya": 6}}
	o, rec := newTestOrchestrator(gen, scorer, false)
	s := startTestConversation(t, o, rec, []string{"marcus", "jennifer", "priya"})

	winner, err := o.selectTurn(context.Background(), s, o.candidateAgents(s.conv, ""))
	require.NoError(t, err)
	assert.Equal(t, "jennifer", winner.agent.ID)
	assert.Equal(t, 8.0, winner.score)
	assert.Equal(t, "reply from Jennifer Ortiz", winner.text)
}

func TestSelectTurnTieBreaksByOrder(t *testing.T) {
	gen := &fakeGen{}
	scorer := &fakeScorer{scores: map[string]float64{"marcus": 7, "jennifer": 7, "priya": 7}}
	o, rec := newTestOrchestrator(gen, scorer, false)

	// Listing order, not registry order, decides ties.
	s := startTestConversation(t, o, rec, []string{"priya", "marcus", "jennifer"})

	winner, err := o.selectTurn(context.Background(), s, o.candidateAgents(s.conv, ""))
	require.NoError(t, err)
	assert.Equal(t, "priya", winner.agent.ID)
}

// Randomized scores must always produce the strictly-highest candidate,
// earliest in order on ties, no matter how the goroutines interleave.
func TestSelectTurnDeterministicUnderRandomScores(t *testing.T) {
	gen := &fakeGen{}
	scorer := &fakeScorer{scores: map[string]float64{}}
	o, rec := newTestOrchestrator(gen, scorer, false)
	s := startTestConversation(t, o, rec, []string{"marcus", "jennifer", "priya"})

	ids := []string{"marcus", "jennifer", "priya"}
	for i := 0; i < 50; i++ {
		for _, id := range ids {
			scorer.scores[id] = float64(rand.IntN(11))
		}
		want := ids[0]
		for _, id := range ids[1:] {
			if scorer.scores[id] > scorer.scores[want] {
				want = id
			}
		}

		winner, err := o.selectTurn(context.Background(), s, o.candidateAgents(s.conv, ""))
		require.NoError(t, err)
		assert.Equal(t, want, winner.agent.ID, "scores %v", scorer.scores)
	}
}

func TestSelectTurnFailedCandidateDoesNotAbortRound(t *testing.T) {
	gen := &fakeGen{fn: func(req brain.Request) (string, error) {
		if req.Agent.ID == "marcus" {
			return "", brain.ErrBackendUnavailable
		}
		return "reply from " + req.Agent.Name, nil
	}}
	scorer := &fakeScorer{scores: map[string]float64{"marcus": 10, "jennifer": 5}}
	o, rec := newTestOrchestrator(gen, scorer, false)
	s := startTestConversation(t, o, rec, []string{"marcus", "jennifer"})

	winner, err := o.selectTurn(context.Background(), s, o.candidateAgents(s.conv, ""))
	require.NoError(t, err)
	assert.Equal(t, "jennifer", winner.agent.ID)
}

func TestSelectTurnAllCandidatesFailed(t *testing.T) {
	genErr := errors.New("model exploded")
	gen := &fakeGen{fn: func(req brain.Request) (string, error) { return "", genErr }}
	o, rec := newTestOrchestrator(gen, &fakeScorer{}, false)
	s := startTestConversation(t, o, rec, []string{"marcus", "jennifer"})

	_, err := o.selectTurn(context.Background(), s, o.candidateAgents(s.conv, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, genErr)
}

func TestSelectTurnPlaceholderScoreWarns(t *testing.T) {
	gen := &fakeGen{}
	scorer := &fakeScorer{fn: func(a *agent.Agent, text string) (float64, bool, error) {
		return 7, true, nil
	}}
	o, rec := newTestOrchestrator(gen, scorer, false)
	s := startTestConversation(t, o, rec, []string{"marcus"})

	winner, err := o.selectTurn(context.Background(), s, o.candidateAgents(s.conv, ""))
	require.NoError(t, err)
	assert.True(t, winner.placeholder)

	var warned bool
	for _, ev := range rec.snapshot() {
		if ev.Kind == notify.KindWarning {
			warned = true
		}
	}
	assert.True(t, warned, "placeholder score should surface a warning")
}

func TestCandidateAgentsExcludesLastSpeaker(t *testing.T) {
	o, rec := newTestOrchestrator(&fakeGen{}, &fakeScorer{}, false)
	s := startTestConversation(t, o, rec, []string{"marcus", "jennifer"})

	got := o.candidateAgents(s.conv, "marcus")
	assert.Equal(t, []string{"jennifer"}, agentIDs(got))
}

func TestCandidateAgentsSingleAgentKeepsFloor(t *testing.T) {
	o, rec := newTestOrchestrator(&fakeGen{}, &fakeScorer{}, false)
	s := startTestConversation(t, o, rec, []string{"marcus"})

	got := o.candidateAgents(s.conv, "marcus")
	assert.Equal(t, []string{"marcus"}, agentIDs(got))
}
