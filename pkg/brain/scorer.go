package brain

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/parleyhq/parley/pkg/agent"
	"github.com/parleyhq/parley/pkg/convo"
	"github.com/parleyhq/parley/pkg/logger"
)

// scoreContextWindow limits how much history the scorer sees.
const scoreContextWindow = 6

// Scorer rates candidate responses 0-10 on the secondary backend.
// Scoring always uses the secondary regardless of which backend
// produced the text: scoring accuracy decides turn-taking fairness.
type Scorer struct {
	secondary Provider
	limiter   *rate.Limiter
}

// NewScorer paces scoring requests at rps to stay under the secondary
// backend's limits during fan-out.
func NewScorer(secondary Provider, rps float64) *Scorer {
	if rps <= 0 {
		rps = 5
	}
	return &Scorer{
		secondary: secondary,
		limiter:   rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

// Score returns the candidate's score and whether it is a placeholder.
// Upstream rate limiting degrades to a randomized placeholder in [6,8]
// so the conversation never stalls on the rater; any other failure is a
// real scoring error.
func (s *Scorer) Score(ctx context.Context, a *agent.Agent, candidate string, history []convo.Message) (float64, bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, false, err
	}

	system := "You are a strict conversation judge. Rate the candidate reply from 0 to 10 " +
		"considering topical relevance, consistency with the speaker's persona, and conversational value. " +
		"Respond with only the number."

	var b strings.Builder
	b.WriteString("Speaker: ")
	b.WriteString(a.Name)
	if a.Role != "" {
		b.WriteString(" (")
		b.WriteString(a.Role)
		b.WriteString(")")
	}
	b.WriteString("\n\nRecent conversation:\n")
	start := len(history) - scoreContextWindow
	if start < 0 {
		start = 0
	}
	for _, msg := range history[start:] {
		b.WriteString(msg.Speaker)
		b.WriteString(": ")
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nCandidate reply:\n")
	b.WriteString(candidate)

	reply, err := s.secondary.Chat(ctx, system, []Turn{{Role: RoleUser, Content: b.String()}})
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			// Hundredths over the closed interval [6,8].
			placeholder := 6 + float64(rand.IntN(201))/100
			logger.Warn("brain", "Scorer rate limited, substituting placeholder", map[string]any{
				"agent": a.ID,
				"score": placeholder,
			})
			return placeholder, true, nil
		}
		return 0, false, fmt.Errorf("scoring failed for %s: %w", a.ID, err)
	}

	score, perr := parseScore(reply)
	if perr != nil {
		return 0, false, fmt.Errorf("scoring failed for %s: %w", a.ID, perr)
	}
	return score, false, nil
}

// parseScore extracts the first number from the judge's reply and clamps
// it to [0,10].
func parseScore(reply string) (float64, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(reply), func(r rune) bool {
		return r != '.' && r != '-' && (r < '0' || r > '9')
	})
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.Trim(f, "."), 64)
		if err != nil {
			continue
		}
		if v < 0 {
			v = 0
		}
		if v > 10 {
			v = 10
		}
		return v, nil
	}
	return 0, fmt.Errorf("no numeric score in %q", truncate(reply, 60))
}
