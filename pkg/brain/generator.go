package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/pkg/agent"
	"github.com/parleyhq/parley/pkg/convo"
	"github.com/parleyhq/parley/pkg/logger"
)

// Request carries everything one candidate generation needs.
type Request struct {
	Agent    *agent.Agent
	History  []convo.Message
	Topic    string
	UserName string
	UserRole string
}

// Generator produces one agent's candidate response, preferring the
// fast primary backend and falling back to the secondary when the
// primary is unreachable or its output fails the quality check.
type Generator struct {
	primary   Provider
	secondary Provider
	// nameOf resolves a message speaker id to a display name for
	// rendering other agents' lines.
	nameOf func(speaker string) string
}

func NewGenerator(primary, secondary Provider, nameOf func(string) string) *Generator {
	if nameOf == nil {
		nameOf = func(s string) string { return s }
	}
	return &Generator{primary: primary, secondary: secondary, nameOf: nameOf}
}

// RenderTurns flattens history into chat turns from req.Agent's point of
// view: the agent's own messages are assistant turns, everyone else's
// are user turns prefixed with the speaker's name. System markers are
// skipped.
func (g *Generator) RenderTurns(req Request) []Turn {
	turns := make([]Turn, 0, len(req.History))
	for _, msg := range req.History {
		switch msg.Speaker {
		case req.Agent.ID:
			turns = append(turns, Turn{Role: RoleAssistant, Content: msg.Text})
		case convo.SpeakerSystem:
		case convo.SpeakerUser:
			name := req.UserName
			if name == "" {
				name = "User"
			}
			turns = append(turns, Turn{Role: RoleUser, Content: name + ": " + msg.Text})
		default:
			turns = append(turns, Turn{Role: RoleUser, Content: g.nameOf(msg.Speaker) + ": " + msg.Text})
		}
	}
	return turns
}

// Generate runs the fallback chain for one candidate. Errors other than
// backend unavailability propagate and abort only this candidate.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	system := req.Agent.SystemPrompt(req.Topic, req.UserName, req.UserRole)
	turns := g.RenderTurns(req)
	if len(turns) == 0 {
		// Conversation opener: nothing to respond to yet.
		turns = []Turn{{Role: RoleUser, Content: "Please open the conversation."}}
	}

	text, err := g.primary.Chat(ctx, system, turns)
	switch {
	case err == nil && !LooksCorrupted(text):
		return g.stripSelfPrefix(req.Agent, text), nil
	case err == nil:
		logger.Warn("brain", "Primary output failed quality check, retrying on secondary", map[string]any{
			"agent":   req.Agent.ID,
			"preview": truncate(text, 60),
		})
	case errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrRateLimited):
		logger.Info("brain", "Primary backend unavailable, falling back", map[string]any{
			"agent": req.Agent.ID,
			"error": err.Error(),
		})
	default:
		return "", fmt.Errorf("generation failed for %s: %w", req.Agent.ID, err)
	}

	text, err = g.secondary.Chat(ctx, system, turns)
	if err != nil {
		return "", fmt.Errorf("generation failed for %s: %w", req.Agent.ID, err)
	}
	if LooksCorrupted(text) {
		return "", fmt.Errorf("generation failed for %s: secondary output corrupted", req.Agent.ID)
	}
	return g.stripSelfPrefix(req.Agent, text), nil
}

// stripSelfPrefix removes a leading "Name:" echo that chat models
// sometimes produce when history lines carry speaker prefixes.
func (g *Generator) stripSelfPrefix(a *agent.Agent, text string) string {
	for _, prefix := range []string{a.Name + ":", a.FirstName() + ":"} {
		if strings.HasPrefix(text, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(text, prefix))
		}
	}
	return text
}
