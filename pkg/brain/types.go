package brain

import (
	"context"
	"errors"
)

// Sentinel errors used for fallback and degradation decisions.
// ErrBackendUnavailable triggers the primary->secondary fallback chain;
// ErrRateLimited makes the scorer substitute a placeholder score.
var (
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrRateLimited        = errors.New("backend rate limited")
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one rendered history entry from a specific agent's point of
// view: that agent's own lines are assistant turns, everyone else's
// (user and other agents) are user turns.
type Turn struct {
	Role    string
	Content string
}

// Provider is one chat-completion backend bound to a model.
type Provider interface {
	Chat(ctx context.Context, system string, turns []Turn) (string, error)
	Name() string
}
