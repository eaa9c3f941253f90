package agent

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/parleyhq/parley/pkg/logger"
)

// Registry holds the known agents, keyed by id. It is populated once and
// read-only afterwards, so lookups need no locking.
type Registry struct {
	agents map[string]*Agent
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// LoadRegistry reads a JSON roster file: an array of Agent objects.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent roster: %w", err)
	}

	var list []*Agent
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse agent roster: %w", err)
	}

	r := NewRegistry()
	for _, a := range list {
		if err := r.Add(a); err != nil {
			return nil, err
		}
	}

	logger.Info("agent", "Agent roster loaded", map[string]any{
		"path":  path,
		"count": len(list),
	})
	return r, nil
}

func (r *Registry) Add(a *Agent) error {
	if a.ID == "" {
		return fmt.Errorf("agent %q has no id", a.Name)
	}
	if _, exists := r.agents[a.ID]; exists {
		return fmt.Errorf("duplicate agent id %q", a.ID)
	}
	r.agents[a.ID] = a
	r.order = append(r.order, a.ID)
	return nil
}

// Get returns the agent for id, or nil when unknown.
func (r *Registry) Get(id string) *Agent {
	return r.agents[id]
}

// Resolve maps a slice of agent ids to agents, preserving order.
func (r *Registry) Resolve(ids []string) ([]*Agent, error) {
	out := make([]*Agent, 0, len(ids))
	for _, id := range ids {
		a := r.agents[id]
		if a == nil {
			return nil, fmt.Errorf("unknown agent id %q", id)
		}
		out = append(out, a)
	}
	return out, nil
}

// All returns every agent in roster order.
func (r *Registry) All() []*Agent {
	out := make([]*Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}
