package convo

import (
	"errors"
	"sync"
)

// ErrNotFound is returned for operations on unknown conversation ids.
var ErrNotFound = errors.New("conversation not found")

// Store is the registry of live conversations. It is the only state
// shared across conversations; everything inside a Conversation is owned
// by that conversation's coordinator.
type Store struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
}

func NewStore() *Store {
	return &Store{convs: make(map[string]*Conversation)}
}

// Put registers a conversation. Registering an id twice is an error:
// the transport layer owns id uniqueness.
func (s *Store) Put(c *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.convs[c.ID]; exists {
		return errors.New("conversation id already active")
	}
	s.convs[c.ID] = c
	return nil
}

func (s *Store) Get(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Remove drops the conversation and returns it, or nil if absent.
func (s *Store) Remove(id string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.convs[id]
	delete(s.convs, id)
	return c
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

// Each calls fn for every live conversation. Used for shutdown sweeps.
func (s *Store) Each(fn func(*Conversation)) {
	s.mu.RLock()
	snapshot := make([]*Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		snapshot = append(snapshot, c)
	}
	s.mu.RUnlock()
	for _, c := range snapshot {
		fn(c)
	}
}
