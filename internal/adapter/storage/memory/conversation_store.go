package memory

import (
	"context"
	"sync"
	"time"

	"vending-kernel/internal/core/domain"

	"github.com/google/uuid"
)

// ConversationStore implements ports.ConversationStore. States idle for
// longer than ttl are dropped on read.
type ConversationStore struct {
	mu     sync.Mutex
	states map[string]*domain.ConversationState
	ttl    time.Duration
	now    func() time.Time
}

// NewConversationStore creates a store. A zero ttl keeps states forever.
func NewConversationStore(ttl time.Duration) *ConversationStore {
	return &ConversationStore{
		states: make(map[string]*domain.ConversationState),
		ttl:    ttl,
		now:    time.Now,
	}
}

// current returns the live state for actorID. Caller holds s.mu.
func (s *ConversationStore) current(actorID string) *domain.ConversationState {
	st := s.states[actorID]
	if st == nil {
		return nil
	}
	if s.ttl > 0 && s.now().Sub(st.UpdatedAt) > s.ttl {
		delete(s.states, actorID)
		return nil
	}
	return st
}

func (s *ConversationStore) store(state *domain.ConversationState) {
	stored := state.Clone()
	stored.Revision = uuid.NewString()
	stored.UpdatedAt = s.now().UTC()
	s.states[state.ActorID] = stored
	state.Revision = stored.Revision
	state.UpdatedAt = stored.UpdatedAt
}

func (s *ConversationStore) Get(_ context.Context, actorID string) (*domain.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.current(actorID)
	if st == nil {
		return nil, nil
	}
	return st.Clone(), nil
}

func (s *ConversationStore) Put(_ context.Context, state *domain.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(state)
	return nil
}

func (s *ConversationStore) CompareAndSwap(_ context.Context, state *domain.ConversationState, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.current(state.ActorID)
	if st == nil || st.Revision != expected {
		return false, nil
	}
	s.store(state)
	return true, nil
}

func (s *ConversationStore) CompareAndDelete(_ context.Context, actorID string, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.current(actorID)
	if st == nil || st.Revision != expected {
		return false, nil
	}
	delete(s.states, actorID)
	return true, nil
}

func (s *ConversationStore) Delete(_ context.Context, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, actorID)
	return nil
}
