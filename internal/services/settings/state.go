package settings

import (
	"context"

	"github.com/mp-gpt-consultant-go/internal/models"
)

// State returns the conversation state for a marketplace chat,
// materializing and persisting defaults on first access so subsequent
// reads are stable. The returned value is a copy.
func (s *Store) State(ctx context.Context, chatID string) models.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.current.ChatState[chatID]
	if !ok || cs == nil {
		cs = &models.ConversationState{History: []models.Message{}}
		s.current.ChatState[chatID] = cs
		s.persist(ctx)
	}
	return cloneState(cs)
}

// UpdateState merges changes into a chat's conversation state under
// the store lock and persists. The chat record is created when absent,
// so fn always receives a live state.
func (s *Store) UpdateState(ctx context.Context, chatID string, fn func(*models.ConversationState)) models.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.current.ChatState[chatID]
	if !ok || cs == nil {
		cs = &models.ConversationState{History: []models.Message{}}
		s.current.ChatState[chatID] = cs
	}
	fn(cs)
	if cs.History == nil {
		cs.History = []models.Message{}
	}
	s.persist(ctx)
	return cloneState(cs)
}
