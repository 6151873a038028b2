package chat

import (
	"context"
	"sync"

	"github.com/mirrortwin/companion/internal/model/chat"
)

// MemoryStore keeps chats and transcripts in process memory. It is the
// default store and the one tests run against.
type MemoryStore struct {
	mu       sync.RWMutex
	chats    map[string]chat.Chat
	order    []string
	messages map[string][]chat.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[string]chat.Chat),
		messages: make(map[string][]chat.Message),
	}
}

func (s *MemoryStore) CreateChat(_ context.Context, c chat.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.chats[c.ID] = c
	return nil
}

func (s *MemoryStore) GetChat(_ context.Context, chatID string) (chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return chat.Chat{}, ErrChatNotFound
	}
	return c, nil
}

func (s *MemoryStore) ListChats(_ context.Context) ([]chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Chat, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.chats[id])
	}
	return out, nil
}

func (s *MemoryStore) SaveMessage(_ context.Context, m chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[m.ChatID]; !ok {
		return ErrChatNotFound
	}

	history := s.messages[m.ChatID]
	for i, existing := range history {
		if existing.ID == m.ID {
			history[i] = m
			return nil
		}
	}
	s.messages[m.ChatID] = append(history, m)
	return nil
}

func (s *MemoryStore) GetMessages(_ context.Context, chatID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.chats[chatID]; !ok {
		return nil, ErrChatNotFound
	}

	history := s.messages[chatID]
	copied := make([]chat.Message, len(history))
	copy(copied, history)
	return copied, nil
}

func (s *MemoryStore) Close() error { return nil }
