package anonymizer

import "sync"

// Service holds the privacy dictionary: a global rule set from configuration
// plus per-chat rules learned while a conversation runs. Chat rules shadow
// global ones for the same term.
type Service struct {
	mu      sync.RWMutex
	global  Rules
	perChat map[string]Rules
}

func NewService(global Rules) *Service {
	g := make(Rules, len(global))
	for k, v := range global {
		g[k] = v
	}
	return &Service{
		global:  g,
		perChat: make(map[string]Rules),
	}
}

// Learn records a replacement for one chat.
func (s *Service) Learn(chatID, original, token string) {
	if original == "" || token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rules, ok := s.perChat[chatID]
	if !ok {
		rules = make(Rules)
		s.perChat[chatID] = rules
	}
	rules[original] = token
}

// RulesFor returns the merged rule set for a chat.
func (s *Service) RulesFor(chatID string) Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	merged := make(Rules, len(s.global)+len(s.perChat[chatID]))
	for k, v := range s.global {
		merged[k] = v
	}
	for k, v := range s.perChat[chatID] {
		merged[k] = v
	}
	return merged
}

// Anonymize applies the chat's dictionary to outbound text.
func (s *Service) Anonymize(chatID, text string) string {
	return Apply(text, s.RulesFor(chatID))
}

// Deanonymize restores original terms in model output.
func (s *Service) Deanonymize(chatID, text string) string {
	return Reverse(text, s.RulesFor(chatID))
}
