package session

import (
	"errors"
	"time"

	"github.com/mirrortwin/companion/internal/model/chat"
	"github.com/mirrortwin/companion/pkg/utils"
)

// ErrMissingMessageID rejects events that carry no owning identifier.
var ErrMissingMessageID = errors.New("session: event missing message id")

// ApplyStream applies a messageStream event. Each event carries the full
// accumulated text, so the turn's text is replaced, never concatenated;
// replaying a terminal event is idempotent. Only assistant-role events are
// consumed. Every chunk clears the waiting flag.
func (s *Session) ApplyStream(p chat.StreamPayload) error {
	if p.Role != chat.RoleAssistant {
		return nil
	}
	if p.MessageID == "" {
		return ErrMissingMessageID
	}

	text := p.DeanonymizedAccumulatedMessage
	if text == "" {
		text = p.AccumulatedMessage
	}

	s.mu.Lock()
	turn, ok := s.store.Get(p.MessageID)
	if ok {
		turn.Text = utils.Ptr(text)
		turn.ImageURLs = unionURLs(turn.ImageURLs, p.ImageURLs)
	} else {
		turn = chat.Message{
			ID:        p.MessageID,
			ChatID:    s.chatID,
			Text:      utils.Ptr(text),
			Role:      chat.RoleAssistant,
			ImageURLs: unionURLs(nil, p.ImageURLs),
			CreatedAt: s.streamCreatedAt(p),
		}
	}
	s.store.Upsert(turn)
	s.waiting = false
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
	return nil
}

func (s *Session) streamCreatedAt(p chat.StreamPayload) time.Time {
	if p.CreatedAt != nil {
		if at, err := time.Parse(time.RFC3339, *p.CreatedAt); err == nil {
			return at
		}
	}
	return s.now()
}

// unionURLs merges url lists, dropping duplicates while preserving
// first-seen order.
func unionURLs(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, lists := range [][]string{existing, incoming} {
		for _, u := range lists {
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
