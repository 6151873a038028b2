package session

import "github.com/mirrortwin/companion/internal/model/chat"

// Store holds the ordered turns of one conversation. Ordering is insertion
// order; replacing an existing turn never changes its position.
type Store struct {
	order []string
	turns map[string]chat.Message
}

// NewStore returns an empty turn store.
func NewStore() *Store {
	return &Store{turns: make(map[string]chat.Message)}
}

// Upsert inserts the turn or replaces the existing one in place.
func (s *Store) Upsert(msg chat.Message) {
	if _, ok := s.turns[msg.ID]; !ok {
		s.order = append(s.order, msg.ID)
	}
	s.turns[msg.ID] = msg
}

// Get looks up a turn by identifier.
func (s *Store) Get(id string) (chat.Message, bool) {
	msg, ok := s.turns[id]
	return msg, ok
}

// Messages returns a copy of the turns in insertion order.
func (s *Store) Messages() []chat.Message {
	out := make([]chat.Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.turns[id])
	}
	return out
}

// Len reports the number of distinct turns.
func (s *Store) Len() int {
	return len(s.order)
}
