package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mirrortwin/companion/internal/model/chat"
	"github.com/mirrortwin/companion/pkg/utils"
)

// Sender issues the outbound send call to the backend. The façade never
// surfaces its errors to callers; failures become visible transcript state.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string, opts chat.SendOptions) (*chat.Message, error)
}

// Session reconciles the three server-pushed event streams of one
// conversation (message upserts, stream chunks, tool-call updates) into an
// ordered transcript, and exposes the send/observe surface the presentation
// layer binds to. All state is mutated behind one mutex; event handlers are
// synchronous.
type Session struct {
	mu       sync.Mutex
	chatID   string
	store    *Store
	waiting  bool
	lastErr  string
	active   []chat.ToolCall
	historic []chat.ToolCall

	sender Sender
	now    func() time.Time
	newID  func() string
	notify func(Snapshot)
}

// Snapshot is the derived view state handed to observers.
type Snapshot struct {
	ChatID            string          `json:"chatId"`
	Messages          []chat.Message  `json:"messages"`
	Waiting           bool            `json:"waiting"`
	LastError         string          `json:"lastError,omitempty"`
	ActiveToolCalls   []chat.ToolCall `json:"activeToolCalls"`
	HistoricToolCalls []chat.ToolCall `json:"historicToolCalls"`
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDGenerator overrides identifier generation for optimistic turns.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) { s.newID = gen }
}

// WithNotify registers a callback invoked with a fresh snapshot after every
// state change. The callback runs outside the session lock.
func WithNotify(fn func(Snapshot)) Option {
	return func(s *Session) { s.notify = fn }
}

// New creates an empty session for the given chat.
func New(chatID string, sender Sender, opts ...Option) *Session {
	s := &Session{
		chatID: chatID,
		store:  NewStore(),
		sender: sender,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChatID returns the conversation this session reconciles.
func (s *Session) ChatID() string {
	return s.chatID
}

// Load merges a fetched transcript into the session by upsert, so events
// applied before the transcript arrived survive the load, and rebuilds the
// historic tool-call list by flattening all turns' tool calls newest-first.
func (s *Session) Load(messages []chat.Message) {
	s.mu.Lock()
	for _, msg := range messages {
		s.store.Upsert(msg)
	}
	var flat []chat.ToolCall
	for _, msg := range s.store.Messages() {
		flat = append(flat, msg.ToolCalls...)
	}
	s.historic = make([]chat.ToolCall, 0, len(flat))
	for i := len(flat) - 1; i >= 0; i-- {
		s.historic = append(s.historic, flat[i])
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
}

// UpsertMessage applies a messageAdded event: insert-or-replace by
// identifier, position preserved. An assistant message is a terminal event
// and clears the waiting flag.
func (s *Session) UpsertMessage(msg chat.Message) error {
	if msg.ID == "" {
		return ErrMissingMessageID
	}
	s.mu.Lock()
	s.store.Upsert(msg)
	if msg.Role == chat.RoleAssistant {
		s.waiting = false
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
	return nil
}

// SendMessage optimistically appends the user turn, marks the session
// waiting, archives the previous turn's active tool calls and issues the
// remote call. A remote failure becomes a synthetic assistant turn carrying
// the error text; it is never returned to the caller.
func (s *Session) SendMessage(ctx context.Context, text string, opts chat.SendOptions) {
	s.mu.Lock()
	userTurn := chat.Message{
		ID:        s.newID(),
		ChatID:    s.chatID,
		Text:      utils.Ptr(text),
		Role:      chat.RoleUser,
		CreatedAt: s.now(),
	}
	s.store.Upsert(userTurn)
	s.waiting = true
	s.lastErr = ""
	if len(s.active) > 0 {
		s.historic = append(append([]chat.ToolCall(nil), s.active...), s.historic...)
		s.active = nil
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)

	reply, err := s.sender.SendMessage(ctx, s.chatID, text, opts)

	s.mu.Lock()
	if err != nil {
		log.Warn().Err(err).Str("chat_id", s.chatID).Msg("send failed, surfacing error turn")
		s.lastErr = err.Error()
		s.store.Upsert(chat.Message{
			ID:        s.newID(),
			ChatID:    s.chatID,
			Text:      utils.Ptr(err.Error()),
			Role:      chat.RoleAssistant,
			CreatedAt: s.now(),
		})
		s.waiting = false
	} else if reply != nil {
		s.store.Upsert(*reply)
		if reply.Role == chat.RoleAssistant {
			s.waiting = false
		}
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
}

// Snapshot returns a copy of the current view state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ChatID:            s.chatID,
		Messages:          s.store.Messages(),
		Waiting:           s.waiting,
		LastError:         s.lastErr,
		ActiveToolCalls:   append([]chat.ToolCall(nil), s.active...),
		HistoricToolCalls: append([]chat.ToolCall(nil), s.historic...),
	}
}

func (s *Session) emit(snap Snapshot) {
	if s.notify != nil {
		s.notify(snap)
	}
}
