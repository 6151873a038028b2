package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mirrortwin/companion/internal/event"
	"github.com/mirrortwin/companion/internal/model/chat"
)

// TranscriptLoader fetches the authoritative transcript when a session is
// first opened.
type TranscriptLoader func(ctx context.Context, chatID string) ([]chat.Message, error)

// Manager keeps one live Session per chat, each fed by a scoped bus
// subscription. Sessions are created on first access and torn down with the
// manager.
type Manager struct {
	mu       sync.Mutex
	ctx      context.Context
	bus      *event.Bus
	sender   Sender
	loader   TranscriptLoader
	sessions map[string]*managedSession
}

type managedSession struct {
	sess *Session
	feed *event.Feed
}

// NewManager creates a session manager bound to ctx; cancelling ctx stops
// every session's event feed.
func NewManager(ctx context.Context, bus *event.Bus, sender Sender, loader TranscriptLoader) *Manager {
	return &Manager{
		ctx:      ctx,
		bus:      bus,
		sender:   sender,
		loader:   loader,
		sessions: make(map[string]*managedSession),
	}
}

// Get returns the live session for a chat, creating it on first access:
// a bus feed keeps the session current, and the transcript is merged in.
func (m *Manager) Get(ctx context.Context, chatID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ms, ok := m.sessions[chatID]; ok {
		return ms.sess, nil
	}

	sess := New(chatID, m.sender)

	// The feed must be live before the transcript fetch: an event published
	// during the load window would otherwise never reach the session. Load
	// merges by upsert, so the two sources reconcile either way.
	feed, err := m.bus.SubscribeChat(m.ctx, chatID)
	if err != nil {
		return nil, err
	}

	go func() {
		for ev := range feed.C() {
			if err := apply(sess, ev); err != nil {
				log.Warn().Err(err).Str("chat_id", chatID).Str("kind", string(ev.Kind)).Msg("failed to apply event to session")
			}
		}
		log.Debug().Str("chat_id", chatID).Msg("session feed stopped")
	}()

	if m.loader != nil {
		msgs, err := m.loader(ctx, chatID)
		if err != nil {
			feed.Close()
			return nil, err
		}
		sess.Load(msgs)
	}

	m.sessions[chatID] = &managedSession{sess: sess, feed: feed}
	return sess, nil
}

// Close tears down every session feed.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.sessions {
		ms.feed.Close()
	}
	m.sessions = make(map[string]*managedSession)
}

// Apply routes one decoded bus event into the session.
func apply(sess *Session, ev event.Event) error {
	switch ev.Kind {
	case event.KindMessage:
		return sess.UpsertMessage(*ev.Message)
	case event.KindStream:
		return sess.ApplyStream(*ev.Stream)
	case event.KindToolCall:
		return sess.ApplyToolCall(*ev.ToolCall)
	}
	return nil
}

// Apply is exported for clients that run their own feed loop.
func Apply(sess *Session, ev event.Event) error {
	return apply(sess, ev)
}
