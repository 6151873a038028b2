package event

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mirrortwin/companion/internal/model/chat"
)

// Kind discriminates decoded chat events.
type Kind string

const (
	KindMessage  Kind = "message"
	KindStream   Kind = "stream"
	KindToolCall Kind = "tool_call"
)

// Event is one decoded conversation event; exactly one field matching Kind
// is set.
type Event struct {
	Kind     Kind                `json:"type"`
	Message  *chat.Message       `json:"message,omitempty"`
	Stream   *chat.StreamPayload `json:"stream,omitempty"`
	ToolCall *chat.ToolCall      `json:"toolCall,omitempty"`
}

// Feed merges the three topic subscriptions of one chat into a single
// decoded event channel. Undecodable payloads are logged and dropped rather
// than stalling the feed.
type Feed struct {
	out  chan Event
	done chan struct{}
	subs []*Subscription
	wg   sync.WaitGroup
	once sync.Once
}

// SubscribeChat opens a feed over all three event kinds of a chat.
func (b *Bus) SubscribeChat(ctx context.Context, chatID string) (*Feed, error) {
	f := &Feed{out: make(chan Event, 64), done: make(chan struct{})}

	type source struct {
		topic  string
		decode func([]byte) (Event, error)
	}
	sources := []source{
		{MessageTopic(chatID), decodeAs[chat.Message](KindMessage)},
		{StreamTopic(chatID), decodeAs[chat.StreamPayload](KindStream)},
		{ToolCallTopic(chatID), decodeAs[chat.ToolCall](KindToolCall)},
	}

	for _, src := range sources {
		sub, err := b.Subscribe(ctx, src.topic)
		if err != nil {
			f.Close()
			return nil, err
		}
		f.subs = append(f.subs, sub)

		f.wg.Add(1)
		go func(src source, sub *Subscription) {
			defer f.wg.Done()
			for msg := range sub.C() {
				ev, err := src.decode(msg.Payload)
				if err != nil {
					log.Warn().Err(err).Str("topic", src.topic).Msg("dropping undecodable event")
					msg.Ack()
					continue
				}
				select {
				case f.out <- ev:
					msg.Ack()
				case <-f.done:
					msg.Ack()
					return
				}
			}
		}(src, sub)
	}

	go func() {
		f.wg.Wait()
		close(f.out)
	}()

	return f, nil
}

// C delivers decoded events; it closes after Close or context cancellation.
func (f *Feed) C() <-chan Event {
	return f.out
}

// Close tears down all underlying subscriptions.
func (f *Feed) Close() {
	f.once.Do(func() {
		close(f.done)
		for _, sub := range f.subs {
			sub.Close()
		}
	})
}

func decodeAs[T any](kind Kind) func([]byte) (Event, error) {
	return func(payload []byte) (Event, error) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			return Event{}, err
		}
		ev := Event{Kind: kind}
		switch kind {
		case KindMessage:
			ev.Message = any(&v).(*chat.Message)
		case KindStream:
			ev.Stream = any(&v).(*chat.StreamPayload)
		case KindToolCall:
			ev.ToolCall = any(&v).(*chat.ToolCall)
		}
		return ev, nil
	}
}
