package event

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"

	"github.com/mirrortwin/companion/internal/model/chat"
)

// Topic layout, one conversation per topic family:
//
//	chat.{chatID}            message added
//	chat.{chatID}.stream     stream chunk
//	chat.{chatID}.tool_call  tool-call update

// MessageTopic returns the message-added topic for a chat.
func MessageTopic(chatID string) string { return "chat." + chatID }

// StreamTopic returns the stream-chunk topic for a chat.
func StreamTopic(chatID string) string { return "chat." + chatID + ".stream" }

// ToolCallTopic returns the tool-call-update topic for a chat.
func ToolCallTopic(chatID string) string { return "chat." + chatID + ".tool_call" }

// Bus is the in-process pub/sub transport carrying conversation events from
// the send pipeline to every subscriber (SSE, websocket, reconcilers).
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates an in-process bus. Publish blocks until every subscriber
// acks, so each topic delivers events in publish order; the reconciler's
// last-write-wins rule depends on that.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, watermill.NopLogger{}),
	}
}

// Publish marshals the payload and publishes it on the topic.
func (b *Bus) Publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal event payload")
	}
	return b.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), data))
}

// PublishMessage publishes a messageAdded event.
func (b *Bus) PublishMessage(chatID string, m chat.Message) error {
	return b.Publish(MessageTopic(chatID), m)
}

// PublishStream publishes a messageStream event.
func (b *Bus) PublishStream(chatID string, p chat.StreamPayload) error {
	return b.Publish(StreamTopic(chatID), p)
}

// PublishToolCall publishes a toolCallUpdated event.
func (b *Bus) PublishToolCall(chatID string, tc chat.ToolCall) error {
	return b.Publish(ToolCallTopic(chatID), tc)
}

// Subscribe returns a scoped subscription on one topic. Close releases it;
// cancellation of the parent context does too.
func (b *Bus) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	ch, err := b.pubsub.Subscribe(subCtx, topic)
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "subscribe %s", topic)
	}
	return &Subscription{ch: ch, cancel: cancel}, nil
}

// Close shuts the bus down and terminates all subscriptions.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// Subscription is a handle on one topic subscription with guaranteed
// teardown.
type Subscription struct {
	ch     <-chan *message.Message
	cancel context.CancelFunc
	once   sync.Once
}

// C is the channel of raw messages; it closes when the subscription ends.
func (s *Subscription) C() <-chan *message.Message {
	return s.ch
}

// Close tears the subscription down. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}
