package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mirrortwin/companion/internal/anonymizer"
	"github.com/mirrortwin/companion/internal/event"
	"github.com/mirrortwin/companion/internal/model/chat"
	"github.com/mirrortwin/companion/pkg/utils"
)

// Responder produces one assistant reply for a transcript, reporting
// progress through hooks as it streams.
type Responder interface {
	Respond(ctx context.Context, chatID string, history []chat.Message, opts chat.SendOptions, hooks chat.ResponderHooks) (*chat.AssistantReply, error)
}

// Service runs the send pipeline: persist the user turn, stream the
// assistant reply, and publish every intermediate state on the bus so any
// number of subscribers can reconcile it.
type Service struct {
	storage   Storage
	bus       *event.Bus
	responder Responder
	dict      *anonymizer.Service
	now       func() time.Time
	newID     func() string
}

var ErrResponderUnavailable = errors.New("no responder configured")

func NewService(storage Storage, bus *event.Bus, responder Responder, dict *anonymizer.Service) *Service {
	if dict == nil {
		dict = anonymizer.NewService(nil)
	}
	return &Service{
		storage:   storage,
		bus:       bus,
		responder: responder,
		dict:      dict,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// CreateChat provisions a new conversation.
func (s *Service) CreateChat(ctx context.Context, name string, category chat.Category) (chat.Chat, error) {
	if category == "" {
		category = chat.CategoryText
	}
	c := chat.Chat{
		ID:        s.newID(),
		Name:      name,
		Category:  category,
		CreatedAt: s.now(),
	}
	if err := s.storage.CreateChat(ctx, c); err != nil {
		return chat.Chat{}, errors.Wrap(err, "create chat")
	}
	return c, nil
}

// ListChats returns every known conversation.
func (s *Service) ListChats(ctx context.Context) ([]chat.Chat, error) {
	return s.storage.ListChats(ctx)
}

// Transcript returns the stored messages of a chat in insertion order.
func (s *Service) Transcript(ctx context.Context, chatID string) ([]chat.Message, error) {
	return s.storage.GetMessages(ctx, chatID)
}

// SendMessage runs one full conversation turn. An empty chatID provisions a
// fresh chat named after the message. The user turn is persisted and
// published immediately; the assistant reply streams out as it is produced
// and its final form is returned.
func (s *Service) SendMessage(ctx context.Context, chatID, text string, opts chat.SendOptions) (*chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrMessageRequired
	}
	if s.responder == nil {
		return nil, ErrResponderUnavailable
	}

	if chatID == "" {
		c, err := s.CreateChat(ctx, chatTitle(text), chat.CategoryText)
		if err != nil {
			return nil, err
		}
		chatID = c.ID
	}

	userMsg := chat.Message{
		ID:        s.newID(),
		ChatID:    chatID,
		Text:      utils.Ptr(text),
		Role:      chat.RoleUser,
		CreatedAt: s.now(),
	}
	if err := s.storage.SaveMessage(ctx, userMsg); err != nil {
		return nil, errors.Wrap(err, "persist user message")
	}
	if err := s.bus.PublishMessage(chatID, userMsg); err != nil {
		return nil, errors.Wrap(err, "publish user message")
	}

	history, err := s.storage.GetMessages(ctx, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "load transcript")
	}

	assistantID := s.newID()
	startedAt := s.now().Format(time.RFC3339Nano)
	rules := s.dict.RulesFor(chatID)

	var accumulated strings.Builder
	hooks := chat.ResponderHooks{
		OnDelta: func(d chat.StreamDelta) {
			accumulated.WriteString(d.ContentDelta)
			acc := accumulated.String()
			payload := chat.StreamPayload{
				MessageID:                      assistantID,
				Chunk:                          d.ContentDelta,
				Role:                           chat.RoleAssistant,
				IsComplete:                     d.IsCompleted,
				ImageURLs:                      d.ImageURLs,
				AccumulatedMessage:             acc,
				DeanonymizedAccumulatedMessage: anonymizer.Reverse(acc, rules),
				CreatedAt:                      utils.Ptr(startedAt),
			}
			if err := s.bus.PublishStream(chatID, payload); err != nil {
				log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to publish stream chunk")
			}
		},
		OnToolCall: func(tc chat.ToolCall) {
			if tc.MessageID == "" {
				tc.MessageID = assistantID
			}
			if err := s.bus.PublishToolCall(chatID, tc); err != nil {
				log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to publish tool call")
			}
		},
	}

	maskedHistory := s.maskHistory(history, rules)
	reply, err := s.responder.Respond(ctx, chatID, maskedHistory, opts, hooks)
	if err != nil {
		return nil, errors.Wrap(err, "generate assistant reply")
	}

	content := anonymizer.Reverse(reply.Content, rules)

	// Terminal chunk. Stream events carry the full accumulated text, so a
	// repeat of the final state is harmless to consumers.
	final := chat.StreamPayload{
		MessageID:                      assistantID,
		Role:                           chat.RoleAssistant,
		IsComplete:                     true,
		ImageURLs:                      reply.ImageURLs,
		AccumulatedMessage:             reply.Content,
		DeanonymizedAccumulatedMessage: content,
		CreatedAt:                      utils.Ptr(startedAt),
	}
	if err := s.bus.PublishStream(chatID, final); err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to publish terminal stream chunk")
	}

	assistantMsg := chat.Message{
		ID:          assistantID,
		ChatID:      chatID,
		Text:        utils.Ptr(content),
		Role:        chat.RoleAssistant,
		ImageURLs:   reply.ImageURLs,
		ToolCalls:   reply.ToolCalls,
		ToolResults: reply.ToolResults,
		CreatedAt:   s.now(),
	}
	if err := s.storage.SaveMessage(ctx, assistantMsg); err != nil {
		return nil, errors.Wrap(err, "persist assistant message")
	}
	if err := s.bus.PublishMessage(chatID, assistantMsg); err != nil {
		return nil, errors.Wrap(err, "publish assistant message")
	}

	return &assistantMsg, nil
}

// The responder only ever sees masked text; originals are restored on the
// way back out.
func (s *Service) maskHistory(history []chat.Message, rules anonymizer.Rules) []chat.Message {
	if len(rules) == 0 {
		return history
	}
	masked := make([]chat.Message, len(history))
	for i, m := range history {
		masked[i] = m
		if m.Text != nil {
			masked[i].Text = utils.Ptr(anonymizer.Apply(*m.Text, rules))
		}
	}
	return masked
}

// chatTitle derives a short chat name from the first message.
func chatTitle(text string) string {
	fields := strings.Fields(text)
	if len(fields) > 6 {
		fields = fields[:6]
	}
	title := strings.Join(fields, " ")
	if runes := []rune(title); len(runes) > 48 {
		title = string(runes[:48])
	}
	return title
}
