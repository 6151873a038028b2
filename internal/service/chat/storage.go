package chat

import (
	"context"
	"errors"

	"github.com/mirrortwin/companion/internal/model/chat"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageRequired = errors.New("message text is required")
)

// Storage persists chats and their transcripts. SaveMessage upserts by
// message ID so re-publishing a final message after a stream is harmless.
type Storage interface {
	CreateChat(ctx context.Context, c chat.Chat) error
	GetChat(ctx context.Context, chatID string) (chat.Chat, error)
	ListChats(ctx context.Context) ([]chat.Chat, error)
	SaveMessage(ctx context.Context, m chat.Message) error
	GetMessages(ctx context.Context, chatID string) ([]chat.Message, error)
	Close() error
}
