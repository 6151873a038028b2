package chat

import "time"

// Category distinguishes how a chat was started.
type Category string

const (
	CategoryText  Category = "text"
	CategoryVoice Category = "voice"
)

// Chat is one conversation owned by the twin.
type Chat struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}
