package chat

import "time"

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation. Text is nil while only tool calls
// have arrived for the turn.
type Message struct {
	ID          string     `json:"id"`
	ChatID      string     `json:"chatId,omitempty"`
	Text        *string    `json:"text"`
	Role        Role       `json:"role"`
	ImageURLs   []string   `json:"imageUrls"`
	ToolCalls   []ToolCall `json:"toolCalls"`
	ToolResults []string   `json:"toolResults,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ToolCall records the assistant invoking an external capability and,
// once completed, its result.
type ToolCall struct {
	ID          string          `json:"id"`
	MessageID   string          `json:"messageId"`
	Name        string          `json:"name"`
	IsCompleted bool            `json:"isCompleted"`
	Result      *ToolCallResult `json:"result,omitempty"`
}

// ToolCallResult is the free-form payload of a completed tool call. Content
// holds tool-specific JSON; ImageURLs surfaces generated images directly.
type ToolCallResult struct {
	Content   *string  `json:"content,omitempty"`
	ImageURLs []string `json:"imageUrls,omitempty"`
}
