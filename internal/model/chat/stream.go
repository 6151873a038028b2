package chat

// StreamPayload is one increment of a progressively generated assistant
// reply. Each payload carries the full accumulated text so far, not a delta;
// consumers replace rather than concatenate.
type StreamPayload struct {
	MessageID                      string   `json:"messageId"`
	Chunk                          string   `json:"chunk"`
	Role                           Role     `json:"role"`
	IsComplete                     bool     `json:"isComplete"`
	ImageURLs                      []string `json:"imageUrls"`
	AccumulatedMessage             string   `json:"accumulatedMessage"`
	DeanonymizedAccumulatedMessage string   `json:"deanonymizedAccumulatedMessage"`
	CreatedAt                      *string  `json:"createdAt,omitempty"`
}

// StreamDelta is the responder-side increment before accumulation.
type StreamDelta struct {
	ContentDelta string
	IsCompleted  bool
	ImageURLs    []string
}

// SendOptions carries the per-send flags of the outbound sendMessage call.
type SendOptions struct {
	Reasoning bool
	Voice     bool
}

// ResponderHooks lets the send pipeline observe responder progress.
// OnToolCall fires twice per tool call: once pending, once completed.
type ResponderHooks struct {
	OnDelta    func(StreamDelta)
	OnToolCall func(ToolCall)
}

// AssistantReply is the final result of one responder run.
type AssistantReply struct {
	Content     string
	ToolCalls   []ToolCall
	ToolResults []string
	ImageURLs   []string
}
