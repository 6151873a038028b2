package tool

import "context"

// Tool is one capability the assistant can invoke mid-turn.
type Tool interface {
	Name() string
	Description() string
	// Call receives the raw JSON arguments produced by the model.
	Call(ctx context.Context, arguments string) (Result, error)
}

// Param describes one argument of a tool. Tools that take arguments also
// implement ParamsProvider so the model can be told their schema.
type Param struct {
	Type        string
	Description string
	Required    bool
}

type ParamsProvider interface {
	Params() map[string]Param
}

// NameSendToChat is the internal delivery tool; it is never exposed to the
// model directly.
const NameSendToChat = "send_to_chat"

// Result is what a tool execution hands back to the agent loop. Content is
// fed to the model verbatim; ImageURLs surface into the conversation
// transcript when the tool is image-producing.
type Result struct {
	Content   string
	ImageURLs []string
}
