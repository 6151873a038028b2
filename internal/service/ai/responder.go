package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/mirrortwin/companion/internal/config"
	"github.com/mirrortwin/companion/internal/model/chat"
	"github.com/mirrortwin/companion/internal/model/tool"
)

// Responder drives the chat model through the agent loop: stream a reply,
// execute any tool calls it asks for, feed the results back, repeat until
// the model answers in plain text or the round limit is hit.
type Responder struct {
	base  model.ChatModel
	bound model.ChatModel
	tools tool.Registry
	cfg   config.AIConfig
}

// NewResponder builds the model and binds every registered tool except the
// internal delivery one. BindTools mutates the instance, so the bound model
// is a second instance and base stays tool-less for the forced final answer.
func NewResponder(ctx context.Context, cfg config.AIConfig, registry tool.Registry) (*Responder, error) {
	base, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	visible := registry.Excluding(tool.NameSendToChat)
	bound := base
	if infos := toolInfos(visible.All()); len(infos) > 0 {
		toolModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		if err := toolModel.BindTools(infos); err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
		bound = toolModel
	}

	return &Responder{
		base:  base,
		bound: bound,
		tools: visible,
		cfg:   cfg,
	}, nil
}

// StreamingEnabled reports whether replies stream chunk by chunk.
func (r *Responder) StreamingEnabled() bool {
	return r.cfg.StreamResponse
}

// Respond implements the chat service's Responder contract.
func (r *Responder) Respond(ctx context.Context, chatID string, history []chat.Message, opts chat.SendOptions, hooks chat.ResponderHooks) (*chat.AssistantReply, error) {
	msgs := r.buildMessages(history, opts)
	reply := &chat.AssistantReply{}

	for round := 0; round < r.cfg.MaxToolRounds; round++ {
		out, err := r.generate(ctx, r.bound, msgs, hooks)
		if err != nil {
			return nil, err
		}

		if len(out.ToolCalls) == 0 {
			reply.Content = out.Content
			return reply, nil
		}

		msgs = append(msgs, out)
		for _, tc := range out.ToolCalls {
			msgs = append(msgs, r.executeToolCall(ctx, chatID, tc, reply, hooks))
		}
	}

	// Round limit reached: force a plain-text answer with the unbound model
	// so the turn always ends in prose.
	log.Warn().Str("chat_id", chatID).Int("rounds", r.cfg.MaxToolRounds).Msg("tool round limit reached, forcing final answer")
	out, err := r.generate(ctx, r.base, msgs, hooks)
	if err != nil {
		return nil, err
	}
	reply.Content = out.Content
	return reply, nil
}

// generate runs one model call, streaming when enabled, and returns the
// fully concatenated message.
func (r *Responder) generate(ctx context.Context, m model.BaseChatModel, msgs []*schema.Message, hooks chat.ResponderHooks) (*schema.Message, error) {
	if !r.cfg.StreamResponse {
		out, err := m.Generate(ctx, msgs)
		if err != nil {
			return nil, fmt.Errorf("failed to generate reply: %w", err)
		}
		if out.Content != "" && hooks.OnDelta != nil {
			hooks.OnDelta(chat.StreamDelta{ContentDelta: out.Content})
		}
		return out, nil
	}

	reader, err := m.Stream(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to stream reply: %w", err)
	}
	defer reader.Close()

	var chunks []*schema.Message
	for {
		chunk, err := reader.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to receive stream chunk: %w", err)
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" && hooks.OnDelta != nil {
			hooks.OnDelta(chat.StreamDelta{ContentDelta: chunk.Content})
		}
	}

	out, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to concatenate stream chunks: %w", err)
	}
	return out, nil
}

// executeToolCall runs one tool call, records it on the reply, and returns
// the tool message to feed back to the model. Hooks fire twice: pending
// before execution, completed after.
func (r *Responder) executeToolCall(ctx context.Context, chatID string, tc schema.ToolCall, reply *chat.AssistantReply, hooks chat.ResponderHooks) *schema.Message {
	name := tc.Function.Name
	if hooks.OnToolCall != nil {
		hooks.OnToolCall(chat.ToolCall{ID: tc.ID, Name: name})
	}

	var result tool.Result
	t, ok := r.tools.Get(name)
	if !ok {
		result = errorResult(fmt.Sprintf("unknown tool %q", name))
	} else {
		var err error
		result, err = t.Call(ctx, tc.Function.Arguments)
		if err != nil {
			log.Warn().Err(err).Str("chat_id", chatID).Str("tool", name).Msg("tool call failed")
			result = errorResult(err.Error())
		}
	}

	content := result.Content
	completed := chat.ToolCall{
		ID:          tc.ID,
		Name:        name,
		IsCompleted: true,
		Result: &chat.ToolCallResult{
			Content:   &content,
			ImageURLs: result.ImageURLs,
		},
	}
	reply.ToolCalls = append(reply.ToolCalls, completed)
	reply.ToolResults = append(reply.ToolResults, content)
	if urls := tool.ResultImageURLs(name, &content, result.ImageURLs); len(urls) > 0 {
		reply.ImageURLs = append(reply.ImageURLs, urls...)
	}

	if hooks.OnToolCall != nil {
		hooks.OnToolCall(completed)
	}

	return schema.ToolMessage(content, tc.ID)
}

func (r *Responder) buildMessages(history []chat.Message, opts chat.SendOptions) []*schema.Message {
	limit := r.cfg.HistoryLimit
	start := 0
	if limit > 0 && len(history) > limit {
		start = len(history) - limit
	}

	msgs := make([]*schema.Message, 0, len(history)-start+1)
	msgs = append(msgs, schema.SystemMessage(buildSystemPrompt(r.cfg.TwinName, opts)))
	for _, m := range history[start:] {
		if m.Text == nil {
			continue
		}
		switch m.Role {
		case chat.RoleUser:
			msgs = append(msgs, schema.UserMessage(*m.Text))
		case chat.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(*m.Text, nil))
		}
	}
	return msgs
}

func errorResult(message string) tool.Result {
	content, _ := json.Marshal(map[string]string{"error": message})
	return tool.Result{Content: string(content)}
}

func toolInfos(tools []tool.Tool) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info := &schema.ToolInfo{
			Name: t.Name(),
			Desc: t.Description(),
		}
		if provider, ok := t.(tool.ParamsProvider); ok {
			info.ParamsOneOf = schema.NewParamsOneOfByParams(convertParams(provider.Params()))
		}
		infos = append(infos, info)
	}
	return infos
}

func convertParams(params map[string]tool.Param) map[string]*schema.ParameterInfo {
	out := make(map[string]*schema.ParameterInfo, len(params))
	for name, p := range params {
		out[name] = &schema.ParameterInfo{
			Type:     schema.DataType(p.Type),
			Desc:     p.Description,
			Required: p.Required,
		}
	}
	return out
}
