package session

import (
	"errors"

	"github.com/mirrortwin/companion/internal/model/chat"
	"github.com/mirrortwin/companion/internal/model/tool"
)

// ErrMissingToolCallID rejects tool-call events without an identifier.
var ErrMissingToolCallID = errors.New("session: tool call missing id")

// ApplyToolCall applies a toolCallUpdated event: merge into the owning
// turn's tool-call list by identifier, or synthesize a placeholder assistant
// turn with nil text when the owning turn does not exist yet. Image URLs of
// completed image-producing tools surface into the turn. The active
// tool-call list is updated with the same merge-by-id semantics.
func (s *Session) ApplyToolCall(tc chat.ToolCall) error {
	if tc.ID == "" {
		return ErrMissingToolCallID
	}
	if tc.MessageID == "" {
		return ErrMissingMessageID
	}

	s.mu.Lock()
	turn, ok := s.store.Get(tc.MessageID)
	if ok {
		turn.ToolCalls = mergeToolCall(turn.ToolCalls, tc)
		for _, call := range turn.ToolCalls {
			if !call.IsCompleted || call.Result == nil {
				continue
			}
			urls := tool.ResultImageURLs(call.Name, call.Result.Content, call.Result.ImageURLs)
			turn.ImageURLs = unionURLs(turn.ImageURLs, urls)
		}
	} else {
		var urls []string
		if tc.IsCompleted && tc.Result != nil {
			urls = unionURLs(nil, tool.ResultImageURLs(tc.Name, tc.Result.Content, tc.Result.ImageURLs))
		}
		turn = chat.Message{
			ID:        tc.MessageID,
			ChatID:    s.chatID,
			Text:      nil,
			Role:      chat.RoleAssistant,
			ImageURLs: urls,
			ToolCalls: []chat.ToolCall{tc},
			CreatedAt: s.now(),
		}
	}
	s.store.Upsert(turn)
	s.active = mergeToolCall(s.active, tc)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
	return nil
}

// mergeToolCall upserts by identifier; on a match, later fields win.
func mergeToolCall(calls []chat.ToolCall, tc chat.ToolCall) []chat.ToolCall {
	for i, existing := range calls {
		if existing.ID != tc.ID {
			continue
		}
		merged := existing
		if tc.Name != "" {
			merged.Name = tc.Name
		}
		if tc.MessageID != "" {
			merged.MessageID = tc.MessageID
		}
		merged.IsCompleted = tc.IsCompleted
		if tc.Result != nil {
			merged.Result = tc.Result
		}
		out := append([]chat.ToolCall(nil), calls...)
		out[i] = merged
		return out
	}
	return append(append([]chat.ToolCall(nil), calls...), tc)
}
