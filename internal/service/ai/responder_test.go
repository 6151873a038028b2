package ai

import (
	"strings"
	"testing"

	"github.com/mirrortwin/companion/internal/config"
	"github.com/mirrortwin/companion/internal/model/chat"
	"github.com/mirrortwin/companion/internal/model/tool"
	"github.com/mirrortwin/companion/pkg/utils"
)

func TestBuildMessagesLimitsHistory(t *testing.T) {
	r := &Responder{cfg: config.AIConfig{TwinName: "Echo", HistoryLimit: 2}}

	history := []chat.Message{
		{Role: chat.RoleUser, Text: utils.Ptr("one")},
		{Role: chat.RoleAssistant, Text: utils.Ptr("two")},
		{Role: chat.RoleUser, Text: utils.Ptr("three")},
	}

	msgs := r.buildMessages(history, chat.SendOptions{})
	// system + last two turns
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[1].Content != "two" || msgs[2].Content != "three" {
		t.Fatalf("history window wrong: %q, %q", msgs[1].Content, msgs[2].Content)
	}
}

func TestBuildMessagesSkipsNilText(t *testing.T) {
	r := &Responder{cfg: config.AIConfig{TwinName: "Echo"}}

	history := []chat.Message{
		{Role: chat.RoleAssistant, Text: nil},
		{Role: chat.RoleUser, Text: utils.Ptr("hi")},
	}

	msgs := r.buildMessages(history, chat.SendOptions{})
	if len(msgs) != 2 {
		t.Fatalf("expected system + 1 turn, got %d messages", len(msgs))
	}
}

func TestBuildSystemPromptOptions(t *testing.T) {
	base := buildSystemPrompt("Echo", chat.SendOptions{})
	if !strings.Contains(base, "Echo") {
		t.Fatal("prompt does not name the twin")
	}
	if strings.Contains(base, "spoken aloud") {
		t.Fatal("voice guidance present without the voice flag")
	}

	voiced := buildSystemPrompt("Echo", chat.SendOptions{Voice: true, Reasoning: true})
	if !strings.Contains(voiced, "spoken aloud") || !strings.Contains(voiced, "step by step") {
		t.Fatal("option guidance missing")
	}
}

func TestToolInfosIncludeParams(t *testing.T) {
	infos := toolInfos([]tool.Tool{tool.ClockTool{}})
	if len(infos) != 1 {
		t.Fatalf("expected 1 tool info, got %d", len(infos))
	}
	if infos[0].Name != "get_current_time" {
		t.Fatalf("tool name = %q", infos[0].Name)
	}
	if infos[0].ParamsOneOf == nil {
		t.Fatal("expected params for the clock tool")
	}
}

func TestErrorResultIsJSON(t *testing.T) {
	res := errorResult("boom")
	if res.Content != `{"error":"boom"}` {
		t.Fatalf("content = %q", res.Content)
	}
}
