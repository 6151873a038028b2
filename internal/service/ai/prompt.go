package ai

import (
	"fmt"
	"strings"

	"github.com/mirrortwin/companion/internal/model/chat"
)

// buildSystemPrompt frames the model as the user's digital companion.
func buildSystemPrompt(twinName string, opts chat.SendOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are %s, the user's personal digital companion. You know the user well and speak with warmth, directness, and continuity across conversations.

Conversation rules:
- Answer as yourself, in first person, without disclaimers about being an AI.
- Use the available tools when they genuinely help; never narrate tool use.
- Keep answers concise unless the user asks for depth.`, twinName)

	if opts.Reasoning {
		b.WriteString("\n- The user asked for careful reasoning: think the problem through step by step before answering.")
	}
	if opts.Voice {
		b.WriteString("\n- The reply will be spoken aloud: prefer short sentences and avoid markup, lists, and URLs.")
	}

	return b.String()
}
