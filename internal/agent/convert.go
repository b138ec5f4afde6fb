package agent

import (
	"encoding/json"
	"strings"

	"github.com/intelligencedev/agentcore/internal/llm"
	"github.com/intelligencedev/agentcore/internal/message"
)

// toLLMMessages flattens CoreMessages into the provider's flat wire form,
// prepending a system message when system is non-empty. A tool CoreMessage
// carrying several tool-result parts (e.g. saved together in one step)
// expands to one llm.Message per part, matching the provider's one-ID-per-message shape.
func toLLMMessages(system string, msgs []message.CoreMessage) []llm.Message {
	out := make([]llm.Message, 0, len(msgs)+1)
	if system != "" {
		out = append(out, llm.Message{Role: "system", Content: system})
	}
	for _, m := range msgs {
		out = append(out, toLLMMessage(m)...)
	}
	return out
}

func toLLMMessage(m message.CoreMessage) []llm.Message {
	if !m.HasParts() {
		return []llm.Message{{Role: string(m.Role), Content: m.Content}}
	}

	switch m.Role {
	case message.RoleAssistant:
		var text strings.Builder
		var calls []llm.ToolCall
		for _, p := range m.Parts {
			switch p.Type {
			case message.PartText, message.PartReasoning:
				text.WriteString(p.Text)
			case message.PartToolCall:
				calls = append(calls, llm.ToolCall{Name: p.ToolName, Args: p.Args, ID: p.ToolCallID})
			}
		}
		return []llm.Message{{Role: "assistant", Content: text.String(), ToolCalls: calls}}
	case message.RoleTool:
		out := make([]llm.Message, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p.Type != message.PartToolResult {
				continue
			}
			out = append(out, llm.Message{Role: "tool", Content: string(p.Result), ToolID: p.ToolCallID})
		}
		return out
	default:
		return []llm.Message{{Role: string(m.Role), Content: m.Content}}
	}
}

// fromLLMMessage converts one provider-emitted message back into a
// CoreMessage, the form the rest of the pipeline (C1-C4) operates on.
func fromLLMMessage(lm llm.Message) message.CoreMessage {
	switch lm.Role {
	case "assistant":
		var parts []message.Part
		if lm.Content != "" {
			parts = append(parts, message.Part{Type: message.PartText, Text: lm.Content})
		}
		for _, tc := range lm.ToolCalls {
			parts = append(parts, message.Part{Type: message.PartToolCall, ToolCallID: tc.ID, ToolName: tc.Name, Args: tc.Args})
		}
		if len(parts) == 0 {
			return message.CoreMessage{Role: message.RoleAssistant, Content: lm.Content}
		}
		return message.CoreMessage{Role: message.RoleAssistant, Parts: parts}
	case "tool":
		return message.CoreMessage{Role: message.RoleTool, Parts: []message.Part{
			{Type: message.PartToolResult, ToolCallID: lm.ToolID, Result: asJSONRaw(lm.Content)},
		}}
	default:
		return message.CoreMessage{Role: message.Role(lm.Role), Content: lm.Content}
	}
}

// asJSONRaw wraps a tool result payload as valid JSON, quoting it as a
// string if it is not already a JSON value (tools may return plain text).
func asJSONRaw(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return json.RawMessage(b)
}
