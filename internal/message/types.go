// Package message implements the wire/core message mapping, step
// serialization, and UI projection for agent threads (component C1).
package message

import "encoding/json"

// Role tags a CoreMessage's position in the conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType tags the variant of a rich content Part.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool-call"
	PartToolResult PartType = "tool-result"
	PartReasoning  PartType = "reasoning"
	PartSource     PartType = "source"
	PartFile       PartType = "file"
)

// Part is one element of an assistant or tool message's content list.
// Only the fields relevant to Type are populated; the rest are zero.
type Part struct {
	Type PartType `json:"type"`

	// text, reasoning
	Text string `json:"text,omitempty"`

	// tool-call, tool-result
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`

	// source
	SourceURL   string `json:"sourceUrl,omitempty"`
	SourceTitle string `json:"sourceTitle,omitempty"`

	// file
	FileName     string `json:"fileName,omitempty"`
	FileMIMEType string `json:"fileMimeType,omitempty"`
	FileURL      string `json:"fileUrl,omitempty"`
}

// CoreMessage is the role-tagged variant described by the persistence and
// provider contracts: system/user carry plain text, assistant and tool
// carry either plain text or a list of Parts.
type CoreMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`
}

// HasParts reports whether the message uses rich content instead of plain text.
func (m CoreMessage) HasParts() bool { return len(m.Parts) > 0 }

// IsToolMessage reports whether m is a tool role message, or an assistant
// message carrying any tool-call part. Matches the `tool` flag on MessageDoc (§3).
func (m CoreMessage) IsToolMessage() bool {
	if m.Role == RoleTool {
		return true
	}
	if m.Role != RoleAssistant {
		return false
	}
	for _, p := range m.Parts {
		if p.Type == PartToolCall {
			return true
		}
	}
	return false
}

// ExtractText returns the plain-text content of a message for embedding and
// search purposes. Tool messages and parts-only messages with no text part
// extract to "".
func (m CoreMessage) ExtractText() string {
	if m.Role == RoleTool {
		return ""
	}
	if !m.HasParts() {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// ToolCallIDs returns the toolCallId of every tool-call part in an assistant message.
func (m CoreMessage) ToolCallIDs() []string {
	if m.Role != RoleAssistant {
		return nil
	}
	var ids []string
	for _, p := range m.Parts {
		if p.Type == PartToolCall {
			ids = append(ids, p.ToolCallID)
		}
	}
	return ids
}

// ToolResultIDs returns the toolCallId of every tool-result part in a tool message.
func (m CoreMessage) ToolResultIDs() []string {
	if m.Role != RoleTool {
		return nil
	}
	var ids []string
	for _, p := range m.Parts {
		if p.Type == PartToolResult {
			ids = append(ids, p.ToolCallID)
		}
	}
	return ids
}
