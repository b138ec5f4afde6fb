package retrieval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intelligencedev/agentcore/internal/message"
	"github.com/intelligencedev/agentcore/internal/storage"
)

func TestFilterOrphanedToolMessagesDropsUnmatched(t *testing.T) {
	t.Parallel()

	docs := []storage.MessageDoc{
		{ID: "1", Message: message.CoreMessage{Role: message.RoleAssistant, Parts: []message.Part{
			{Type: message.PartToolCall, ToolCallID: "A", ToolName: "lookup"},
		}}},
		{ID: "2", Message: message.CoreMessage{Role: message.RoleTool, Parts: []message.Part{
			{Type: message.PartToolResult, ToolCallID: "A", ToolName: "lookup"},
		}}},
		{ID: "3", Message: message.CoreMessage{Role: message.RoleTool, Parts: []message.Part{
			{Type: message.PartToolResult, ToolCallID: "B", ToolName: "lookup"},
		}}},
	}

	out := FilterOrphanedToolMessages(docs)
	require.Len(t, out, 2)
	require.Equal(t, "1", out[0].ID)
	require.Equal(t, "2", out[1].ID)
}

func TestFilterOrphanedToolMessagesRequiresAllResultIDs(t *testing.T) {
	t.Parallel()

	docs := []storage.MessageDoc{
		{ID: "1", Message: message.CoreMessage{Role: message.RoleAssistant, Parts: []message.Part{
			{Type: message.PartToolCall, ToolCallID: "A", ToolName: "lookup"},
		}}},
		{ID: "2", Message: message.CoreMessage{Role: message.RoleTool, Parts: []message.Part{
			{Type: message.PartToolResult, ToolCallID: "A", ToolName: "lookup"},
			{Type: message.PartToolResult, ToolCallID: "B", ToolName: "lookup"},
		}}},
	}

	// Doc "2" carries results for both A and B, but only A was ever
	// announced by a preceding assistant tool-call. P3 requires every
	// toolCallId in the doc to resolve, so it must be dropped entirely,
	// not kept because one of its two ids matched.
	out := FilterOrphanedToolMessages(docs)
	require.Len(t, out, 1)
	require.Equal(t, "1", out[0].ID)
}
