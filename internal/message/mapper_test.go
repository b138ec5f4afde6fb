package message

import (
	"encoding/json"
	"testing"

	"github.com/intelligencedev/agentcore/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []CoreMessage{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleAssistant, Content: "plain text reply"},
		{
			Role: RoleAssistant,
			Parts: []Part{
				{Type: PartText, Text: "let me check"},
				{Type: PartToolCall, ToolCallID: "call_1", ToolName: "lookup", Args: json.RawMessage(`{"q":"weather"}`)},
				{Type: PartReasoning, Text: "considering options"},
				{Type: PartSource, SourceURL: "https://example.com", SourceTitle: "Example"},
				{Type: PartFile, FileName: "a.png", FileMIMEType: "image/png", FileURL: "https://example.com/a.png"},
			},
		},
		{
			Role: RoleTool,
			Parts: []Part{
				{Type: PartToolResult, ToolCallID: "call_1", ToolName: "lookup", Result: json.RawMessage(`{"temp":72}`)},
			},
		},
	}

	for _, m := range cases {
		raw, err := SerializeMessage(m)
		require.NoError(t, err)
		got, err := DeserializeMessage(raw)
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
}

func TestPromptOrMessagesToCoreMessagesConflict(t *testing.T) {
	t.Parallel()

	prompt := "hi"
	_, err := PromptOrMessagesToCoreMessages(PromptOrMessagesInput{
		Prompt:   &prompt,
		Messages: []CoreMessage{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, apperr.InvalidArgument)
}

func TestPromptOrMessagesToCoreMessagesEmpty(t *testing.T) {
	t.Parallel()

	msgs, err := PromptOrMessagesToCoreMessages(PromptOrMessagesInput{})
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestPromptOrMessagesToCoreMessagesFromPrompt(t *testing.T) {
	t.Parallel()

	prompt := "hi"
	msgs, err := PromptOrMessagesToCoreMessages(PromptOrMessagesInput{Prompt: &prompt})
	require.NoError(t, err)
	require.Equal(t, []CoreMessage{{Role: RoleUser, Content: "hi"}}, msgs)
}

func TestSerializeObjectResultSynthesizesStep(t *testing.T) {
	t.Parallel()

	step := SerializeObjectResult(ObjectResult{Object: json.RawMessage(`{"a":1}`)}, StepAttribution{Provider: "openai", Model: "gpt-4o-mini"})
	require.Equal(t, "stop", step.FinishReason)
	require.Len(t, step.NewMessages, 1)
	require.Equal(t, RoleAssistant, step.NewMessages[0].Role)
}

func TestIsToolMessage(t *testing.T) {
	t.Parallel()

	require.True(t, CoreMessage{Role: RoleTool}.IsToolMessage())
	require.True(t, CoreMessage{Role: RoleAssistant, Parts: []Part{{Type: PartToolCall}}}.IsToolMessage())
	require.False(t, CoreMessage{Role: RoleAssistant, Content: "hi"}.IsToolMessage())
}
