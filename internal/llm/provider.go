package llm

import (
	"context"
	"encoding/json"
)

type ToolCall struct {
	Name string
	Args json.RawMessage
	ID   string
	// ThoughtSignature is an opaque provider-specific value to echo back on
	// subsequent turns. Neither bundled client (Anthropic, OpenAI) sets it.
	ThoughtSignature string
}

// GeneratedImage represents an image payload returned by the model.
// Data holds the raw bytes (already decoded from base64), and MIMEType
// should be a valid image MIME like image/png or image/jpeg.
type GeneratedImage struct {
	Data     []byte
	MIMEType string
}

type Message struct {
	Role    string // "system" | "user" | "assistant" | "tool"
	Content string
	ToolID  string
	// ToolCalls are only set on assistant messages
	ToolCalls []ToolCall
	// Images captures inline image payloads returned by the provider.
	Images []GeneratedImage
	// ThoughtSignature carries provider-specific thinking state that must be
	// echoed back on subsequent turns. The Anthropic client stores its
	// thinking blocks here as a JSON-encoded string.
	ThoughtSignature string
	// Usage is the token accounting for the call that produced this message.
	// Zero-valued when the provider didn't report usage for this turn.
	Usage Usage
}

type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type StreamHandler interface {
	OnDelta(content string)
	OnToolCall(tc ToolCall)
	OnImage(img GeneratedImage)
	// OnThoughtSummary receives model reasoning summaries when available.
	OnThoughtSummary(summary string)
	// OnThoughtSignature receives an opaque, provider-specific token that must
	// be echoed back on the next turn to keep extended-thinking state valid.
	OnThoughtSignature(sig string)
	// OnUsage receives the call's token accounting once the stream finishes.
	OnUsage(u Usage)
}

// Usage is the token accounting for one provider call, surfaced to the
// per-step usage handler (§4.6, I5).
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// EmbeddingModel embeds a batch of strings in one round trip (§6).
type EmbeddingModel interface {
	ModelID() string
	DoEmbed(ctx context.Context, values []string) ([][]float32, error)
}

type Provider interface {
	Chat(ctx context.Context, msgs []Message, tools []ToolSchema, model string) (Message, error)
	ChatStream(ctx context.Context, msgs []Message, tools []ToolSchema, model string, h StreamHandler) error
}
