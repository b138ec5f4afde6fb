// Package agent implements the agent orchestrator (C6) and thread facade
// (C7): the per-call pipeline that fetches context, invokes an LLM provider
// with tools, persists steps transactionally, and metes usage (§4.6).
package agent

import (
	"context"

	"github.com/intelligencedev/agentcore/internal/embedding"
	"github.com/intelligencedev/agentcore/internal/llm"
	"github.com/intelligencedev/agentcore/internal/message"
	"github.com/intelligencedev/agentcore/internal/retrieval"
	"github.com/intelligencedev/agentcore/internal/storage"
	"github.com/intelligencedev/agentcore/internal/tools"
)

// UsageHandler is the caller-supplied side channel invoked once per
// completed step that reports usage (TotalTokens > 0), with token-count
// metadata (I5).
type UsageHandler func(ctx context.Context, provider, model string, usage message.Usage)

// Defaults is one layer of the tools/context/storage option-merge
// precedence (§4.5, §9): agent-level or thread-level configuration that a
// call-site value overrides wholesale (except SearchOptions, shallow-merged).
type Defaults struct {
	Tools               []tools.Tool
	ContextOptions      *retrieval.SearchOptions
	ExcludeToolMessages *bool
	RecentMessages      *int
	SaveAnyInputMessages *bool
	SaveAllInputMessages *bool
	SaveOutputMessages   *bool
}

// Agent is immutable configuration shared across calls (§5: "the agent
// object itself is immutable configuration; safe to share").
type Agent struct {
	Name         string
	Provider     llm.Provider
	Embedder     *embedding.Generator
	Store        storage.Store
	Retriever    *retrieval.Retriever
	Chat         string // default model id
	Instructions string // default system prompt
	MaxRetries   int
	MaxSteps     int
	Defaults     Defaults
	OnUsage      UsageHandler
}

// CallArgs is the argument bag accepted by generateText/streamText/
// generateObject/streamObject, before option merging (§4.6 preamble).
type CallArgs struct {
	UserID          string
	ThreadID        string
	Prompt          *string
	Messages        []message.CoreMessage
	System          *string
	PromptMessageID string

	Model      string
	MaxRetries int
	MaxSteps   int

	Tools               []tools.Tool
	ThreadDefaults      *Defaults
	ContextOptions      *retrieval.SearchOptions
	ExcludeToolMessages *bool
	RecentMessages      *int

	SaveAnyInputMessages *bool
	SaveAllInputMessages *bool
	SaveOutputMessages   *bool

	AgentName string
	Scope     retrieval.ActionScope

	// ObjectSchema selects generateObject/streamObject mode when non-nil.
	ObjectSchema map[string]any
}

// GenerateTextResult is the outcome of a successful generateText call.
type GenerateTextResult struct {
	MessageID    string
	Text         string
	Steps        []message.Step
	FinishReason string
	Usage        message.Usage
}

// ObjectGenerateResult is the outcome of a successful generateObject call.
type ObjectGenerateResult struct {
	MessageID string
	Object    []byte
	Usage     message.Usage
}

// StreamHandlers lets a streamText/streamObject caller observe progress
// without taking over persistence, which the orchestrator still owns.
type StreamHandlers struct {
	OnChunk func(delta string)
	OnError func(err error)
}
