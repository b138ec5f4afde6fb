package action

import (
	"context"

	"github.com/intelligencedev/agentcore/internal/agent"
	"github.com/intelligencedev/agentcore/internal/message"
	"github.com/intelligencedev/agentcore/internal/retrieval"
	"github.com/intelligencedev/agentcore/internal/storage"
)

// CreateThreadArgs is the argument bag for CreateThreadMutation.
type CreateThreadArgs struct {
	UserID          string
	Title           string
	Summary         string
	IdempotencyKey  string
}

// CreateThreadMutation wraps storage.Store.CreateThread as a host-registerable
// endpoint (§4.8): a thin adapter with no logic beyond option merging and
// dedupe.
func CreateThreadMutation(store storage.Store, dedupe DedupeStore) func(context.Context, CreateThreadArgs) (storage.ThreadDoc, error) {
	return func(ctx context.Context, args CreateThreadArgs) (storage.ThreadDoc, error) {
		return withDedupe(ctx, dedupe, args.IdempotencyKey, func() (storage.ThreadDoc, error) {
			return store.CreateThread(ctx, args.UserID, args.Title, args.Summary)
		})
	}
}

// SaveMessagesArgs is the argument bag for AsSaveMessagesMutation.
type SaveMessagesArgs struct {
	ThreadID       string
	UserID         string
	AgentName      string
	Messages       []message.CoreMessage
	IdempotencyKey string
}

// AsSaveMessagesMutation wraps storage.Store.AddMessages, committing
// immediately since a standalone save has no provider step to await (§4.8).
func AsSaveMessagesMutation(store storage.Store, dedupe DedupeStore) func(context.Context, SaveMessagesArgs) (storage.AddMessagesResult, error) {
	return func(ctx context.Context, args SaveMessagesArgs) (storage.AddMessagesResult, error) {
		return withDedupe(ctx, dedupe, args.IdempotencyKey, func() (storage.AddMessagesResult, error) {
			res, err := store.AddMessages(ctx, storage.AddMessagesInput{
				ThreadID: args.ThreadID, UserID: args.UserID, AgentName: args.AgentName,
				Messages: args.Messages, Pending: false,
			})
			if err != nil {
				return storage.AddMessagesResult{}, err
			}
			if res.LastMessageID != "" {
				_ = store.CommitMessage(ctx, res.LastMessageID)
			}
			return res, nil
		})
	}
}

// TextActionSpec configures the host-registerable text-generation endpoint
// returned by AsTextAction (§4.8).
type TextActionSpec struct {
	MaxSteps       int
	ContextOptions *retrieval.SearchOptions
}

// TextActionArgs is the per-call argument bag a host passes to the endpoint
// AsTextAction returns.
type TextActionArgs struct {
	UserID, ThreadID string
	Prompt           *string
	Messages         []message.CoreMessage
	IdempotencyKey   string
}

// AsTextAction returns a callable that applies spec's MaxSteps and
// ContextOptions to each call and forwards to Agent.GenerateText, bridging
// the agent into a workflow host that dispatches actions by name (§4.8).
// TextActionSpec carries no storage options, so every call saves with the
// agent's storage defaults.
func AsTextAction(a *agent.Agent, spec TextActionSpec, dedupe DedupeStore) func(context.Context, TextActionArgs) (*agent.GenerateTextResult, error) {
	return func(ctx context.Context, args TextActionArgs) (*agent.GenerateTextResult, error) {
		return withDedupe(ctx, dedupe, args.IdempotencyKey, func() (*agent.GenerateTextResult, error) {
			call := agent.CallArgs{
				UserID: args.UserID, ThreadID: args.ThreadID,
				Prompt: args.Prompt, Messages: args.Messages,
				MaxSteps:       spec.MaxSteps,
				ContextOptions: spec.ContextOptions,
			}
			return a.GenerateText(ctx, call)
		})
	}
}

// ObjectActionArgs is the per-call argument bag for AsObjectAction.
type ObjectActionArgs struct {
	UserID, ThreadID string
	Prompt           *string
	Messages         []message.CoreMessage
	ObjectSchema     map[string]any
	IdempotencyKey   string
}

// AsObjectAction mirrors AsTextAction for generateObject (§4.8).
func AsObjectAction(a *agent.Agent, spec TextActionSpec, dedupe DedupeStore) func(context.Context, ObjectActionArgs) (*agent.ObjectGenerateResult, error) {
	return func(ctx context.Context, args ObjectActionArgs) (*agent.ObjectGenerateResult, error) {
		return withDedupe(ctx, dedupe, args.IdempotencyKey, func() (*agent.ObjectGenerateResult, error) {
			call := agent.CallArgs{
				UserID: args.UserID, ThreadID: args.ThreadID,
				Prompt: args.Prompt, Messages: args.Messages,
				ObjectSchema:   args.ObjectSchema,
				MaxSteps:       spec.MaxSteps,
				ContextOptions: spec.ContextOptions,
			}
			return a.GenerateObject(ctx, call)
		})
	}
}
