package agent

import (
	"context"

	"github.com/intelligencedev/agentcore/internal/retrieval"
)

// Thread is the thread facade (C7): it pins an Agent to one (userId,
// threadId) pair so call sites don't have to repeat identity on every call.
type Thread struct {
	agent    *Agent
	userID   string
	threadID string
}

// NewThread binds an Agent to a thread, creating it first if id is empty.
func NewThread(ctx context.Context, a *Agent, userID, threadID, title string) (*Thread, error) {
	if threadID == "" {
		doc, err := a.Store.CreateThread(ctx, userID, title, "")
		if err != nil {
			return nil, err
		}
		threadID = doc.ID
	}
	return &Thread{agent: a, userID: userID, threadID: threadID}, nil
}

// ID returns the bound thread's id.
func (t *Thread) ID() string { return t.threadID }

func (t *Thread) fill(call CallArgs) CallArgs {
	call.UserID = t.userID
	call.ThreadID = t.threadID
	return call
}

func (t *Thread) GenerateText(ctx context.Context, call CallArgs) (*GenerateTextResult, error) {
	return t.agent.GenerateText(ctx, t.fill(call))
}

func (t *Thread) StreamText(ctx context.Context, call CallArgs, h StreamHandlers) (*GenerateTextResult, error) {
	return t.agent.StreamText(ctx, t.fill(call), h)
}

func (t *Thread) GenerateObject(ctx context.Context, call CallArgs) (*ObjectGenerateResult, error) {
	return t.agent.GenerateObject(ctx, t.fill(call))
}

func (t *Thread) StreamObject(ctx context.Context, call CallArgs, h StreamHandlers) (*ObjectGenerateResult, error) {
	return t.agent.StreamObject(ctx, t.fill(call), h)
}

// ActionScope elevates this thread's retrieval calls to action-capable, so
// tools/queries may fan a search out across the user's other threads (§4.3).
func (t *Thread) ActionScope() retrieval.ActionScope { return retrieval.ActionCapable }
