package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intelligencedev/agentcore/internal/llm"
	"github.com/intelligencedev/agentcore/internal/message"
	"github.com/intelligencedev/agentcore/internal/retrieval"
	"github.com/intelligencedev/agentcore/internal/storage"
)

type scriptedProvider struct {
	replies []llm.Message
	errs    []error
	calls   int
}

func (p *scriptedProvider) next() (llm.Message, error) {
	i := p.calls
	p.calls++
	var reply llm.Message
	var err error
	if i < len(p.replies) {
		reply = p.replies[i]
	}
	if i < len(p.errs) {
		err = p.errs[i]
	}
	return reply, err
}

func (p *scriptedProvider) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	return p.next()
}

func (p *scriptedProvider) ChatStream(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string, h llm.StreamHandler) error {
	reply, err := p.next()
	if err != nil {
		return err
	}
	h.OnDelta(reply.Content)
	for _, tc := range reply.ToolCalls {
		h.OnToolCall(tc)
	}
	return nil
}

func newStoredAgent(provider llm.Provider, store storage.Store) *Agent {
	return &Agent{
		Name:      "test-agent",
		Provider:  provider,
		Store:     store,
		Retriever: retrieval.New(store, nil),
		Chat:      "test-model",
		MaxSteps:  4,
	}
}

func TestGenerateTextCommitsOnSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	thread, err := store.CreateThread(ctx, "u1", "t", "")
	require.NoError(t, err)

	provider := &scriptedProvider{replies: []llm.Message{{Role: "assistant", Content: "done"}}}
	a := newStoredAgent(provider, store)
	prompt := "hello"

	result, err := a.GenerateText(ctx, CallArgs{UserID: "u1", ThreadID: thread.ID, Prompt: &prompt})
	require.NoError(t, err)
	require.Equal(t, "done", result.Text)
	require.Equal(t, "stop", result.FinishReason)

	doc, ok, err := store.GetMessage(ctx, result.MessageID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, storage.StatusSuccess, doc.Status)
}

func TestGenerateTextRollsBackOnProviderError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	thread, err := store.CreateThread(ctx, "u1", "t", "")
	require.NoError(t, err)

	provider := &scriptedProvider{errs: []error{errors.New("provider unavailable")}}
	a := newStoredAgent(provider, store)
	prompt := "hello"

	_, err = a.GenerateText(ctx, CallArgs{UserID: "u1", ThreadID: thread.ID, Prompt: &prompt})
	require.Error(t, err)

	page, err := store.ListMessagesByThreadID(ctx, storage.ListMessagesInput{
		ThreadID:   thread.ID,
		Pagination: storage.PaginationOpts{Limit: 10},
		Order:      "asc",
		Statuses:   []storage.Status{storage.StatusFailed},
	})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	require.Equal(t, storage.StatusFailed, page.Messages[0].Status)
}

func TestGenerateTextRunsToolLoopUntilNoMoreCalls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	thread, err := store.CreateThread(ctx, "u1", "t", "")
	require.NoError(t, err)

	provider := &scriptedProvider{replies: []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{{Name: "noop", Args: []byte(`{}`), ID: "c1"}}},
		{Role: "assistant", Content: "final answer"},
	}}
	a := newStoredAgent(provider, store)
	prompt := "go"

	result, err := a.GenerateText(ctx, CallArgs{UserID: "u1", ThreadID: thread.ID, Prompt: &prompt, MaxSteps: 4})
	require.NoError(t, err)
	require.Equal(t, "final answer", result.Text)
	require.Len(t, result.Steps, 2)
	require.Equal(t, "tool-calls", result.Steps[0].FinishReason)
	require.Equal(t, "stop", result.Steps[1].FinishReason)
}

func TestRollbackOnceFiresAtMostOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	thread, err := store.CreateThread(ctx, "u1", "t", "")
	require.NoError(t, err)
	res, err := store.AddMessages(ctx, storage.AddMessagesInput{
		ThreadID: thread.ID, UserID: "u1",
		Messages: []message.CoreMessage{{Role: message.RoleUser, Content: "hi"}},
		Pending:  true,
	})
	require.NoError(t, err)

	rb := &rollbackOnce{store: store, messageID: res.LastMessageID}
	rb.do(errors.New("first"))
	rb.do(errors.New("second"))

	doc, ok, err := store.GetMessage(ctx, res.LastMessageID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "first", doc.Error)
}

func TestGenerateObjectExtractsSyntheticToolCall(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{{Name: objectToolName, Args: []byte(`{"answer":42}`), ID: "c1"}}},
	}}
	a := newStoredAgent(provider, store)
	prompt := "emit"

	result, err := a.GenerateObject(ctx, CallArgs{UserID: "u1", Prompt: &prompt, ObjectSchema: map[string]any{"type": "object"}})
	require.NoError(t, err)
	require.JSONEq(t, `{"answer":42}`, string(result.Object))
}
