package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intelligencedev/agentcore/internal/llm"
	"github.com/intelligencedev/agentcore/internal/retrieval"
	"github.com/intelligencedev/agentcore/internal/storage"
)

func TestNewThreadCreatesWhenIDEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	a := &Agent{Store: store, Retriever: retrieval.New(store, nil)}

	th, err := NewThread(ctx, a, "u1", "", "new thread")
	require.NoError(t, err)
	require.NotEmpty(t, th.ID())
}

func TestNewThreadReusesGivenID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	existing, err := store.CreateThread(ctx, "u1", "t", "")
	require.NoError(t, err)
	a := &Agent{Store: store, Retriever: retrieval.New(store, nil)}

	th, err := NewThread(ctx, a, "u1", existing.ID, "")
	require.NoError(t, err)
	require.Equal(t, existing.ID, th.ID())
}

func TestThreadGenerateTextFillsIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	provider := &scriptedProvider{replies: []llm.Message{{Role: "assistant", Content: "ok"}}}
	a := newStoredAgent(provider, store)

	th, err := NewThread(ctx, a, "u1", "", "t")
	require.NoError(t, err)

	prompt := "hi"
	result, err := th.GenerateText(ctx, CallArgs{Prompt: &prompt})
	require.NoError(t, err)
	require.Equal(t, "ok", result.Text)

	doc, ok, err := store.GetMessage(ctx, result.MessageID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, th.ID(), doc.ThreadID)
	require.Equal(t, "u1", doc.UserID)
}

func TestThreadActionScopeIsActionCapable(t *testing.T) {
	t.Parallel()
	th := &Thread{}
	require.Equal(t, retrieval.ActionCapable, th.ActionScope())
}
