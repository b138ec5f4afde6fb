package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intelligencedev/agentcore/internal/message"
)

func fakeEmbedder(dim int) batchEmbedder {
	return func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			vec := make([]float32, dim)
			vec[0] = float32(i + 1)
			out[i] = vec
		}
		return out, nil
	}
}

func TestEmbedMessagesAlignsPositionally(t *testing.T) {
	t.Parallel()

	msgs := []message.CoreMessage{
		{Role: message.RoleUser, Content: "hello"},
		{Role: message.RoleTool, Parts: []message.Part{{Type: message.PartToolResult, ToolCallID: "x"}}},
		{Role: message.RoleAssistant, Content: "world"},
	}

	g := &Generator{model: "text-embedding-3-small", embed: fakeEmbedder(1536)}
	emb, err := g.EmbedMessages(context.Background(), msgs)
	require.NoError(t, err)
	require.Len(t, emb.Vectors, 3)
	require.NotNil(t, emb.Vectors[0])
	require.Nil(t, emb.Vectors[1], "tool message must not get an embedding")
	require.NotNil(t, emb.Vectors[2])
	require.Equal(t, 1536, emb.Dimension)
}

func TestEmbedMessagesRejectsUnknownDimension(t *testing.T) {
	t.Parallel()

	msgs := []message.CoreMessage{{Role: message.RoleUser, Content: "hello"}}
	g := &Generator{model: "weird-model", embed: fakeEmbedder(7)}
	_, err := g.EmbedMessages(context.Background(), msgs)
	require.Error(t, err)
}

func TestEmbedMessagesAllEmptySkipsCall(t *testing.T) {
	t.Parallel()

	called := false
	embed := func(ctx context.Context, texts []string) ([][]float32, error) {
		called = true
		return nil, nil
	}
	msgs := []message.CoreMessage{
		{Role: message.RoleTool, Parts: []message.Part{{Type: message.PartToolResult, ToolCallID: "x"}}},
	}
	g := &Generator{model: "m", embed: embed}
	emb, err := g.EmbedMessages(context.Background(), msgs)
	require.NoError(t, err)
	require.False(t, called)
	require.Len(t, emb.Vectors, 1)
	require.Nil(t, emb.Vectors[0])
}
