package usage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/intelligencedev/agentcore/internal/config"
	"github.com/intelligencedev/agentcore/internal/message"
)

type fakeWriter struct {
	sent   []kafkago.Message
	closed bool
	writeErr error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.sent = append(f.sent, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewPublisherDisabledReturnsNil(t *testing.T) {
	t.Parallel()
	p, err := NewPublisher(config.UsageConfig{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestNewPublisherRequiresBrokersWhenEnabled(t *testing.T) {
	t.Parallel()
	_, err := NewPublisher(config.UsageConfig{Enabled: true})
	require.Error(t, err)
}

func TestPublishOnNilReceiverIsNoop(t *testing.T) {
	t.Parallel()
	var p *Publisher
	p.Publish(context.Background(), "openai", "gpt-4", message.Usage{TotalTokens: 10})
	require.NoError(t, p.Close())
}

func TestPublishWritesOneEventPerCall(t *testing.T) {
	t.Parallel()
	fw := &fakeWriter{}
	p := &Publisher{writer: fw, topic: "usage.events"}

	p.Publish(context.Background(), "anthropic", "claude-x", message.Usage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8})
	require.Len(t, fw.sent, 1)

	var evt Event
	require.NoError(t, json.Unmarshal(fw.sent[0].Value, &evt))
	require.Equal(t, "anthropic", evt.Provider)
	require.Equal(t, "claude-x", evt.Model)
	require.Equal(t, 8, evt.Usage.TotalTokens)
	require.NotEmpty(t, evt.ID)

	require.NoError(t, p.Close())
	require.True(t, fw.closed)
}

func TestPublishSwallowsWriteErrors(t *testing.T) {
	t.Parallel()
	fw := &fakeWriter{writeErr: context.DeadlineExceeded}
	p := &Publisher{writer: fw, topic: "usage.events"}
	p.Publish(context.Background(), "openai", "gpt-4", message.Usage{})
	require.Empty(t, fw.sent)
}
