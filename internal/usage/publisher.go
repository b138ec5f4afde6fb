// Package usage publishes per-step token accounting events (I5: the usage
// handler fires exactly once per completed step) to a durable event log,
// adapted from the teacher's Kafka producer wiring.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/intelligencedev/agentcore/internal/config"
	"github.com/intelligencedev/agentcore/internal/message"
	"github.com/intelligencedev/agentcore/internal/observability"
)

// Event is the wire shape of one usage record.
type Event struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Usage     message.Usage `json:"usage"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Writer is the subset of *kafka.Writer the publisher needs, so tests can
// supply a fake without touching the network.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher turns an agent.UsageHandler-shaped call into a durable event.
type Publisher struct {
	writer Writer
	topic  string
}

// NewPublisher builds a Kafka-backed Publisher from broker/topic config.
// Returns (nil, nil) when usage publishing is disabled, so callers can wire
// a nil-safe OnUsage handler unconditionally.
func NewPublisher(cfg config.UsageConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("usage: brokers required when enabled")
	}
	w := &kafkago.Writer{
		Addr:     kafkago.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafkago.LeastBytes{},
	}
	return &Publisher{writer: w, topic: cfg.Topic}, nil
}

// Publish implements agent.UsageHandler's signature so it can be assigned
// directly to Agent.OnUsage.
func (p *Publisher) Publish(ctx context.Context, provider, model string, u message.Usage) {
	if p == nil {
		return
	}
	log := observability.LoggerWithTrace(ctx)
	evt := Event{ID: uuid.NewString(), Provider: provider, Model: model, Usage: u, EmittedAt: time.Now()}
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Msg("usage_event_marshal_failed")
		return
	}
	if err := p.writer.WriteMessages(ctx, kafkago.Message{Topic: p.topic, Key: []byte(evt.ID), Value: payload}); err != nil {
		log.Error().Err(err).Msg("usage_event_publish_failed")
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
