package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"twym/internal/platform/config"
)

// KafkaPublisher produces lifecycle events to a pre-provisioned topic.
// Produce is asynchronous; delivery failures surface only in logs.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher connects to the configured brokers. Returns nil if no
// brokers are configured (callers fall back to the in-memory sink).
func NewKafkaPublisher(cfg config.EventsConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	return &KafkaPublisher{client: client, topic: cfg.Topic, logger: logger}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal lifecycle event", "error", err, "type", event.Type)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		// Keyed by owner so one user's events stay ordered per partition.
		Key:   []byte(event.OwnerID.String()),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("produce lifecycle event", "error", err, "type", event.Type)
		}
	})
}

// Close flushes pending produce requests and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
