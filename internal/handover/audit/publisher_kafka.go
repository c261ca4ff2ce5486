package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// publishBuffer bounds the in-flight queue between the recorder and the
// producer loop. When full, entries are dropped; the durable store already
// has them.
const publishBuffer = 256

// KafkaPublisher mirrors audit entries to a Kafka topic for downstream
// compliance consumers. Publishing is fire-and-forget from the recorder's
// point of view.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	inbox  chan Entry
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{
		client: client,
		topic:  topic,
		inbox:  make(chan Entry, publishBuffer),
		logger: logger,
	}, nil
}

// Publish enqueues the entry without blocking. A full buffer drops the entry.
func (p *KafkaPublisher) Publish(entry Entry) {
	select {
	case p.inbox <- entry:
	default:
		p.logger.Warn("audit publish buffer full, dropping entry",
			"handover_id", entry.HandoverID, "status", entry.Status)
	}
}

// Run drains the inbox until the context is cancelled.
func (p *KafkaPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-p.inbox:
			payload, err := json.Marshal(entry)
			if err != nil {
				p.logger.ErrorContext(ctx, "encode audit entry", "error", err)
				continue
			}
			record := &kgo.Record{
				Topic: p.topic,
				Key:   []byte(entry.HandoverID),
				Value: payload,
			}
			p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
				if err != nil {
					p.logger.ErrorContext(ctx, "produce audit entry",
						"handover_id", entry.HandoverID, "error", err)
				}
			})
		}
	}
}

// Close flushes outstanding records and releases the client.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
