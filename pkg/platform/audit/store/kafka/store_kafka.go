package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"soulbound/internal/platform/kafka/producer"
	audit "soulbound/pkg/platform/audit"
)

// Store appends audit events to a Kafka topic. Kafka's log is the natural
// shape for an append-only audit trail; consumers fan out to long-term
// storage per category retention rules.
type Store struct {
	producer *producer.Producer
	topic    string
}

func New(p *producer.Producer, topic string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("audit topic is required")
	}
	return &Store{producer: p, topic: topic}, nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	// Key by actor so per-issuer event ordering is preserved within a partition.
	msg := &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.Actor),
		Value: value,
		Headers: map[string]string{
			"category": string(event.Category),
		},
	}
	if err := s.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

var _ audit.Store = (*Store)(nil)
