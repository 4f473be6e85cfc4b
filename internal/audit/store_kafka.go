package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"verigate/internal/platform/kafka/producer"
	pkgerrors "verigate/pkg/domain-errors"
)

// KafkaStore publishes audit events to a Kafka topic. It is a write-only
// sink; reads go through a queryable store.
type KafkaStore struct {
	producer *producer.Producer
	topic    string
}

func NewKafkaStore(p *producer.Producer, topic string) *KafkaStore {
	return &KafkaStore{producer: p, topic: topic}
}

func (s *KafkaStore) Append(_ context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	// Keyed by org so per-tenant events stay ordered within a partition.
	return s.producer.ProduceAsync(&producer.Message{
		Topic: s.topic,
		Key:   []byte(event.OrgID),
		Value: value,
	})
}

func (s *KafkaStore) ListByOrg(_ context.Context, _ string) ([]Event, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "kafka sink does not support reads")
}

// MultiStore fans out appends to several stores and serves reads from the
// first one. Used to pair an in-memory queryable store with a Kafka sink.
type MultiStore struct {
	stores []Store
}

func NewMultiStore(stores ...Store) *MultiStore {
	return &MultiStore{stores: stores}
}

func (s *MultiStore) Append(ctx context.Context, event Event) error {
	var firstErr error
	for _, st := range s.stores {
		if err := st.Append(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *MultiStore) ListByOrg(ctx context.Context, orgID string) ([]Event, error) {
	if len(s.stores) == 0 {
		return nil, nil
	}
	return s.stores[0].ListByOrg(ctx, orgID)
}
