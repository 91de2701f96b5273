package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink produces envelopes as JSON records, keyed by partition key.
type KafkaSink struct {
	client *kgo.Client
}

func NewKafkaSink(client *kgo.Client) *KafkaSink {
	return &KafkaSink{client: client}
}

// Emit blocks until the broker acknowledges the record or ctx ends.
func (s *KafkaSink) Emit(ctx context.Context, topic, key string, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", env.EventType, err)
	}
	rec := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "eventType", Value: []byte(env.EventType)},
			{Key: "eventId", Value: []byte(env.EventID)},
		},
	}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce %s to %s: %w", env.EventType, topic, err)
	}
	return nil
}
