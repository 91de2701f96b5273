package events

import (
	"context"
	"log/slog"
	"sync"
)

// Record is one envelope captured by MemorySink.
type Record struct {
	Topic    string
	Key      string
	Envelope Envelope
}

const maxMemoryRecords = 1024

// MemorySink keeps the most recent envelopes in memory and logs them. It backs
// local runs without a broker.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
	logger  *slog.Logger
}

func NewMemorySink(logger *slog.Logger) *MemorySink {
	return &MemorySink{logger: logger}
}

func (s *MemorySink) Emit(ctx context.Context, topic, key string, env Envelope) error {
	s.mu.Lock()
	s.records = append(s.records, Record{Topic: topic, Key: key, Envelope: env})
	if len(s.records) > maxMemoryRecords {
		s.records = append([]Record(nil), s.records[len(s.records)-maxMemoryRecords:]...)
	}
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.InfoContext(ctx, "listing event emitted",
			"topic", topic,
			"key", key,
			"event_type", env.EventType,
			"event_id", env.EventID,
		)
	}
	return nil
}

// Records returns a copy of everything emitted so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// OfType filters records by event type.
func (s *MemorySink) OfType(t Type) []Record {
	var out []Record
	for _, r := range s.Records() {
		if r.Envelope.EventType == t {
			out = append(out, r)
		}
	}
	return out
}
