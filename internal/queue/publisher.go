package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/hetulpatel/arbwatch/internal/cache"
	"github.com/hetulpatel/arbwatch/internal/logging"
	"github.com/hetulpatel/arbwatch/internal/matches"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher sends opportunity payloads keyed by pair id. With a cache set it
// skips pairs whose best level has not changed since the last publish.
type Publisher struct {
	writer MessageWriter
	cache  cache.OpportunityCache
}

func NewPublisher(writer MessageWriter, dedupe cache.OpportunityCache) *Publisher {
	return &Publisher{writer: writer, cache: dedupe}
}

// PublishOpportunities returns how many payloads were written.
func (p *Publisher) PublishOpportunities(ctx context.Context, payloads []matches.Payload) (int, error) {
	if p == nil || p.writer == nil || len(payloads) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(payloads))
	records := make(map[string]cache.OpportunityRecord, len(payloads))
	for _, payload := range payloads {
		rec := cache.RecordFromPayload(payload)
		if p.unchanged(ctx, payload.PairID, rec) {
			continue
		}
		value, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal payload %s: %w", payload.PairID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(payload.PairID), Value: value})
		records[payload.PairID] = rec
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("write %d messages: %w", len(msgs), err)
	}

	if p.cache != nil {
		for pairID, rec := range records {
			if err := p.cache.Set(ctx, pairID, rec); err != nil {
				logging.Warnf("[queue] dedupe cache set %s: %v", pairID, err)
			}
		}
	}
	return len(msgs), nil
}

func (p *Publisher) unchanged(ctx context.Context, pairID string, rec cache.OpportunityRecord) bool {
	if p.cache == nil {
		return false
	}
	prev, ok, err := p.cache.Get(ctx, pairID)
	if err != nil {
		logging.Warnf("[queue] dedupe cache get %s: %v", pairID, err)
		return false
	}
	return ok && prev.SameAs(rec)
}
