package cache

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hetulpatel/arbwatch/internal/matches"
)

// OpportunityRecord is the last published best level for a pair.
type OpportunityRecord struct {
	Direction        matches.Direction `json:"direction"`
	BuyYesPrice      float64           `json:"buy_yes_price"`
	BuyNoPrice       float64           `json:"buy_no_price"`
	ProfitPercentage float64           `json:"profit_percentage"`
	TotalQuantity    float64           `json:"total_quantity"`
	Levels           int               `json:"levels"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// RecordFromPayload summarizes a payload for dedupe.
func RecordFromPayload(p matches.Payload) OpportunityRecord {
	rec := OpportunityRecord{
		TotalQuantity: p.Opportunity.TotalQuantity(),
		Levels:        len(p.Opportunity.Levels),
		UpdatedAt:     p.DetectedAt,
	}
	if best, ok := p.Opportunity.BestLevel(); ok {
		rec.Direction = best.Direction()
		rec.BuyYesPrice = best.BuyYesPrice
		rec.BuyNoPrice = best.BuyNoPrice
		rec.ProfitPercentage = best.ProfitPercentage
	}
	return rec
}

const priceEpsilon = 1e-9

// SameAs reports whether two records describe the same book state: same best
// prices and direction, same depth. Timestamps are ignored.
func (r OpportunityRecord) SameAs(o OpportunityRecord) bool {
	return r.Direction == o.Direction &&
		r.Levels == o.Levels &&
		math.Abs(r.BuyYesPrice-o.BuyYesPrice) < priceEpsilon &&
		math.Abs(r.BuyNoPrice-o.BuyNoPrice) < priceEpsilon &&
		math.Abs(r.TotalQuantity-o.TotalQuantity) < priceEpsilon
}

// OpportunityCache stores the best opportunity per pair so we can suppress duplicates.
type OpportunityCache interface {
	Get(ctx context.Context, pairID string) (*OpportunityRecord, bool, error)
	Set(ctx context.Context, pairID string, record OpportunityRecord) error
	Close() error
}

type redisOpportunityCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisOpportunityCache builds a cache keyed by the canonical pair ID.
func NewRedisOpportunityCache(opts Options) (OpportunityCache, error) {
	client, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	if opts.TTL <= 0 {
		opts.TTL = 240 * time.Hour
	}
	if opts.Prefix == "" {
		opts.Prefix = "arb_best"
	}
	return &redisOpportunityCache{client: client, ttl: opts.TTL, prefix: opts.Prefix}, nil
}

func (c *redisOpportunityCache) Get(ctx context.Context, pairID string) (*OpportunityRecord, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, prefixed(c.prefix, pairID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var record OpportunityRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

func (c *redisOpportunityCache) Set(ctx context.Context, pairID string, record OpportunityRecord) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, prefixed(c.prefix, pairID), payload, c.ttl).Err()
}

func (c *redisOpportunityCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
