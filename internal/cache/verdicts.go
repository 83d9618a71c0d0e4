package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hetulpatel/arbwatch/internal/matches"
)

// VerdictCache stores validator verdicts keyed by matches.VerdictCacheKey.
type VerdictCache interface {
	Get(ctx context.Context, key string) (*matches.ResolutionVerdict, bool, error)
	Set(ctx context.Context, key string, verdict matches.ResolutionVerdict) error
	Close() error
}

type redisVerdictCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisVerdictCache(opts Options) (VerdictCache, error) {
	client, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	if opts.TTL <= 0 {
		opts.TTL = 240 * time.Hour
	}
	if opts.Prefix == "" {
		opts.Prefix = "pair_verdict"
	}
	return &redisVerdictCache{client: client, ttl: opts.TTL, prefix: opts.Prefix}, nil
}

func (c *redisVerdictCache) Get(ctx context.Context, key string) (*matches.ResolutionVerdict, bool, error) {
	if c == nil || c.client == nil || key == "" {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, prefixed(c.prefix, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v matches.ResolutionVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, err
	}
	v.Cached = true
	return &v, true, nil
}

func (c *redisVerdictCache) Set(ctx context.Context, key string, verdict matches.ResolutionVerdict) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	payload, err := json.Marshal(verdict)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, prefixed(c.prefix, key), payload, c.ttl).Err()
}

func (c *redisVerdictCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
