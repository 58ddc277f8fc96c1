package taste

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"go-alloy/pkg/metrics"
)

// Cache memoises taste-graph lookups. Implementations must treat every
// backend failure as a miss.
type Cache interface {
	EntityID(ctx context.Context, key string) (string, bool)
	SetEntityID(ctx context.Context, key, id string)
	Tastes(ctx context.Context, id string) ([]string, bool)
	SetTastes(ctx context.Context, id string, tastes []string)
}

type NoCache struct{}

func (NoCache) EntityID(context.Context, string) (string, bool) { return "", false }

func (NoCache) SetEntityID(context.Context, string, string) {}

func (NoCache) Tastes(context.Context, string) ([]string, bool) { return nil, false }

func (NoCache) SetTastes(context.Context, string, []string) {}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "alloy:taste:"}
}

func (c *RedisCache) EntityID(ctx context.Context, key string) (string, bool) {
	id, err := c.client.Get(ctx, c.prefix+"id:"+key).Result()
	if err != nil {
		c.miss("entity", err)
		return "", false
	}
	metrics.TasteCache.WithLabelValues("entity", "hit").Inc()
	return id, true
}

func (c *RedisCache) SetEntityID(ctx context.Context, key, id string) {
	if err := c.client.Set(ctx, c.prefix+"id:"+key, id, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("taste cache write failed")
	}
}

func (c *RedisCache) Tastes(ctx context.Context, id string) ([]string, bool) {
	raw, err := c.client.Get(ctx, c.prefix+"tastes:"+id).Bytes()
	if err != nil {
		c.miss("tastes", err)
		return nil, false
	}
	var tastes []string
	if err := json.Unmarshal(raw, &tastes); err != nil {
		c.miss("tastes", err)
		return nil, false
	}
	metrics.TasteCache.WithLabelValues("tastes", "hit").Inc()
	return tastes, true
}

func (c *RedisCache) SetTastes(ctx context.Context, id string, tastes []string) {
	raw, err := json.Marshal(tastes)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+"tastes:"+id, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("taste cache write failed")
	}
}

func (c *RedisCache) miss(kind string, err error) {
	metrics.TasteCache.WithLabelValues(kind, "miss").Inc()
	if !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("kind", kind).Msg("taste cache read failed")
	}
}
