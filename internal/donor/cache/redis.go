package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"donorlink/internal/donor/models"
)

const redisKeyPrefix = "donorlink:"

// Redis shares search pages across instances. Expiry is enforced by Redis
// itself through the key TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type RedisOption func(*Redis)

func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

func NewRedis(client *redis.Client, ttl time.Duration, opts ...RedisOption) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Redis{client: client, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Get(ctx context.Context, key string) (*models.SearchPage, bool) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.WarnContext(ctx, "search cache read failed", "error", err)
		return nil, false
	}
	var page models.SearchPage
	if err := json.Unmarshal(raw, &page); err != nil {
		r.logger.WarnContext(ctx, "search cache entry corrupt", "error", err)
		return nil, false
	}
	return &page, true
}

func (r *Redis) Set(ctx context.Context, key string, page *models.SearchPage) {
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, raw, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "search cache write failed", "error", err)
	}
}
