package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prperemyshlev/passcode-auth/internal/domain"
	"github.com/prperemyshlev/passcode-auth/pkg/database"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	fieldHits          = "hits"
	fieldExpiresAt     = "expires_at"
)

// incrementScript refuses to resurrect a counter that expired between read and write
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
`)

// redisRateLimitRepository keeps counters as hashes that expire with their window
type redisRateLimitRepository struct {
	redis *database.Redis
}

// NewRedisRateLimitRepository creates a rate limit repository backed by Redis
func NewRedisRateLimitRepository(redis *database.Redis) RateLimitRepository {
	return &redisRateLimitRepository{redis: redis}
}

func rateLimitKey(clientIP, route string) string {
	return rateLimitKeyPrefix + route + ":" + clientIP
}

// Get retrieves the counter for a client and route
func (r *redisRateLimitRepository) Get(ctx context.Context, clientIP, route string) (*domain.RateLimitCounter, error) {
	values, err := r.redis.Client.HGetAll(ctx, rateLimitKey(clientIP, route)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit counter: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("rate limit counter not found: %w", ErrNotFound)
	}

	hits, err := strconv.Atoi(values[fieldHits])
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate limit hits: %w", err)
	}

	expiresAtMs, err := strconv.ParseInt(values[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate limit expiry: %w", err)
	}

	return &domain.RateLimitCounter{
		ClientIP:  clientIP,
		Route:     route,
		Hits:      hits,
		ExpiresAt: time.UnixMilli(expiresAtMs),
	}, nil
}

// Save creates or resets the counter and sets the key to expire with the window
func (r *redisRateLimitRepository) Save(ctx context.Context, counter *domain.RateLimitCounter) error {
	key := rateLimitKey(counter.ClientIP, counter.Route)

	_, err := r.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldHits, counter.Hits,
			fieldExpiresAt, counter.ExpiresAt.UnixMilli(),
		)
		pipe.PExpireAt(ctx, key, counter.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save rate limit counter: %w", err)
	}

	return nil
}

// Increment bumps the counter and returns the new hit count
func (r *redisRateLimitRepository) Increment(ctx context.Context, clientIP, route string) (int, error) {
	hits, err := incrementScript.Run(ctx, r.redis.Client, []string{rateLimitKey(clientIP, route)}, fieldHits).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if hits < 0 {
		return 0, fmt.Errorf("rate limit counter not found: %w", ErrNotFound)
	}

	return hits, nil
}
