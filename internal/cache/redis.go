package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-recon/internal/model"
)

// Redis stores comparisons as JSON strings.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis instance at url (redis://host:port/db).
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key Key) (*model.PropertyComparison, bool, error) {
	data, err := r.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: redis get")
	}

	var pc model.PropertyComparison
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, false, eris.Wrap(err, "cache: decode comparison")
	}
	return &pc, true, nil
}

// Set implements Cache. A non-positive ttl never expires.
func (r *Redis) Set(ctx context.Context, key Key, pc *model.PropertyComparison, ttl time.Duration) error {
	data, err := json.Marshal(pc)
	if err != nil {
		return eris.Wrap(err, "cache: encode comparison")
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		return eris.Wrap(err, "cache: redis set")
	}
	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return eris.Wrap(r.client.Ping(ctx).Err(), "cache: redis ping")
}

// Close implements Cache.
func (r *Redis) Close() error {
	return r.client.Close()
}
