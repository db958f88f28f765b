package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/robalobadob/busdle/internal/game"
)

const (
	redisKeyPrefix = "busdle:state:"
	defaultTTL     = 30 * 24 * time.Hour
)

// redisStore keeps one JSON value per client under busdle:state:<key>.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a StateStore backed by client. Values expire
// after ttl of inactivity; ttl <= 0 uses 30 days.
func NewRedisStore(client *redis.Client, ttl time.Duration) game.StateStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisStore{client: client, ttl: ttl}
}

func (r *redisStore) Save(ctx context.Context, key string, s game.State) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+key, b, r.ttl).Err()
}

func (r *redisStore) Load(ctx context.Context, key string) (*game.State, error) {
	b, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(b)
}
