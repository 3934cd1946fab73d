package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rickgao/polymarket-data/internal/config"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lease taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis is a Locker backed by SET NX PX leases.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ Locker = (*Redis)(nil)

// DialRedis connects to Redis and verifies the connection.
func DialRedis(ctx context.Context, cfg config.RedisConfig, ttl time.Duration, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedis(client, cfg.KeyPrefix, ttl, logger), nil
}

// NewRedis wraps an existing client. Close closes the client.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = config.DefaultLockTTL
	}
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *Redis) TryLock(ctx context.Context, key string) (func(), bool, error) {
	fullKey := r.key(key)
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, fullKey, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The caller's context may already be canceled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		n, err := releaseScript.Run(ctx, r.client, []string{fullKey}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			r.logger.Warn("failed to release lock", "key", fullKey, "error", err)
			return
		}
		if n == 0 {
			r.logger.Warn("lock lease expired before release", "key", fullKey, "ttl", r.ttl)
		}
	}
	return release, true, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) key(key string) string {
	if r.prefix == "" {
		return "lock:" + key
	}
	return r.prefix + ":lock:" + key
}
