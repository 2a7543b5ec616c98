package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in Redis and lets Redis expire them.
type RedisStore struct {
	client  redis.UniversalClient
	pattern string
	logger  *slog.Logger
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// KeyPattern selects the keys Purge removes, e.g. "tracker.*".
	KeyPattern string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	return NewRedisStoreWithClient(client, opts.KeyPattern, logger), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, pattern string, logger *slog.Logger) *RedisStore {
	if pattern == "" {
		pattern = "tracker.*"
	}
	return &RedisStore{client: client, pattern: pattern, logger: logger}
}

func (s *RedisStore) Get(ctx context.Context, key string) (int64, bool, error) {
	value, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read cache entry %q: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value int64, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Purge(ctx context.Context) (int64, error) {
	var purged int64
	iter := s.client.Scan(ctx, 0, s.pattern, 500).Iterator()

	batch := make([]string, 0, 500)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("failed to purge cache entries: %w", err)
		}
		purged += n
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return purged, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("failed to scan cache entries: %w", err)
	}
	if err := flush(); err != nil {
		return purged, err
	}

	s.logger.Info("Purged Redis cache entries", slog.Int64("purged", purged), slog.String("pattern", s.pattern))
	return purged, nil
}

// PurgeExpired is a no-op; Redis evicts expired keys itself.
func (s *RedisStore) PurgeExpired(context.Context) (int64, error) {
	return 0, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
