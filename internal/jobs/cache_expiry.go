package jobs

import (
	"context"
	"log/slog"

	"tracker/internal/cache"
)

// CacheExpiryJob removes cache entries whose ttl has elapsed.
type CacheExpiryJob struct {
	store  cache.Store
	logger *slog.Logger
}

func NewCacheExpiryJob(store cache.Store, logger *slog.Logger) *CacheExpiryJob {
	return &CacheExpiryJob{store: store, logger: logger}
}

func (j *CacheExpiryJob) Name() string { return "cache_expiry" }

func (j *CacheExpiryJob) Run(ctx context.Context) error {
	purged, err := j.store.PurgeExpired(ctx)
	if err != nil {
		j.logger.Error("Failed to purge expired cache entries", slog.Any("error", err))
		return err
	}

	if purged > 0 {
		j.logger.Info("Purged expired cache entries", slog.Int64("purged", purged))
	}
	return nil
}
