package jobs

import (
	"context"
	"log/slog"
	"time"

	"tracker/internal/views"
)

// RetentionJob deletes site views older than the retention period.
type RetentionJob struct {
	store         *views.Store
	logger        *slog.Logger
	retentionDays int
	now           func() time.Time
}

func NewRetentionJob(store *views.Store, logger *slog.Logger, retentionDays int) *RetentionJob {
	return &RetentionJob{
		store:         store,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

func (j *RetentionJob) Name() string { return "views_retention" }

// Run flushes views created before the cutoff. A retention of 0 keeps everything.
func (j *RetentionJob) Run(ctx context.Context) error {
	if j.retentionDays <= 0 {
		j.logger.Debug("Views retention disabled, nothing to clean up")
		return nil
	}

	cutoff := j.now().AddDate(0, 0, -j.retentionDays)

	j.logger.Info("Starting cleanup of old site views",
		slog.Int("retention_days", j.retentionDays),
		slog.Time("cutoff_date", cutoff))

	deleted, err := j.store.FlushOlderThanOrBetween(ctx, cutoff, time.Time{})
	if err != nil {
		j.logger.Error("Failed to delete old site views", slog.Any("error", err))
		return err
	}

	j.logger.Info("Cleaned up old site views",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.retentionDays))

	return nil
}
