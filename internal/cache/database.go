package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CacheEntry is one memoized count in the cache_entries table.
type CacheEntry struct {
	Key       string     `gorm:"primaryKey;size:255"`
	Value     int64      `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time  `gorm:"not null"`
}

// DatabaseStore keeps entries in the application database.
type DatabaseStore struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewDatabaseStore returns a Store over the cache_entries table of db.
func NewDatabaseStore(db *gorm.DB, logger *slog.Logger) *DatabaseStore {
	return &DatabaseStore{db: db, logger: logger, now: time.Now}
}

func (s *DatabaseStore) live(tx *gorm.DB) *gorm.DB {
	return tx.Where("expires_at IS NULL OR expires_at > ?", s.now().UTC())
}

func (s *DatabaseStore) Get(ctx context.Context, key string) (int64, bool, error) {
	var found []CacheEntry
	err := s.live(s.db.WithContext(ctx).Model(&CacheEntry{})).
		Where("key = ?", key).
		Limit(1).
		Find(&found).Error
	if err != nil {
		return 0, false, fmt.Errorf("failed to read cache entry %q: %w", key, err)
	}
	if len(found) == 0 {
		return 0, false, nil
	}
	return found[0].Value, true, nil
}

func (s *DatabaseStore) Put(ctx context.Context, key string, value int64, ttl time.Duration) error {
	now := s.now()
	entry := CacheEntry{
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt(now, ttl),
		UpdatedAt: now.UTC(),
	}

	return sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		err := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).Create(&entry).Error
		if err != nil {
			return fmt.Errorf("failed to write cache entry %q: %w", key, err)
		}
		return nil
	})
}

func (s *DatabaseStore) Purge(ctx context.Context) (int64, error) {
	var purged int64
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		result := tx.WithContext(ctx).Where("1 = 1").Delete(&CacheEntry{})
		if result.Error != nil {
			return fmt.Errorf("failed to purge cache entries: %w", result.Error)
		}
		purged = result.RowsAffected
		return nil
	})
	return purged, err
}

func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	var purged int64
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		result := tx.WithContext(ctx).
			Where("expires_at IS NOT NULL AND expires_at <= ?", s.now().UTC()).
			Delete(&CacheEntry{})
		if result.Error != nil {
			return fmt.Errorf("failed to purge expired cache entries: %w", result.Error)
		}
		purged = result.RowsAffected
		return nil
	})
	return purged, err
}

var _ Store = (*DatabaseStore)(nil)
