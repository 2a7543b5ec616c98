package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTrackingDisabled is returned by Record when view tracking is switched off.
var ErrTrackingDisabled = errors.New("view tracking is disabled")

// Store persists site views and trackable links.
type Store struct {
	db      *gorm.DB
	logger  *slog.Logger
	enabled bool
}

// NewStore returns a Store over db. Recording is enabled unless trackingEnabled is false.
func NewStore(db *gorm.DB, logger *slog.Logger, trackingEnabled bool) *Store {
	return &Store{
		db:      db,
		logger:  logger,
		enabled: trackingEnabled,
	}
}

// Query returns the default, unfiltered scope over all site views.
func (s *Store) Query() Query {
	return NewQuery(s.db)
}

// ForTrackable returns a scope over the views attached to t.
func (s *Store) ForTrackable(t Trackable) Query {
	return gormQuery{db: s.db}.forTrackable(t)
}

// RecordInput carries the request data of one page view.
type RecordInput struct {
	UserID             *uint
	HTTPReferer        string
	URL                string
	RequestMethod      string
	RequestPath        string
	HTTPUserAgent      string
	HTTPAcceptLanguage string
	Locale             string
	RequestTime        *int64
	AppTime            *float64
	Memory             *int64
	CreatedAt          time.Time
	Trackables         []Trackable
}

// Record persists a view and attaches it to the given trackables in one transaction.
func (s *Store) Record(ctx context.Context, input RecordInput) (*SiteView, error) {
	if !s.enabled {
		return nil, ErrTrackingDisabled
	}

	view := &SiteView{
		UserID:             input.UserID,
		HTTPReferer:        input.HTTPReferer,
		URL:                input.URL,
		RequestMethod:      input.RequestMethod,
		RequestPath:        input.RequestPath,
		HTTPUserAgent:      input.HTTPUserAgent,
		HTTPAcceptLanguage: input.HTTPAcceptLanguage,
		Locale:             input.Locale,
		RequestTime:        input.RequestTime,
		AppTime:            input.AppTime,
		Memory:             input.Memory,
		CreatedAt:          input.CreatedAt,
	}

	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		tx = tx.WithContext(ctx)
		if err := tx.Create(view).Error; err != nil {
			return fmt.Errorf("failed to create site view: %w", err)
		}
		for _, t := range input.Trackables {
			if err := attach(tx, t, view.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record site view", slog.String("url", input.URL), slog.Any("error", err))
		return nil, err
	}

	s.logger.Debug("Recorded site view",
		slog.Uint64("id", uint64(view.ID)),
		slog.String("locale", view.Locale),
		slog.Int("trackables", len(input.Trackables)))

	return view, nil
}

// Attach links an existing view to t. Attaching the same pair twice is a no-op.
func (s *Store) Attach(ctx context.Context, t Trackable, viewID uint) error {
	var exists int64
	if err := s.db.WithContext(ctx).Model(&SiteView{}).Where("id = ?", viewID).Count(&exists).Error; err != nil {
		return fmt.Errorf("failed to look up site view %d: %w", viewID, err)
	}
	if exists == 0 {
		return fmt.Errorf("site view %d: %w", viewID, gorm.ErrRecordNotFound)
	}

	return sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		return attach(tx.WithContext(ctx), t, viewID)
	})
}

func attach(tx *gorm.DB, t Trackable, viewID uint) error {
	link := TrackableView{
		TrackableType: t.TrackableType(),
		TrackableID:   t.TrackableID(),
		SiteViewID:    viewID,
		CreatedAt:     time.Now().UTC(),
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
	if err != nil {
		return fmt.Errorf("failed to attach %s#%d to site view %d: %w",
			link.TrackableType, link.TrackableID, viewID, err)
	}
	return nil
}

// FlushAll deletes every site view and trackable link.
func (s *Store) FlushAll(ctx context.Context) (int64, error) {
	return s.FlushOlderThanOrBetween(ctx, time.Time{}, time.Time{})
}

// FlushOlderThanOrBetween deletes views created before until (now when zero)
// and, when from is set, at or after from. Links to deleted views go with them.
func (s *Store) FlushOlderThanOrBetween(ctx context.Context, until, from time.Time) (int64, error) {
	if until.IsZero() {
		until = time.Now()
	}

	q := gormQuery{db: s.db}.OlderThan(until)
	if !from.IsZero() {
		q = q.Since(from)
	}
	scoped := q.(gormQuery)

	var deleted int64
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		tx = tx.WithContext(ctx)

		result := tx.Scopes(scoped.scopes...).Delete(&SiteView{})
		if result.Error != nil {
			return fmt.Errorf("failed to flush site views: %w", result.Error)
		}
		deleted = result.RowsAffected

		err := tx.Where("site_view_id NOT IN (SELECT id FROM site_views)").
			Delete(&TrackableView{}).Error
		if err != nil {
			return fmt.Errorf("failed to flush trackable links: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Flushed site views",
		slog.Int64("deleted_count", deleted),
		slog.Time("until", until),
		slog.Time("from", from))

	return deleted, nil
}
