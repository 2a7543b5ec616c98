package views

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Query is an immutable filter over site views. Every builder method returns
// a new Query; the receiver is left untouched so a base scope can be shared.
type Query interface {
	// WithLocale restricts to views recorded under locale. An empty locale is a no-op.
	WithLocale(locale string) Query
	// Between restricts to views created in [from, until], both ends inclusive.
	Between(from, until time.Time) Query
	// Since restricts to views created at or after t.
	Since(t time.Time) Query
	// OlderThan restricts to views created strictly before t.
	OlderThan(t time.Time) Query
	// Count returns the number of matching views.
	Count(ctx context.Context) (int64, error)
	// Latest returns the most recently created matching view, or nil when there is none.
	Latest(ctx context.Context) (*SiteView, error)
}

type gormQuery struct {
	db     *gorm.DB
	scopes []func(*gorm.DB) *gorm.DB
}

// NewQuery returns an unfiltered Query over the site_views table of db.
func NewQuery(db *gorm.DB) Query {
	return gormQuery{db: db}
}

func (q gormQuery) with(scope func(*gorm.DB) *gorm.DB) gormQuery {
	scopes := make([]func(*gorm.DB) *gorm.DB, len(q.scopes), len(q.scopes)+1)
	copy(scopes, q.scopes)
	return gormQuery{db: q.db, scopes: append(scopes, scope)}
}

func (q gormQuery) WithLocale(locale string) Query {
	if locale == "" {
		return q
	}
	return q.with(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("site_views.locale = ?", locale)
	})
}

func (q gormQuery) Between(from, until time.Time) Query {
	return q.with(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("site_views.created_at BETWEEN ? AND ?", from.UTC(), until.UTC())
	})
}

func (q gormQuery) Since(t time.Time) Query {
	return q.with(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("site_views.created_at >= ?", t.UTC())
	})
}

func (q gormQuery) OlderThan(t time.Time) Query {
	return q.with(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("site_views.created_at < ?", t.UTC())
	})
}

// forTrackable restricts to views attached to the given trackable.
func (q gormQuery) forTrackable(t Trackable) gormQuery {
	trackableType, trackableID := t.TrackableType(), t.TrackableID()
	return q.with(func(tx *gorm.DB) *gorm.DB {
		return tx.Where(
			"site_views.id IN (SELECT site_view_id FROM trackable_views WHERE trackable_type = ? AND trackable_id = ?)",
			trackableType, trackableID,
		)
	})
}

func (q gormQuery) build(ctx context.Context) *gorm.DB {
	return q.db.WithContext(ctx).Model(&SiteView{}).Scopes(q.scopes...)
}

func (q gormQuery) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := q.build(ctx).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count site views: %w", err)
	}
	return count, nil
}

func (q gormQuery) Latest(ctx context.Context) (*SiteView, error) {
	var found []SiteView
	err := q.build(ctx).
		Order("site_views.created_at DESC").
		Order("site_views.id DESC").
		Limit(1).
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find latest site view: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}
