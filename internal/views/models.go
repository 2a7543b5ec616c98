package views

import (
	"time"

	"gorm.io/gorm"
)

// SiteView is a single tracked page view.
type SiteView struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement"`
	UserID             *uint     `gorm:"index"`
	HTTPReferer        string    `gorm:"column:http_referer;size:2000"`
	URL                string    `gorm:"column:url;size:2000"`
	RequestMethod      string    `gorm:"size:10"`
	RequestPath        string    `gorm:"size:255"`
	HTTPUserAgent      string    `gorm:"column:http_user_agent;size:255"`
	HTTPAcceptLanguage string    `gorm:"column:http_accept_language;size:255"`
	Locale             string    `gorm:"index:idx_locale_created_at;size:35"`
	RequestTime        *int64    // unix seconds the request started at
	AppTime            *float64  // milliseconds spent serving the request
	Memory             *int64    // peak memory in bytes
	CreatedAt          time.Time `gorm:"index:idx_locale_created_at;index;not null"`
}

// BeforeCreate stamps CreatedAt when the caller left it empty and stores it in UTC.
func (v *SiteView) BeforeCreate(tx *gorm.DB) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = tx.Statement.DB.NowFunc()
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return nil
}

// TrackableView links a domain entity to the views recorded while it was shown.
type TrackableView struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	TrackableType string    `gorm:"uniqueIndex:idx_trackable_view;size:100;not null"`
	TrackableID   uint      `gorm:"uniqueIndex:idx_trackable_view;not null"`
	SiteViewID    uint      `gorm:"uniqueIndex:idx_trackable_view;index;not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

// Trackable is a domain entity visits can be attached to.
type Trackable interface {
	TrackableType() string
	TrackableID() uint
}

// TrackableRef identifies a trackable by type name and primary key.
type TrackableRef struct {
	Type string
	ID   uint
}

func (r TrackableRef) TrackableType() string { return r.Type }
func (r TrackableRef) TrackableID() uint     { return r.ID }

// Models returns every model this package persists, for migrations.
func Models() []any {
	return []any{
		&SiteView{},
		&TrackableView{},
	}
}
