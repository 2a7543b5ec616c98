// Package testsupport provides database and fixture helpers for tests.
package testsupport

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tracker/internal/database"
	"tracker/internal/views"
)

// testDBCache caches test databases by root test name so subtests share one
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// SetupTestDB creates a migrated in-memory database for the current test.
// The database is named after the root test and opened with cache=shared,
// so every connection of the pool and every subtest see the same data.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// CleanAllTables clears every table of db
func CleanAllTables(db *gorm.DB) {
	var tables []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tables)

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// GetLogger returns a logger that drops everything
func GetLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// CreateView inserts a site view created at the given instant
func CreateView(t *testing.T, db *gorm.DB, locale string, createdAt time.Time) *views.SiteView {
	t.Helper()

	view := &views.SiteView{
		URL:           "https://example.com/",
		RequestMethod: "GET",
		RequestPath:   "/",
		Locale:        locale,
		CreatedAt:     createdAt,
	}
	if err := db.Create(view).Error; err != nil {
		t.Fatalf("testsupport: failed to create site view: %v", err)
	}
	return view
}

// AttachView links view to the trackable identified by trackableType and id
func AttachView(t *testing.T, db *gorm.DB, trackableType string, id uint, view *views.SiteView) {
	t.Helper()

	link := &views.TrackableView{
		TrackableType: trackableType,
		TrackableID:   id,
		SiteViewID:    view.ID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.Create(link).Error; err != nil {
		t.Fatalf("testsupport: failed to attach site view: %v", err)
	}
}

// Date returns midnight of the given day in loc
func Date(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
