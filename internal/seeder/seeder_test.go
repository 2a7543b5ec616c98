package seeder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/testsupport"
	"tracker/internal/views"
)

func TestSeederRecordsViewsInWindow(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	ctx := context.Background()
	store := views.NewStore(db, testsupport.GetLogger(), true)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewSeeder(store, testsupport.GetLogger(), 50)
	s.Days = 7
	s.now = func() time.Time { return now }

	require.NoError(t, s.Run(ctx))

	total, err := store.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), total)

	inWindow, err := store.Query().Between(now.AddDate(0, 0, -7), now).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), inWindow)

	var links int64
	require.NoError(t, db.Model(&views.TrackableView{}).Count(&links).Error)
	assert.LessOrEqual(t, links, int64(50))
}

func TestSeederRejectsEmptyWindow(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	s := NewSeeder(views.NewStore(db, testsupport.GetLogger(), true), testsupport.GetLogger(), 1)
	s.Days = 0

	assert.Error(t, s.Run(context.Background()))
}
