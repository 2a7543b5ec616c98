package cruncher

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"tracker/internal/timeframe"
	"tracker/internal/views"
)

// spyRecorder collects every record store call made through spyQuery.
type spyRecorder struct {
	mu      sync.Mutex
	count   int64
	latest  *views.SiteView
	err     error
	counts  int
	windows []timeframe.Range
	locales []string
	since   time.Time
}

func (r *spyRecorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts
}

func (r *spyRecorder) scope() views.Query {
	return spyQuery{rec: r}
}

type spyQuery struct {
	rec    *spyRecorder
	locale string
	since  time.Time
	window *timeframe.Range
}

func (q spyQuery) WithLocale(locale string) views.Query {
	q.locale = locale
	return q
}

func (q spyQuery) Between(from, until time.Time) views.Query {
	q.window = &timeframe.Range{From: from, Until: until}
	return q
}

func (q spyQuery) Since(t time.Time) views.Query {
	q.since = t
	return q
}

func (q spyQuery) OlderThan(time.Time) views.Query {
	return q
}

func (q spyQuery) Count(context.Context) (int64, error) {
	q.rec.mu.Lock()
	defer q.rec.mu.Unlock()

	q.rec.counts++
	q.rec.locales = append(q.rec.locales, q.locale)
	if q.window != nil {
		q.rec.windows = append(q.rec.windows, *q.window)
	}
	if !q.since.IsZero() {
		q.rec.since = q.since
	}
	return q.rec.count, q.rec.err
}

func (q spyQuery) Latest(context.Context) (*views.SiteView, error) {
	return q.rec.latest, q.rec.err
}

// mockStore is a cache.Store driven by testify expectations.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, key string) (int64, bool, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *mockStore) Put(ctx context.Context, key string, value int64, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *mockStore) Purge(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) PurgeExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func fixedClock(t time.Time) Option {
	return WithClock(&timeframe.FixedTimeProvider{Time: t})
}
