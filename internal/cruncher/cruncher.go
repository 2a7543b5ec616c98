// Package cruncher answers time windowed view counts over a record store and
// memoizes range counts in a cache store.
package cruncher

import (
	"context"
	"io"
	"log/slog"
	"time"

	"tracker/internal/cache"
	"tracker/internal/timeframe"
	"tracker/internal/views"
)

// DefaultTTL keeps range counts cached for a year of minutes.
const DefaultTTL = 525600 * time.Minute

// ScopeFunc returns the default base query counts run against.
type ScopeFunc func() views.Query

// Observer receives cache and query events. metrics.Prometheus implements it.
type Observer interface {
	CacheHit()
	CacheMiss()
	CacheError()
	StoreQuery(op string, elapsed time.Duration, err error)
	Buckets(unit string, n int)
}

type nopObserver struct{}

func (nopObserver) CacheHit()                               {}
func (nopObserver) CacheMiss()                              {}
func (nopObserver) CacheError()                             {}
func (nopObserver) StoreQuery(string, time.Duration, error) {}
func (nopObserver) Buckets(string, int)                     {}

// Filter narrows a single call.
type Filter struct {
	// Locale restricts counts to views recorded under it. Empty means all locales.
	Locale string
	// Scope replaces the default base query. Locale is applied on top of it.
	Scope views.Query
	// Tag namespaces the cache keys of this call, e.g. "post.42".
	Tag string
}

// Cruncher computes view counts. It carries no mutable state and is safe for
// concurrent use when its stores are.
type Cruncher struct {
	scope       ScopeFunc
	store       cache.Store
	clock       timeframe.TimeProvider
	location    *time.Location
	ttl         time.Duration
	caching     bool
	concurrency int
	logger      *slog.Logger
	observer    Observer
}

type Option func(*Cruncher)

// WithClock sets the source of "now".
func WithClock(p timeframe.TimeProvider) Option {
	return func(c *Cruncher) { c.clock = p }
}

// WithLocation sets the location calendar days are computed in.
func WithLocation(loc *time.Location) Option {
	return func(c *Cruncher) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithTTL sets how long range counts stay cached. A ttl <= 0 never expires.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cruncher) { c.ttl = ttl }
}

// WithCaching turns range count memoization on or off.
func WithCaching(enabled bool) Option {
	return func(c *Cruncher) { c.caching = enabled }
}

// WithConcurrency sets how many series buckets are computed at once.
func WithConcurrency(n int) Option {
	return func(c *Cruncher) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cruncher) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(o Observer) Option {
	return func(c *Cruncher) {
		if o != nil {
			c.observer = o
		}
	}
}

// New returns a Cruncher counting views from scope and caching range counts
// in store. A nil store disables caching.
func New(scope ScopeFunc, store cache.Store, opts ...Option) *Cruncher {
	c := &Cruncher{
		scope:       scope,
		store:       store,
		clock:       &timeframe.DefaultTimeProvider{},
		location:    time.UTC,
		ttl:         DefaultTTL,
		caching:     true,
		concurrency: 1,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer:    nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = cache.None{}
		c.caching = false
	}
	return c
}

func (c *Cruncher) now() time.Time {
	return c.clock.Now(c.location)
}

func (c *Cruncher) today() time.Time {
	return timeframe.Today(c.clock, c.location)
}

func (c *Cruncher) query(f Filter) views.Query {
	q := f.Scope
	if q == nil {
		q = c.scope()
	}
	return q.WithLocale(f.Locale)
}

func (c *Cruncher) count(ctx context.Context, op string, q views.Query) (int64, error) {
	start := time.Now()
	n, err := q.Count(ctx)
	c.observer.StoreQuery(op, time.Since(start), err)
	if err != nil {
		return 0, storageError(RecordStore, op, err)
	}
	return n, nil
}

// LastVisited returns when the most recent matching view was created.
// ok is false when there is none.
func (c *Cruncher) LastVisited(ctx context.Context, f Filter) (t time.Time, ok bool, err error) {
	start := time.Now()
	latest, err := c.query(f).Latest(ctx)
	c.observer.StoreQuery("latest", time.Since(start), err)
	if err != nil {
		return time.Time{}, false, storageError(RecordStore, "latest", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return latest.CreatedAt.In(c.location), true, nil
}

// TotalVisitCount counts every matching view.
func (c *Cruncher) TotalVisitCount(ctx context.Context, f Filter) (int64, error) {
	return c.count(ctx, "total", c.query(f))
}

// TodayCount counts matching views created since the start of today.
func (c *Cruncher) TodayCount(ctx context.Context, f Filter) (int64, error) {
	return c.count(ctx, "today", c.query(f).Since(c.today()))
}

// CountInBetween counts matching views created in [from, until]. A zero
// until means now and is never cached. Other results are cached under MakeKey.
func (c *Cruncher) CountInBetween(ctx context.Context, from, until time.Time, f Filter) (int64, error) {
	// An open range ends now and would key a fresh entry every second
	open := until.IsZero()
	if open {
		until = c.now()
	}
	if from.After(until) {
		return 0, ErrInvalidRange
	}

	if !c.caching || open {
		return c.count(ctx, "between", c.query(f).Between(from, until))
	}

	key := MakeKey(from, until, f.Locale, f.Tag)

	cached, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.observer.CacheError()
		c.logger.Error("Cache lookup failed", slog.String("key", key), slog.Any("error", err))
		return 0, storageError(CacheStore, "get", err)
	}
	if found {
		c.observer.CacheHit()
		return cached, nil
	}
	c.observer.CacheMiss()

	n, err := c.count(ctx, "between", c.query(f).Between(from, until))
	if err != nil {
		return 0, err
	}

	if err := c.store.Put(ctx, key, n, c.ttl); err != nil {
		c.observer.CacheError()
		c.logger.Error("Cache write failed", slog.String("key", key), slog.Any("error", err))
		return 0, storageError(CacheStore, "put", err)
	}

	c.logger.Debug("Cached range count", slog.String("key", key), slog.Int64("count", n))
	return n, nil
}

// RelativeCount counts matching views in the unit-long window ending at end.
// A zero end means the start of today.
func (c *Cruncher) RelativeCount(ctx context.Context, unit timeframe.Unit, end time.Time, f Filter) (int64, error) {
	if end.IsZero() {
		end = c.today()
	}
	window, err := timeframe.Relative(unit, end)
	if err != nil {
		return 0, err
	}
	return c.CountInBetween(ctx, window.From, window.Until, f)
}

func (c *Cruncher) RelativeYearCount(ctx context.Context, end time.Time, f Filter) (int64, error) {
	return c.RelativeCount(ctx, timeframe.Year, end, f)
}

func (c *Cruncher) RelativeMonthCount(ctx context.Context, end time.Time, f Filter) (int64, error) {
	return c.RelativeCount(ctx, timeframe.Month, end, f)
}

func (c *Cruncher) RelativeWeekCount(ctx context.Context, end time.Time, f Filter) (int64, error) {
	return c.RelativeCount(ctx, timeframe.Week, end, f)
}

func (c *Cruncher) RelativeDayCount(ctx context.Context, end time.Time, f Filter) (int64, error) {
	return c.RelativeCount(ctx, timeframe.Day, end, f)
}

// CountForDay counts matching views on the calendar day of day. A zero day
// means now.
func (c *Cruncher) CountForDay(ctx context.Context, day time.Time, f Filter) (int64, error) {
	if day.IsZero() {
		day = c.now()
	}
	window := timeframe.ForDay(day)
	return c.CountInBetween(ctx, window.From, window.Until, f)
}
