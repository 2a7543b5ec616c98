// Package cache holds the key/value stores range counts are memoized in.
//
// A Store distinguishes a miss (found == false, err == nil) from a failing
// backend (err != nil). A cached zero is a hit.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key/value store for integer counts.
type Store interface {
	// Get returns the value stored under key. found is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (value int64, found bool, err error)
	// Put stores value under key for ttl. A ttl <= 0 never expires.
	Put(ctx context.Context, key string, value int64, ttl time.Duration) error
	// Purge removes every entry and returns how many were removed.
	Purge(ctx context.Context) (int64, error)
	// PurgeExpired removes entries whose ttl has elapsed.
	PurgeExpired(ctx context.Context) (int64, error)
}

func expiresAt(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := now.Add(ttl).UTC()
	return &t
}

// None never stores anything; every Get is a miss.
type None struct{}

func (None) Get(context.Context, string) (int64, bool, error)        { return 0, false, nil }
func (None) Put(context.Context, string, int64, time.Duration) error { return nil }
func (None) Purge(context.Context) (int64, error)                    { return 0, nil }
func (None) PurgeExpired(context.Context) (int64, error)             { return 0, nil }

var _ Store = None{}
