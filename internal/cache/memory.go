package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	cartridgecache "github.com/karloscodes/cartridge/cache"
)

// forever stands in for "never expires"; the underlying store always sets a deadline.
const forever = 100 * 365 * 24 * time.Hour

// MemoryStore keeps entries in process memory on top of cartridge's
// in-memory store. Counts are stored as decimal text.
type MemoryStore struct {
	store     *cartridgecache.MemoryStore
	closeOnce sync.Once
}

// NewMemoryStore returns an empty in-process Store. Expired entries are
// evicted by the underlying store's background cleanup.
func NewMemoryStore(opts ...cartridgecache.Option) *MemoryStore {
	return &MemoryStore{store: cartridgecache.NewMemoryStore(opts...)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (int64, bool, error) {
	raw, ok := s.store.Read(ctx, key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cache entry %q: %w", key, err)
	}
	return value, true, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value int64, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = forever
	}
	return s.store.WriteWithTTL(ctx, key, strconv.AppendInt(nil, value, 10), ttl)
}

func (s *MemoryStore) Purge(ctx context.Context) (int64, error) {
	n := s.store.Stats(ctx).Entries
	if err := s.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("failed to purge memory cache: %w", err)
	}
	return n, nil
}

// PurgeExpired is a no-op. Expired entries are already misses and the
// background cleanup removes them.
func (s *MemoryStore) PurgeExpired(context.Context) (int64, error) {
	return 0, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	return int(s.store.Stats(context.Background()).Entries)
}

// Close stops the background cleanup. Later calls do nothing.
func (s *MemoryStore) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.store.Close() })
	return err
}

var _ Store = (*MemoryStore)(nil)
