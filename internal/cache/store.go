// Package cache is the downstream query cache invalidated by imports and
// ledger deletions.
package cache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/JonMunkholm/activity-import/internal/core"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is used when New is given a non-positive TTL.
const DefaultTTL = 30 * time.Second

type entry struct {
	value   any
	expires time.Time
}

// Store caches query results per (key, variant) with a TTL. Concurrent misses
// for the same entry share one fill. It implements core.Invalidator.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[core.QueryKey]map[string]entry
	gen     map[core.QueryKey]uint64

	group singleflight.Group
}

var _ core.Invalidator = (*Store)(nil)

// New creates a store whose entries live for ttl.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[core.QueryKey]map[string]entry),
		gen:     make(map[core.QueryKey]uint64),
	}
}

// Fetch returns the cached value of key/variant, calling fill on a miss.
// A fill that started before an invalidation of key is returned to its
// callers but not stored.
func (s *Store) Fetch(ctx context.Context, key core.QueryKey, variant string, fill func(context.Context) (any, error)) (any, error) {
	s.mu.RLock()
	e, ok := s.entries[key][variant]
	gen := s.gen[key]
	s.mu.RUnlock()
	if ok && s.now().Before(e.expires) {
		return e.value, nil
	}

	flightKey := flightKeyFor(key, gen, variant)
	v, err, shared := s.group.Do(flightKey, func() (any, error) {
		v, err := fill(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen[key] == gen {
			if s.entries[key] == nil {
				s.entries[key] = make(map[string]entry)
			}
			s.entries[key][variant] = entry{value: v, expires: s.now().Add(s.ttl)}
		}
		return v, nil
	})
	if shared {
		slog.Debug("cache fill shared", "key", key, "variant", variant)
	}
	return v, err
}

// Invalidate drops every entry of keys. Fills already in flight for those
// keys will not be stored.
func (s *Store) Invalidate(_ context.Context, keys ...core.QueryKey) {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.entries, k)
		s.gen[k]++
	}
	s.mu.Unlock()
	slog.Debug("cache invalidated", "keys", keys)
}

// Len returns the number of stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.entries {
		n += len(m)
	}
	return n
}

// Get is a typed wrapper around Store.Fetch.
func Get[T any](ctx context.Context, s *Store, key core.QueryKey, variant string, fill func(context.Context) (T, error)) (T, error) {
	v, err := s.Fetch(ctx, key, variant, func(ctx context.Context) (any, error) {
		return fill(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

func flightKeyFor(key core.QueryKey, gen uint64, variant string) string {
	return string(key) + "#" + strconv.FormatUint(gen, 10) + "|" + variant
}
