package images

import (
	"time"

	"github.com/apibillme/cache"
)

// DefaultTTL is how long a resolved result set stays valid.
const DefaultTTL = time.Hour

// Entry is a cached result set and the time it was stored.
type Entry struct {
	Data     []ImageResult
	StoredAt time.Time
}

// Valid reports whether the entry is still usable at now.
func (e Entry) Valid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) < ttl
}

// Cache stores result sets by normalized term. Implementations only need to
// be safe for concurrent use; freshness is judged by the cascade.
type Cache interface {
	Get(key string) (Entry, bool)
	Set(key string, entry Entry)
}

// MemoryCache keeps entries in process memory, bounded to a fixed number of
// terms with least-recently-used eviction.
type MemoryCache struct {
	lru cache.Cache
}

// NewMemoryCache returns a cache holding at most size terms. Entries older
// than ttl are also dropped by the underlying store.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: cache.New(size, cache.WithTTL(ttl))}
}

func (m *MemoryCache) Get(key string) (Entry, bool) {
	v, ok := m.lru.Get(key)
	if !ok {
		return Entry{}, false
	}
	entry, ok := v.(Entry)
	return entry, ok
}

func (m *MemoryCache) Set(key string, entry Entry) {
	m.lru.Set(key, entry)
}
