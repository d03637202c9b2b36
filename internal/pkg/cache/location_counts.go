package cache

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// LocationCounts is the heuristic event-count cache keyed by rounded
// location + radius. It only influences whether a recommendation backfill
// is triggered, never what is served, so stale entries are tolerable. The
// TTL plus go-cache's janitor keeps memory bounded in a long-running
// process.
type LocationCounts struct {
	store  *gocache.Cache
	logger *zap.Logger
}

// CountEntry is a cached count with the time it was recorded.
type CountEntry struct {
	Count     int
	Timestamp time.Time
}

const (
	defaultTTL      = 30 * time.Minute
	cleanupInterval = 10 * time.Minute
)

// NewLocationCounts builds the cache with the default TTL.
func NewLocationCounts(logger *zap.Logger) *LocationCounts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationCounts{
		store:  gocache.New(defaultTTL, cleanupInterval),
		logger: logger,
	}
}

// Key derives the cache key by rounding coordinates to 4 decimal places
// and appending the radius. ~36ft of latitude resolution is plenty for a
// "roughly this area" heuristic.
func Key(lat, lon, radius float64) string {
	return fmt.Sprintf("%.4f,%.4f,%g", lat, lon, radius)
}

// Get returns the cached count for the key, if present and unexpired.
func (c *LocationCounts) Get(key string) (CountEntry, bool) {
	v, found := c.store.Get(key)
	if !found {
		return CountEntry{}, false
	}
	entry, ok := v.(CountEntry)
	if !ok {
		return CountEntry{}, false
	}
	c.logger.Debug("location count cache hit", zap.String("key", key), zap.Int("count", entry.Count))
	return entry, true
}

// Set stores the count under the key. Last write wins; the cache is
// advisory so concurrent writers need no coordination beyond go-cache's
// own locking.
func (c *LocationCounts) Set(key string, count int) {
	c.store.Set(key, CountEntry{Count: count, Timestamp: time.Now()}, gocache.DefaultExpiration)
}

// Len reports the number of live entries, for metrics.
func (c *LocationCounts) Len() int {
	return c.store.ItemCount()
}
