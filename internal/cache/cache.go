// Package cache memoizes comparison results per property and source data
// version. The cache is owned by the caller and wraps the orchestrator; the
// comparison engine itself holds no cached state.
package cache

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/listing-recon/internal/model"
)

// Key identifies one cached comparison.
type Key struct {
	PropertyID string
	Version    string
}

// KeyFor returns the cache key for a property. The version is the
// property's last update time plus a digest of its canonical values and
// external ids, so two references with the same id but different data never
// share an entry.
func KeyFor(p model.Property) Key {
	return Key{
		PropertyID: p.ID,
		Version:    p.UpdatedAt.UTC().Format(time.RFC3339Nano) + "." + digest(p),
	}
}

func digest(p model.Property) string {
	h := fnv.New64a()
	for _, attr := range model.CanonicalAttributes {
		v, _ := p.Attribute(attr)
		b, _ := json.Marshal(v)
		h.Write([]byte(attr))
		h.Write([]byte{'='})
		h.Write(b)
		h.Write([]byte{0})
	}
	sources := make([]string, 0, len(p.ExternalIDs))
	for src := range p.ExternalIDs {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		h.Write([]byte(src + "=" + p.ExternalIDs[src]))
		h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// String renders the key for use as a storage key.
func (k Key) String() string {
	return "recon:comparison:" + k.PropertyID + ":" + k.Version
}

// Cache stores comparison results.
type Cache interface {
	// Get returns the cached comparison, or (nil, false, nil) on a miss.
	Get(ctx context.Context, key Key) (*model.PropertyComparison, bool, error)
	Set(ctx context.Context, key Key, pc *model.PropertyComparison, ttl time.Duration) error
	Close() error
}

// Comparer is the operation being cached.
type Comparer interface {
	Compare(ctx context.Context, ref model.Property) (*model.PropertyComparison, error)
}

// Compare wraps a Comparer with a cache. Cache failures are logged and the
// comparison runs uncached.
type Compare struct {
	inner    Comparer
	cache    Cache
	ttl      time.Duration
	onLookup func(hit bool)
}

// NewCompare creates a cached Comparer. onLookup may be nil.
func NewCompare(inner Comparer, c Cache, ttl time.Duration, onLookup func(hit bool)) *Compare {
	return &Compare{inner: inner, cache: c, ttl: ttl, onLookup: onLookup}
}

// Compare returns the cached comparison for ref when present, otherwise runs
// and stores a fresh one. Properties without an id are never cached.
func (c *Compare) Compare(ctx context.Context, ref model.Property) (*model.PropertyComparison, error) {
	if ref.ID == "" {
		return c.inner.Compare(ctx, ref)
	}

	key := KeyFor(ref)
	pc, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("comparison cache get failed", zap.String("key", key.String()), zap.Error(err))
	}
	if c.onLookup != nil {
		c.onLookup(ok)
	}
	if ok {
		return pc, nil
	}

	pc, err = c.inner.Compare(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, pc, c.ttl); err != nil {
		zap.L().Warn("comparison cache set failed", zap.String("key", key.String()), zap.Error(err))
	}
	return pc, nil
}
