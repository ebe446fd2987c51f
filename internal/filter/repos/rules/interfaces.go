package rules

import (
	"context"

	"github.com/haukened/rr-block/internal/filter/domain"
)

// Fetcher returns the raw bytes of a list source (local path or URL).
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// BloomFilter is a probabilistic set of domain rules. MightContainHost never
// returns false for a host that was added.
type BloomFilter interface {
	AddHost(host string)
	MightContainHost(host string) bool
	ApproxCount() uint32
}

// BloomFactory builds Bloom filters sized for a capacity and false-positive rate.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// BloomSizer computes Bloom filter parameters from capacity (n) and target FP rate (p).
// It returns m (number of bits) and k (number of hash functions).
type BloomSizer interface {
	Size(n uint64, p float64) (m uint64, k uint8)
}

// DecisionCache caches domain-rule decisions by canonical hostname.
type DecisionCache interface {
	Get(hostname string) (domain.Decision, bool)
	Put(hostname string, d domain.Decision)
	Len() int
	Purge()
	Stats() CacheStats
}

// CacheStats reports lightweight cache metrics.
// All fields are best-effort snapshots and may be updated concurrently.
type CacheStats struct {
	Capacity  int    // configured capacity (0 for disabled cache)
	Size      int    // current number of entries
	Hits      uint64 // total cache hits since construction
	Misses    uint64 // total cache misses since construction
	Evictions uint64 // total evictions since construction
}

// Repository is the Rule Store: it owns the active RuleSet and swaps it on reload.
type Repository interface {
	// Current returns the active RuleSet. It never returns nil.
	Current() *domain.RuleSet
	// Reload loads all sources and atomically publishes the new RuleSet.
	// Lists that fail to load are empty in the new set; the returned error
	// joins their LoadErrors.
	Reload(ctx context.Context) error
	// Sources returns the configured list sources.
	Sources() Sources
}
