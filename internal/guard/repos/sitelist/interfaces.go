package sitelist

import "github.com/haukened/navguard/internal/guard/domain"

// BloomSizer computes Bloom filter parameters from capacity (n) and target FP rate (p).
// It returns m (number of bits) and k (number of hash functions).
type BloomSizer interface {
	Size(n uint64, p float64) (m uint64, k uint8)
}

// BloomFilter is the minimal interface the repository needs from Bloom filters.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds filters sized for a dataset.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// DecisionCache caches site decisions by canonical name with basic metrics.
type DecisionCache interface {
	Get(name string) (domain.SiteDecision, bool)
	Put(name string, d domain.SiteDecision)
	Len() int
	Purge()
	Stats() CacheStats
}

// Store is the persistent index of site rules.
//   - Put/PutAll insert rules, reporting what was new
//   - Match finds the rule deciding name, legitimate before suspicious
//   - ForEach visits every rule, used to rebuild the Bloom filter
type Store interface {
	Put(rule domain.SiteRule) (bool, error)
	PutAll(rules []domain.SiteRule) (int, error)
	Match(name string) (domain.SiteRule, bool, error)
	ForEach(visit func(rule domain.SiteRule) error) error
	Examples(category domain.Category, limit int) ([]string, error)
	Stats() StoreStats
	Close() error
}

// Repository is the composition layer that wires bloom → cache → store.
type Repository interface {
	// Decide returns the list decision for a canonical domain name.
	Decide(name string) (domain.SiteDecision, error)
	// Add inserts one rule and reports whether it was new.
	Add(rule domain.SiteRule) (bool, error)
	// Import bulk-inserts rules and returns how many were new.
	Import(rules []domain.SiteRule) (int, error)
	// Reload rebuilds the Bloom filter from the store and clears the cache.
	Reload() error
	Examples(category domain.Category, limit int) ([]string, error)
	Stats() RepoStats
}
