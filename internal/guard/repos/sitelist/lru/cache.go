// Package lru holds recent site list answers in memory so repeated lookups
// of the same domain skip the Bolt store.
package lru

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/haukened/navguard/internal/guard/domain"
	"github.com/haukened/navguard/internal/guard/repos/sitelist"
)

// backend is the subset shared by lru.Cache and expirable.LRU.
type backend interface {
	Add(key string, value domain.SiteDecision) bool
	Get(key string) (domain.SiteDecision, bool)
	Len() int
	Purge()
}

// decisionCache implements sitelist.DecisionCache over a bounded LRU,
// optionally expiring entries after a fixed TTL.
type decisionCache struct {
	entries  backend
	capacity int
	ttl      time.Duration

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a DecisionCache holding up to size decisions. A positive ttl
// bounds how long a decision may be served. size <= 0 disables caching.
func New(size int, ttl time.Duration) (sitelist.DecisionCache, error) {
	if size <= 0 {
		return disabledCache{}, nil
	}

	c := &decisionCache{capacity: size, ttl: ttl}
	onEvict := func(string, domain.SiteDecision) { c.evictions.Add(1) }

	if ttl > 0 {
		c.entries = expirable.NewLRU[string, domain.SiteDecision](size, onEvict, ttl)
		return c, nil
	}
	entries, err := lru.NewWithEvict[string, domain.SiteDecision](size, onEvict)
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

func (c *decisionCache) Get(name string) (domain.SiteDecision, bool) {
	d, ok := c.entries.Get(name)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return d, ok
}

func (c *decisionCache) Put(name string, d domain.SiteDecision) { c.entries.Add(name, d) }

func (c *decisionCache) Len() int { return c.entries.Len() }

// Purge drops every entry; each counts as an eviction.
func (c *decisionCache) Purge() { c.entries.Purge() }

func (c *decisionCache) Stats() sitelist.CacheStats {
	return sitelist.CacheStats{
		Capacity:  c.capacity,
		Size:      c.entries.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// disabledCache always misses.
type disabledCache struct{}

func (disabledCache) Get(string) (domain.SiteDecision, bool) { return domain.SiteDecision{}, false }
func (disabledCache) Put(string, domain.SiteDecision)        {}
func (disabledCache) Len() int                               { return 0 }
func (disabledCache) Purge()                                 {}
func (disabledCache) Stats() sitelist.CacheStats             { return sitelist.CacheStats{} }

var (
	_ sitelist.DecisionCache = (*decisionCache)(nil)
	_ sitelist.DecisionCache = disabledCache{}
)
