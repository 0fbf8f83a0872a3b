package sitelist

import (
	"fmt"
	"strings"
	"sync"

	"github.com/haukened/navguard/internal/guard/common/clock"
	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/common/utils"
	"github.com/haukened/navguard/internal/guard/domain"
)

// minBloomCapacity keeps a freshly created or nearly empty filter useful for
// the rules added at runtime before the next reload.
const minBloomCapacity = 1024

// repository implements Repository by composing a Store, a Bloom filter
// (via factory), and a DecisionCache. Reads go bloom → cache → store; writes
// go to the store first, then the filter, then invalidate the cache.
type repository struct {
	mu         sync.RWMutex
	store      Store
	cache      DecisionCache
	bloom      BloomFilter
	factory    BloomFactory
	fpRate     float64
	bloomKeys  uint64
	lastReload int64
	// gen is bumped whenever the cache is purged, so a lookup that raced a
	// write does not cache a stale answer.
	gen    uint64
	clock  clock.Clock
	logger log.Logger
}

// Options configures a Repository.
type Options struct {
	Store   Store
	Cache   DecisionCache
	Factory BloomFactory
	FPRate  float64
	Clock   clock.Clock
	Logger  log.Logger
}

// NewRepository constructs a Repository and loads the Bloom filter from the
// store. fpRate is the target false-positive rate used when rebuilding.
func NewRepository(opts Options) (Repository, error) {
	if opts.Store == nil || opts.Cache == nil || opts.Factory == nil {
		return nil, fmt.Errorf("store, cache and bloom factory are required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	r := &repository{
		store:   opts.Store,
		cache:   opts.Cache,
		factory: opts.Factory,
		fpRate:  opts.FPRate,
		clock:   opts.Clock,
		logger:  opts.Logger,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Decide returns the SiteDecision for the provided domain name. Store errors
// are returned to the caller and never cached.
func (r *repository) Decide(name string) (domain.SiteDecision, error) {
	cn := utils.CanonicalDomain(name)
	if cn == "" {
		return domain.UnlistedDecision(), nil
	}
	// 1) checkBloom: early-return if definitively unlisted
	if !r.checkBloom(cn) {
		return domain.UnlistedDecision(), nil
	}
	// 2) checkCache
	d, ok, gen := r.checkCache(cn)
	if ok {
		return d, nil
	}
	// 3) checkStore
	dec, err := r.checkStore(cn)
	if err != nil {
		return domain.UnlistedDecision(), err
	}
	// 4) updateCache
	r.updateCache(cn, dec, gen)
	return dec, nil
}

// Add writes one rule. The filter learns the key and the cache is purged
// because it also holds negative decisions.
func (r *repository) Add(rule domain.SiteRule) (bool, error) {
	if err := rule.Validate(); err != nil {
		return false, err
	}
	inserted, err := r.store.Put(rule)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}
	r.mu.Lock()
	r.bloom.Add(bloomKey(rule))
	r.bloomKeys++
	r.gen++
	r.cache.Purge()
	r.mu.Unlock()

	r.logger.Info(map[string]any{
		"name":     rule.Name,
		"kind":     rule.Kind.String(),
		"category": rule.Category.String(),
		"source":   rule.Source,
	}, "Site rule added")
	return true, nil
}

// Import bulk-inserts rules in one store transaction and then rebuilds the
// filter for the new dataset size.
func (r *repository) Import(rules []domain.SiteRule) (int, error) {
	n, err := r.store.PutAll(rules)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := r.Reload(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Reload performs an atomic swap of a freshly built Bloom filter and purges
// the decision cache.
func (r *repository) Reload() error {
	var keys [][]byte
	if err := r.store.ForEach(func(rule domain.SiteRule) error {
		keys = append(keys, bloomKey(rule))
		return nil
	}); err != nil {
		return fmt.Errorf("rebuild bloom filter: %w", err)
	}

	capacity := uint64(len(keys)) * 2
	if capacity < minBloomCapacity {
		capacity = minBloomCapacity
	}
	bf := r.factory.New(capacity, r.fpRate)
	for _, k := range keys {
		bf.Add(k)
	}

	r.mu.Lock()
	r.bloom = bf
	r.bloomKeys = uint64(len(keys))
	r.lastReload = r.clock.Now().Unix()
	r.gen++
	r.cache.Purge()
	r.mu.Unlock()

	r.logger.Debug(map[string]any{"keys": len(keys), "capacity": capacity}, "Site list filter rebuilt")
	return nil
}

func (r *repository) Examples(category domain.Category, limit int) ([]string, error) {
	return r.store.Examples(category, limit)
}

func (r *repository) Stats() RepoStats {
	r.mu.RLock()
	st := RepoStats{
		Cache:      r.cache.Stats(),
		BloomKeys:  r.bloomKeys,
		LastReload: r.lastReload,
	}
	r.mu.RUnlock()
	st.Store = r.store.Stats()
	return st
}

// bloomKey is the filter key for a rule: the name for exact rules and the
// reversed name for suffix rules, matching the store's suffix keys.
func bloomKey(rule domain.SiteRule) []byte {
	if rule.IsSuffix() {
		return []byte(ReverseString(rule.Name))
	}
	return []byte(rule.Name)
}

// ReverseString reverses the string runes. Must match the store's reversal logic
// used for suffix anchors to keep Bloom keys aligned with Bolt keys.
func ReverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// SuffixAnchors lists the names a suffix rule may be keyed on for cn, most
// specific first, stopping at the registrable domain so public suffixes
// like "com" never match.
func SuffixAnchors(cn string) []string {
	apex := utils.GetApexDomain(cn)
	anchors := []string{cn}
	a := cn
	for a != apex {
		i := strings.IndexByte(a, '.')
		if i < 0 {
			break
		}
		a = a[i+1:]
		anchors = append(anchors, a)
	}
	return anchors
}

// checkBloom returns true if we should consult the store (maybe-positive),
// or false if the name is definitely unlisted.
func (r *repository) checkBloom(cn string) bool {
	r.mu.RLock()
	bf := r.bloom
	r.mu.RUnlock()
	if bf == nil {
		return true
	}
	if bf.MightContain([]byte(cn)) {
		return true
	}
	for _, a := range SuffixAnchors(cn) {
		if bf.MightContain([]byte(ReverseString(a))) {
			return true
		}
	}
	return false
}

// checkCache returns a cached decision when present, plus the cache
// generation it observed.
func (r *repository) checkCache(cn string) (domain.SiteDecision, bool, uint64) {
	r.mu.RLock()
	d, ok := r.cache.Get(cn)
	gen := r.gen
	r.mu.RUnlock()
	return d, ok, gen
}

// checkStore consults the authoritative store and materializes a decision.
func (r *repository) checkStore(cn string) (domain.SiteDecision, error) {
	rule, ok, err := r.store.Match(cn)
	if err != nil {
		r.logger.Error(map[string]any{"name": cn, "error": err.Error()}, "Site list lookup failed")
		return domain.UnlistedDecision(), err
	}
	if !ok {
		return domain.UnlistedDecision(), nil
	}
	return domain.SiteDecision{
		Category:    rule.Category,
		MatchedRule: rule.Name,
		Source:      rule.Source,
		Kind:        rule.Kind,
	}, nil
}

// updateCache writes the final decision unless a write happened since gen.
func (r *repository) updateCache(cn string, dec domain.SiteDecision, gen uint64) {
	r.mu.Lock()
	if r.gen == gen {
		r.cache.Put(cn, dec)
	}
	r.mu.Unlock()
}

