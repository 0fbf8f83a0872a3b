package sitelist

// CacheStats reports lightweight cache metrics.
// All fields are best-effort snapshots and may be updated concurrently.
type CacheStats struct {
	Capacity  int    // configured capacity (0 for disabled cache)
	Size      int    // current number of entries
	Hits      uint64 // total cache hits since construction
	Misses    uint64 // total cache misses since construction
	Evictions uint64 // total evictions since construction
}

// StoreStats reports per-list key counts and snapshot metadata.
type StoreStats struct {
	LegitimateExact  uint64
	LegitimateSuffix uint64
	SuspiciousExact  uint64
	SuspiciousSuffix uint64
	Version          uint64 // bumped on every write that inserted something
	UpdatedUnix      int64  // last write, seconds since epoch
}

// Legitimate returns the number of legitimate rules.
func (s StoreStats) Legitimate() uint64 { return s.LegitimateExact + s.LegitimateSuffix }

// Suspicious returns the number of suspicious rules.
func (s StoreStats) Suspicious() uint64 { return s.SuspiciousExact + s.SuspiciousSuffix }

// RepoStats exposes repository-level counters and underlying store stats.
type RepoStats struct {
	Cache      CacheStats
	Store      StoreStats
	BloomKeys  uint64
	LastReload int64 // seconds since epoch
}
