package store

import "sync/atomic"

// Stats is a point-in-time snapshot of store activity.
type Stats struct {
	// Queries counts Query calls, however they were served.
	Queries int64 `json:"queries"`
	// Hits counts queries served from a stored state.
	Hits int64 `json:"hits"`
	// Misses counts queries that had to fetch.
	Misses int64 `json:"misses"`
	// Fetches counts fetch executions, refreshes and pages included.
	Fetches int64 `json:"fetches"`
	// Mutations counts Mutate calls.
	Mutations int64 `json:"mutations"`
	// Errors counts fetches and mutations that settled as failures.
	Errors int64 `json:"errors"`
	// Invalidated counts states dropped by invalidation.
	Invalidated int64 `json:"invalidated"`
}

// GetHitRate returns the fraction of queries served without fetching.
func (s *Stats) GetHitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}

	return float64(s.Hits) / float64(total)
}

type statCounters struct {
	queries     atomic.Int64
	hits        atomic.Int64
	misses      atomic.Int64
	fetches     atomic.Int64
	mutations   atomic.Int64
	errors      atomic.Int64
	invalidated atomic.Int64
}

// GetStats snapshots the store's activity counters.
func (s *Store) GetStats() Stats {
	return Stats{
		Queries:     s.stats.queries.Load(),
		Hits:        s.stats.hits.Load(),
		Misses:      s.stats.misses.Load(),
		Fetches:     s.stats.fetches.Load(),
		Mutations:   s.stats.mutations.Load(),
		Errors:      s.stats.errors.Load(),
		Invalidated: s.stats.invalidated.Load(),
	}
}
