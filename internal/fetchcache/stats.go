package fetchcache

import "sync/atomic"

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	// Hits are Gets answered from a fresh entry.
	Hits int64
	// Misses are Gets that had to join or start a fetch.
	Misses int64
	// Fetches are calls made to the fetcher.
	Fetches int64
	// FetchErrors are fetcher calls that failed.
	FetchErrors int64
	// StaleServed are failed refreshes answered with a stale entry.
	StaleServed int64
	// Shared are Gets whose result came from a fetch shared with others.
	Shared int64
}

// HitRatio returns Hits / (Hits + Misses), or 0 before any Get.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type counters struct {
	hits        atomic.Int64
	misses      atomic.Int64
	fetches     atomic.Int64
	fetchErrors atomic.Int64
	staleServed atomic.Int64
	shared      atomic.Int64
}

// Stats returns the current counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Fetches:     c.stats.fetches.Load(),
		FetchErrors: c.stats.fetchErrors.Load(),
		StaleServed: c.stats.staleServed.Load(),
		Shared:      c.stats.shared.Load(),
	}
}
