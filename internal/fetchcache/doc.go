// Package fetchcache wraps an expensive fetch behind a store with a TTL.
//
// A Cache answers Get from its store while the entry is fresh
// (now - storedAt < TTL) and calls the fetcher otherwise. Concurrent misses
// on one key share a single fetch. A failed fetch leaves the store untouched
// and its error is returned as is, unless StaleOnError is set and a stale
// entry exists.
//
// The store stamps StoredAt with its own clock; pass the same clock.Clock to
// the store and to Options.Clock so freshness is judged on one timeline.
package fetchcache
