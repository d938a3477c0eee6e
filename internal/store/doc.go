// Package store holds cache entries keyed by opaque cache keys.
//
// Four backends implement Store:
//   - MemoryStore keeps entries in a map for the life of the process
//   - FileStore keeps a single YAML or JSON document on disk, loaded once
//     at construction and rewritten on every Put and Remove
//   - SQLStore keeps one row per entry in a gorm-managed table (SQLite)
//   - S3Store keeps one JSON object per entry under a bucket prefix
//
// Stores do not interpret TTLs. They record when a value was stored and
// leave freshness to the caller.
//
// Values must be JSON-serializable. Persistent backends normalize values to
// generic JSON trees (maps, slices, strings, bools, int64, float64) so an
// entry reads back the same before and after a process restart.
package store
