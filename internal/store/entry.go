package store

import (
	"time"
)

// Entry is a single cached value and the time it was stored.
type Entry struct {
	Key      string
	Value    any
	StoredAt time.Time
}

// Age returns how long ago the entry was stored, as seen at now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// IsFresh reports whether the entry is still within ttl at now.
// An entry is fresh iff now - StoredAt < ttl.
func (e *Entry) IsFresh(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}

// Expiry returns the instant the entry stops being fresh for ttl.
func (e *Entry) Expiry(ttl time.Duration) time.Time {
	return e.StoredAt.Add(ttl)
}

func (e *Entry) clone() *Entry {
	c := *e
	return &c
}
