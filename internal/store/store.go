package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/fetchcache/internal/clock"
)

// Common store errors.
var (
	// ErrNotFound is returned by Get when no entry exists for a key.
	ErrNotFound = errors.New("cache entry not found")

	// ErrInvalidKey is returned for an empty key.
	ErrInvalidKey = errors.New("cache key cannot be empty")

	// ErrCorrupt marks a backing document that could not be parsed. FileStore
	// logs it and starts empty; it is never returned from Get.
	ErrCorrupt = errors.New("cache store corrupted")
)

// Store maps cache keys to entries.
type Store interface {
	// Get returns the entry for key or ErrNotFound.
	Get(ctx context.Context, key string) (*Entry, error)

	// Put stores value under key with the current time, replacing any
	// existing entry as a whole.
	Put(ctx context.Context, key string, value any) error

	// Remove deletes the entry for key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Keys returns every stored key in sorted order.
	Keys(ctx context.Context) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// ValueNormalizer is implemented by stores whose Get returns values passed
// through Normalize rather than the value given to Put.
type ValueNormalizer interface {
	NormalizesValues() bool
}

// Normalizes reports whether s hands back normalized values.
func Normalizes(s Store) bool {
	n, ok := s.(ValueNormalizer)
	return ok && n.NormalizesValues()
}

// Option customizes a store.
type Option func(*options)

type options struct {
	clock  clock.Clock
	logger zerolog.Logger
	format Format
}

func newOptions(opts []Option) options {
	o := options{
		clock:  clock.Real(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the time source used for StoredAt.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger used for warnings such as a corrupt file.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFormat forces the FileStore document format instead of inferring it
// from the file extension.
func WithFormat(f Format) Option {
	return func(o *options) { o.format = f }
}

// now returns the option clock's time truncated to microseconds and in UTC,
// which every backend can persist without loss.
func (o options) now() time.Time {
	return o.clock.Now().UTC().Truncate(time.Microsecond)
}
