package fetchcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rshade/fetchcache/internal/batch"
	"github.com/rshade/fetchcache/internal/clock"
	"github.com/rshade/fetchcache/internal/config"
	"github.com/rshade/fetchcache/internal/fetcher"
	"github.com/rshade/fetchcache/internal/keys"
	"github.com/rshade/fetchcache/internal/logging"
	"github.com/rshade/fetchcache/internal/store"
)

// Construction errors.
var (
	ErrNilStore   = errors.New("fetchcache: store cannot be nil")
	ErrNilFetcher = errors.New("fetchcache: fetcher cannot be nil")
	ErrInvalidTTL = errors.New("fetchcache: TTL must be positive")
)

// State is the freshness of a key, derived from the clock at read time.
type State int

const (
	// Absent means no entry is stored for the key.
	Absent State = iota
	// Fresh means the entry is younger than the TTL.
	Fresh
	// Stale means the entry exists but its TTL has elapsed.
	Stale
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a Cache.
type Options struct {
	// TTL is how long an entry stays fresh. Required.
	TTL time.Duration

	// StaleOnError returns the stale entry when a refresh fails instead of
	// the fetch error.
	StaleOnError bool

	// FetchTimeout bounds each fetch. Zero means no bound beyond the
	// fetcher's own.
	FetchTimeout time.Duration

	KeyBuilder keys.Builder

	// Clock judges freshness and defaults to clock.Real(). The store stamps
	// StoredAt with its own clock, so pass the same one to the store (see
	// store.WithClock) or expiry is computed against mismatched times.
	Clock clock.Clock

	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Cache is a time-bounded read-through cache in front of a Fetcher.
// It is safe for concurrent use.
type Cache[V any] struct {
	store   store.Store
	fetcher fetcher.Fetcher[V]
	opts    Options
	clock   clock.Clock
	logger  zerolog.Logger

	group singleflight.Group
	stats counters
}

// result is what one shared flight hands to every waiting caller.
type result[V any] struct {
	value V
	stale bool
}

// New returns a Cache reading and writing st and filling misses from f.
func New[V any](st store.Store, f fetcher.Fetcher[V], opts Options) (*Cache[V], error) {
	if st == nil {
		return nil, ErrNilStore
	}
	if f == nil {
		return nil, ErrNilFetcher
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidTTL, opts.TTL)
	}
	if opts.FetchTimeout < 0 {
		return nil, fmt.Errorf("fetchcache: fetch timeout must be >= 0, got %s", opts.FetchTimeout)
	}

	c := &Cache[V]{
		store:   st,
		fetcher: f,
		opts:    opts,
		clock:   opts.Clock,
		logger:  zerolog.Nop(),
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if opts.Logger != nil {
		c.logger = logging.ComponentLogger(*opts.Logger, "fetchcache")
	}
	return c, nil
}

// Open builds the store named by cfg.Backing and a Cache over it.
// The returned Cache owns the store; Close releases it.
func Open[V any](ctx context.Context, cfg config.CacheConfig, f fetcher.Fetcher[V], logger zerolog.Logger) (*Cache[V], error) {
	st, err := store.Open(ctx, cfg.Backing, store.WithLogger(logging.ComponentLogger(logger, "store")))
	if err != nil {
		return nil, fmt.Errorf("opening cache store %q: %w", cfg.Backing, err)
	}

	c, err := New(st, f, Options{
		TTL:          cfg.TTL.Std(),
		StaleOnError: cfg.StaleOnError,
		FetchTimeout: cfg.FetchTimeout.Std(),
		KeyBuilder:   keys.Builder{Namespace: cfg.Namespace},
		Logger:       &logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return c, nil
}

// Get returns the value for params, fetching it when the stored entry is
// missing or stale. Key build errors are returned before any I/O. A caller
// whose ctx ends while waiting on a shared fetch gets ctx.Err(); the fetch
// itself keeps running for the other waiters.
func (c *Cache[V]) Get(ctx context.Context, params keys.Params) (V, error) {
	var zero V

	key, err := c.opts.KeyBuilder.Build(params)
	if err != nil {
		return zero, err
	}

	if value, state := c.lookup(ctx, key); state == Fresh {
		c.stats.hits.Add(1)
		return value, nil
	}
	c.stats.misses.Add(1)

	ch := c.group.DoChan(key, func() (any, error) {
		return c.fill(ctx, key, params)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.stats.shared.Add(1)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		r := res.Val.(result[V])
		if r.stale {
			c.requestLogger(ctx, key).Debug().Bool("shared", res.Shared).Msg("returning stale value")
		}
		return r.value, nil
	}
}

// fill runs inside the flight for key. The store is checked again because a
// flight that finished just before this one may already have filled it.
// The work is detached from callerCtx's cancellation; FetchTimeout bounds
// only the fetcher call.
func (c *Cache[V]) fill(callerCtx context.Context, key string, params keys.Params) (any, error) {
	ctx := context.WithoutCancel(callerCtx)

	value, state := c.lookup(ctx, key)
	if state == Fresh {
		return result[V]{value: value}, nil
	}

	fetchCtx := ctx
	if c.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.opts.FetchTimeout)
		defer cancel()
	}

	log := c.requestLogger(ctx, key)
	c.stats.fetches.Add(1)
	start := time.Now()

	fetched, err := c.fetcher.Fetch(fetchCtx, params)
	if err != nil {
		c.stats.fetchErrors.Add(1)
		if c.opts.StaleOnError && state == Stale {
			c.stats.staleServed.Add(1)
			log.Warn().Err(err).Msg("fetch failed, serving stale entry")
			return result[V]{value: value, stale: true}, nil
		}
		log.Debug().Err(err).Msg("fetch failed")
		return nil, err
	}

	if putErr := c.store.Put(ctx, key, fetched); putErr != nil {
		log.Warn().Err(putErr).Msg("failed to store fetched value")
		return result[V]{value: fetched}, nil
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("cache filled")
	return result[V]{value: c.asStored(fetched, log)}, nil
}

// asStored returns v as a later hit will see it. Normalizing stores hand
// back a JSON tree, so the miss returns the same form.
func (c *Cache[V]) asStored(v V, log *zerolog.Logger) V {
	if !store.Normalizes(c.store) {
		return v
	}
	normalized, err := store.Normalize(v)
	if err != nil {
		log.Warn().Err(err).Msg("normalizing fetched value")
		return v
	}
	stored, err := convert[V](normalized)
	if err != nil {
		log.Warn().Err(err).Msg("normalizing fetched value")
		return v
	}
	return stored
}

// lookup reads key from the store and converts the value to V. Read and
// decode failures are logged and reported as Absent.
func (c *Cache[V]) lookup(ctx context.Context, key string) (V, State) {
	var zero V

	entry, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.requestLogger(ctx, key).Warn().Err(err).Msg("cache read failed, treating as miss")
		}
		return zero, Absent
	}

	value, err := convert[V](entry.Value)
	if err != nil {
		c.requestLogger(ctx, key).Warn().Err(err).Msg("cached value undecodable, treating as miss")
		return zero, Absent
	}

	if entry.IsFresh(c.clock.Now(), c.opts.TTL) {
		return value, Fresh
	}
	return value, Stale
}

func convert[V any](raw any) (V, error) {
	if v, ok := raw.(V); ok {
		return v, nil
	}
	var v V
	if err := store.Decode(raw, &v); err != nil {
		return v, err
	}
	return v, nil
}

func (c *Cache[V]) requestLogger(ctx context.Context, key string) *zerolog.Logger {
	lc := c.logger.With().Str("key", key)
	if id := logging.TraceIDFromContext(ctx); id != "" {
		lc = lc.Str("trace_id", id)
	}
	l := lc.Logger()
	return &l
}

// State reports whether params currently has an absent, fresh or stale
// entry. Unlike Get it returns store read errors.
func (c *Cache[V]) State(ctx context.Context, params keys.Params) (State, error) {
	key, err := c.opts.KeyBuilder.Build(params)
	if err != nil {
		return Absent, err
	}
	return c.KeyState(ctx, key)
}

// KeyState is State for an already built key.
func (c *Cache[V]) KeyState(ctx context.Context, key string) (State, error) {
	entry, err := c.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return Absent, nil
	}
	if err != nil {
		return Absent, err
	}
	if entry.IsFresh(c.clock.Now(), c.opts.TTL) {
		return Fresh, nil
	}
	return Stale, nil
}

// Invalidate removes the entry for params so the next Get fetches again.
func (c *Cache[V]) Invalidate(ctx context.Context, params keys.Params) error {
	key, err := c.opts.KeyBuilder.Build(params)
	if err != nil {
		return err
	}
	return c.InvalidateKey(ctx, key)
}

// InvalidateKey removes the entry stored under key. A fetch already in
// flight for key is forgotten, so later callers start a new one.
func (c *Cache[V]) InvalidateKey(ctx context.Context, key string) error {
	c.group.Forget(key)
	if err := c.store.Remove(ctx, key); err != nil {
		return fmt.Errorf("invalidating %s: %w", key, err)
	}
	return nil
}

// Sweep removes every stale entry this cache owns and returns how many were
// removed. With a namespace, keys outside it are left alone. Each entry is
// read again just before removal and kept if it was refilled meanwhile; a
// refill landing between that read and the removal is still lost.
func (c *Cache[V]) Sweep(ctx context.Context) (int, error) {
	all, err := c.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing cache keys: %w", err)
	}

	now := c.clock.Now()
	removed := 0
	for _, key := range all {
		if !c.Owns(key) {
			continue
		}
		entry, getErr := c.store.Get(ctx, key)
		if errors.Is(getErr, store.ErrNotFound) {
			continue
		}
		if getErr != nil {
			return removed, fmt.Errorf("reading %s: %w", key, getErr)
		}
		if entry.IsFresh(now, c.opts.TTL) {
			continue
		}
		// A Get may have refilled the key since it was read.
		current, getErr := c.store.Get(ctx, key)
		if getErr != nil || !current.StoredAt.Equal(entry.StoredAt) {
			continue
		}
		if rmErr := c.store.Remove(ctx, key); rmErr != nil {
			return removed, fmt.Errorf("removing %s: %w", key, rmErr)
		}
		removed++
	}

	c.logger.Debug().Int("removed", removed).Int("scanned", len(all)).Msg("sweep complete")
	return removed, nil
}

// Owns reports whether key belongs to this cache's namespace. Without a
// namespace every key does.
func (c *Cache[V]) Owns(key string) bool {
	ns := c.opts.KeyBuilder.Namespace
	if ns == "" {
		return true
	}
	return len(key) > len(ns) && key[:len(ns)+1] == ns+":"
}

// Warm calls Get for every params, opts.Concurrency batches at a time.
// A failing fetch does not stop the others; all failures are joined into the
// returned error.
func (c *Cache[V]) Warm(ctx context.Context, params []keys.Params, opts batch.Options) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	runErr := batch.Run(ctx, params, opts, func(ctx context.Context, items []keys.Params, _ int) error {
		for _, p := range items {
			if _, err := c.Get(ctx, p); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	return errors.Join(append([]error{runErr}, errs...)...)
}

// TTL returns the configured TTL.
func (c *Cache[V]) TTL() time.Duration {
	return c.opts.TTL
}

// Store returns the underlying store.
func (c *Cache[V]) Store() store.Store {
	return c.store
}

// Clock returns the clock freshness is judged by.
func (c *Cache[V]) Clock() clock.Clock {
	return c.clock
}

// Close closes the underlying store.
func (c *Cache[V]) Close() error {
	return c.store.Close()
}
