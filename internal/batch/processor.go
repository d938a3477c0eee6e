package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Default batch processing configuration.
const (
	// DefaultBatchSize is the default number of items per batch.
	DefaultBatchSize = 25

	// MaxBatchSize is the largest accepted batch size.
	MaxBatchSize = 1000

	// DefaultConcurrency is the default number of batches run at once.
	DefaultConcurrency = 4
)

// Common batch processing errors.
var (
	ErrInvalidBatchSize = fmt.Errorf("batch size must be between 1 and %d", MaxBatchSize)
	ErrNilCallback      = errors.New("batch callback cannot be nil")
)

// Callback processes one batch. index is the 0-based batch number.
type Callback[T any] func(ctx context.Context, batch []T, index int) error

// ProgressCallback receives a snapshot after each completed batch. It may be
// called from several goroutines at once.
type ProgressCallback func(snapshot Snapshot)

// Options configures Run. Zero values select the defaults.
type Options struct {
	Size        int
	Concurrency int
	OnProgress  ProgressCallback
}

func (o Options) withDefaults() (Options, error) {
	if o.Size == 0 {
		o.Size = DefaultBatchSize
	}
	if o.Size < 1 || o.Size > MaxBatchSize {
		return o, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, o.Size)
	}
	if o.Concurrency < 1 {
		o.Concurrency = DefaultConcurrency
	}
	return o, nil
}

// Run splits items into batches and calls fn for each, at most
// opts.Concurrency at a time. The first error cancels the context passed to
// the remaining batches and is returned. An empty items slice is a no-op.
func Run[T any](ctx context.Context, items []T, opts Options, fn Callback[T]) error {
	if fn == nil {
		return ErrNilCallback
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	bounds := Bounds(len(items), opts.Size)
	progress := NewProgress(len(items), len(bounds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, b := range bounds {
		if gctx.Err() != nil {
			break
		}
		batch := items[b[0]:b[1]]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, batch, i); err != nil {
				return fmt.Errorf("batch %d failed: %w", i, err)
			}
			snap := progress.Add(len(batch))
			if opts.OnProgress != nil {
				opts.OnProgress(snap)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Bounds returns the [start, end) index pairs of each batch.
func Bounds(total, size int) [][2]int {
	if total <= 0 || size <= 0 {
		return nil
	}
	n := (total + size - 1) / size
	out := make([][2]int, n)
	for i := range n {
		start := i * size
		out[i] = [2]int{start, min(start+size, total)}
	}
	return out
}
