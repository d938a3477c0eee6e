// Package fetcher defines the expensive lookups a fetch cache wraps.
package fetcher

import (
	"context"
	"fmt"

	"github.com/rshade/fetchcache/internal/keys"
)

// Fetcher performs the wrapped lookup for params. Errors are returned to
// the cache caller unchanged; retry policy, if any, lives here.
type Fetcher[V any] interface {
	Fetch(ctx context.Context, params keys.Params) (V, error)
}

// Func adapts a plain function to Fetcher.
type Func[V any] func(ctx context.Context, params keys.Params) (V, error)

// Fetch implements Fetcher.
func (f Func[V]) Fetch(ctx context.Context, params keys.Params) (V, error) {
	return f(ctx, params)
}

// Error is a fetch failure carrying the params that caused it.
type Error struct {
	Params keys.Params
	Err    error
}

func (e *Error) Error() string {
	if url, ok := e.Params["url"].(string); ok {
		return fmt.Sprintf("fetch %s: %v", url, e.Err)
	}
	return fmt.Sprintf("fetch failed: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a fetch failure for params.
func NewError(params keys.Params, err error) error {
	return &Error{Params: params, Err: err}
}
