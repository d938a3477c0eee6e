package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rshade/fetchcache/internal/fetchcache"
	"github.com/rshade/fetchcache/internal/logging"
)

// newInvalidateCmd creates the invalidate command removing entries by key.
func newInvalidateCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <key>...",
		Short: "Remove cached entries so the next read fetches again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withCache(cmd, func(ctx context.Context, c *fetchcache.Cache[any]) error {
				for _, key := range args {
					if err := c.InvalidateKey(ctx, key); err != nil {
						return err
					}
					logging.FromContext(ctx).Debug().Ctx(ctx).Str("key", key).Msg("entry invalidated")
				}
				printer().Fprintf(cmd.OutOrStdout(), "Invalidated %d entries\n", len(args))
				return nil
			})
		},
	}
}

// newSweepCmd creates the sweep command removing stale entries.
func newSweepCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove every stale entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withCache(cmd, func(ctx context.Context, c *fetchcache.Cache[any]) error {
				removed, err := c.Sweep(ctx)
				if err != nil {
					return err
				}
				printer().Fprintf(cmd.OutOrStdout(), "Removed %d stale entries\n", removed)
				return nil
			})
		},
	}
}
