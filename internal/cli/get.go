package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/fetchcache/internal/fetchcache"
	"github.com/rshade/fetchcache/internal/keys"
)

// newGetCmd creates the get command fetching a JSON URL through the cache.
func newGetCmd(s *session) *cobra.Command {
	var showKey bool

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Fetch a JSON document through the cache and print it",
		Example: `  # Served from the cache while fresh
  fetchcache get https://accounts.example.com/.well-known/jwks.json

  # Print the cache key as well
  fetchcache get https://api.example.com/users/1 --show-key`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := keys.URL(args[0])
			if err != nil {
				return err
			}

			return s.withCache(cmd, func(ctx context.Context, c *fetchcache.Cache[any]) error {
				value, getErr := c.Get(ctx, params)
				if getErr != nil {
					return getErr
				}

				if showKey {
					key, keyErr := keys.Builder{Namespace: s.cfg.Cache.Namespace}.Build(params)
					if keyErr != nil {
						return keyErr
					}
					source := "fetched"
					if c.Stats().Hits > 0 {
						source = "cached"
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "key: %s (%s)\n", key, source)
				}

				out, marshalErr := json.MarshalIndent(value, "", "  ")
				if marshalErr != nil {
					return fmt.Errorf("encoding value: %w", marshalErr)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showKey, "show-key", false, "print the cache key and whether the value was cached to stderr")
	return cmd
}
