package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/fetchcache/internal/fetchcache"
	"github.com/rshade/fetchcache/internal/store"
)

// newKeysCmd creates the keys command listing every stored entry.
func newKeysCmd(s *session) *cobra.Command {
	var staleOnly bool

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List cached keys with their age and freshness",
		Example: `  # List every key
  fetchcache keys

  # Only stale entries
  fetchcache keys --stale`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withCache(cmd, func(ctx context.Context, c *fetchcache.Cache[any]) error {
				rows, err := collectRows(ctx, c)
				if err != nil {
					return err
				}
				if staleOnly {
					filtered := rows[:0]
					for _, r := range rows {
						if r.State == fetchcache.Stale {
							filtered = append(filtered, r)
						}
					}
					rows = filtered
				}
				return renderKeys(cmd.OutOrStdout(), rows, c.Clock().Now())
			})
		},
	}

	cmd.Flags().BoolVar(&staleOnly, "stale", false, "only list stale entries")
	return cmd
}

func collectRows(ctx context.Context, c *fetchcache.Cache[any]) ([]keyRow, error) {
	st := c.Store()
	all, err := st.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}

	now := c.Clock().Now()
	rows := make([]keyRow, 0, len(all))
	for _, key := range all {
		entry, getErr := st.Get(ctx, key)
		if errors.Is(getErr, store.ErrNotFound) {
			continue
		}
		if getErr != nil {
			return nil, fmt.Errorf("reading %s: %w", key, getErr)
		}
		state := fetchcache.Stale
		if entry.IsFresh(now, c.TTL()) {
			state = fetchcache.Fresh
		}
		rows = append(rows, keyRow{
			Key:      key,
			State:    state,
			StoredAt: entry.StoredAt,
			Expires:  entry.Expiry(c.TTL()),
		})
	}
	return rows, nil
}

// entryView is the YAML shape printed by show.
type entryView struct {
	Key      string `yaml:"key"`
	State    string `yaml:"state"`
	StoredAt string `yaml:"storedAt"`
	Age      string `yaml:"age"`
	Expires  string `yaml:"expires"`
	Size     string `yaml:"size"`
	Value    any    `yaml:"value"`
}

// newShowCmd creates the show command printing one entry as YAML.
func newShowCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print a cached entry as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withCache(cmd, func(ctx context.Context, c *fetchcache.Cache[any]) error {
				entry, err := c.Store().Get(ctx, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no entry for key %s", args[0])
				}
				if err != nil {
					return err
				}

				value, err := store.Normalize(entry.Value)
				if err != nil {
					return err
				}
				encoded, err := json.Marshal(value)
				if err != nil {
					return err
				}

				now := c.Clock().Now()
				state := fetchcache.Stale
				if entry.IsFresh(now, c.TTL()) {
					state = fetchcache.Fresh
				}
				view := entryView{
					Key:      entry.Key,
					State:    state.String(),
					StoredAt: entry.StoredAt.Format(time.RFC3339Nano),
					Age:      relTime(entry.StoredAt, now),
					Expires:  relTime(entry.Expiry(c.TTL()), now),
					Size:     humanize.Bytes(uint64(len(encoded))),
					Value:    value,
				}

				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(view); err != nil {
					return err
				}
				return enc.Close()
			})
		},
	}
}
