package cli

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rshade/fetchcache/internal/fetchcache"
	"github.com/rshade/fetchcache/internal/tui"
)

// errNotTerminal is returned by watch when stdout is not a terminal.
var errNotTerminal = errors.New("watch requires an interactive terminal; use 'fetchcache keys' instead")

// cacheSource adapts a cache to the tui.Source the keys view reads.
type cacheSource struct {
	cache *fetchcache.Cache[any]
}

func (s cacheSource) Rows(ctx context.Context) ([]tui.Row, error) {
	rows, err := collectRows(ctx, s.cache)
	if err != nil {
		return nil, err
	}
	now := s.cache.Clock().Now()
	out := make([]tui.Row, len(rows))
	for i, r := range rows {
		out[i] = tui.Row{Key: r.Key, State: r.State.String(), Age: relTime(r.StoredAt, now)}
	}
	return out, nil
}

func (s cacheSource) Invalidate(ctx context.Context, key string) error {
	return s.cache.InvalidateKey(ctx, key)
}

func (s cacheSource) Sweep(ctx context.Context) (int, error) {
	return s.cache.Sweep(ctx)
}

// newWatchCmd creates the watch command showing a live key list.
func newWatchCmd(s *session) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Interactively watch, invalidate and sweep cached keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isWriterTerminal(cmd.OutOrStdout()) {
				return errNotTerminal
			}
			return s.withCache(cmd, func(ctx context.Context, c *fetchcache.Cache[any]) error {
				model := tui.NewKeysModel(ctx, cacheSource{cache: c}, interval)
				p := tea.NewProgram(model,
					tea.WithContext(ctx),
					tea.WithOutput(cmd.OutOrStdout()),
					tea.WithInput(cmd.InOrStdin()),
					tea.WithAltScreen(),
				)
				_, err := p.Run()
				return err
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "refresh interval")
	return cmd
}
