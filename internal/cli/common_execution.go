package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/fetchcache/internal/config"
	"github.com/rshade/fetchcache/internal/fetchcache"
	"github.com/rshade/fetchcache/internal/fetcher"
	"github.com/rshade/fetchcache/internal/logging"
)

// loadConfig resolves configuration from defaults, the config file (flag,
// then FETCHCACHE_CONFIG), the environment, and finally the flags.
func (s *session) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.New()

	path := s.flags.configPath
	if path == "" {
		if v, ok := s.lookupEnv(config.EnvConfig); ok {
			path = v
		}
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(s.lookupEnv); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if cmd.Flags().Changed("backing") {
		cfg.Cache.Backing = s.flags.backing
	}
	if cmd.Flags().Changed("ttl") {
		ttl, err := config.ParseTTL(s.flags.ttl)
		if err != nil {
			return nil, fmt.Errorf("--ttl: %w", err)
		}
		cfg.Cache.TTL = config.Duration(ttl)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openCache opens the configured store behind a cache of generic JSON values
// fetched over HTTP.
func (s *session) openCache(ctx context.Context) (*fetchcache.Cache[any], error) {
	log := logging.FromContext(ctx)

	c, err := fetchcache.Open[any](ctx, s.cfg.Cache, &fetcher.HTTPJSON[any]{}, *log)
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Str("backing", s.cfg.Cache.Backing).Msg("failed to open cache")
		return nil, err
	}
	log.Debug().Ctx(ctx).
		Str("backing", s.cfg.Cache.Backing).
		Str("ttl", config.FormatDuration(c.TTL())).
		Msg("cache opened")
	return c, nil
}

// withCache opens the cache, runs fn, and closes the cache.
func (s *session) withCache(cmd *cobra.Command, fn func(ctx context.Context, c *fetchcache.Cache[any]) error) error {
	ctx := cmd.Context()
	c, err := s.openCache(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			logging.FromContext(ctx).Warn().Err(closeErr).Msg("closing cache store")
		}
	}()

	start := time.Now()
	err = fn(ctx, c)
	stats := c.Stats()
	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("command", cmd.Name()).
		Int64("hits", stats.Hits).
		Int64("misses", stats.Misses).
		Int64("fetches", stats.Fetches).
		Dur("duration", time.Since(start)).
		Msg("command finished")
	return err
}
