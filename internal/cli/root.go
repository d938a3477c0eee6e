// Package cli implements the fetchcache diagnostic command line.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rshade/fetchcache/internal/config"
	"github.com/rshade/fetchcache/internal/logging"
	"github.com/rshade/fetchcache/pkg/version"
)

// logger is the package-level logger for CLI operations.
var logger = zerolog.Nop() //nolint:gochecknoglobals // Required for zerolog context integration

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	backing    string
	ttl        string
	debug      bool
}

// session is the state built once per invocation by the root pre-run hook.
type session struct {
	lookupEnv func(string) (string, bool)
	flags     globalFlags
	cfg       *config.Config
	logResult *logging.LogPathResult
}

// NewRootCmd creates the root command for the fetchcache CLI.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command with an explicit environment
// lookup for testability.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	s := &session{lookupEnv: lookupEnv}

	cmd := &cobra.Command{
		Use:           "fetchcache",
		Short:         "Inspect and maintain a time-bounded fetch cache",
		Long:          "fetchcache: list, inspect, invalidate and sweep entries of a TTL cache, or fetch JSON through it.",
		Version:       version.Display(ver),
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := s.loadConfig(cmd)
			if err != nil {
				return err
			}
			s.cfg = cfg

			result := setupLogging(cmd, cfg.Logging, s.flags.debug)
			s.logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return cleanupLogging(s.logResult)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&s.flags.configPath, "config", "", "config file (default $"+config.EnvConfig+")")
	pf.StringVar(&s.flags.backing, "backing", "", "store: memory, a file path, sqlite://<path> or s3://bucket/prefix")
	pf.StringVar(&s.flags.ttl, "ttl", "", "cache TTL in seconds or as a duration (overrides config and env)")
	pf.BoolVar(&s.flags.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newKeysCmd(s),
		newShowCmd(s),
		newInvalidateCmd(s),
		newSweepCmd(s),
		newGetCmd(s),
		newWatchCmd(s),
		newConfigCmd(s),
	)
	return cmd
}

const rootCmdExample = `  # List cached keys with their age and freshness
  fetchcache keys --backing ~/.cache/fetchcache/cache.yaml

  # Fetch a JWKS document, answering from the cache while it is fresh
  fetchcache get https://accounts.example.com/.well-known/jwks.json --ttl 10m

  # Remove every stale entry from a SQLite-backed cache
  fetchcache sweep --backing sqlite:///var/cache/fetchcache.db

  # Show the effective configuration
  fetchcache config show`
