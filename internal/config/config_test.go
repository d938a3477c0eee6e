package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/fetchcache/internal/config"
	"github.com/rshade/fetchcache/internal/logging"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestNew_Defaults(t *testing.T) {
	cfg := config.New()

	assert.Equal(t, config.DefaultTTL, cfg.Cache.TTL.Std())
	assert.Equal(t, config.DefaultFetchTimeout, cfg.Cache.FetchTimeout.Std())
	assert.False(t, cfg.Cache.StaleOnError)
	assert.NotEmpty(t, cfg.Cache.Backing)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
cache:
  ttl: 90
  backing: memory
  stale_on_error: true
  fetch_timeout: 5s
logging:
  level: debug
`)

	cfg := config.New()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, 90*time.Second, cfg.Cache.TTL.Std())
	assert.Equal(t, "memory", cfg.Cache.Backing)
	assert.True(t, cfg.Cache.StaleOnError)
	assert.Equal(t, 5*time.Second, cfg.Cache.FetchTimeout.Std())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format, "absent fields keep defaults")
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := config.New()
	require.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := writeFile(t, "bad.yaml", "cache:\n  ttl: soon\n")
	err := cfg.LoadFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestApplyEnv(t *testing.T) {
	cfg := config.New()
	err := cfg.ApplyEnv(envMap(map[string]string{
		config.EnvTTL:          "2h",
		config.EnvBacking:      "sqlite:///tmp/c.db",
		config.EnvStaleOnError: "true",
		config.EnvFetchTimeout: "3s",
		config.EnvNamespace:    "jwks",
		config.EnvLogLevel:     "warn",
		config.EnvLogFormat:    "json",
	}))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Cache.TTL.Std())
	assert.Equal(t, "sqlite:///tmp/c.db", cfg.Cache.Backing)
	assert.True(t, cfg.Cache.StaleOnError)
	assert.Equal(t, 3*time.Second, cfg.Cache.FetchTimeout.Std())
	assert.Equal(t, "jwks", cfg.Cache.Namespace)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"ttl too small", map[string]string{config.EnvTTL: "0"}},
		{"ttl garbage", map[string]string{config.EnvTTL: "forever"}},
		{"stale flag", map[string]string{config.EnvStaleOnError: "maybe"}},
		{"fetch timeout", map[string]string{config.EnvFetchTimeout: "10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, config.New().ApplyEnv(envMap(tt.env)))
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	base := writeFile(t, "base.yaml", "cache:\n  ttl: 10m\n  backing: memory\n  stale_on_error: true\n")
	overlay := writeFile(t, "overlay.yaml", "cache:\n  ttl: 20m\nunknown: 1\n")
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cfg, err := config.Load(base, overlay)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Minute, cfg.Cache.TTL.Std())
	assert.False(t, cfg.Cache.StaleOnError, "overlay replaces the whole cache section")
	assert.NotEqual(t, "memory", cfg.Cache.Backing)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeFile(t, "c.yaml", "cache:\n  ttl: 1ms\nlogging:\n  format: xml\n")
	_, err := config.Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidTTL)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestShallowMergeYAML(t *testing.T) {
	require.Error(t, config.ShallowMergeYAML(nil, "x"))

	cfg := config.New()
	empty := writeFile(t, "empty.yaml", "# nothing\n")
	require.NoError(t, config.ShallowMergeYAML(cfg, empty))
	assert.Equal(t, config.New().Cache, cfg.Cache)

	logOnly := writeFile(t, "log.yaml", "logging:\n  level: trace\n  file: /tmp/fc.log\n")
	require.NoError(t, config.ShallowMergeYAML(cfg, logOnly))
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, config.DefaultTTL, cfg.Cache.TTL.Std())
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"3600", time.Hour, false},
		{"90s", 90 * time.Second, false},
		{"1h30m", 90 * time.Minute, false},
		{" 1m ", time.Minute, false},
		{"", 0, true},
		{"500ms", 0, true},
		{"31d", 0, true},
		{"721h", 0, true},
		{"9223372037", 0, true},
		{"18446744075", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := config.ParseTTL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Second counts whose nanoseconds overflow must not wrap back into range.
func TestParseTTL_Overflow(t *testing.T) {
	for _, in := range []string{"9223372037", "18446744075", "-18446744075"} {
		_, err := config.ParseTTL(in)
		assert.ErrorIs(t, err, config.ErrInvalidTTL, in)
	}

	path := writeFile(t, "config.yaml", "cache:\n  ttl: 18446744075\n")
	err := config.New().LoadFile(path)
	require.ErrorIs(t, err, config.ErrInvalidTTL)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", config.FormatDuration(45*time.Second))
	assert.Equal(t, "30m", config.FormatDuration(30*time.Minute))
	assert.Equal(t, "2h", config.FormatDuration(2*time.Hour))
	assert.Equal(t, "1h30m", config.FormatDuration(90*time.Minute))
	assert.Equal(t, "2d", config.FormatDuration(48*time.Hour))
	assert.Equal(t, "1d6h", config.FormatDuration(30*time.Hour))
}

func TestDuration_YAML(t *testing.T) {
	cfg := config.New()
	cfg.Cache.TTL = config.Duration(5 * time.Minute)
	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "ttl: 5m0s")
}

func TestToLoggingConfig(t *testing.T) {
	lc := config.LoggingConfig{Level: "debug", Format: "json"}
	got := lc.ToLoggingConfig()
	assert.Equal(t, logging.OutputStderr, got.Output)
	assert.Equal(t, "debug", got.Level)

	lc.File = "/tmp/fc.log"
	got = lc.ToLoggingConfig()
	assert.Equal(t, logging.OutputFile, got.Output)
	assert.Equal(t, "/tmp/fc.log", got.File)
}
