package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TTL bounds accepted from configuration.
const (
	// DefaultTTL is the cache TTL when none is configured.
	DefaultTTL = time.Hour

	// MinTTL is the smallest TTL accepted from configuration.
	MinTTL = time.Second

	// MaxTTL is the largest TTL accepted from configuration (30 days).
	MaxTTL = 30 * 24 * time.Hour

	minutesPerHour = 60
	hoursPerDay    = 24
)

// ErrInvalidTTL reports a TTL outside [MinTTL, MaxTTL].
var ErrInvalidTTL = fmt.Errorf("TTL must be between %s and %s", MinTTL, MaxTTL)

// ParseTTL parses a TTL given either as integer seconds ("3600") or as a Go
// duration ("1h", "90s", "1h30m").
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidTTL)
	}

	var d time.Duration
	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		secs, secErr := secondsToDuration(seconds)
		if secErr != nil {
			return 0, secErr
		}
		d = secs
	} else {
		parsed, parseErr := time.ParseDuration(s)
		if parseErr != nil {
			return 0, fmt.Errorf("invalid TTL format %q: %w", s, parseErr)
		}
		d = parsed
	}

	if err := ValidateTTL(d); err != nil {
		return 0, err
	}
	return d, nil
}

// maxDurationSeconds is the largest whole-second count a time.Duration holds.
const maxDurationSeconds = int64(math.MaxInt64 / time.Second)

// secondsToDuration converts seconds without overflowing time.Duration.
func secondsToDuration(seconds int64) (time.Duration, error) {
	if seconds > maxDurationSeconds || seconds < -maxDurationSeconds {
		return 0, fmt.Errorf("%w: %d seconds is out of range", ErrInvalidTTL, seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

// ValidateTTL checks d against the configured bounds.
func ValidateTTL(d time.Duration) error {
	if d < MinTTL || d > MaxTTL {
		return fmt.Errorf("%w: got %s", ErrInvalidTTL, d)
	}
	return nil
}

// FormatDuration formats a duration compactly: "45s", "30m", "1h30m", "2d".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	if d < hoursPerDay*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % minutesPerHour
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	days := int(d.Hours()) / hoursPerDay
	hours := int(d.Hours()) % hoursPerDay
	if hours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd%dh", days, hours)
}

// Duration is a time.Duration that reads from YAML as seconds or a duration
// string and writes back as a duration string.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if seconds, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
		secs, secErr := secondsToDuration(seconds)
		if secErr != nil {
			return fmt.Errorf("line %d: %w", node.Line, secErr)
		}
		*d = Duration(secs)
		return nil
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
