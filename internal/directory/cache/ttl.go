package cache

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TTL configuration constants and defaults.
const (
	// DefaultTTLSeconds is the default snapshot TTL (1 hour).
	DefaultTTLSeconds = 3600

	// MinTTLSeconds is the minimum allowed TTL (1 second).
	MinTTLSeconds = 1

	// MaxTTLSeconds is the maximum allowed TTL (7 days).
	MaxTTLSeconds = 604800

	// EnvTTLSeconds overrides the configured TTL.
	EnvTTLSeconds = "FEDROUTE_CACHE_TTL_SECONDS"

	// EnvCacheEnabled enables or disables the directory cache.
	EnvCacheEnabled = "FEDROUTE_CACHE_ENABLED"

	minutesPerHour = 60
	hoursPerDay    = 24
)

// ErrInvalidTTL is wrapped when a TTL falls outside [MinTTLSeconds, MaxTTLSeconds].
var ErrInvalidTTL = fmt.Errorf("TTL must be between %d and %d seconds", MinTTLSeconds, MaxTTLSeconds)

// Strategy names a cache refresh strategy. Strategies are informational: they document
// how long a snapshot is trusted after a kind of change, and are reported by
// `fedroute config validate`; the store itself only honours the single configured TTL.
type Strategy string

// Refresh strategies.
const (
	StrategyNodeChange     Strategy = "node_change"
	StrategyTimeBased      Strategy = "time_based"
	StrategyConfidenceDrop Strategy = "confidence_drop"
)

// DefaultStrategyTTLs returns the default TTL for each strategy.
func DefaultStrategyTTLs() map[Strategy]time.Duration {
	return map[Strategy]time.Duration{
		StrategyNodeChange:     5 * time.Minute,
		StrategyTimeBased:      24 * time.Hour,
		StrategyConfidenceDrop: 10 * time.Minute,
	}
}

// ValidateTTL checks that seconds is within bounds.
func ValidateTTL(seconds int) error {
	if seconds < MinTTLSeconds || seconds > MaxTTLSeconds {
		return fmt.Errorf("%w: got %d", ErrInvalidTTL, seconds)
	}
	return nil
}

// TTLFromEnv returns the TTL from EnvTTLSeconds, or fallback when the variable is unset
// or invalid. The variable takes seconds or a duration such as "90m"; see ParseTTL.
func TTLFromEnv(fallback int) int {
	envVal := os.Getenv(EnvTTLSeconds)
	if envVal == "" {
		return fallback
	}

	ttl, err := ParseTTL(envVal)
	if err != nil {
		return fallback
	}
	return ttl
}

// EnabledFromEnv returns the EnvCacheEnabled flag, or fallback when unset or invalid.
func EnabledFromEnv(fallback bool) bool {
	envVal := os.Getenv(EnvCacheEnabled)
	if envVal == "" {
		return fallback
	}

	enabled, err := strconv.ParseBool(envVal)
	if err != nil {
		return fallback
	}
	return enabled
}

// FormatDuration formats a duration in a human-readable way.
// Examples: "45s", "30m", "1h30m", "2d".
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

// ParseTTL parses "3600" (seconds) or a duration such as "1h30m" into seconds.
func ParseTTL(s string) (int, error) {
	if seconds, err := strconv.Atoi(s); err == nil {
		if err := ValidateTTL(seconds); err != nil {
			return 0, err
		}
		return seconds, nil
	}

	duration, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid TTL format: %w", err)
	}

	seconds := int(duration.Seconds())
	if err := ValidateTTL(seconds); err != nil {
		return 0, err
	}
	return seconds, nil
}
