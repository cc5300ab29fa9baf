package config

import (
	"strings"
	"time"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeRetryBackoff converts arbitrary user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RetryBackoffFixed):
		return RetryBackoffFixed
	case string(RetryBackoffLinear):
		return RetryBackoffLinear
	case string(RetryBackoffExponential):
		return RetryBackoffExponential
	default:
		return ""
	}
}

// RetryConfig configures retries for transient failures in checkout and publish.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff,omitempty"`
	Initial    string           `yaml:"initial,omitempty"`
	Max        string           `yaml:"max,omitempty"`
	MaxRetries int              `yaml:"max_retries,omitempty"`
}

func (r *RetryConfig) applyDefaults() {
	if r.Backoff == "" {
		r.Backoff = RetryBackoffLinear
	}
	if r.Initial == "" {
		r.Initial = "1s"
	}
	if r.Max == "" {
		r.Max = "30s"
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 2
	}
}

// InitialDuration returns the parsed initial backoff delay.
func (r RetryConfig) InitialDuration() time.Duration {
	d, err := time.ParseDuration(r.Initial)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// MaxDuration returns the parsed backoff cap.
func (r RetryConfig) MaxDuration() time.Duration {
	d, err := time.ParseDuration(r.Max)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
