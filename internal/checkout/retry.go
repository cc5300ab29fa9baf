package checkout

import (
	"fmt"
	"log/slog"
	"time"
)

// withRetry wraps an operation with retry logic based on the client policy.
// Permanent errors short-circuit; transient errors back off per the policy,
// scaled by the error's own backoff hint (rate limits wait longer).
func (c *Client) withRetry(op, name string, fn func() (string, error)) (string, error) {
	if c.policy.MaxRetries <= 0 {
		return fn()
	}
	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying git operation", "operation", op, "name", name, "attempt", attempt)
		}
		c.inRetry = true
		path, err := fn()
		c.inRetry = false
		if err == nil {
			return path, nil
		}
		lastErr = err
		if IsPermanent(err) {
			slog.Error("permanent git error", "operation", op, "name", name, "error", err.Error())
			return "", err
		}
		if attempt == c.policy.MaxRetries {
			break
		}
		time.Sleep(c.policy.DelayFor(attempt+1, err))
	}
	return "", fmt.Errorf("git %s failed after retries: %w", op, lastErr)
}
