// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backoff retries rate-limited generation backend calls with
// exponential backoff, honoring server-suggested delays when present.
package backoff

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/permit-engine/pkg/types"
)

// retrySafetyMargin is added to a server-suggested delay before waiting.
const retrySafetyMargin = time.Second

// rateLimitIndicators classify an error as rate limiting by substring match.
var rateLimitIndicators = []string{
	"429",
	"RESOURCE_EXHAUSTED",
	"rate limit",
	"quota exceeded",
	"too many requests",
}

// Server-suggested delay patterns: an explicit retryDelay field, or a
// "retry in Ns" phrase anywhere in the message.
var (
	retryDelayFieldPattern = regexp.MustCompile(`retryDelay.*?(\d+\.?\d*)\s*s`)
	retryInPattern         = regexp.MustCompile(`(?i)retry in (\d+\.?\d*)\s*s`)
)

// OnRetry is invoked before each wait with the attempt number (1-based), the
// computed delay, and a human-readable reason. Diagnostics only; it must not
// affect control flow.
type OnRetry func(attempt int, delay time.Duration, reason string)

// Controller executes generation backend calls with automatic retry on
// rate-limit errors. Retry state is per-invocation; a Controller is safe for
// concurrent use.
type Controller struct {
	cfg types.RetryConfig

	// OnRetry observes waits. Optional.
	OnRetry OnRetry

	// sleep waits for the computed delay. Tests substitute a recorder to
	// avoid real sleeps. The wait holds no locks.
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Controller with defaults applied to zero-value config fields.
func New(cfg types.RetryConfig) *Controller {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	if cfg.Factor <= 0 {
		cfg.Factor = 2.0
	}
	return &Controller{cfg: cfg, sleep: sleepContext}
}

// Execute runs call, retrying on rate-limit-classified errors with backoff.
// Non-rate-limit errors are returned immediately without retrying. After the
// retry budget is exhausted the last error is returned. When retrying is
// disabled the first failure is fatal.
func (c *Controller) Execute(ctx context.Context, call func() (string, error)) (string, error) {
	if c.cfg.Disabled {
		return call()
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !IsRateLimited(err) || attempt >= c.cfg.MaxRetries {
			return "", err
		}

		delay := c.delayFor(attempt, err.Error())
		reason := "rate limited (attempt " + strconv.Itoa(attempt+1) + "/" + strconv.Itoa(c.cfg.MaxRetries) + ")"
		if c.OnRetry != nil {
			c.OnRetry(attempt+1, delay, reason)
		}

		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// delayFor prefers the server-suggested delay plus a safety margin, falling
// back to exponential backoff. Both paths are capped at MaxDelay.
func (c *Controller) delayFor(attempt int, errMsg string) time.Duration {
	if server, ok := ParseRetryDelay(errMsg); ok {
		return minDuration(server+retrySafetyMargin, c.cfg.MaxDelay)
	}
	backoff := time.Duration(float64(c.cfg.BaseDelay) * math.Pow(c.cfg.Factor, float64(attempt)))
	return minDuration(backoff, c.cfg.MaxDelay)
}

// IsRateLimited reports whether err carries a rate-limit signature.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, indicator := range rateLimitIndicators {
		if strings.Contains(msg, strings.ToLower(indicator)) {
			return true
		}
	}
	return false
}

// ParseRetryDelay extracts a server-suggested delay from an error message.
// It tolerates both a retryDelay field ('retryDelay': '15s') and a
// "retry in 15.01s" phrase.
func ParseRetryDelay(msg string) (time.Duration, bool) {
	for _, pattern := range []*regexp.Regexp{retryDelayFieldPattern, retryInPattern} {
		if m := pattern.FindStringSubmatch(msg); m != nil {
			seconds, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			return time.Duration(seconds * float64(time.Second)), true
		}
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
