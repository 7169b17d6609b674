package coordinator

import (
	"fmt"
	"time"
)

// Retry policy defaults.
const (
	DefaultRetryMultiplier  = 2
	DefaultRetryMaxFailures = 3
)

// RetryPolicy schedules a one-off retry after a failed refresh instead of
// waiting for the next interval tick.
//
// The delay is always Multiplier × Timeout. It does not grow with the
// failure count. Once MaxFailures consecutive failures have been recorded
// the coordinator reports itself unavailable and stops scheduling one-off
// retries; normal interval polling continues until a fetch succeeds.
type RetryPolicy struct {
	// Timeout bounds each fetch and is the unit of the retry delay.
	Timeout time.Duration

	// Multiplier applied to Timeout to get the retry delay. Default: 2.
	Multiplier int

	// MaxFailures is the number of consecutive failures after which the
	// data source is considered unavailable. Default: 3.
	MaxFailures int
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Multiplier == 0 {
		p.Multiplier = DefaultRetryMultiplier
	}
	if p.MaxFailures == 0 {
		p.MaxFailures = DefaultRetryMaxFailures
	}
	return p
}

func (p RetryPolicy) validate() error {
	if p.Timeout <= 0 {
		return fmt.Errorf("%w: retry timeout must be positive, got %v", ErrConfiguration, p.Timeout)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("%w: retry multiplier must be at least 1, got %d", ErrConfiguration, p.Multiplier)
	}
	if p.MaxFailures < 1 {
		return fmt.Errorf("%w: retry max failures must be at least 1, got %d", ErrConfiguration, p.MaxFailures)
	}
	return nil
}

// Delay returns the fixed delay before a one-off retry.
func (p RetryPolicy) Delay() time.Duration {
	return time.Duration(p.Multiplier) * p.Timeout
}

// ShouldRetry reports whether a one-off retry follows the given number of
// consecutive failures.
func (p RetryPolicy) ShouldRetry(failures int) bool {
	return failures > 0 && failures < p.MaxFailures
}

// Exhausted reports whether failures has reached the unavailability threshold.
func (p RetryPolicy) Exhausted(failures int) bool {
	return failures >= p.MaxFailures
}
