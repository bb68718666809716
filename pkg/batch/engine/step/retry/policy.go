// Package retry implements the bounded retry executor used around every upstream request.
package retry

import (
	"math"

	"github.com/tigerroll/congresso/pkg/batch/core/config"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
)

// RetryPolicy decides whether and when a failed attempt is retried.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// GetBackoffInterval returns the wait in milliseconds after the given attempt (starting from 1).
	GetBackoffInterval(attempt int) int
	// GetMaxAttempts returns the maximum number of attempts, including the first one.
	GetMaxAttempts() int
}

// DefaultRetryPolicyFactory creates policies from configuration.
type DefaultRetryPolicyFactory struct{}

// NewDefaultRetryPolicyFactory creates a new DefaultRetryPolicyFactory.
func NewDefaultRetryPolicyFactory() *DefaultRetryPolicyFactory {
	return &DefaultRetryPolicyFactory{}
}

// Create builds a policy from a RetryConfig. A Factor of 0 or 1 keeps the interval fixed.
func (f *DefaultRetryPolicyFactory) Create(cfg config.RetryConfig) RetryPolicy {
	return newPolicy(cfg.MaxAttempts, cfg.InitialInterval).withBackoff(cfg.Factor, cfg.MaxInterval)
}

// NewFixedRetryPolicy retries every non-permanent error maxAttempts times, waiting intervalMs between attempts.
func NewFixedRetryPolicy(maxAttempts, intervalMs int) RetryPolicy {
	return newPolicy(maxAttempts, intervalMs)
}

func newPolicy(maxAttempts, intervalMs int) *defaultRetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if intervalMs < 0 {
		intervalMs = 0
	}
	return &defaultRetryPolicy{maxAttempts: maxAttempts, initialInterval: intervalMs, factor: 1}
}

type defaultRetryPolicy struct {
	maxAttempts     int
	initialInterval int
	maxInterval     int
	factor          float64
}

func (p *defaultRetryPolicy) withBackoff(factor float64, maxInterval int) *defaultRetryPolicy {
	if factor > 1 {
		p.factor = factor
	}
	p.maxInterval = maxInterval
	return p
}

func (p *defaultRetryPolicy) GetMaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry retries everything except errors no retry can fix: see exception.IsPermanent.
func (p *defaultRetryPolicy) ShouldRetry(err error) bool {
	return err != nil && !exception.IsPermanent(err)
}

func (p *defaultRetryPolicy) GetBackoffInterval(attempt int) int {
	if p.factor <= 1 || attempt <= 1 {
		return p.initialInterval
	}
	interval := float64(p.initialInterval) * math.Pow(p.factor, float64(attempt-1))
	if p.maxInterval > 0 && interval > float64(p.maxInterval) {
		return p.maxInterval
	}
	return int(interval)
}

var _ RetryPolicy = (*defaultRetryPolicy)(nil)
