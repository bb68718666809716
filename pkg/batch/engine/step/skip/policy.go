// Package skip decides which per-item failures of a fan-out are downgraded to warnings.
package skip

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/tigerroll/congresso/pkg/batch/core/config"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
)

// SkipPolicy classifies item errors. Implementations are safe for concurrent use.
type SkipPolicy interface {
	// ShouldSkip reports whether err is skippable and, if so, consumes one unit of the skip budget.
	ShouldSkip(err error) bool
	// CanSkip reports whether the skip budget is not exhausted.
	CanSkip() bool
	// GetSkipCount returns the number of skipped items so far.
	GetSkipCount() int
	// GetSkipLimit returns the configured limit; 0 means unlimited.
	GetSkipLimit() int
}

// DefaultSkipPolicyFactory creates SkipPolicy instances from configuration.
type DefaultSkipPolicyFactory struct{}

// NewDefaultSkipPolicyFactory creates a new DefaultSkipPolicyFactory.
func NewDefaultSkipPolicyFactory() *DefaultSkipPolicyFactory {
	return &DefaultSkipPolicyFactory{}
}

// Create validates the exception names and builds a fresh policy. Build one per run.
func (f *DefaultSkipPolicyFactory) Create(cfg config.ItemSkipConfig) (SkipPolicy, error) {
	for _, name := range cfg.SkippableExceptions {
		if !exception.IsErrorTypeRegistered(name) {
			return nil, errors.Newf("skip policy references unknown exception %q", name)
		}
	}
	return &defaultSkipPolicy{
		skipLimit:           cfg.SkipLimit,
		skippableExceptions: cfg.SkippableExceptions,
	}, nil
}

type defaultSkipPolicy struct {
	mu                  sync.Mutex
	skipLimit           int
	skippableExceptions []string
	currentSkipCount    int
}

// ShouldSkip matches err against the configured exception names only. A BatchError's own
// skippable flag is not enough: transport failures are skippable at the batch level but still
// count as failures of the item.
func (p *defaultSkipPolicy) ShouldSkip(err error) bool {
	if err == nil {
		return false
	}
	matched := false
	for _, typeName := range p.skippableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.skipLimit > 0 && p.currentSkipCount >= p.skipLimit {
		return false
	}
	p.currentSkipCount++
	return true
}

func (p *defaultSkipPolicy) CanSkip() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipLimit <= 0 || p.currentSkipCount < p.skipLimit
}

func (p *defaultSkipPolicy) GetSkipCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentSkipCount
}

func (p *defaultSkipPolicy) GetSkipLimit() int {
	return p.skipLimit
}

var _ SkipPolicy = (*defaultSkipPolicy)(nil)
