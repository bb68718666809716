// Package throttle holds the pacing policy of one API family: a shared request rate limiter
// plus the pauses applied between pages and between fan-out chunks.
package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/tigerroll/congresso/pkg/batch/core/config"
)

// Pacer is safe for concurrent use. The zero value does not pace at all.
type Pacer struct {
	name       string
	limiter    *rate.Limiter
	pagePause  time.Duration
	chunkPause time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewPacer builds the pacer of an API family.
func NewPacer(name string, cfg config.PacingConfig) *Pacer {
	p := &Pacer{
		name:       name,
		pagePause:  time.Duration(cfg.PagePauseMs) * time.Millisecond,
		chunkPause: time.Duration(cfg.ChunkPauseMs) * time.Millisecond,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return p
}

// Unpaced returns a pacer that never waits.
func Unpaced(name string) *Pacer {
	return &Pacer{name: name}
}

// Name returns the API family name.
func (p *Pacer) Name() string {
	if p == nil {
		return ""
	}
	return p.name
}

// Wait blocks until the limiter admits one request.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// PagePause waits the configured pause between two pages.
func (p *Pacer) PagePause(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	return pause(ctx, p.pagePause)
}

// ChunkPause returns the pause between two fan-out chunks.
func (p *Pacer) ChunkPause() time.Duration {
	if p == nil {
		return 0
	}
	return p.chunkPause
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
