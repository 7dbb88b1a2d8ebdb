package engine

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// pacer keeps a minimum idle gap between the end of one render and the start
// of the next. It is a one-token bucket refilled once per gap: done drains
// the token when a render ends and wait blocks until it has refilled.
type pacer struct {
	limiter *rate.Limiter
	gap     time.Duration
}

func newPacer(gap time.Duration) *pacer {
	if gap <= 0 {
		return &pacer{}
	}
	return &pacer{limiter: rate.NewLimiter(rate.Every(gap), 1), gap: gap}
}

// wait blocks until a full gap has passed since the last done, or ctx ends.
// The token is left in place; done takes it.
func (p *pacer) wait(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}

	missing := 1 - p.limiter.Tokens()
	if missing <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(time.Duration(missing * float64(p.gap)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// done starts a new gap. Reserve always takes the token, even when it has
// not fully refilled, so the next wait is measured from now.
func (p *pacer) done() {
	if p.limiter == nil {
		return
	}
	p.limiter.Reserve()
}
