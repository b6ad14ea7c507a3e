package store

import (
	"context"
	"time"
)

// Retry is the pause schedule used to re-establish a lost live query.
type Retry struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetry starts at one second and doubles up to thirty.
var DefaultRetry = Retry{BaseDelay: time.Second, MaxDelay: 30 * time.Second}

// Delay returns the pause before the given 1-based attempt.
func (r Retry) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := r.BaseDelay
	for i := 1; i < attempt && d < r.MaxDelay; i++ {
		d *= 2
	}
	if r.MaxDelay > 0 && d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

// Follow drives a live query until ctx is done. follow blocks while the
// subscription is healthy and returns nil on a clean stop. After an error
// Follow waits and calls reopen until it succeeds, then follows again.
// lost is called before every wait.
func Follow(ctx context.Context, r Retry, follow, reopen func(context.Context) error, lost func(err error, attempt int, delay time.Duration)) {
	for {
		err := follow(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}
		for attempt := 1; ; attempt++ {
			delay := r.Delay(attempt)
			if lost != nil {
				lost(err, attempt, delay)
			}
			if !sleepCtx(ctx, delay) {
				return
			}
			if err = reopen(ctx); err == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
