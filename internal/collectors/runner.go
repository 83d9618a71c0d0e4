package collectors

import (
	"context"
	"time"

	"github.com/hetulpatel/arbwatch/internal/logging"
)

// RunLoop calls cycleFn, then waits interval before the next call. A failed
// cycle waits retryDelay instead so a broken upstream does not spin.
// It returns when ctx is cancelled.
func RunLoop(ctx context.Context, name string, interval, retryDelay time.Duration, cycleFn func(context.Context) error) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		wait := interval
		if err := cycleFn(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Errorf("[%s] cycle failed: %v", name, err)
			wait = retryDelay
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
