// Package transfer moves source files to their File-Copy destination.
package transfer

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum delay between two transfers.
// One Throttle is owned by the caller that orchestrates an ingestion run and is
// shared by every File-Copy adapter of that run.
type Throttle struct {
	mu    sync.Mutex
	last  time.Time
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewThrottle creates a throttle that has not seen any transfer yet.
func NewThrottle() *Throttle {
	return &Throttle{
		now:   time.Now,
		sleep: sleepContext,
	}
}

// Wait blocks until minInterval has elapsed since the previous transfer and
// records the current time as the start of the next one.
func (t *Throttle) Wait(ctx context.Context, minInterval time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if minInterval > 0 && !t.last.IsZero() {
		if remaining := minInterval - t.now().Sub(t.last); remaining > 0 {
			if err := t.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	t.last = t.now()
	return nil
}

// Last returns the start time of the previous transfer
func (t *Throttle) Last() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
