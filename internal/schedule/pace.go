package schedule

import (
	"context"
	"sync"
	"time"
)

// Pacer decides how long to hold between chunks. Wait must return early
// with ctx.Err() when the context is cancelled so a stopped run does not
// leak its pacing sleeps.
type Pacer interface {
	Wait(ctx context.Context) error
}

// FixedDelay pauses a constant duration between chunks. A zero or
// negative delay is a no-op.
type FixedDelay time.Duration

func (d FixedDelay) Wait(ctx context.Context) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TokenBucket paces chunks with a refilling token bucket, allowing short
// bursts while holding a steady average rate.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastTime time.Time
}

// NewTokenBucket creates a bucket holding up to maxBurst tokens refilled
// at ratePerMinute.
func NewTokenBucket(maxBurst int, ratePerMinute float64) *TokenBucket {
	if maxBurst <= 0 {
		maxBurst = 5
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 30
	}
	return &TokenBucket{
		tokens:   float64(maxBurst),
		max:      float64(maxBurst),
		rate:     ratePerMinute / 60.0,
		lastTime: time.Now(),
	}
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.max {
			tb.tokens = tb.max
		}
		tb.lastTime = now

		if tb.tokens >= 1.0 {
			tb.tokens -= 1.0
			tb.mu.Unlock()
			return nil
		}

		waitSec := (1.0 - tb.tokens) / tb.rate
		tb.mu.Unlock()

		timer := time.NewTimer(time.Duration(waitSec * float64(time.Second)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
