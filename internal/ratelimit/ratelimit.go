package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
}

// PauseLimiter sleeps between two consecutive requests to the marketplace.
// With min == max the pause is fixed; otherwise a random pause in [min, max)
// is drawn each time.
type PauseLimiter struct {
	minDelay time.Duration
	maxDelay time.Duration
	mu       sync.Mutex
	rnd      *rand.Rand
}

func NewFixed(delay time.Duration) *PauseLimiter {
	return NewPauseLimiter(delay, delay)
}

func NewPauseLimiter(minDelay, maxDelay time.Duration) *PauseLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &PauseLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait sleeps for the configured pause or until ctx is done.
func (r *PauseLimiter) Wait(ctx context.Context) error {
	delay := r.calculateDelay()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *PauseLimiter) calculateDelay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.minDelay == r.maxDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	return r.minDelay + time.Duration(r.rnd.Int63n(int64(delta)))
}
