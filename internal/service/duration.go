package service

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// DurationSource yields how long one rolling or smoking step takes.
type DurationSource func() time.Duration

// Fixed always returns d.
func Fixed(d time.Duration) DurationSource {
	return func() time.Duration { return d }
}

// NormalDuration approximates a normal distribution by summing twelve
// uniform samples, clamped to [0, 2*mean]. A zero stddev returns mean.
func NormalDuration(mean, stddev time.Duration, seed uint64) DurationSource {
	if stddev <= 0 || mean <= 0 {
		return Fixed(max(mean, 0))
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(seed, ^seed))
	return func() time.Duration {
		mu.Lock()
		sum := 0.0
		for i := 0; i < 12; i++ {
			sum += rng.Float64()
		}
		mu.Unlock()
		d := mean + time.Duration((sum-6)*float64(stddev))
		return min(max(d, 0), 2*mean)
	}
}

// pause sleeps for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
