// Package ratelimit provides the process-wide admission gate for calls to
// the external vision service.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Usage is a point-in-time view of the limiter for status reporting.
type Usage struct {
	Limit        int       `json:"limit"`
	Remaining    int       `json:"remaining"`
	NextPermitAt time.Time `json:"next_permit_at"`
}

// Limiter is a token bucket sized in calls per minute. Refill is continuous
// rather than per minute window, so capacity never arrives as a burst at a
// window boundary. All workers share one Limiter; concurrent Acquire calls
// are serialized internally and no permit is ever issued twice.
type Limiter struct {
	mu     sync.Mutex
	cap    float64
	level  float64
	rate   float64 // permits per second
	last   time.Time
	now    func() time.Time
	ticker func(ctx context.Context, d time.Duration) error
}

// New creates a limiter with the given calls-per-minute capacity.
func New(callsPerMinute int) (*Limiter, error) {
	if callsPerMinute <= 0 {
		return nil, fmt.Errorf("ratelimit: calls per minute must be positive, got %d", callsPerMinute)
	}
	l := &Limiter{
		cap:  float64(callsPerMinute),
		rate: float64(callsPerMinute) / 60.0,
		now:  time.Now,
	}
	l.level = l.cap
	l.last = l.now()
	l.ticker = sleepCtx
	return l, nil
}

// NewWithClock creates a limiter driven by an injected clock and sleeper,
// for deterministic tests.
func NewWithClock(callsPerMinute int, now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) (*Limiter, error) {
	l, err := New(callsPerMinute)
	if err != nil {
		return nil, err
	}
	l.now = now
	l.last = now()
	l.ticker = sleep
	return l, nil
}

// Acquire blocks until one permit is available or ctx is done. It is the
// only way work reaches the external service; retries must re-acquire.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		l.refillLocked()
		if l.level >= 1 {
			l.level--
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - l.level) / l.rate * float64(time.Second))
		l.mu.Unlock()

		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		if err := l.ticker(ctx, wait); err != nil {
			return err
		}
	}
}

// Snapshot reports remaining whole permits and when the next permit will be
// available if the bucket is empty.
func (l *Limiter) Snapshot() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()

	u := Usage{
		Limit:     int(l.cap),
		Remaining: int(l.level),
	}
	if l.level < 1 {
		wait := time.Duration((1 - l.level) / l.rate * float64(time.Second))
		u.NextPermitAt = l.now().Add(wait)
	} else {
		u.NextPermitAt = l.now()
	}
	return u
}

func (l *Limiter) refillLocked() {
	now := l.now()
	if !now.After(l.last) {
		// Clock went backwards; treat as no elapsed time.
		return
	}
	elapsed := now.Sub(l.last).Seconds()
	l.level += elapsed * l.rate
	if l.level > l.cap {
		l.level = l.cap
	}
	l.last = now
}

// sleepCtx sleeps in short slices so cancellation is observed promptly even
// for long waits.
func sleepCtx(ctx context.Context, d time.Duration) error {
	const step = 200 * time.Millisecond
	for d > 0 {
		s := d
		if s > step {
			s = step
		}
		t := time.NewTimer(s)
		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return ctx.Err()
		case <-t.C:
		}
		d -= s
	}
	return nil
}
