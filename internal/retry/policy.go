// Package retry decides whether a failed external call should be attempted
// again and how long to wait first.
package retry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
)

// Decision is the outcome of consulting the policy after a failed attempt.
type Decision struct {
	Retry bool
	After time.Duration
}

// Policy computes backoff for retryable failures. Attempt numbering starts
// at 1; a unit makes at most MaxAttempts+1 calls in total.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // fraction of the delay, in [0,1]

	mu  sync.Mutex
	rng *rand.Rand
}

// New builds a policy with the given bounds and a time-seeded jitter source.
func New(maxAttempts int, base, max time.Duration, jitter float64) *Policy {
	return &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   base,
		MaxDelay:    max,
		Jitter:      jitter,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSeeded builds a policy with a fixed jitter seed, for tests.
func NewSeeded(maxAttempts int, base, max time.Duration, jitter float64, seed int64) *Policy {
	p := New(maxAttempts, base, max, jitter)
	p.rng = rand.New(rand.NewSource(seed))
	return p
}

// Decide reports whether the attempt numbered attempt (the one that just
// failed) should be followed by another, and the delay before it.
// retryAfterHint is the server-provided wait for rate-limited failures; the
// larger of hint and computed backoff wins so we never hammer a throttling
// server sooner than it asked.
func (p *Policy) Decide(attempt int, category domain.FailureCategory, retryAfterHint time.Duration) Decision {
	if !category.Retryable() {
		return Decision{}
	}
	if attempt > p.MaxAttempts {
		return Decision{}
	}

	delay := p.backoff(attempt)
	if category == domain.FailRateLimited && retryAfterHint > delay {
		delay = retryAfterHint
	}
	return Decision{Retry: true, After: delay}
}

// backoff returns BaseDelay*2^(attempt-1) capped at MaxDelay, plus a random
// jitter fraction.
func (p *Policy) backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}

	if p.Jitter > 0 {
		p.mu.Lock()
		f := p.rng.Float64()
		p.mu.Unlock()
		d += time.Duration(f * p.Jitter * float64(d))
	}
	return d
}
