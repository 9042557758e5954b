package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
)

func TestTerminalCategoriesNeverRetry(t *testing.T) {
	p := NewSeeded(3, time.Second, time.Minute, 0, 1)
	for _, cat := range []domain.FailureCategory{
		domain.FailTerminalRemote,
		domain.FailCancelled,
		domain.FailCorruptFile,
		domain.FailUnsupportedFormat,
	} {
		d := p.Decide(1, cat, 0)
		assert.False(t, d.Retry, string(cat))
	}
}

func TestAttemptBudgetExhausted(t *testing.T) {
	p := NewSeeded(3, time.Second, time.Minute, 0, 1)

	for attempt := 1; attempt <= 3; attempt++ {
		assert.True(t, p.Decide(attempt, domain.FailTimeout, 0).Retry, "attempt %d", attempt)
	}
	assert.False(t, p.Decide(4, domain.FailTimeout, 0).Retry)
}

func TestZeroMaxAttemptsMeansSingleCall(t *testing.T) {
	p := NewSeeded(0, time.Second, time.Minute, 0, 1)
	assert.False(t, p.Decide(1, domain.FailTransientNetwork, 0).Retry)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	p := NewSeeded(10, time.Second, 8*time.Second, 0, 1)

	assert.Equal(t, 1*time.Second, p.Decide(1, domain.FailTransientNetwork, 0).After)
	assert.Equal(t, 2*time.Second, p.Decide(2, domain.FailTransientNetwork, 0).After)
	assert.Equal(t, 4*time.Second, p.Decide(3, domain.FailTransientNetwork, 0).After)
	assert.Equal(t, 8*time.Second, p.Decide(4, domain.FailTransientNetwork, 0).After)
	assert.Equal(t, 8*time.Second, p.Decide(5, domain.FailTransientNetwork, 0).After)
}

func TestJitterStaysWithinBound(t *testing.T) {
	p := NewSeeded(10, time.Second, time.Minute, 0.2, 42)

	for i := 0; i < 50; i++ {
		d := p.Decide(1, domain.FailTransientNetwork, 0)
		assert.GreaterOrEqual(t, d.After, time.Second)
		assert.LessOrEqual(t, d.After, 1200*time.Millisecond)
	}
}

func TestJitterVaries(t *testing.T) {
	p := NewSeeded(10, time.Second, time.Minute, 0.5, 7)

	seen := map[time.Duration]bool{}
	for i := 0; i < 20; i++ {
		seen[p.Decide(1, domain.FailTransientNetwork, 0).After] = true
	}
	assert.Greater(t, len(seen), 1, "jitter should produce distinct delays")
}

func TestRateLimitedHonorsLargerServerHint(t *testing.T) {
	p := NewSeeded(3, time.Second, time.Minute, 0, 1)

	d := p.Decide(1, domain.FailRateLimited, 30*time.Second)
	assert.True(t, d.Retry)
	assert.Equal(t, 30*time.Second, d.After)

	// A hint smaller than the backoff does not shorten the wait.
	d = p.Decide(3, domain.FailRateLimited, time.Millisecond)
	assert.Equal(t, 4*time.Second, d.After)
}

func TestHintIgnoredForOtherCategories(t *testing.T) {
	p := NewSeeded(3, time.Second, time.Minute, 0, 1)
	d := p.Decide(1, domain.FailTimeout, 30*time.Second)
	assert.Equal(t, time.Second, d.After)
}
