// Package metrics accumulates per-batch processing counters.
package metrics

import (
	"sync"
	"time"

	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
)

// Counters is a point-in-time copy of a tracker's totals.
type Counters struct {
	APICalls           int
	Successes          int
	RetryableFails     int
	TerminalFails      int
	Retries            int
	FailuresByCategory map[domain.FailureCategory]int
	EstimatedCost      float64
	CallTime           time.Duration
	StartedAt          time.Time
	Elapsed            time.Duration
}

// Tracker counts external calls and their outcomes for one batch, from the
// moment the batch is accepted. Safe for concurrent use by the worker pool.
type Tracker struct {
	mu      sync.Mutex
	started time.Time
	c       Counters
}

// NewTracker creates an empty tracker; elapsed time counts from now.
func NewTracker() *Tracker {
	return &Tracker{started: time.Now()}
}

// Record folds one completed attempt into the totals. Attempts beyond the
// first for a unit count as retries; failed attempts are also tallied per
// failure category.
func (t *Tracker) Record(a domain.Attempt) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.c.APICalls++
	t.c.EstimatedCost += a.Cost
	t.c.CallTime += a.Duration()
	if a.Number > 1 {
		t.c.Retries++
	}

	switch a.Outcome {
	case domain.AttemptSuccess:
		t.c.Successes++
		return
	case domain.AttemptRetryable:
		t.c.RetryableFails++
	case domain.AttemptTerminal:
		t.c.TerminalFails++
	}
	if t.c.FailuresByCategory == nil {
		t.c.FailuresByCategory = make(map[domain.FailureCategory]int)
	}
	t.c.FailuresByCategory[a.Category]++
}

// Snapshot returns a copy of the current totals with elapsed wall time since
// the tracker was created.
func (t *Tracker) Snapshot() Counters {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.c
	c.FailuresByCategory = make(map[domain.FailureCategory]int, len(t.c.FailuresByCategory))
	for cat, n := range t.c.FailuresByCategory {
		c.FailuresByCategory[cat] = n
	}
	c.StartedAt = t.started
	c.Elapsed = time.Since(t.started)
	return c
}
