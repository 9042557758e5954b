package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchTotalUnits(t *testing.T) {
	b := NewBatch(Options{})
	f1 := NewSourceFile("a.pdf", KindPDF)
	f1.Units = []*ImageUnit{
		NewImageUnit(f1.ID, 1, "/tmp/p1.jpg", 100),
		NewImageUnit(f1.ID, 2, "/tmp/p2.jpg", 100),
	}
	f2 := NewSourceFile("b.png", KindImage)
	f2.Units = []*ImageUnit{NewImageUnit(f2.ID, 1, "/tmp/b.png", 50)}
	b.Files = []*SourceFile{f1, f2}

	assert.Equal(t, 3, b.TotalUnits())
}

func TestRecordAttemptAppendOnly(t *testing.T) {
	u := NewImageUnit("file-1", 1, "/tmp/p.jpg", 10)
	start := time.Now()
	u.RecordAttempt(Attempt{Number: 1, StartedAt: start, FinishedAt: start.Add(time.Second), Outcome: AttemptRetryable, Category: FailTimeout})
	u.RecordAttempt(Attempt{Number: 2, StartedAt: start.Add(2 * time.Second), FinishedAt: start.Add(3 * time.Second), Outcome: AttemptSuccess})

	require.Len(t, u.Attempts, 2)
	assert.Equal(t, 1, u.Attempts[0].Number)
	assert.Equal(t, AttemptRetryable, u.Attempts[0].Outcome)
	assert.Equal(t, time.Second, u.Attempts[0].Duration())
	assert.Equal(t, AttemptSuccess, u.Attempts[1].Outcome)
}

func TestFailureCategoryRetryable(t *testing.T) {
	retryable := []FailureCategory{FailTransientNetwork, FailRateLimited, FailTimeout, FailMalformedResponse}
	for _, c := range retryable {
		assert.True(t, c.Retryable(), string(c))
	}
	terminal := []FailureCategory{FailTerminalRemote, FailCancelled, FailCorruptFile, FailUnsupportedFormat}
	for _, c := range terminal {
		assert.False(t, c.Retryable(), string(c))
	}
}

func TestErrorWrappingAndCategory(t *testing.T) {
	cause := errors.New("connection reset")
	err := TransientError("call failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, FailTransientNetwork, CategoryOf(err))

	wrapped := fmt.Errorf("worker: %w", err)
	assert.Equal(t, FailTransientNetwork, CategoryOf(wrapped))

	var de *Error
	require.ErrorAs(t, wrapped, &de)
	assert.Equal(t, "call failed", de.Message)
}

func TestCategoryOfUntypedDefaultsToTransient(t *testing.T) {
	assert.Equal(t, FailTransientNetwork, CategoryOf(errors.New("boom")))
}

func TestRateLimitedErrorCarriesHint(t *testing.T) {
	err := RateLimitedError("429 from upstream", 15*time.Second)
	assert.Equal(t, FailRateLimited, err.Category)
	assert.Equal(t, 15*time.Second, err.RetryAfter)
}

func TestMalformedErrorRetainsPayload(t *testing.T) {
	err := MalformedError("no documents array", `{"oops":true}`, nil)
	assert.Equal(t, FailMalformedResponse, err.Category)
	assert.Equal(t, `{"oops":true}`, err.RawPayload)
}

func TestUnitResultSucceeded(t *testing.T) {
	ok := UnitResult{Result: &ExtractionResult{DocumentClass: ClassOther}}
	bad := UnitResult{Error: CancelledError("batch cancelled")}
	assert.True(t, ok.Succeeded())
	assert.False(t, bad.Succeeded())
}
