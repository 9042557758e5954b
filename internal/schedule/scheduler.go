// Package schedule runs image units through the external vision service on
// a bounded worker pool, applying the shared rate limiter and the retry
// policy per unit.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
	"github.com/MechanicalMaster/Universal-Classifier/internal/extract"
	"github.com/MechanicalMaster/Universal-Classifier/internal/metrics"
	"github.com/MechanicalMaster/Universal-Classifier/internal/ratelimit"
	"github.com/MechanicalMaster/Universal-Classifier/internal/retry"
	"github.com/MechanicalMaster/Universal-Classifier/internal/vision"
)

// Executor performs one external call for a unit. Implemented by
// vision.Client; faked in tests.
type Executor interface {
	Execute(ctx context.Context, unit *domain.ImageUnit, model string) (vision.CallResult, error)
}

// UnitOutcome pairs a unit with its final result, emitted in completion
// order.
type UnitOutcome struct {
	Unit   *domain.ImageUnit
	Result domain.UnitResult
}

// Config tunes one scheduler run.
type Config struct {
	Workers             int
	Model               string
	IncludeRawResponses bool
}

// Scheduler owns the worker pool for one batch. A unit failing never affects
// its siblings; every queued unit gets exactly one outcome.
type Scheduler struct {
	cfg     Config
	exec    Executor
	limiter *ratelimit.Limiter
	policy  *retry.Policy
	tracker *metrics.Tracker
	logger  zerolog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a scheduler.
func New(cfg Config, exec Executor, limiter *ratelimit.Limiter, policy *retry.Policy, tracker *metrics.Tracker, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		exec:    exec,
		limiter: limiter,
		policy:  policy,
		tracker: tracker,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// Run processes all units and returns a channel of outcomes closed once
// every unit has one. The queue is loaded and closed up front; workers drain
// it until empty. After cancellation, undispatched units still drain with a
// prompt cancelled outcome rather than hanging.
func (s *Scheduler) Run(ctx context.Context, units []*domain.ImageUnit) <-chan UnitOutcome {
	out := make(chan UnitOutcome, len(units))
	queue := make(chan *domain.ImageUnit, len(units))
	for _, u := range units {
		queue <- u
	}
	close(queue)

	workers := s.cfg.Workers
	if workers > len(units) {
		workers = len(units)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range queue {
				if ctx.Err() != nil {
					out <- UnitOutcome{Unit: u, Result: domain.UnitResult{
						UnitID:   u.ID,
						Position: u.Position,
						Error:    domain.CancelledError("batch cancelled before unit was dispatched"),
					}}
					continue
				}
				out <- UnitOutcome{Unit: u, Result: s.process(ctx, u)}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// process drives one unit's attempt state machine to a final result. Every
// attempt re-acquires a rate limit permit; image bytes are re-read by the
// executor per call.
func (s *Scheduler) process(ctx context.Context, u *domain.ImageUnit) domain.UnitResult {
	started := time.Now()
	res := domain.UnitResult{UnitID: u.ID, Position: u.Position}

	log := s.logger.With().Str("unit_id", u.ID).Str("file_id", u.FileID).Int("position", u.Position).Logger()

	var lastErr *domain.Error
	var lastRaw string

	for attempt := 1; ; attempt++ {
		if err := s.limiter.Acquire(ctx); err != nil {
			lastErr = domain.CancelledError("batch cancelled while waiting for a rate limit permit")
			break
		}

		began := time.Now()
		call, execErr := s.exec.Execute(ctx, u, s.cfg.Model)
		finished := time.Now()

		var derr *domain.Error
		if execErr != nil {
			derr = domain.AsError(execErr)
			if derr.RawPayload != "" {
				lastRaw = derr.RawPayload
			}
		} else {
			res.Cost += call.Cost
			lastRaw = call.Content

			parsed, perr := extract.Parse(call.Content)
			if perr == nil {
				a := domain.Attempt{
					Number:     attempt,
					StartedAt:  began,
					FinishedAt: finished,
					Outcome:    domain.AttemptSuccess,
					Cost:       call.Cost,
				}
				u.RecordAttempt(a)
				s.tracker.Record(a)

				res.Result = parsed
				res.Attempts = attempt
				res.ProcessingTime = time.Since(started)
				if s.cfg.IncludeRawResponses {
					res.RawResponse = lastRaw
				}
				log.Debug().Int("attempt", attempt).Str("class", parsed.DocumentClass).Msg("unit extracted")
				return res
			}
			derr = perr
		}

		outcome := domain.AttemptTerminal
		if derr.Category.Retryable() {
			outcome = domain.AttemptRetryable
		}
		a := domain.Attempt{
			Number:     attempt,
			StartedAt:  began,
			FinishedAt: finished,
			Outcome:    outcome,
			Category:   derr.Category,
			Cost:       call.Cost,
		}
		u.RecordAttempt(a)
		s.tracker.Record(a)
		lastErr = derr
		res.Attempts = attempt

		decision := s.policy.Decide(attempt, derr.Category, derr.RetryAfter)
		if !decision.Retry {
			log.Warn().Int("attempt", attempt).Str("category", string(derr.Category)).Msg("unit failed permanently")
			break
		}

		log.Debug().
			Int("attempt", attempt).
			Str("category", string(derr.Category)).
			Dur("backoff", decision.After).
			Msg("attempt failed, retrying")
		if err := s.sleep(ctx, decision.After); err != nil {
			lastErr = domain.CancelledError("batch cancelled during retry backoff")
			break
		}
	}

	res.Error = lastErr
	res.ProcessingTime = time.Since(started)
	if s.cfg.IncludeRawResponses {
		res.RawResponse = lastRaw
	}
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
