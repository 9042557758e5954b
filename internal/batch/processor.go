// Package batch orchestrates one request end to end: decompose the uploads,
// schedule the units against the vision service, aggregate the outcomes.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/MechanicalMaster/Universal-Classifier/internal/aggregate"
	"github.com/MechanicalMaster/Universal-Classifier/internal/config"
	"github.com/MechanicalMaster/Universal-Classifier/internal/decompose"
	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
	"github.com/MechanicalMaster/Universal-Classifier/internal/metrics"
	"github.com/MechanicalMaster/Universal-Classifier/internal/observability"
	"github.com/MechanicalMaster/Universal-Classifier/internal/ratelimit"
	"github.com/MechanicalMaster/Universal-Classifier/internal/retry"
	"github.com/MechanicalMaster/Universal-Classifier/internal/schedule"
	"github.com/MechanicalMaster/Universal-Classifier/internal/vision"
)

// ErrBatchRejected marks request-level validation failures; the batch never
// starts processing. ErrBatchTooLarge narrows it to size-cap exceedance (too
// many files, too many pages) so the API can answer 413 instead of 400.
var (
	ErrBatchRejected = errors.New("batch rejected")
	ErrBatchTooLarge = fmt.Errorf("%w: too large", ErrBatchRejected)
)

// Processor runs batches. The rate limiter is shared across all batches in
// the process; everything else is per batch.
type Processor struct {
	cfg     config.Config
	limiter *ratelimit.Limiter
	logger  zerolog.Logger

	// newExecutor builds the external caller for one batch; swapped in tests.
	newExecutor func(perCallTimeout time.Duration) schedule.Executor
}

// NewProcessor creates a processor using the real vision client.
func NewProcessor(cfg config.Config, limiter *ratelimit.Limiter, logger zerolog.Logger) *Processor {
	p := &Processor{cfg: cfg, limiter: limiter, logger: logger}
	p.newExecutor = func(perCallTimeout time.Duration) schedule.Executor {
		return vision.NewClient(cfg.Vision.BaseURL, cfg.Vision.APIKey(), perCallTimeout,
			observability.Component(logger, "vision"))
	}
	return p
}

// Process runs one batch to completion and returns the aggregated result.
// Request options override service defaults but may only tighten limits.
// Partial and even total unit failure still produce a result; only requests
// that fail validation up front return an error.
func (p *Processor) Process(ctx context.Context, inputs []decompose.Input, reqOpts domain.Options, notify Notifier) (*domain.BatchResult, error) {
	opts, err := p.resolveOptions(reqOpts)
	if err != nil {
		return nil, err
	}
	if len(inputs) > p.cfg.Limits.MaxFilesPerBatch {
		return nil, fmt.Errorf("%w: %d files uploaded, limit is %d", ErrBatchTooLarge, len(inputs), p.cfg.Limits.MaxFilesPerBatch)
	}

	b := domain.NewBatch(opts)
	tracker := metrics.NewTracker()
	log := p.logger.With().Str("batch_id", b.ID).Logger()

	workDir := filepath.Join(p.cfg.Server.UploadDir, "batch-"+b.ID)
	defer os.RemoveAll(workDir)

	dec := decompose.New(workDir, p.cfg.Limits.MaxFileSizeMB, opts.MaxPagesPerDocument,
		observability.Component(log, "decompose"))
	for _, in := range inputs {
		b.Files = append(b.Files, dec.Decompose(ctx, in)...)
	}

	totalUnits := b.TotalUnits()
	if totalUnits > opts.MaxTotalPages {
		return nil, fmt.Errorf("%w: batch expands to %d pages, limit is %d", ErrBatchTooLarge, totalUnits, opts.MaxTotalPages)
	}

	if opts.CallsPerMinute != p.cfg.Limits.CallsPerMinute {
		// The limiter is shared process-wide; per-request rates are advisory.
		log.Warn().
			Int("requested", opts.CallsPerMinute).
			Int("effective", p.cfg.Limits.CallsPerMinute).
			Msg("per-request calls_per_minute ignored, service rate applies")
	}

	log.Info().
		Int("files", len(b.Files)).
		Int("units", totalUnits).
		Str("model", opts.ModelSelector).
		Msg("batch started")
	notify.emit(Event{Kind: EventBatchStarted, BatchID: b.ID, TotalUnits: totalUnits})

	var units []*domain.ImageUnit
	for _, f := range b.Files {
		units = append(units, f.Units...)
	}

	sched := schedule.New(
		schedule.Config{
			Workers:             opts.MaxConcurrentUnits,
			Model:               opts.ModelSelector,
			IncludeRawResponses: opts.IncludeRawResponses,
		},
		p.newExecutor(opts.PerCallTimeout),
		p.limiter,
		retry.New(opts.MaxRetryAttempts, p.cfg.Retry.BaseDelay, p.cfg.Retry.MaxDelay, p.cfg.Retry.Jitter),
		tracker,
		observability.Component(log, "schedule"),
	)

	results := make(map[string]domain.UnitResult, len(units))
	completed := 0
	for o := range sched.Run(ctx, units) {
		results[o.Result.UnitID] = o.Result
		completed++
		notify.emit(Event{
			Kind:           EventUnitCompleted,
			BatchID:        b.ID,
			TotalUnits:     totalUnits,
			CompletedUnits: completed,
			UnitID:         o.Result.UnitID,
			Position:       o.Result.Position,
			Succeeded:      o.Result.Succeeded(),
		})
	}

	res := aggregate.Build(b, results, tracker.Snapshot())
	notify.emit(Event{Kind: EventBatchFinished, BatchID: b.ID, TotalUnits: totalUnits, CompletedUnits: completed, Status: res.Status})

	log.Info().
		Str("status", string(res.Status)).
		Int("api_calls", res.Summary.APICallsMade).
		Float64("success_rate", res.Summary.SuccessRate).
		Dur("elapsed", res.Summary.TotalProcessingTime).
		Msg("batch finished")
	return &res, nil
}

// resolveOptions merges request options onto the service defaults. Zero
// values take the default; explicit values are validated and may not exceed
// the service caps.
func (p *Processor) resolveOptions(o domain.Options) (domain.Options, error) {
	limits := p.cfg.Limits

	if o.MaxConcurrentUnits == 0 {
		o.MaxConcurrentUnits = limits.MaxConcurrentUnits
	}
	if o.MaxPagesPerDocument == 0 {
		o.MaxPagesPerDocument = limits.MaxPagesPerDocument
	}
	if o.MaxTotalPages == 0 {
		o.MaxTotalPages = limits.MaxTotalPages
	}
	if o.CallsPerMinute == 0 {
		o.CallsPerMinute = limits.CallsPerMinute
	}
	if o.PerCallTimeout == 0 {
		o.PerCallTimeout = p.cfg.Vision.PerCallTimeout
	}
	if o.MaxRetryAttempts == 0 {
		o.MaxRetryAttempts = p.cfg.Retry.MaxAttempts
	}
	if o.ModelSelector == "" {
		o.ModelSelector = p.cfg.Vision.Model
	}

	switch {
	case o.MaxConcurrentUnits < 0 || o.MaxRetryAttempts < 0 || o.CallsPerMinute < 0:
		return o, fmt.Errorf("%w: options must be non-negative", ErrBatchRejected)
	case o.PerCallTimeout < 0:
		return o, fmt.Errorf("%w: per_call_timeout must be non-negative", ErrBatchRejected)
	case o.MaxPagesPerDocument > limits.MaxPagesPerDocument:
		return o, fmt.Errorf("%w: max_pages_per_document %d exceeds service cap %d", ErrBatchRejected, o.MaxPagesPerDocument, limits.MaxPagesPerDocument)
	case o.MaxTotalPages > limits.MaxTotalPages:
		return o, fmt.Errorf("%w: max_total_pages %d exceeds service cap %d", ErrBatchRejected, o.MaxTotalPages, limits.MaxTotalPages)
	case o.MaxPagesPerDocument < 0 || o.MaxTotalPages < 0:
		return o, fmt.Errorf("%w: page limits must be non-negative", ErrBatchRejected)
	}
	return o, nil
}
