// Package domain holds the data model shared by the extraction pipeline:
// batches, source files, image units, attempts and results.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus describes the outcome of a file or a whole batch.
type ProcessingStatus string

const (
	StatusPending ProcessingStatus = "pending"
	StatusSuccess ProcessingStatus = "success"
	StatusPartial ProcessingStatus = "partial"
	StatusFailed  ProcessingStatus = "failed"
)

// FileKind is the detected kind of an uploaded source file.
type FileKind string

const (
	KindPDF     FileKind = "pdf"
	KindImage   FileKind = "image"
	KindArchive FileKind = "archive"
)

// DocumentClass labels returned by the vision extractor. Unknown labels are
// coerced to ClassOther during normalization.
const (
	ClassPANFirm            = "PAN_FIRM"
	ClassPANIndividual      = "PAN_INDIVIDUAL"
	ClassAadhaarIndividual  = "AADHAAR_INDIVIDUAL"
	ClassUdyamRegistration  = "UDYAM_REGISTRATION"
	ClassPartnershipDeed    = "PARTNERSHIP_DEED"
	ClassGSTCertificate     = "GST_CERTIFICATE"
	ClassBankStatement      = "BANK_STATEMENT"
	ClassFinancialStatement = "FINANCIAL_STATEMENT"
	ClassITRIndividual      = "ITR_INDIVIDUAL"
	ClassITRFirm            = "ITR_FIRM"
	ClassOther              = "OTHER"
)

// KnownDocumentClasses is the set of labels the extractor may return.
var KnownDocumentClasses = map[string]bool{
	ClassPANFirm:            true,
	ClassPANIndividual:      true,
	ClassAadhaarIndividual:  true,
	ClassUdyamRegistration:  true,
	ClassPartnershipDeed:    true,
	ClassGSTCertificate:     true,
	ClassBankStatement:      true,
	ClassFinancialStatement: true,
	ClassITRIndividual:      true,
	ClassITRFirm:            true,
	ClassOther:              true,
}

// Sentinel values used in normalized field output.
const (
	// SentinelInvalid marks a field whose raw value failed its checksum or
	// format rule. The raw value is always preserved alongside it.
	SentinelInvalid = "INVALID"
	// SentinelInsufficientData is declared by the remote extractor when a
	// required field is absent from the document.
	SentinelInsufficientData = "INSUFFICIENT_DATA"
)

// Options is the per-request configuration block. Zero values fall back to
// the service defaults at validation time.
type Options struct {
	MaxConcurrentUnits  int           `json:"max_concurrent_units"`
	MaxPagesPerDocument int           `json:"max_pages_per_document"`
	MaxTotalPages       int           `json:"max_total_pages"`
	CallsPerMinute      int           `json:"calls_per_minute"`
	PerCallTimeout      time.Duration `json:"per_call_timeout"`
	MaxRetryAttempts    int           `json:"max_retry_attempts"`
	ModelSelector       string        `json:"model_selector"`
	IncludeRawResponses bool          `json:"include_raw_responses"`
}

// Batch is the unit of one client request. It owns its source files for the
// request lifetime and is discarded once the response is returned.
type Batch struct {
	ID        string
	Files     []*SourceFile
	Options   Options
	CreatedAt time.Time
}

// NewBatch creates an empty batch with a fresh identifier.
func NewBatch(opts Options) *Batch {
	return &Batch{
		ID:        uuid.NewString(),
		Options:   opts,
		CreatedAt: time.Now().UTC(),
	}
}

// TotalUnits counts image units across all files in the batch.
func (b *Batch) TotalUnits() int {
	n := 0
	for _, f := range b.Files {
		n += len(f.Units)
	}
	return n
}

// SourceFile is one uploaded artifact, or one artifact expanded from an
// archive. Archive children carry ParentID for provenance only; the parent
// may be discarded once decomposition completes.
type SourceFile struct {
	ID       string
	Name     string
	Kind     FileKind
	Units    []*ImageUnit
	Status   ProcessingStatus
	ParentID string

	// DecompositionErr is set when the file could not be decomposed at all;
	// unit processing never starts for such a file.
	DecompositionErr *Error
}

// NewSourceFile creates a pending source file.
func NewSourceFile(name string, kind FileKind) *SourceFile {
	return &SourceFile{
		ID:     uuid.NewString(),
		Name:   name,
		Kind:   kind,
		Status: StatusPending,
	}
}

// ImageUnit is the atomic work item: one page or one image. The payload
// handle is an on-disk path; bytes are read once per attempt and never held
// between attempts, bounding peak memory independent of retry count.
type ImageUnit struct {
	ID        string
	FileID    string
	Position  int // 1-based, unique and contiguous within the file
	ImagePath string
	SizeBytes int64

	// Attempts is append-only history; entries are never mutated once
	// recorded.
	Attempts []Attempt
}

// NewImageUnit creates a unit owned by the given file.
func NewImageUnit(fileID string, position int, imagePath string, size int64) *ImageUnit {
	return &ImageUnit{
		ID:        uuid.NewString(),
		FileID:    fileID,
		Position:  position,
		ImagePath: imagePath,
		SizeBytes: size,
	}
}

// RecordAttempt appends one attempt to the unit's history.
func (u *ImageUnit) RecordAttempt(a Attempt) {
	u.Attempts = append(u.Attempts, a)
}

// AttemptOutcome is the terminal state of a single attempt.
type AttemptOutcome string

const (
	AttemptSuccess   AttemptOutcome = "success"
	AttemptRetryable AttemptOutcome = "retryable_failure"
	AttemptTerminal  AttemptOutcome = "terminal_failure"
)

// Attempt records one try of sending a unit to the external service.
type Attempt struct {
	Number     int
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    AttemptOutcome
	Category   FailureCategory
	Cost       float64
}

// Duration is the wall time spent on this attempt.
func (a Attempt) Duration() time.Duration {
	return a.FinishedAt.Sub(a.StartedAt)
}

// Source records where a field value was read from in the original document.
type Source struct {
	FileName   string `json:"file_name,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

// Field is one extracted datapoint: the raw text as seen in the document,
// the normalized canonical value, the extractor's confidence and provenance.
type Field struct {
	Value           string  `json:"value"`
	NormalizedValue string  `json:"normalized_value"`
	Confidence      float64 `json:"confidence"`
	Source          Source  `json:"source,omitempty"`
}

// Table is one structured table extracted from a document page.
type Table struct {
	Title          string     `json:"title,omitempty"`
	Headers        []string   `json:"headers"`
	Rows           [][]string `json:"rows"`
	RowConfidences []float64  `json:"row_confidences"`
}

// ExtractionResult is the normalized output for one successfully processed
// image unit. Immutable once produced.
type ExtractionResult struct {
	DocumentClass     string           `json:"document_class"`
	Entities          map[string]Field `json:"entities"`
	Tables            []Table          `json:"tables,omitempty"`
	TextContent       string           `json:"text_content,omitempty"`
	OverallConfidence float64          `json:"overall_confidence"`

	// Defects lists field-level problems found while normalizing; they never
	// invalidate the result as a whole.
	Defects []string `json:"defects,omitempty"`
}

// UnitResult pairs a unit with either its extraction result or its terminal
// error, exactly one of which is set.
type UnitResult struct {
	UnitID         string            `json:"unit_id"`
	Position       int               `json:"position"`
	Result         *ExtractionResult `json:"result,omitempty"`
	Error          *Error            `json:"error,omitempty"`
	Attempts       int               `json:"attempts"`
	ProcessingTime time.Duration     `json:"processing_time"`
	Cost           float64           `json:"cost"`

	// RawResponse is the last raw payload, retained only when the request
	// asked for it (diagnostics for malformed responses).
	RawResponse string `json:"raw_response,omitempty"`
}

// Succeeded reports whether the unit produced an extraction result.
func (r UnitResult) Succeeded() bool { return r.Result != nil }

// FileOutcome aggregates one source file's unit results in position order.
type FileOutcome struct {
	FileID         string           `json:"file_id"`
	FileName       string           `json:"file_name"`
	Kind           FileKind         `json:"kind"`
	ParentID       string           `json:"parent_id,omitempty"`
	Status         ProcessingStatus `json:"status"`
	PageCount      int              `json:"page_count"`
	Units          []UnitResult     `json:"units"`
	Errors         []*Error         `json:"errors,omitempty"`
	ProcessingTime time.Duration    `json:"processing_time"`
	Cost           float64          `json:"cost"`
}

// Summary carries batch-level totals.
type Summary struct {
	TotalProcessingTime time.Duration `json:"total_processing_time"`
	APICallsMade        int           `json:"api_calls_made"`
	EstimatedCost       float64       `json:"estimated_cost"`
	SuccessRate         float64       `json:"success_rate"`
}

// BatchResult is the full response for one client request.
type BatchResult struct {
	BatchID        string           `json:"batch_id"`
	Status         ProcessingStatus `json:"status"`
	TotalDocuments int              `json:"total_documents"`
	TotalPages     int              `json:"total_pages"`
	Files          []FileOutcome    `json:"files"`
	Summary        Summary          `json:"summary"`
}
