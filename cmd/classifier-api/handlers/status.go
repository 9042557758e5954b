package handlers

import (
	"net/http"
	"time"

	"github.com/MechanicalMaster/Universal-Classifier/internal/config"
	"github.com/MechanicalMaster/Universal-Classifier/internal/ratelimit"
)

// StatusHandler serves health and limit introspection endpoints.
type StatusHandler struct {
	cfg     config.Config
	limiter *ratelimit.Limiter
}

// NewStatusHandler creates the handler.
func NewStatusHandler(cfg config.Config, limiter *ratelimit.Limiter) *StatusHandler {
	return &StatusHandler{cfg: cfg, limiter: limiter}
}

// Health handles GET /healthz.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "classifier-api",
	})
}

type limitsResponse struct {
	CallsPerMinute      int       `json:"calls_per_minute"`
	RemainingCalls      int       `json:"remaining_calls"`
	NextPermitAt        time.Time `json:"next_permit_at"`
	MaxConcurrentUnits  int       `json:"max_concurrent_units"`
	MaxPagesPerDocument int       `json:"max_pages_per_document"`
	MaxTotalPages       int       `json:"max_total_pages"`
	MaxFileSizeMB       int64     `json:"max_file_size_mb"`
	MaxFilesPerBatch    int       `json:"max_files_per_batch"`
}

// Limits handles GET /api/v1/limits: current rate limiter usage plus the
// static service caps.
func (h *StatusHandler) Limits(w http.ResponseWriter, r *http.Request) {
	usage := h.limiter.Snapshot()
	writeJSON(w, http.StatusOK, limitsResponse{
		CallsPerMinute:      usage.Limit,
		RemainingCalls:      usage.Remaining,
		NextPermitAt:        usage.NextPermitAt,
		MaxConcurrentUnits:  h.cfg.Limits.MaxConcurrentUnits,
		MaxPagesPerDocument: h.cfg.Limits.MaxPagesPerDocument,
		MaxTotalPages:       h.cfg.Limits.MaxTotalPages,
		MaxFileSizeMB:       h.cfg.Limits.MaxFileSizeMB,
		MaxFilesPerBatch:    h.cfg.Limits.MaxFilesPerBatch,
	})
}
