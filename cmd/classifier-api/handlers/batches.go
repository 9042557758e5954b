// Package handlers implements the HTTP handlers for the classifier API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MechanicalMaster/Universal-Classifier/internal/batch"
	"github.com/MechanicalMaster/Universal-Classifier/internal/decompose"
	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
)

// BatchRunner processes one batch end to end. Implemented by
// batch.Processor.
type BatchRunner interface {
	Process(ctx context.Context, inputs []decompose.Input, opts domain.Options, notify batch.Notifier) (*domain.BatchResult, error)
}

// BatchHandler serves batch creation requests.
type BatchHandler struct {
	runner    BatchRunner
	uploadDir string
	logger    zerolog.Logger
}

// NewBatchHandler creates the handler; uploads are staged under uploadDir
// for the request lifetime.
func NewBatchHandler(runner BatchRunner, uploadDir string, logger zerolog.Logger) *BatchHandler {
	return &BatchHandler{runner: runner, uploadDir: uploadDir, logger: logger}
}

// optionsRequest is the JSON options part of the multipart request.
// Durations are in seconds for API friendliness.
type optionsRequest struct {
	MaxConcurrentUnits    int    `json:"max_concurrent_units"`
	MaxPagesPerDocument   int    `json:"max_pages_per_document"`
	MaxTotalPages         int    `json:"max_total_pages"`
	CallsPerMinute        int    `json:"calls_per_minute"`
	PerCallTimeoutSeconds int    `json:"per_call_timeout_seconds"`
	MaxRetryAttempts      int    `json:"max_retry_attempts"`
	Model                 string `json:"model"`
	IncludeRawResponses   bool   `json:"include_raw_responses"`
}

func (o optionsRequest) toDomain() domain.Options {
	return domain.Options{
		MaxConcurrentUnits:  o.MaxConcurrentUnits,
		MaxPagesPerDocument: o.MaxPagesPerDocument,
		MaxTotalPages:       o.MaxTotalPages,
		CallsPerMinute:      o.CallsPerMinute,
		PerCallTimeout:      time.Duration(o.PerCallTimeoutSeconds) * time.Second,
		MaxRetryAttempts:    o.MaxRetryAttempts,
		ModelSelector:       o.Model,
		IncludeRawResponses: o.IncludeRawResponses,
	}
}

const maxMultipartMemory = 32 << 20

// Create handles POST /api/v1/batches: multipart upload with a "files"
// part per document and an optional "options" JSON part. Unit failures do
// not fail the request; only invalid requests return an error status.
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var opts domain.Options
	if raw := r.FormValue("options"); raw != "" {
		var req optionsRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("parse options: %v", err))
			return
		}
		opts = req.toDomain()
	}

	uploads := r.MultipartForm.File["files"]
	stageDir := filepath.Join(h.uploadDir, "upload-"+uuid.NewString())
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "stage uploads")
		return
	}
	defer os.RemoveAll(stageDir)

	inputs := make([]decompose.Input, 0, len(uploads))
	for i, header := range uploads {
		path, err := saveUpload(header, stageDir, i)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read upload %q: %v", header.Filename, err))
			return
		}
		inputs = append(inputs, decompose.Input{Name: header.Filename, Path: path, Size: header.Size})
	}

	result, err := h.runner.Process(r.Context(), inputs, opts, nil)
	if err != nil {
		if errors.Is(err, batch.ErrBatchTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		if errors.Is(err, batch.ErrBatchRejected) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("batch processing failed")
		writeError(w, http.StatusInternalServerError, "batch processing failed")
		return
	}

	// Partial and failed batches are still well-formed results.
	writeJSON(w, http.StatusOK, result)
}

func saveUpload(header *multipart.FileHeader, dir string, index int) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dest := filepath.Join(dir, fmt.Sprintf("%03d_%s", index, filepath.Base(header.Filename)))
	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", err
	}
	return dest, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
