package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MechanicalMaster/Universal-Classifier/internal/batch"
	"github.com/MechanicalMaster/Universal-Classifier/internal/config"
	"github.com/MechanicalMaster/Universal-Classifier/internal/decompose"
	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
	"github.com/MechanicalMaster/Universal-Classifier/internal/ratelimit"
)

type fakeRunner struct {
	gotInputs []decompose.Input
	gotOpts   domain.Options
	statErrs  []error
	result    *domain.BatchResult
	err       error
}

func (f *fakeRunner) Process(ctx context.Context, inputs []decompose.Input, opts domain.Options, notify batch.Notifier) (*domain.BatchResult, error) {
	f.gotInputs = inputs
	f.gotOpts = opts
	for _, in := range inputs {
		_, err := os.Stat(in.Path)
		f.statErrs = append(f.statErrs, err)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func multipartBody(t *testing.T, files map[string][]byte, options string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		w, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	if options != "" {
		require.NoError(t, mw.WriteField("options", options))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateBatch(t *testing.T) {
	runner := &fakeRunner{result: &domain.BatchResult{
		BatchID: "b-1",
		Status:  domain.StatusPartial,
	}}
	h := NewBatchHandler(runner, t.TempDir(), zerolog.Nop())

	body, contentType := multipartBody(t, map[string][]byte{
		"pan.png":  []byte("png bytes"),
		"scan.pdf": []byte("%PDF fake"),
	}, `{"max_concurrent_units":2,"model":"gpt-4o-mini","per_call_timeout_seconds":30}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var res domain.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "b-1", res.BatchID)
	assert.Equal(t, domain.StatusPartial, res.Status)

	require.Len(t, runner.gotInputs, 2)
	names := map[string]int64{}
	require.Len(t, runner.statErrs, 2)
	for i, in := range runner.gotInputs {
		names[in.Name] = in.Size
		assert.NoError(t, runner.statErrs[i], "staged file must exist while processing")
	}
	assert.Equal(t, int64(9), names["pan.png"])
	assert.Equal(t, int64(9), names["scan.pdf"])

	assert.Equal(t, 2, runner.gotOpts.MaxConcurrentUnits)
	assert.Equal(t, "gpt-4o-mini", runner.gotOpts.ModelSelector)
	assert.Equal(t, 30*time.Second, runner.gotOpts.PerCallTimeout)
}

func TestCreateBatchRejectedMapsTo400(t *testing.T) {
	runner := &fakeRunner{err: batch.ErrBatchRejected}
	h := NewBatchHandler(runner, t.TempDir(), zerolog.Nop())

	body, contentType := multipartBody(t, map[string][]byte{"a.png": []byte("x")}, "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBatchTooLargeMapsTo413(t *testing.T) {
	runner := &fakeRunner{err: batch.ErrBatchTooLarge}
	h := NewBatchHandler(runner, t.TempDir(), zerolog.Nop())

	body, contentType := multipartBody(t, map[string][]byte{"a.png": []byte("x")}, "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCreateBatchBadOptionsJSON(t *testing.T) {
	h := NewBatchHandler(&fakeRunner{}, t.TempDir(), zerolog.Nop())

	body, contentType := multipartBody(t, map[string][]byte{"a.png": []byte("x")}, "{not json")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBatchNotMultipart(t *testing.T) {
	h := NewBatchHandler(&fakeRunner{}, t.TempDir(), zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	cfg := config.Default()
	limiter, err := ratelimit.New(cfg.Limits.CallsPerMinute)
	require.NoError(t, err)
	h := NewStatusHandler(cfg, limiter)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestLimits(t *testing.T) {
	cfg := config.Default()
	limiter, err := ratelimit.New(cfg.Limits.CallsPerMinute)
	require.NoError(t, err)
	h := NewStatusHandler(cfg, limiter)

	rec := httptest.NewRecorder()
	h.Limits(rec, httptest.NewRequest(http.MethodGet, "/api/v1/limits", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var res limitsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, cfg.Limits.CallsPerMinute, res.CallsPerMinute)
	assert.Equal(t, cfg.Limits.CallsPerMinute, res.RemainingCalls)
	assert.Equal(t, cfg.Limits.MaxTotalPages, res.MaxTotalPages)
}
