package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
)

func testUnit(t *testing.T) *domain.ImageUnit {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page-1.png")
	require.NoError(t, os.WriteFile(path, []byte("fake png bytes"), 0o644))
	return domain.NewImageUnit("file-1", 1, path, 14)
}

func newTestClient(url string) *Client {
	return NewClient(url, "test-key", 5*time.Second, zerolog.Nop())
}

func completionBody(content string) string {
	b, _ := json.Marshal(Response{
		ID: "cmpl-1",
		Choices: []Choice{
			{Message: ChoiceMessage{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
	})
	return string(b)
}

func TestExecuteSuccess(t *testing.T) {
	var gotReq Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(completionBody(`{"documents":[]}`)))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Execute(context.Background(), testUnit(t), "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, `{"documents":[]}`, res.Content)
	assert.Equal(t, 0.0075, res.Cost)

	assert.Equal(t, "gpt-4o", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	require.Len(t, gotReq.Messages[0].Content, 2)
	assert.Contains(t, gotReq.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,")
}

func TestExecuteClassifiesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream blew up", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Execute(context.Background(), testUnit(t), "gpt-4o")
	assert.Equal(t, domain.FailTransientNetwork, domain.CategoryOf(err))
}

func TestExecuteClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "17")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Execute(context.Background(), testUnit(t), "gpt-4o")
	require.Equal(t, domain.FailRateLimited, domain.CategoryOf(err))

	derr := domain.AsError(err)
	assert.Equal(t, 17*time.Second, derr.RetryAfter)
}

func TestExecuteClassifiesTerminalRejection(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 413, 422} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no", status)
		}))
		_, err := newTestClient(srv.URL).Execute(context.Background(), testUnit(t), "gpt-4o")
		assert.Equal(t, domain.FailTerminalRemote, domain.CategoryOf(err), "status %d", status)
		srv.Close()
	}
}

func TestExecuteTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 20*time.Millisecond, zerolog.Nop())
	_, err := c.Execute(context.Background(), testUnit(t), "gpt-4o")
	assert.Equal(t, domain.FailTimeout, domain.CategoryOf(err))
}

func TestExecuteCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := newTestClient(srv.URL).Execute(ctx, testUnit(t), "gpt-4o")
	assert.Equal(t, domain.FailCancelled, domain.CategoryOf(err))
}

func TestExecuteEmptyContentIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody("")))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Execute(context.Background(), testUnit(t), "gpt-4o")
	assert.Equal(t, domain.FailMalformedResponse, domain.CategoryOf(err))
}

func TestExecuteMissingImageIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody("unused")))
	}))
	defer srv.Close()

	unit := domain.NewImageUnit("file-1", 1, "/nonexistent/page.png", 0)
	_, err := newTestClient(srv.URL).Execute(context.Background(), unit, "gpt-4o")
	assert.Equal(t, domain.FailTerminalRemote, domain.CategoryOf(err))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("garbage"))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	d := parseRetryAfter(future)
	assert.Greater(t, d, 50*time.Second)
}

func TestCostPerImage(t *testing.T) {
	assert.Equal(t, 0.01, CostPerImage("gpt-4-vision-preview"))
	assert.Equal(t, 0.00025, CostPerImage("gpt-4o-mini"))
	assert.Equal(t, 0.0075, CostPerImage("some-unknown-model"))
}
