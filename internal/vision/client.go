// Package vision is the HTTP client for the external vision-extraction
// service. It performs exactly one call per invocation; retry scheduling
// lives with the caller.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

// Message is one chat message with mixed text and image content.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is a single text or image element of a message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries the base64 data URL for an image.
type ImageURL struct {
	URL string `json:"url"`
}

// Request is the chat completions request body.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// Response is the subset of the completions response we read.
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice is a single completion choice.
type Choice struct {
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ChoiceMessage is the assistant message inside a choice.
type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallResult is the raw outcome of one successful call.
type CallResult struct {
	Content string
	Cost    float64
}

// NewClient creates a vision client. perCallTimeout bounds each individual
// attempt independent of the batch deadline.
func NewClient(baseURL, apiKey string, perCallTimeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		timeout:    perCallTimeout,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Execute sends one image unit to the vision service and returns the raw
// response content. Image bytes are read from disk per call and released
// when the request body is consumed. Failures come back as categorized
// domain errors so the caller can decide on retry.
func (c *Client) Execute(ctx context.Context, unit *domain.ImageUnit, model string) (CallResult, error) {
	body, err := c.buildRequestBody(unit, model)
	if err != nil {
		return CallResult{}, domain.TerminalError("build vision request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return CallResult{}, domain.TerminalError("build vision request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CallResult{}, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("unit_id", unit.ID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("vision call completed")

	if resp.StatusCode != http.StatusOK {
		return CallResult{}, classifyStatus(resp)
	}

	var parsed Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&parsed); err != nil {
		return CallResult{}, domain.MalformedError("undecodable response body", "", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		raw, _ := json.Marshal(parsed)
		return CallResult{}, domain.MalformedError("response has no content", string(raw), nil)
	}

	return CallResult{
		Content: parsed.Choices[0].Message.Content,
		Cost:    CostPerImage(model),
	}, nil
}

func (c *Client) buildRequestBody(unit *domain.ImageUnit, model string) ([]byte, error) {
	imageData, err := os.ReadFile(unit.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", unit.ImagePath, err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(unit.ImagePath))
	if mimeType == "" {
		mimeType = "image/png"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(imageData)

	req := Request{
		Model: model,
		Messages: []Message{
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "text", Text: extractionPrompt},
					{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}},
				},
			},
		},
		MaxTokens:   4096,
		Temperature: 0.1,
	}
	return json.Marshal(req)
}

// classifyTransportError separates deadline expiry and cancellation from
// plain connection failures.
func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.TimeoutError("vision call exceeded per-call timeout", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return domain.CancelledError("vision call cancelled")
	}
	return domain.TransientError("vision call transport failure", err)
}

// classifyStatus maps a non-200 response onto a failure category. 5xx is
// transient, 429 is rate limited with the server's hint, and permanent 4xx
// codes are terminal.
func classifyStatus(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.RateLimitedError(
			fmt.Sprintf("vision service throttled the request: %s", snippet),
			parseRetryAfter(resp.Header.Get("Retry-After")),
		)
	case resp.StatusCode >= 500:
		return domain.TransientError(fmt.Sprintf("vision service returned %d: %s", resp.StatusCode, snippet), nil)
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusRequestEntityTooLarge,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return domain.TerminalError(fmt.Sprintf("vision service rejected the request with %d: %s", resp.StatusCode, snippet), nil)
	default:
		return domain.TransientError(fmt.Sprintf("vision service returned unexpected status %d: %s", resp.StatusCode, snippet), nil)
	}
}

// parseRetryAfter reads the Retry-After header in either delta-seconds or
// HTTP-date form. Zero means no usable hint.
func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
