// Package openaicompat talks JSON to OpenAI-compatible HTTP APIs (OpenAI, Ollama, vLLM,
// LiteLLM) with retries and client-side rate limiting.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// RequiresKey reports whether baseURL points at the hosted OpenAI API, which rejects
// unauthenticated calls. Self-hosted compatible servers often need no key.
func RequiresKey(baseURL string) bool {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Host == "" {
		return baseURL == ""
	}
	return strings.EqualFold(u.Hostname(), "api.openai.com")
}

// Config configures a Transport.
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
}

// Transport posts JSON requests and decodes JSON responses.
type Transport struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	limiter    *rate.Limiter
	sleep      func(context.Context, time.Duration) error
}

// APIError is a non-retryable (or retries exhausted) HTTP failure.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Message)
	}
	return e.Status
}

// NewTransport creates a transport. A zero RequestsPerMinute disables rate limiting.
func NewTransport(cfg Config) *Transport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.RequestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}
	return &Transport{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		client:     &http.Client{Timeout: t},
		maxRetries: cfg.MaxRetries,
		limiter:    limiter,
		sleep:      sleepContext,
	}
}

// PostJSON sends body to path and decodes the response into out. 429 and 5xx responses
// and network errors are retried with exponential backoff, honouring Retry-After.
func (t *Transport) PostJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	endpoint := t.baseURL + path
	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			if err := t.sleep(ctx, retryDelay(attempt-1, lastErr)); err != nil {
				return err
			}
		}
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		payload, err := t.do(ctx, endpoint, data)
		if err == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(payload, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return lastErr
}

func (t *Transport) do(ctx context.Context, endpoint string, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &retryAfterError{
			APIError:   &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Message: errorMessage(payload)},
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return payload, nil
}

type retryAfterError struct {
	*APIError
	retryAfter time.Duration
}

func (e *retryAfterError) Unwrap() error { return e.APIError }

func retryable(err error) bool {
	if ra, ok := err.(*retryAfterError); ok {
		return ra.StatusCode == http.StatusTooManyRequests || ra.StatusCode >= 500
	}
	return true
}

func errorMessage(payload []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(payload, &body) == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return ""
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func retryDelay(attempt int, lastErr error) time.Duration {
	if ra, ok := lastErr.(*retryAfterError); ok && ra.retryAfter > 0 {
		return ra.retryAfter
	}
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second || d <= 0 {
		d = 5 * time.Second
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
