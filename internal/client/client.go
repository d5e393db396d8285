// Package client talks to a remote pdfrag HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"pdfrag/internal/api"
	"pdfrag/internal/domain"
)

// Client implements domain.RAGService against a remote server.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ domain.RAGService = (*Client)(nil)

// New creates a client for the API at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Error is a non-2xx response from the server.
type Error struct {
	StatusCode int
	api.ErrorResponse
}

func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("api error %d (%s): %s: %v", e.StatusCode, e.ErrorCode, e.Message, e.Details)
	}
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.ErrorCode, e.Message)
}

// Ingest uploads pdf as a multipart form.
func (c *Client) Ingest(ctx context.Context, pdf []byte, source string) (domain.IngestResult, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	filename := filepath.Base(source)
	if source == "" {
		filename = "upload.pdf"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(h)
	if err != nil {
		return domain.IngestResult{}, err
	}
	if _, err := part.Write(pdf); err != nil {
		return domain.IngestResult{}, err
	}
	if source != "" {
		if err := w.WriteField("source", source); err != nil {
			return domain.IngestResult{}, err
		}
	}
	if err := w.Close(); err != nil {
		return domain.IngestResult{}, err
	}

	var resp api.UploadResponse
	if err := c.do(ctx, http.MethodPost, "/upload", w.FormDataContentType(), &body, &resp); err != nil {
		return domain.IngestResult{}, err
	}
	return domain.IngestResult{Chunks: resp.IngestedChunks, Summary: resp.Summary}, nil
}

// Answer asks a question.
func (c *Client) Answer(ctx context.Context, question string, k int, model string) (domain.Answer, error) {
	data, err := json.Marshal(api.AskRequest{Question: question, K: k, Model: model})
	if err != nil {
		return domain.Answer{}, err
	}
	var ans domain.Answer
	if err := c.do(ctx, http.MethodPost, "/ask", "application/json", bytes.NewReader(data), &ans); err != nil {
		return domain.Answer{}, err
	}
	return ans, nil
}

// Stats fetches the remote index statistics.
func (c *Client) Stats(ctx context.Context) (domain.StoreStats, error) {
	var stats domain.StoreStats
	err := c.do(ctx, http.MethodGet, "/stats", "", nil, &stats)
	return stats, err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &apiErr.ErrorResponse) != nil || apiErr.Message == "" {
			apiErr.ErrorCode = "unexpected_response"
			apiErr.Message = strings.TrimSpace(string(data))
			if apiErr.Message == "" {
				apiErr.Message = resp.Status
			}
		}
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
