package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"pdfrag/internal/openaicompat"
)

// Config configures the chat completions client.
type Config struct {
	BaseURL           string
	APIKey            string
	APIKeyEnv         string
	DefaultModel      string
	// Temperature is sent only when set; nil leaves the provider default.
	Temperature       *float64
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
}

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	transport    *openaicompat.Transport
	defaultModel string
	temperature  *float64
}

// NewClient creates a chat client.
func NewClient(cfg Config) (*Client, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" && openaicompat.RequiresKey(cfg.BaseURL) {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		transport: openaicompat.NewTransport(openaicompat.Config{
			BaseURL:           cfg.BaseURL,
			APIKey:            key,
			Timeout:           cfg.Timeout,
			MaxRetries:        cfg.MaxRetries,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}),
		defaultModel: cfg.DefaultModel,
		temperature:  cfg.Temperature,
	}, nil
}

// Name returns the identifier of this provider.
func (c *Client) Name() string { return "openai" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	N           int       `json:"n"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = c.defaultModel
	}
	req := chatRequest{
		Model:       model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		N:           1,
	}
	var resp chatResponse
	if err := c.transport.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
