package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// Config configures the Gemini provider.
type Config struct {
	APIKey            string
	DefaultModel      string
	Temperature       float32
	MaxOutputTokens   int32
	RequestsPerMinute int
}

// Provider completes prompts with Gemini behind a circuit breaker and a rate limiter.
type Provider struct {
	client       *genai.Client
	breaker      *gobreaker.CircuitBreaker
	limiter      *rate.Limiter
	defaultModel string
	temperature  float32
	maxTokens    int32
}

// NewProvider connects to the Generative Language API.
func NewProvider(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	burst := cfg.RequestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &Provider{
		client:       client,
		breaker:      newBreaker(logger),
		limiter:      rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)*0.9/60.0), burst),
		defaultModel: cfg.DefaultModel,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxOutputTokens,
	}, nil
}

func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Name returns the identifier of this provider.
func (p *Provider) Name() string { return "gemini" }

// Complete generates one candidate for prompt. An open breaker fails fast with an error.
func (p *Provider) Complete(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = p.defaultModel
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	result, err := p.breaker.Execute(func() (interface{}, error) {
		m := p.client.GenerativeModel(model)
		m.SetTemperature(p.temperature)
		m.SetCandidateCount(1)
		if p.maxTokens > 0 {
			m.SetMaxOutputTokens(p.maxTokens)
		}
		return m.GenerateContent(ctx, genai.Text(prompt))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("gemini unavailable: %w", err)
		}
		return "", err
	}
	return responseText(result.(*genai.GenerateContentResponse))
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates in response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// Close releases the underlying client.
func (p *Provider) Close() error { return p.client.Close() }
