package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shotforge/internal/services"
)

const (
	defaultEndpoint  = "https://openrouter.ai/api/v1/chat/completions"
	defaultTimeout   = 60 * time.Second
	defaultAttempts  = 5
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 10 * time.Second
)

// Config holds the connection settings. BaseURL is the full completions
// endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client sends JSON-mode chat completions.
type Client struct {
	cfg         Config
	http        *http.Client
	temperature float64
	retry       retryPolicy
}

// Option customizes a Client.
type Option func(*Client)

// WithRetryMaxAttempts sets the total number of requests per call.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff sets the delay before the first retry. Each later retry
// waits twice as long, up to maxDelay.
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.baseDelay = base
		c.retry.maxDelay = maxDelay
	}
}

// WithTemperature sets the sampling temperature of CompleteJSON requests.
func WithTemperature(temperature float64) Option {
	return func(c *Client) { c.temperature = max(temperature, 0) }
}

// NewClient constructs a Client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEndpoint
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		retry: retryPolicy{
			attempts:  defaultAttempts,
			baseDelay: defaultBaseDelay,
			maxDelay:  defaultMaxDelay,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.attempts = max(c.retry.attempts, 1)
	c.retry.baseDelay = max(c.retry.baseDelay, 0)
	if c.retry.maxDelay <= 0 {
		c.retry.maxDelay = defaultMaxDelay
	}
	c.retry.maxDelay = max(c.retry.maxDelay, c.retry.baseDelay)
	return c
}

// CompleteJSON sends one system and one user message and returns the raw
// reply content.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", errors.New("llm complete: system and user prompts are required")
	}
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("llm complete: %w", services.ErrConfiguration)
	}
	return c.complete(ctx, "llm complete", systemPrompt, userPrompt, c.temperature)
}

// HealthCheck sends a minimal request to confirm the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return fmt.Errorf("llm health: %w", services.ErrConfiguration)
	}
	content, err := c.complete(ctx, "llm health", "You must respond with JSON only.", `Respond with {"ok":true}`, 0)
	if err != nil {
		return err
	}
	var reply struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &reply); err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("llm health: unexpected reply %s", snippet(content))
	}
	return nil
}

func (c *Client) complete(ctx context.Context, op, systemPrompt, userPrompt string, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("%s: encode request: %w", op, err)
	}

	for attempt := 1; ; attempt++ {
		content, err := c.send(ctx, body)
		if err == nil {
			return content, nil
		}
		wait, again := c.retry.next(ctx, err, attempt)
		if !again {
			if attempt > 1 {
				return "", fmt.Errorf("%s: gave up after %d attempts: %w", op, attempt, err)
			}
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if err := sleepContext(ctx, wait); err != nil {
			return "", err
		}
	}
}
