// Package ai provides the analysis-service client. The investigation
// engine only depends on the Analyzer interface; the Anthropic-backed
// implementation lives here so the system runs end-to-end, but tests and
// callers are free to inject their own.
package ai

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

// Model constants. Sonnet for analysis quality; override per config when
// cost matters more than depth.
const (
	// DefaultModel is the model used for repository analysis steps
	DefaultModel = "claude-sonnet-4-20250514"

	// DefaultMaxTokens bounds a single step's generated output
	DefaultMaxTokens = 6000
)

// Analyzer turns a rendered prompt into generated analysis text.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// Client is the Anthropic-backed Analyzer.
type Client struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// ClientConfig configures the Anthropic client.
type ClientConfig struct {
	// APIKey for Anthropic. Falls back to ANTHROPIC_API_KEY.
	APIKey string

	// Model name. Falls back to DefaultModel.
	Model string

	// MaxTokens per response. Falls back to DefaultMaxTokens.
	MaxTokens int64

	// RequestsPerSecond throttles API calls across steps. Zero disables
	// throttling.
	RequestsPerSecond float64
}

// NewClient creates an Anthropic-backed analyzer.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
		limiter:   limiter,
	}, nil
}

// Analyze sends one prompt to the analysis service and returns the
// generated text.
func (c *Client) Analyze(ctx context.Context, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	// Extract the text content from the response
	var responseText string
	for _, block := range resp.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	if responseText == "" {
		return "", fmt.Errorf("anthropic response contained no text content")
	}
	return responseText, nil
}
