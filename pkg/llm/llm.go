package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"go-alloy/pkg/config"
	"go-alloy/pkg/data"
	"go-alloy/pkg/metrics"
)

// Generator is the prompt-in/text-out contract the research core depends on.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateJSON asks for a JSON-only response and strips code fences.
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

type Client struct {
	model   llms.Model
	timeout time.Duration
}

func New(model llms.Model, timeout time.Duration) *Client {
	return &Client{model: model, timeout: timeout}
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.call(ctx, prompt)
}

func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	out, err := c.call(ctx, prompt, llms.WithJSONMode())
	if err != nil {
		return "", err
	}
	return data.StripFences(out), nil
}

func (c *Client) call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, opts...)
	if err != nil {
		metrics.ExternalCalls.WithLabelValues("llm", "error").Inc()
		return "", fmt.Errorf("generate: %w", err)
	}
	metrics.ExternalCalls.WithLabelValues("llm", "ok").Inc()
	return out, nil
}

// NewModel builds the configured langchaingo provider.
func NewModel(ctx context.Context, cfg config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "googleai":
		opts := []googleai.Option{googleai.WithAPIKey(cfg.GeminiKey)}
		if cfg.Model != "" {
			opts = append(opts, googleai.WithDefaultModel(cfg.Model))
		}
		m, err := googleai.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("googleai: %w", err)
		}
		return m, nil
	default:
		opts := []openai.Option{}
		if cfg.OpenAIKey != "" {
			opts = append(opts, openai.WithToken(cfg.OpenAIKey))
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		return m, nil
	}
}
