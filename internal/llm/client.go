package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/models"
)

// ErrAllProvidersFailed is returned when every configured backend failed
// for one generation call.
var ErrAllProvidersFailed = errors.New("all generation providers failed")

// DefaultCallTimeout bounds each individual provider call
const DefaultCallTimeout = 30 * time.Second

// Client cascades a generation request across the configured providers in
// order. A provider succeeds only when it returns non-empty text; transport
// errors, non-success statuses, and empty payloads all move the request to
// the next provider. A failing provider is never retried within one call.
type Client struct {
	providers []Provider
	timeout   time.Duration
	logger    arbor.ILogger
}

// NewClient builds the fallback client from the ordered provider
// configuration. Zero configured providers is a fatal configuration error.
func NewClient(configs []common.ProviderConfig, logger arbor.ILogger) (*Client, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no generation providers configured")
	}

	providers := make([]Provider, 0, len(configs))
	for _, cfg := range configs {
		provider, err := buildProvider(cfg)
		if err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}

	return &Client{
		providers: providers,
		timeout:   DefaultCallTimeout,
		logger:    logger,
	}, nil
}

// NewClientWithProviders builds a client from ready-made providers.
// Used by tests and by callers that construct providers themselves.
func NewClientWithProviders(providers []Provider, logger arbor.ILogger) (*Client, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("no generation providers configured")
	}
	return &Client{
		providers: providers,
		timeout:   DefaultCallTimeout,
		logger:    logger,
	}, nil
}

func buildProvider(cfg common.ProviderConfig) (Provider, error) {
	switch strings.ToLower(cfg.Name) {
	case "claude", "anthropic":
		return NewClaudeProvider(cfg), nil
	case "gemini", "google":
		return NewGeminiProvider(cfg), nil
	case "openrouter":
		return NewOpenRouterProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// Query runs one generation request through the fallback chain.
// On success it returns the generated text, the "provider:model" identity of
// the backend that produced it, and the failures recorded before it; when
// every provider fails it returns empty text, the full failure list, and a
// wrapped ErrAllProvidersFailed.
func (c *Client) Query(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, string, []models.ProviderFailure, error) {
	var failures []models.ProviderFailure
	var reasons []string

	req := Request{
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	for _, provider := range c.providers {
		start := time.Now()

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := provider.Generate(callCtx, req)
		cancel()

		if err == nil && strings.TrimSpace(text) == "" {
			err = fmt.Errorf("empty response from %s", provider.Name())
		}

		if err != nil {
			failures = append(failures, models.ProviderFailure{
				Name:  provider.Name(),
				Error: err.Error(),
			})
			reasons = append(reasons, fmt.Sprintf("%s: %v", provider.Name(), err))

			c.logger.Warn().
				Str("provider", provider.Name()).
				Dur("elapsed", time.Since(start)).
				Bool("rate_limited", IsRateLimitError(err)).
				Err(err).
				Msg("Generation provider failed, trying next")
			continue
		}

		c.logger.Debug().
			Str("provider", provider.Name()).
			Str("model", provider.Model()).
			Dur("elapsed", time.Since(start)).
			Msg("Generation succeeded")

		return text, provider.Name() + ":" + provider.Model(), failures, nil
	}

	return "", "", failures, fmt.Errorf("%w: %s", ErrAllProvidersFailed, strings.Join(reasons, "; "))
}

// ProviderNames returns the configured backend names in fallback order.
func (c *Client) ProviderNames() []string {
	names := make([]string, 0, len(c.providers))
	for _, provider := range c.providers {
		names = append(names, provider.Name())
	}
	return names
}
