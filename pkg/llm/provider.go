// Package llm provides the provider clients lakecheck delegates SQL
// authoring to, with structured error classification and a circuit
// breaker for failing endpoints.
package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Provider is the narrow surface the generation pipeline depends on.
// Implementations are safe for concurrent use.
type Provider interface {
	// Call sends one system/user prompt pair and returns the raw response
	// text. The response is returned untouched; callers own recovery of
	// malformed output. Errors are classified as *Error.
	Call(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)

	// Name identifies the provider in logs and reports.
	Name() string
}

// Config holds configuration for creating a provider.
type Config struct {
	Provider    string        // "openai" or "anthropic"
	Endpoint    string        // Base URL override; required for the key-pair gateway
	Model       string        // Model name, e.g. "claude-3-5-sonnet-20241022"
	APIKey      string        // Bearer token auth
	KeyID       string        // Key-pair auth: key id header value
	SecretKey   string        // Key-pair auth: secret key header value
	Temperature float32       // Sampling temperature for all calls
	Timeout     time.Duration // Per-call HTTP timeout, 0 means client default
}

// New creates a provider from config.
func New(cfg *Config, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg, logger)
	case "anthropic":
		return NewAnthropicProvider(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q (want openai or anthropic)", cfg.Provider)
	}
}

// WithBreaker wraps a provider with a circuit breaker so a down endpoint
// fails fast instead of waiting out its timeout on every call.
func WithBreaker(p Provider, cb *CircuitBreaker) Provider {
	return &breakerProvider{provider: p, breaker: cb}
}

type breakerProvider struct {
	provider Provider
	breaker  *CircuitBreaker
}

func (b *breakerProvider) Call(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if ok, err := b.breaker.Allow(); !ok {
		return "", NewError(ErrorTypeEndpoint, "provider unavailable", false, err)
	}

	text, err := b.provider.Call(ctx, systemPrompt, userPrompt, maxTokens)
	if err != nil {
		b.breaker.RecordFailure()
		return "", err
	}

	b.breaker.RecordSuccess()
	return text, nil
}

func (b *breakerProvider) Name() string {
	return b.provider.Name()
}

var _ Provider = (*breakerProvider)(nil)
