package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// Header names the legacy gateway expects on every request.
const (
	keyIDHeader     = "x-caas-key-id"
	secretKeyHeader = "x-caas-secret-key"
)

// keyPairTransport injects the gateway credential headers on every request.
// The gateway authenticates with a key-id/secret-key pair instead of the
// provider's native bearer token.
type keyPairTransport struct {
	keyID     string
	secretKey string
	base      http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *keyPairTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	// Clone so the caller's request is never mutated
	clone := req.Clone(req.Context())
	clone.Header.Set(keyIDHeader, t.keyID)
	clone.Header.Set(secretKeyHeader, t.secretKey)

	return base.RoundTrip(clone)
}

// anthropicProvider talks to Anthropic-compatible endpoints, directly or
// through the legacy key-pair gateway.
type anthropicProvider struct {
	client      *anthropic.Client
	endpoint    string
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewAnthropicProvider creates an Anthropic provider. When KeyID and
// SecretKey are set, requests authenticate through the key-pair gateway;
// otherwise APIKey is used as the native token.
func NewAnthropicProvider(cfg *Config, logger *zap.Logger) (Provider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" && cfg.KeyID == "" {
		return nil, fmt.Errorf("api key or gateway key pair is required")
	}
	if cfg.KeyID != "" && cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for gateway auth")
	}

	httpClient := &http.Client{}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	if cfg.KeyID != "" {
		httpClient.Transport = &keyPairTransport{
			keyID:     cfg.KeyID,
			secretKey: cfg.SecretKey,
		}
	}

	opts := []anthropic.ClientOption{
		anthropic.WithHTTPClient(httpClient),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}

	return &anthropicProvider{
		client:      anthropic.NewClient(cfg.APIKey, opts...),
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      logger.Named("llm"),
	}, nil
}

// Call implements Provider.
func (p *anthropicProvider) Call(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	p.logger.Debug("provider request",
		zap.String("model", p.model),
		zap.Int("prompt_len", len(userPrompt)),
		zap.Int("max_tokens", maxTokens))

	start := time.Now()
	temperature := p.temperature

	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(p.model),
		System:      systemPrompt,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(userPrompt),
		},
	})
	if err != nil {
		p.logger.Error("provider request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			sb.WriteString(*block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", NewErrorWithContext(ErrorTypeUnknown, "no text content in response", false, nil, p.model, p.endpoint, 0)
	}

	p.logger.Info("provider request completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return sb.String(), nil
}

// Name implements Provider.
func (p *anthropicProvider) Name() string {
	return "anthropic"
}

var _ Provider = (*anthropicProvider)(nil)
