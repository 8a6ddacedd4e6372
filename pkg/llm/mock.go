package llm

import (
	"context"
)

// MockProvider is a configurable mock for testing generation behavior.
// Set the function fields to control behavior in tests.
type MockProvider struct {
	// CallFunc is called when Call is invoked.
	// If nil, returns empty string and nil error.
	CallFunc func(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Call tracking for verification
	Calls            int
	LastSystemPrompt string
	LastUserPrompt   string
	LastMaxTokens    int
}

// NewMockProvider creates a new mock with sensible defaults.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		ProviderName: "mock",
	}
}

// Call implements Provider.
func (m *MockProvider) Call(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	m.Calls++
	m.LastSystemPrompt = systemPrompt
	m.LastUserPrompt = userPrompt
	m.LastMaxTokens = maxTokens
	if m.CallFunc != nil {
		return m.CallFunc(ctx, systemPrompt, userPrompt, maxTokens)
	}
	return "", nil
}

// Name implements Provider.
func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Reset clears call tracking.
func (m *MockProvider) Reset() {
	m.Calls = 0
	m.LastSystemPrompt = ""
	m.LastUserPrompt = ""
	m.LastMaxTokens = 0
}

// Ensure MockProvider implements Provider at compile time.
var _ Provider = (*MockProvider)(nil)
