// Package mocks provides hand-rolled test doubles shared across packages.
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/mallchat/llm"
)

// MockProvider is a configurable llm.Provider for tests. Configure it with
// the With* builders; it records every request it receives.
type MockProvider struct {
	mu sync.Mutex

	name           string
	responses      []string
	err            error
	failAfter      int
	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	calls []*llm.ChatRequest
}

// NewMockProvider creates a mock that answers "ok" to everything.
func NewMockProvider() *MockProvider {
	return &MockProvider{name: "mock", responses: []string{"ok"}}
}

// WithName sets the provider name.
func (m *MockProvider) WithName(name string) *MockProvider {
	m.name = name
	return m
}

// WithResponse makes every call return content.
func (m *MockProvider) WithResponse(content string) *MockProvider {
	m.responses = []string{content}
	return m
}

// WithResponses returns the given contents in sequence; the last one repeats.
func (m *MockProvider) WithResponses(contents ...string) *MockProvider {
	m.responses = contents
	return m
}

// WithError makes every call fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.err = err
	return m
}

// WithFailAfter makes calls fail once n calls have succeeded.
func (m *MockProvider) WithFailAfter(n int, err error) *MockProvider {
	m.failAfter = n
	m.err = err
	return m
}

// WithCompletionFunc installs a custom handler, overriding all other settings.
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.completionFunc = fn
	return m
}

// Name implements llm.Provider.
func (m *MockProvider) Name() string { return m.name }

// Completion implements llm.Provider.
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	n := len(m.calls)
	m.mu.Unlock()

	if m.completionFunc != nil {
		return m.completionFunc(ctx, req)
	}
	if m.err != nil && (m.failAfter == 0 || n > m.failAfter) {
		return nil, m.err
	}

	idx := n - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	content := ""
	if idx >= 0 {
		content = m.responses[idx]
	}
	return &llm.ChatResponse{
		Choices: []llm.ChatChoice{{Message: llm.AssistantMessage(content)}},
	}, nil
}

// GetCallCount returns how many completions were requested.
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest returns the most recent request, or nil.
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// Requests returns a copy of all recorded requests.
func (m *MockProvider) Requests() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*llm.ChatRequest, len(m.calls))
	copy(out, m.calls)
	return out
}
