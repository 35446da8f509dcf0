package llm

import (
	"context"
	"sync"
)

// MockClient is a test double returning canned responses in order.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Prompts   []string // user prompts received, in call order
	Systems   []string // system messages received, in call order
	calls     int
}

// Complete records the call and returns the next canned response. The last
// response repeats once the list is exhausted.
func (m *MockClient) Complete(_ context.Context, systemMessage, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)
	m.Systems = append(m.Systems, systemMessage)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	i := m.calls
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	m.calls++
	return m.Responses[i], nil
}

// Model returns a fixed test model name.
func (m *MockClient) Model() string {
	return "mock-model"
}

// Calls returns how many times Complete was invoked.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
