// Package llm provides chat-completion clients for OpenAI-compatible and
// Anthropic endpoints.
package llm

import "context"

// Client is the interface the rest of the engine programs against.
// Use it for dependency injection to enable mocking in tests.
type Client interface {
	// Complete sends a single-turn prompt and returns the raw model output.
	Complete(ctx context.Context, systemMessage, prompt string) (string, error)

	// Model returns the configured model name.
	Model() string
}

// Ensure both concrete clients satisfy the interface at compile time.
var (
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*AnthropicClient)(nil)
	_ Client = (*MockClient)(nil)
)
