package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/terralinea/geosql-engine/pkg/config"
)

func TestNewFromConfigOpenAI(t *testing.T) {
	client, err := NewFromConfig(&config.LLMConfig{
		Provider: "openai",
		Endpoint: "http://127.0.0.1:11434/v1",
		SQLModel: "sqlcoder",
	}, "", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "sqlcoder", client.Model())
}

func TestNewFromConfigAnthropic(t *testing.T) {
	client, err := NewFromConfig(&config.LLMConfig{
		Provider: "anthropic",
		APIKey:   "sk-test",
		SQLModel: "claude-sonnet-4-20250514",
	}, "", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", client.Model())
}

func TestNewFromConfigModelOverride(t *testing.T) {
	client, err := NewFromConfig(&config.LLMConfig{
		Provider: "openai",
		Endpoint: "http://127.0.0.1:11434/v1",
		SQLModel: "sqlcoder",
	}, "llama3", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "llama3", client.Model())
}

func TestNewFromConfigUnknownProvider(t *testing.T) {
	_, err := NewFromConfig(&config.LLMConfig{Provider: "cohere"}, "m", zap.NewNop())
	assert.Error(t, err)
}

func TestNewOpenAIClientValidation(t *testing.T) {
	_, err := NewOpenAIClient(&Config{Model: "m"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewOpenAIClient(&Config{Endpoint: "http://x"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewAnthropicClientValidation(t *testing.T) {
	_, err := NewAnthropicClient(&Config{Model: "m"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewAnthropicClient(&Config{APIKey: "k"}, zap.NewNop())
	assert.Error(t, err)
}

func TestMockClientSequence(t *testing.T) {
	m := &MockClient{Responses: []string{"uno", "dos"}}

	got, err := m.Complete(context.Background(), "sys", "p1")
	require.NoError(t, err)
	assert.Equal(t, "uno", got)

	got, _ = m.Complete(context.Background(), "sys", "p2")
	assert.Equal(t, "dos", got)

	// The last response repeats once exhausted.
	got, _ = m.Complete(context.Background(), "sys", "p3")
	assert.Equal(t, "dos", got)

	assert.Equal(t, 3, m.Calls())
	assert.Equal(t, []string{"p1", "p2", "p3"}, m.Prompts)
}
