package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/terralinea/geosql-engine/pkg/config"
)

// NewFromConfig builds a client for the configured provider. The model
// argument lets callers pick between the SQL-drafting and chat models that
// share one provider configuration.
func NewFromConfig(cfg *config.LLMConfig, model string, logger *zap.Logger) (Client, error) {
	if model == "" {
		model = cfg.SQLModel
	}
	clientCfg := &Config{
		Endpoint:    cfg.Endpoint,
		Model:       model,
		APIKey:      cfg.APIKey,
		Temperature: cfg.Temperature,
	}

	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(clientCfg, logger)
	case "anthropic":
		return NewAnthropicClient(clientCfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
