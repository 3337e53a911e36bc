package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"mcpchat/internal/domain"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config selects and configures the completion backend.
type Config struct {
	Provider  string
	Model     string
	MaxTokens int
	APIKey    string
	APIKeyEnv string
	BaseURL   string
	System    string
}

// NewModel builds the model adapter for cfg.Provider.
func NewModel(ctx context.Context, cfg Config) (domain.Model, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = domain.DefaultModelProvider
	}
	cfg.Provider = provider
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = domain.DefaultMaxTokens
	}

	switch provider {
	case ProviderAnthropic:
		if cfg.Model == "" {
			cfg.Model = domain.DefaultModelName
		}
		apiKey, err := resolveAPIKey(cfg, domain.DefaultAnthropicKeyEnv)
		if err != nil {
			return nil, err
		}
		return NewAnthropicModel(cfg, apiKey), nil
	case ProviderOpenAI:
		if cfg.Model == "" {
			return nil, fmt.Errorf("model.name is required for provider %s", provider)
		}
		apiKey, err := resolveAPIKey(cfg, domain.DefaultOpenAIKeyEnv)
		if err != nil {
			return nil, err
		}
		return NewOpenAIModel(ctx, cfg, apiKey)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}
}

func resolveAPIKey(cfg Config, defaultEnv string) (string, error) {
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return key, nil
	}
	envVar := strings.TrimSpace(cfg.APIKeyEnv)
	if envVar == "" {
		envVar = defaultEnv
	}
	key := strings.TrimSpace(os.Getenv(envVar))
	if key == "" {
		return "", fmt.Errorf("API key not found: set model.apiKey or the %s environment variable", envVar)
	}
	return key, nil
}
