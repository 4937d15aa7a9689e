package llm

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/docqa/internal/config"
)

// NewProvider creates a completion provider for the configured provider
// type. model is the default model used when a request leaves it empty.
// When requests_per_minute is set the provider is rate limited.
func NewProvider(cfg *config.Config, model string) (Provider, error) {
	var p Provider
	switch cfg.Provider {
	case config.ProviderOpenAI:
		envVar := config.APIKeyEnvVar(config.ProviderOpenAI)
		apiKey := os.Getenv(envVar)
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is not set", envVar)
		}
		p = NewOpenAIProviderWithBaseURL(apiKey, model, cfg.OpenAIBaseURL)

	case config.ProviderOllama:
		host := cfg.OllamaHost
		if env := os.Getenv("OLLAMA_HOST"); env != "" {
			host = env
		}
		if host == "" {
			host = "http://localhost:11434"
		}
		p = NewOllamaProvider(host, model)

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider)
	}

	if cfg.RequestsPerMinute > 0 {
		p = NewRateLimitedProvider(p, cfg.RequestsPerMinute)
	}
	return p, nil
}
