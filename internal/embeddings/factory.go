package embeddings

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/docqa/internal/config"
)

// NewEmbedder creates an Embedder for the configured embedding provider.
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}

	switch provider {
	case config.ProviderOpenAI:
		key := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if key == "" {
			return nil, fmt.Errorf("%s is not set", config.APIKeyEnvVar(config.ProviderOpenAI))
		}
		return NewOpenAIEmbedderWithBaseURL(key, OpenAIModel(cfg.EmbeddingModel), cfg.OpenAIBaseURL), nil
	case config.ProviderOllama:
		return NewOllamaEmbedder(cfg.EmbeddingModel, cfg.EmbeddingDimensions, cfg.OllamaHost), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}
