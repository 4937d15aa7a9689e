package config

// DefaultSystemPrompt is the leading system message of every new conversation.
const DefaultSystemPrompt = "You are a helpful chatbot. Explain things so a 10-year-old can understand. " +
	"Be clear, simple, and friendly.\n\n" +
	"If you use information from retrieved course documents, say so briefly."

// modelPreset describes the models used for a provider.
type modelPreset struct {
	Model          string
	AdvancedModel  string
	SummaryModel   string
	EmbeddingModel string
	Dimensions     int
}

var presets = map[ProviderType]modelPreset{
	ProviderOpenAI: {
		Model:          "gpt-4o-mini",
		AdvancedModel:  "gpt-4.1-mini",
		SummaryModel:   "gpt-4.1-nano",
		EmbeddingModel: "text-embedding-3-small",
		Dimensions:     1536,
	},
	ProviderOllama: {
		Model:          "llama3",
		AdvancedModel:  "llama3:70b",
		SummaryModel:   "llama3",
		EmbeddingModel: "nomic-embed-text",
		Dimensions:     768,
	},
}

// DefaultIncludes are the source folder globs ingested by default.
var DefaultIncludes = []string{"**/*.pdf"}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	p := presets[ProviderOpenAI]
	return &Config{
		Provider:            ProviderOpenAI,
		Model:               p.Model,
		AdvancedModel:       p.AdvancedModel,
		SummaryModel:        p.SummaryModel,
		Temperature:         0,
		Stream:              true,
		OllamaHost:          "http://localhost:11434",
		EmbeddingProvider:   ProviderOpenAI,
		EmbeddingModel:      p.EmbeddingModel,
		EmbeddingDimensions: p.Dimensions,
		TokenBudget:         800,
		TokenEstimator:      EstimatorChars,
		TopK:                3,
		SystemPrompt:        DefaultSystemPrompt,
		SourceDir:           "data",
		Include:             DefaultIncludes,
		StoreDir:            ".docqa/vectordb",
		Collection:          "documents",
		DBPath:              ".docqa/docqa.db",
		Server: ServerConfig{
			Port:        8080,
			SessionTTL:  "2h",
			MaxUploadMB: 20,
		},
		Log: LogConfig{
			Level: "info",
			File:  ".docqa/docqa.log",
		},
	}
}

// PresetFor returns the model defaults for the given provider, falling back
// to the OpenAI preset for unknown providers.
func PresetFor(provider ProviderType) modelPreset {
	if p, ok := presets[provider]; ok {
		return p
	}
	return presets[ProviderOpenAI]
}
