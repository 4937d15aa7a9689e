package config

// ProviderType identifies a completion or embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// EstimatorType selects how prompt tokens are approximated.
type EstimatorType string

const (
	EstimatorChars    EstimatorType = "chars"
	EstimatorTiktoken EstimatorType = "tiktoken"
)

// Config is the top-level docqa configuration, corresponding to .docqa.yml.
type Config struct {
	Provider      ProviderType `yaml:"provider" koanf:"provider"`
	Model         string       `yaml:"model" koanf:"model"`
	AdvancedModel string       `yaml:"advanced_model" koanf:"advanced_model"`
	SummaryModel  string       `yaml:"summary_model" koanf:"summary_model"`
	Temperature   float64      `yaml:"temperature" koanf:"temperature"`
	Stream        bool         `yaml:"stream" koanf:"stream"`
	OllamaHost    string       `yaml:"ollama_host" koanf:"ollama_host"`
	// OpenAIBaseURL points the openai provider at a compatible gateway.
	OpenAIBaseURL string `yaml:"openai_base_url,omitempty" koanf:"openai_base_url"`

	// RequestsPerMinute caps completion calls; 0 disables the limiter.
	RequestsPerMinute int `yaml:"requests_per_minute" koanf:"requests_per_minute"`

	EmbeddingProvider   ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel      string       `yaml:"embedding_model" koanf:"embedding_model"`
	EmbeddingDimensions int          `yaml:"embedding_dimensions" koanf:"embedding_dimensions"`

	TokenBudget    int           `yaml:"token_budget" koanf:"token_budget"`
	TokenEstimator EstimatorType `yaml:"token_estimator" koanf:"token_estimator"`
	TopK           int           `yaml:"top_k" koanf:"top_k"`
	SystemPrompt   string        `yaml:"system_prompt" koanf:"system_prompt"`

	SourceDir  string   `yaml:"source_dir" koanf:"source_dir"`
	Include    []string `yaml:"include" koanf:"include"`
	Exclude    []string `yaml:"exclude" koanf:"exclude"`
	StoreDir   string   `yaml:"store_dir" koanf:"store_dir"`
	Collection string   `yaml:"collection" koanf:"collection"`
	DBPath     string   `yaml:"db_path" koanf:"db_path"`

	Server ServerConfig `yaml:"server" koanf:"server"`
	Log    LogConfig    `yaml:"log" koanf:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int    `yaml:"port" koanf:"port"`
	AllowAllOrigins bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	SessionTTL      string `yaml:"session_ttl" koanf:"session_ttl"`
	MaxUploadMB     int    `yaml:"max_upload_mb" koanf:"max_upload_mb"`
}

// LogConfig controls the slog setup.
type LogConfig struct {
	Level string `yaml:"level" koanf:"level"`
	File  string `yaml:"file" koanf:"file"`
}
