package embeddings

// Config holds embedding provider configuration.
type Config struct {
	Provider ProviderType // "openai" or "ollama"

	// OpenAI config
	OpenAIAPIKey string

	// Ollama config
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "nomic-embed-text"
}

// NewProvider creates a Provider based on the config. This is the factory
// function - switch embedding backend by changing config.Provider.
func NewProvider(cfg Config) Provider {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIAPIKey)

	case ProviderOllama:
		return NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel)

	default:
		// Default to OpenAI if an API key is available, otherwise Ollama
		if cfg.OpenAIAPIKey != "" {
			return NewOpenAIProvider(cfg.OpenAIAPIKey)
		}
		return NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel)
	}
}
