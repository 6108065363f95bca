package embeddings

import "context"

// Provider converts text into a fixed-length vector for hybrid search.
// Implement this interface to add new embedding backends (OpenAI, Ollama, etc.)
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// ProviderType selects the embedding backend.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
