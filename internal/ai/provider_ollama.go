package ai

import "strings"

const (
	defaultOllamaModel = "llama3:8b"
	// Ollama ignores the key but the OpenAI client requires one.
	ollamaAPIKey = "ollama"
)

// NewOllamaProvider creates a provider for a self-hosted Ollama server, which
// exposes an OpenAI-compatible API under /v1.
func NewOllamaProvider(baseURL string, opts ...OpenAIOption) *OpenAIProvider {
	base := []OpenAIOption{
		WithBaseURL(strings.TrimRight(baseURL, "/") + "/v1"),
		WithProviderName("ollama"),
		WithModel(defaultOllamaModel),
	}
	return NewOpenAIProvider(ollamaAPIKey, append(base, opts...)...)
}
