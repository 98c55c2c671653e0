// Package embed talks to OpenAI-compatible embedding providers.
//
// Provider selection is a pure syntactic rule on the model name: a "/" in
// the name means a hosted open-model provider (DeepInfra), anything else is
// OpenAI. Calls are batched, retried with exponential backoff, and reuse one
// connection pool per (provider, credential).
package embed

import (
	"context"
	"strings"
	"time"
)

// Provider identifies an embedding endpoint family.
type Provider string

const (
	// ProviderOpenAI serves bare model names like "text-embedding-3-small".
	ProviderOpenAI Provider = "openai"
	// ProviderDeepInfra serves namespaced open models like
	// "BAAI/bge-large-en-v1.5".
	ProviderDeepInfra Provider = "deepinfra"
)

// Endpoint URLs per provider.
const (
	OpenAIEndpoint    = "https://api.openai.com/v1/embeddings"
	DeepInfraEndpoint = "https://api.deepinfra.com/v1/openai/embeddings"
)

// DefaultRequestTimeout bounds a single embedding call.
const DefaultRequestTimeout = 60 * time.Second

// Client generates vector embeddings for text.
type Client interface {
	// EmbedBatch embeds texts in one provider call. The result is in input
	// order and has the same length as the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the model identifier.
	Model() string

	// Dimensions returns the embedding dimension, or 0 if unknown.
	Dimensions() int
}

// ProviderFor selects the provider from the model name.
func ProviderFor(model string) Provider {
	if strings.Contains(model, "/") {
		return ProviderDeepInfra
	}
	return ProviderOpenAI
}

// EndpointFor returns the embeddings URL for the model's provider.
func EndpointFor(model string) string {
	if ProviderFor(model) == ProviderDeepInfra {
		return DeepInfraEndpoint
	}
	return OpenAIEndpoint
}
