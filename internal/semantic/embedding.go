// Package semantic implements the vector retrieval collaborator:
// embedding generation, a SQLite chunk store, and nearest-neighbor
// search over document chunks.
package semantic

import (
	"context"
	"fmt"
	"math"
)

// EmbeddingEngine generates vector embeddings for text.
type EmbeddingEngine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the engine name.
	Name() string
}

// EmbeddingConfig holds embedding engine configuration.
type EmbeddingConfig struct {
	// Provider: "ollama" or "openai"
	Provider string

	OllamaEndpoint string
	OllamaModel    string

	OpenAIAPIKey string
	OpenAIModel  string
}

// NewEmbeddingEngine creates an embedding engine based on configuration.
func NewEmbeddingEngine(cfg EmbeddingConfig) (EmbeddingEngine, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// CosineSimilarity computes the cosine similarity of two vectors.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
