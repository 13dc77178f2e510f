// Package embedding provides text embedding through Ollama, with circuit breaking and caching.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the embedding backend cannot serve requests.
var ErrUnavailable = errors.New("embedding backend unavailable")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Named is implemented by embedders that know their model name.
type Named interface {
	Model() string
}

// ModelName returns e's model name, or "" when e does not report one.
func ModelName(e Embedder) string {
	if n, ok := e.(Named); ok {
		return n.Model()
	}
	return ""
}
