package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

const probeText = "dietary guidelines"

// OllamaEmbedder embeds text with a model served by Ollama.
type OllamaEmbedder struct {
	embedder   *embeddings.EmbedderImpl
	model      string
	dimensions int
}

// NewOllamaEmbedder connects to the Ollama server at baseURL and probes the model once to learn
// its dimensionality. A failed probe means the backend is unavailable.
func NewOllamaEmbedder(ctx context.Context, baseURL, model string, batchSize int) (*OllamaEmbedder, error) {
	llm, err := ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("%w: create ollama client: %w", ErrUnavailable, err)
	}
	opts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	emb, err := embeddings.NewEmbedder(llm, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create embedder: %w", ErrUnavailable, err)
	}
	vec, err := emb.EmbedQuery(ctx, probeText)
	if err != nil {
		return nil, fmt.Errorf("%w: probe %s at %s: %w", ErrUnavailable, model, baseURL, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: model %s returned an empty embedding", ErrUnavailable, model)
	}
	return &OllamaEmbedder{embedder: emb, model: model, dimensions: len(vec)}, nil
}

// Embed returns the embedding of text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	return vec, nil
}

// EmbedBatch embeds texts in the embedder's batch size.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama embed batch: got %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

// Dimensions returns the probed embedding dimension.
func (e *OllamaEmbedder) Dimensions() int { return e.dimensions }

// Model returns the Ollama model name.
func (e *OllamaEmbedder) Model() string { return e.model }

// Close is a no-op; the HTTP client holds no resources.
func (e *OllamaEmbedder) Close() error { return nil }
