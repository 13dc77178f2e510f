package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/nutriguide/internal/config"
	"go.uber.org/zap"
)

// New builds the embedder described by cfg: the provider, guarded by a circuit breaker,
// with query embeddings cached. An unreachable Ollama server yields an error wrapping
// ErrUnavailable.
func New(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var base Embedder
	switch cfg.Provider {
	case config.ProviderMock:
		base = NewMockEmbedder(cfg.Dimensions)
	case config.ProviderOllama, "":
		o, err := NewOllamaEmbedder(ctx, cfg.BaseURL, cfg.Model, cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		base = o
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	logger.Info("embeddings ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", ModelName(base)),
		zap.Int("dimensions", base.Dimensions()))

	var e Embedder = NewGuardedEmbedder(base, GuardOptions{
		FailureThreshold:  cfg.FailureThreshold,
		OpenTimeout:       time.Duration(cfg.BreakerTimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            logger,
	})
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}
