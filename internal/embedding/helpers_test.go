package embedding

import "github.com/hyperjump/nutriguide/internal/config"

func configFor(provider string) config.EmbeddingConfig {
	return config.EmbeddingConfig{Provider: provider, Dimensions: 32, CacheSize: 10}
}
