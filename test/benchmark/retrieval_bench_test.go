package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/nutriguide/internal/embedding"
	"github.com/hyperjump/nutriguide/internal/engine"
	"github.com/hyperjump/nutriguide/internal/indexer"
	"github.com/hyperjump/nutriguide/internal/models"
	"github.com/hyperjump/nutriguide/internal/vector"
)

func BenchmarkChunkerSplit(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "Paragraph %d. Limit salt and sugar, prefer whole grains and vegetables.\n\n", i)
	}
	units := []models.DocumentUnit{{Text: sb.String(), Source: "ICMR_Dietary_Guidelines.pdf", Category: models.CategoryGeneral, Page: 1}}
	c := indexer.NewChunker(indexer.DefaultChunkSize, 100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Split(units)
	}
}

func BenchmarkMemoryIndexQuery(b *testing.B) {
	idx, _ := vector.NewMemoryIndex(384)
	ctx := context.Background()
	entries := make([]vector.Entry, 1000)
	for i := range entries {
		vec := make([]float32, 384)
		vec[0] = float32(i) / 1000
		vec[1+i%383] = 1
		entries[i] = vector.Entry{ID: fmt.Sprintf("chunk-%d", i), Vector: vec}
	}
	_ = idx.Upsert(ctx, entries)
	query := make([]float32, 384)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Query(ctx, query, engine.DefaultK)
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := embedding.NewMockEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "can a diabetic patient eat mango after lunch")
	}
}

func BenchmarkFormatContext(b *testing.B) {
	hits := make([]models.Hit, engine.DefaultK)
	for i := range hits {
		hits[i] = models.Hit{Chunk: models.Chunk{
			Text:     strings.Repeat("Prefer millets over refined rice. ", 20),
			Source:   "Diabetes_Guide.pdf",
			Category: models.CategoryDiabetes,
		}}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = engine.FormatContext(hits)
	}
}
