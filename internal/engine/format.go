package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/nutriguide/internal/models"
	"github.com/hyperjump/nutriguide/internal/vector"
)

// Fallback replaces the retrieved context whenever nothing can be retrieved.
const Fallback = "Please refer to standard medical guidelines."

// FormatContext renders hits as citation-annotated blocks separated by a blank line.
func FormatContext(hits []models.Hit) string {
	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		blocks = append(blocks, fmt.Sprintf("[Source: %s | Tag: %s]\n%s", h.Chunk.Source, h.Chunk.Category, h.Chunk.Text))
	}
	return strings.Join(blocks, "\n\n")
}

func hitFromMatch(m vector.Match) models.Hit {
	page, _ := strconv.Atoi(m.Metadata[models.MetaPage])
	seq, _ := strconv.Atoi(m.Metadata[models.MetaSequence])
	category := models.Category(m.Metadata[models.MetaCategory])
	if category == "" {
		category = models.CategoryGeneral
	}
	return models.Hit{
		Chunk: models.Chunk{
			ID:       m.ID,
			Text:     m.Text,
			Source:   m.Metadata[models.MetaSource],
			Category: category,
			Page:     page,
			Sequence: seq,
		},
		Score: m.Score,
	}
}

func fallback() models.Retrieval {
	return models.Retrieval{Context: Fallback, Hits: []models.Hit{}, Fallback: true}
}
