// Package vector provides persistent vector indexes with upsert and similarity search.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrCorrupt is returned when a persisted index cannot be loaded or was built
	// with a different embedding model.
	ErrCorrupt = errors.New("persisted index unusable")
	// ErrUnwritable is returned when the persistence directory cannot be created or written.
	ErrUnwritable = errors.New("index directory not writable")
)

// Entry is a chunk stored in the index, keyed by ID.
type Entry struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Match is a query hit. Score is the similarity (inner product of unit vectors).
type Match struct {
	ID       string
	Text     string
	Metadata map[string]string
	Score    float64
}

// Index is a key -> (vector, text, metadata) store with nearest-neighbor search.
// Implementations persist every write, so a reopened index has the same Count.
type Index interface {
	// Upsert stores entries, replacing any with the same ID.
	Upsert(ctx context.Context, entries []Entry) error
	// Query returns up to k matches ranked by non-increasing score.
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
	Count() int
	// Reset removes every entry.
	Reset(ctx context.Context) error
	Close() error
}
