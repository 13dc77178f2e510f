package vector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// BackendChromem identifies chromem-backed indexes in the manifest.
const BackendChromem = "chromem"

// errNoEmbeddingFunc guards against chromem computing embeddings itself.
var errNoEmbeddingFunc = errors.New("chromem: documents must carry precomputed embeddings")

// ChromemIndex is an Index persisted by chromem-go under a directory.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	path       string
	name       string
	model      string
	dimensions int
	mu         sync.RWMutex
}

// OpenChromem attaches to (or creates) the chromem store at path and the named collection.
// A store that fails to load, or whose manifest disagrees with model/dimensions, yields ErrCorrupt.
// Bad arguments never do, so callers that rebuild on ErrCorrupt leave the store alone.
func OpenChromem(path, collection, model string, dimensions int) (*ChromemIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty index path", ErrUnwritable)
	}
	if collection == "" {
		return nil, errors.New("chromem: collection name is empty")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	m, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	if err := checkManifest(m, BackendChromem, model, dimensions); err != nil {
		return nil, err
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: load chromem store: %v", ErrCorrupt, err)
	}
	idx := &ChromemIndex{db: db, path: path, name: collection, model: model, dimensions: dimensions}
	if err := idx.openCollection(); err != nil {
		return nil, err
	}
	if err := idx.writeManifest(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (c *ChromemIndex) openCollection() error {
	coll, err := c.db.GetOrCreateCollection(c.name, map[string]string{"model": c.model}, rejectEmbedding)
	if err != nil {
		return fmt.Errorf("open collection %s: %w", c.name, err)
	}
	c.collection = coll
	return nil
}

func (c *ChromemIndex) writeManifest() error {
	return WriteManifest(c.path, &Manifest{
		Backend:    BackendChromem,
		Collection: c.name,
		Model:      c.model,
		Dimensions: c.dimensions,
	})
}

func rejectEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// Upsert stores entries; existing IDs are overwritten in place.
func (c *ChromemIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		if len(e.Vector) != c.dimensions {
			return fmt.Errorf("%w: entry %s has %d, index expects %d", ErrDimensionMismatch, e.ID, len(e.Vector), c.dimensions)
		}
		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   e.Text,
			Metadata:  e.Metadata,
			Embedding: e.Vector,
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem add documents: %w", err)
	}
	return nil
}

// Query returns up to k nearest entries.
func (c *ChromemIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) != c.dimensions {
		return nil, fmt.Errorf("%w: query has %d, index expects %d", ErrDimensionMismatch, len(vector), c.dimensions)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := c.collection.Count()
	if k <= 0 || n == 0 {
		return nil, nil
	}
	// chromem rejects nResults larger than the collection
	if k > n {
		k = n
	}
	results, err := c.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{ID: r.ID, Text: r.Content, Metadata: r.Metadata, Score: float64(r.Similarity)}
	}
	sortMatches(matches)
	return matches, nil
}

// Count returns the number of stored entries.
func (c *ChromemIndex) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection.Count()
}

// Reset deletes and recreates the collection.
func (c *ChromemIndex) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.db.DeleteCollection(c.name); err != nil {
		return fmt.Errorf("%w: delete collection %s: %v", ErrUnwritable, c.name, err)
	}
	if err := c.openCollection(); err != nil {
		return err
	}
	return c.writeManifest()
}

// Close releases the handle. chromem persists on every write, so there is nothing to flush.
func (c *ChromemIndex) Close() error {
	return nil
}
