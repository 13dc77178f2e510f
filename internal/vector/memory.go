package vector

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/nutriguide/pkg/utils"
)

// BackendMemory identifies memory-backed indexes in the manifest.
const BackendMemory = "memory"

const snapshotFile = "index.gob"

// MemoryIndex is an in-memory vector index using brute-force cosine search. Stored and
// query vectors are L2-normalized, so the inner product is the cosine similarity.
// When opened with a directory it rewrites a gob snapshot after every change, which is
// enough for small guideline corpora and for tests.
type MemoryIndex struct {
	dimensions int
	model      string
	dir        string
	order      []string
	entries    map[string]Entry
	mu         sync.RWMutex
}

type snapshot struct {
	Dimensions int
	Entries    []Entry
}

// NewMemoryIndex creates a non-persistent in-memory index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{dimensions: dimensions, entries: make(map[string]Entry)}, nil
}

// OpenMemory opens a memory index persisted under dir, loading an existing snapshot.
func OpenMemory(dir, model string, dimensions int) (*MemoryIndex, error) {
	m, err := NewMemoryIndex(dimensions)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if err := checkManifest(manifest, BackendMemory, model, dimensions); err != nil {
		return nil, err
	}
	m.dir = dir
	m.model = model
	if err := m.load(); err != nil {
		return nil, err
	}
	if err := m.persist(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryIndex) load() error {
	f, err := os.Open(filepath.Join(m.dir, snapshotFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: open snapshot: %v", ErrCorrupt, err)
	}
	defer f.Close()
	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("%w: decode snapshot: %v", ErrCorrupt, err)
	}
	if snap.Dimensions != m.dimensions {
		return fmt.Errorf("%w: %w: snapshot has %d, index expects %d", ErrCorrupt, ErrDimensionMismatch, snap.Dimensions, m.dimensions)
	}
	for _, e := range snap.Entries {
		m.put(e)
	}
	return nil
}

// persist writes the snapshot and manifest atomically. Caller holds the write lock or owns m.
func (m *MemoryIndex) persist() error {
	if m.dir == "" {
		return nil
	}
	snap := snapshot{Dimensions: m.dimensions, Entries: make([]Entry, 0, len(m.order))}
	for _, id := range m.order {
		snap.Entries = append(snap.Entries, m.entries[id])
	}
	tmp, err := os.CreateTemp(m.dir, snapshotFile+".*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnwritable, err)
	}
	if err := gob.NewEncoder(tmp).Encode(&snap); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrUnwritable, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(m.dir, snapshotFile)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnwritable, err)
	}
	return WriteManifest(m.dir, &Manifest{Backend: BackendMemory, Model: m.model, Dimensions: m.dimensions})
}

func (m *MemoryIndex) put(e Entry) {
	if _, ok := m.entries[e.ID]; !ok {
		m.order = append(m.order, e.ID)
	}
	m.entries[e.ID] = e
}

// Upsert stores copies of entries, replacing existing IDs.
func (m *MemoryIndex) Upsert(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if len(e.Vector) != m.dimensions {
			return fmt.Errorf("%w: entry %s has %d, index expects %d", ErrDimensionMismatch, e.ID, len(e.Vector), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		vec := make([]float32, m.dimensions)
		copy(vec, e.Vector)
		utils.NormalizeL2(vec)
		meta := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
		m.put(Entry{ID: e.ID, Vector: vec, Text: e.Text, Metadata: meta})
	}
	return m.persist()
}

// Query returns the top-k entries by cosine similarity to vector.
func (m *MemoryIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) != m.dimensions {
		return nil, fmt.Errorf("%w: query has %d, index expects %d", ErrDimensionMismatch, len(vector), m.dimensions)
	}
	q := make([]float32, len(vector))
	copy(q, vector)
	utils.NormalizeL2(q)
	vector = q
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.order) == 0 {
		return nil, nil
	}
	matches := make([]Match, 0, len(m.order))
	for _, id := range m.order {
		e := m.entries[id]
		matches = append(matches, Match{ID: id, Text: e.Text, Metadata: e.Metadata, Score: InnerProduct(vector, e.Vector)})
	}
	sortMatches(matches)
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Count returns the number of entries in the index.
func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Reset removes every entry.
func (m *MemoryIndex) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = nil
	m.entries = make(map[string]Entry)
	return m.persist()
}

// Close is a no-op; every change is already on disk.
func (m *MemoryIndex) Close() error {
	return nil
}
