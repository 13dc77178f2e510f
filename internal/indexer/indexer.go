package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hyperjump/nutriguide/internal/embedding"
	"github.com/hyperjump/nutriguide/internal/models"
	"github.com/hyperjump/nutriguide/internal/vector"
	"go.uber.org/zap"
)

const defaultBatchSize = 32

// Indexer runs the ingest path: load -> chunk -> embed -> upsert.
type Indexer struct {
	loader    *Loader
	chunker   *Chunker
	embedder  embedding.Embedder
	index     vector.Index
	batchSize int
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for per-file progress and failures.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithBatchSize sets how many chunks are embedded per call.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// NewIndexer creates an indexer writing into index.
func NewIndexer(loader *Loader, chunker *Chunker, embedder embedding.Embedder, index vector.Index, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		loader:    loader,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		batchSize: defaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

type loadedFile struct {
	name  string
	units []models.DocumentUnit
}

type embeddedFile struct {
	name    string
	entries []vector.Entry
}

// IndexDirectory ingests every guideline file in dir. Files that cannot be read, embedded or
// stored are logged, reported in Failures and skipped. Every file is embedded before the
// index is touched: when reset is true the index is cleared only once at least one file
// has embeddings ready, so an empty directory or an embedding outage never wipes a working
// index. Once clearing has started, storing runs to completion even if ctx ends.
// The error is non-nil only when the index itself cannot be written or ctx ends first.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, reset bool) (models.IngestResult, error) {
	var result models.IngestResult
	files, err := idx.loader.Files(dir)
	if err != nil {
		idx.logger.Warn("guideline directory unreadable", zap.String("dir", dir), zap.Error(err))
		result.Failures = append(result.Failures, models.FileError{Source: dir, Err: err.Error()})
		return result, nil
	}
	result.Files = len(files)
	if len(files) == 0 {
		idx.logger.Info("no guideline files found", zap.String("dir", dir))
		return result, nil
	}

	var loaded []loadedFile
	for _, f := range files {
		name := filepath.Base(f)
		units, err := idx.loader.LoadFile(f)
		if err != nil {
			idx.logger.Warn("skipping guideline file", zap.String("file", name), zap.Error(err))
			result.Failures = append(result.Failures, models.FileError{Source: name, Err: err.Error()})
			continue
		}
		idx.logger.Debug("guideline file loaded", zap.String("file", name), zap.Int("units", len(units)))
		loaded = append(loaded, loadedFile{name: name, units: units})
	}

	var embedded []embeddedFile
	for _, lf := range loaded {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		entries, err := idx.EmbedUnits(ctx, lf.units)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			idx.logger.Warn("failed to embed guideline file", zap.String("file", lf.name), zap.Error(err))
			result.Failures = append(result.Failures, models.FileError{Source: lf.name, Err: err.Error()})
			continue
		}
		embedded = append(embedded, embeddedFile{name: lf.name, entries: entries})
	}
	if len(embedded) == 0 {
		return result, nil
	}

	storeCtx := ctx
	if reset {
		storeCtx = context.WithoutCancel(ctx)
		if err := idx.index.Reset(storeCtx); err != nil {
			return result, fmt.Errorf("reset index: %w", err)
		}
		idx.logger.Info("index cleared for rebuild")
	}

	for _, ef := range embedded {
		if err := storeCtx.Err(); err != nil {
			return result, err
		}
		n, err := idx.store(storeCtx, ef.entries)
		result.Chunks += n
		if err != nil {
			if errors.Is(err, vector.ErrUnwritable) {
				return result, err
			}
			idx.logger.Warn("failed to index guideline file", zap.String("file", ef.name), zap.Int("stored", n), zap.Error(err))
			result.Failures = append(result.Failures, models.FileError{Source: ef.name, Err: err.Error()})
			continue
		}
		idx.logger.Info("guideline file indexed", zap.String("file", ef.name), zap.Int("chunks", n))
	}
	result.Stored = result.Chunks > 0
	return result, nil
}

// EmbedUnits chunks units and embeds the chunks in batches without touching the index.
func (idx *Indexer) EmbedUnits(ctx context.Context, units []models.DocumentUnit) ([]vector.Entry, error) {
	chunks := idx.chunker.Split(units)
	entries := make([]vector.Entry, 0, len(chunks))
	for start := 0; start < len(chunks); start += idx.batchSize {
		end := min(start+idx.batchSize, len(chunks))
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text
		}
		vectors, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		for i := range batch {
			entries = append(entries, vector.Entry{
				ID:       batch[i].ID,
				Vector:   vectors[i],
				Text:     batch[i].Text,
				Metadata: batch[i].Metadata(),
			})
		}
	}
	return entries, nil
}

// store upserts entries in batches and returns how many were stored before any error.
func (idx *Indexer) store(ctx context.Context, entries []vector.Entry) (int, error) {
	stored := 0
	for start := 0; start < len(entries); start += idx.batchSize {
		end := min(start+idx.batchSize, len(entries))
		if err := idx.index.Upsert(ctx, entries[start:end]); err != nil {
			return stored, fmt.Errorf("failed to store chunks: %w", err)
		}
		stored += end - start
	}
	return stored, nil
}
