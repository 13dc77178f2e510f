// Package engine owns the guideline index and the embedder, and answers retrieval requests
// with citation-annotated context. It degrades to a fixed fallback instead of failing when
// embeddings or the index are unavailable.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/nutriguide/internal/config"
	"github.com/hyperjump/nutriguide/internal/embedding"
	"github.com/hyperjump/nutriguide/internal/indexer"
	"github.com/hyperjump/nutriguide/internal/models"
	"github.com/hyperjump/nutriguide/internal/vector"
	"go.uber.org/zap"
)

// DefaultK is the number of hits returned when the caller asks for fewer than one.
const DefaultK = 4

// DefaultCollection names the guideline collection when none is configured.
const DefaultCollection = "medical_guidelines"

// ErrUnwritable is the only hard failure: ingestion was requested but the index directory
// cannot be written.
var ErrUnwritable = vector.ErrUnwritable

// EmbedderFactory builds the embedder. An error puts the engine in the degraded state.
type EmbedderFactory func(ctx context.Context) (embedding.Embedder, error)

// Options configures an Engine.
type Options struct {
	GuidelinesDir string
	IndexPath     string
	Backend       string
	Collection    string
	ForceReload   bool
	// Policy is config.PolicyRebuild or config.PolicyAppend.
	Policy       string
	DefaultK     int
	MaxK         int
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	NewEmbedder  EmbedderFactory
	Logger       *zap.Logger
}

// OptionsFromConfig maps cfg onto engine options using the configured embedding provider.
func OptionsFromConfig(cfg *config.Config, logger *zap.Logger) Options {
	return Options{
		GuidelinesDir: cfg.Guidelines.Directory,
		IndexPath:     cfg.Storage.VectorDBPath,
		Backend:       cfg.Storage.VectorBackend,
		Collection:    cfg.Storage.Collection,
		ForceReload:   cfg.Guidelines.ForceReload,
		Policy:        cfg.Guidelines.Policy,
		DefaultK:      cfg.Retrieval.DefaultK,
		MaxK:          cfg.Retrieval.MaxK,
		ChunkSize:     cfg.Retrieval.ChunkSize,
		ChunkOverlap:  cfg.Retrieval.ChunkOverlap,
		BatchSize:     cfg.Embedding.BatchSize,
		NewEmbedder: func(ctx context.Context) (embedding.Embedder, error) {
			return embedding.New(ctx, cfg.Embedding, logger)
		},
		Logger: logger,
	}
}

// Engine is the retrieval context engine. Ingestion holds the write lock; retrievals share
// the read lock and run concurrently with each other.
type Engine struct {
	opts     Options
	logger   *zap.Logger
	embedder embedding.Embedder
	index    vector.Index
	indexer  *indexer.Indexer

	mu    sync.RWMutex
	state models.EngineState
	stale atomic.Bool
	// startup is the ingestion New ran, if any.
	startup *models.IngestResult
}

// New constructs the engine: embeddings first, then attach, create or reload the index as
// Decide says. Unavailable embeddings or an unusable index leave the engine degraded with a
// nil error. An error is returned only for configuration that prevents even degraded
// operation.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.IndexPath == "" {
		return nil, fmt.Errorf("%w: index path is not configured", ErrUnwritable)
	}
	if opts.NewEmbedder == nil {
		return nil, errors.New("embedder factory is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultK < 1 {
		opts.DefaultK = DefaultK
	}
	if opts.Policy == "" {
		opts.Policy = config.PolicyRebuild
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	e := &Engine{opts: opts, logger: opts.Logger, state: models.StateUninitialized}

	emb, err := opts.NewEmbedder(ctx)
	if err != nil {
		e.logger.Warn("embeddings unavailable, running degraded", zap.Error(err))
		e.state = models.StateDegraded
		return e, nil
	}
	e.embedder = emb
	e.state = models.StateEmbeddingsReady

	exists, nonEmpty := vector.ExistsOnDisk(opts.IndexPath)
	action := Decide(opts.ForceReload, exists, nonEmpty)
	e.logger.Info("opening guideline index",
		zap.String("action", action.String()),
		zap.String("path", opts.IndexPath),
		zap.String("backend", opts.Backend))

	switch action {
	case ActionAttach:
		if err := e.open(); err != nil {
			if !errors.Is(err, vector.ErrCorrupt) {
				e.degrade("cannot attach to persisted index", err)
				return e, nil
			}
			e.logger.Warn("persisted index unusable, rebuilding", zap.Error(err))
			if err := e.recreate(); err != nil {
				e.degrade("cannot create a fresh index", err)
				return e, nil
			}
			res, err := e.ingestLocked(ctx, false)
			if err != nil {
				e.degrade("ingestion into fresh index failed", err)
				return e, nil
			}
			e.startup = &res
			return e, nil
		}
		e.settle()
		e.logger.Info("attached to persisted index", zap.Int("entries", e.index.Count()))
	default:
		err := e.open()
		if errors.Is(err, vector.ErrCorrupt) {
			e.logger.Warn("persisted index unusable, rebuilding", zap.Error(err))
			err = e.recreate()
		}
		if err != nil {
			if errors.Is(err, ErrUnwritable) {
				e.Close()
				return nil, fmt.Errorf("open index for ingestion: %w", err)
			}
			e.degrade("cannot open index", err)
			return e, nil
		}
		reset := action == ActionReload && opts.Policy == config.PolicyRebuild
		res, err := e.ingestLocked(ctx, reset)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.startup = &res
	}
	return e, nil
}

func (e *Engine) open() error {
	idx, err := vector.Open(e.opts.Backend, e.opts.IndexPath, e.opts.Collection, embedding.ModelName(e.embedder), e.embedder.Dimensions())
	if err != nil {
		return err
	}
	e.index = idx
	e.indexer = indexer.NewIndexer(
		indexer.NewLoader(nil),
		indexer.NewChunker(e.opts.ChunkSize, e.opts.ChunkOverlap),
		e.embedder,
		idx,
		indexer.WithLogger(e.logger),
		indexer.WithBatchSize(e.opts.BatchSize),
	)
	return nil
}

// recreate wipes the persisted index and opens an empty one in its place.
func (e *Engine) recreate() error {
	if err := vector.Wipe(e.opts.IndexPath); err != nil {
		return err
	}
	return e.open()
}

func (e *Engine) degrade(msg string, err error) {
	e.logger.Warn(msg+", running degraded", zap.Error(err))
	if e.index != nil {
		_ = e.index.Close()
		e.index = nil
		e.indexer = nil
	}
	e.state = models.StateDegraded
}

// settle derives the state from the index content. Caller holds the write lock or owns e.
func (e *Engine) settle() {
	if e.index.Count() > 0 {
		e.state = models.StateIndexAttached
	} else {
		e.state = models.StateIndexEmpty
	}
}

// Ingest reads every guideline file into the index using the configured re-ingest policy.
// A degraded engine stores nothing and returns no error. The error is non-nil only when
// the index cannot be written or ctx is canceled.
func (e *Engine) Ingest(ctx context.Context) (models.IngestResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index == nil {
		e.logger.Warn("ingestion skipped, engine is degraded")
		return models.IngestResult{}, nil
	}
	return e.ingestLocked(ctx, e.opts.Policy == config.PolicyRebuild)
}

func (e *Engine) ingestLocked(ctx context.Context, reset bool) (models.IngestResult, error) {
	res, err := e.indexer.IndexDirectory(ctx, e.opts.GuidelinesDir, reset)
	e.settle()
	if err != nil {
		return res, err
	}
	if res.Stored {
		e.stale.Store(false)
	}
	e.logger.Info("ingestion finished",
		zap.Bool("stored", res.Stored),
		zap.Int("files", res.Files),
		zap.Int("chunks", res.Chunks),
		zap.Int("failures", len(res.Failures)),
		zap.Int("entries", e.index.Count()))
	return res, nil
}

// Retrieve returns the k most similar chunks for query and their formatted context.
// k < 1 means the default. Whenever nothing can be retrieved the result carries the
// fixed fallback text and no hits.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) models.Retrieval {
	if k < 1 {
		k = e.opts.DefaultK
	}
	if e.opts.MaxK > 0 && k > e.opts.MaxK {
		k = e.opts.MaxK
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.index == nil || e.index.Count() == 0 {
		return fallback()
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed", zap.Error(err))
		return fallback()
	}
	matches, err := e.index.Query(ctx, vec, k)
	if err != nil {
		e.logger.Warn("similarity search failed", zap.Error(err))
		return fallback()
	}
	if len(matches) == 0 {
		return fallback()
	}
	hits := make([]models.Hit, len(matches))
	for i, m := range matches {
		hits[i] = hitFromMatch(m)
	}
	return models.Retrieval{Context: FormatContext(hits), Hits: hits}
}

// Status reports readiness and the number of stored chunks.
func (e *Engine) Status() models.Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := models.Status{
		EmbeddingsReady: e.embedder != nil,
		IndexReady:      e.index != nil,
		State:           e.state,
		Stale:           e.stale.Load(),
	}
	if e.index != nil {
		st.DocumentCount = e.index.Count()
	}
	return st
}

// StartupIngest returns the result of the ingestion New ran while creating, rebuilding or
// reloading the index. ok is false when New attached to an existing index or degraded.
func (e *Engine) StartupIngest() (res models.IngestResult, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.startup == nil {
		return models.IngestResult{}, false
	}
	return *e.startup, true
}

// MarkStale records that guideline files changed since the last ingestion.
func (e *Engine) MarkStale() {
	e.stale.Store(true)
}

// GuidelinesDir returns the directory ingestion reads from.
func (e *Engine) GuidelinesDir() string { return e.opts.GuidelinesDir }

// Close releases the index and the embedder.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	if e.index != nil {
		errs = append(errs, e.index.Close())
		e.index = nil
		e.indexer = nil
	}
	if e.embedder != nil {
		errs = append(errs, e.embedder.Close())
		e.embedder = nil
	}
	return errors.Join(errs...)
}
