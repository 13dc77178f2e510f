package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/nutriguide/internal/embedding"
	"github.com/hyperjump/nutriguide/internal/models"
	"github.com/hyperjump/nutriguide/internal/vector"
)

const testDims = 64

type failingEmbedder struct {
	*embedding.MockEmbedder
	failOn string
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if strings.Contains(t, f.failOn) {
			return nil, embedding.ErrUnavailable
		}
	}
	return f.MockEmbedder.EmbedBatch(ctx, texts)
}

func newTestIndexer(t *testing.T, emb embedding.Embedder, chunkSize int) (*Indexer, *vector.MemoryIndex) {
	t.Helper()
	idx, err := vector.NewMemoryIndex(testDims)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	return NewIndexer(NewLoader(nil), NewChunker(chunkSize, 0), emb, idx, WithBatchSize(2)), idx
}

func TestIndexDirectory_categorizesAndStores(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "diabetes_guide.txt", strings.Repeat("Prefer millets and whole grains over white rice. ", 10))
	writeFile(t, dir, "general_diet.txt", "Drink enough water and eat seasonal vegetables.")

	ix, idx := newTestIndexer(t, embedding.NewMockEmbedder(testDims), 200)
	ctx := context.Background()
	res, err := ix.IndexDirectory(ctx, dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Stored || res.Files != 2 || len(res.Failures) != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.Chunks < 3 || idx.Count() != res.Chunks {
		t.Errorf("chunks=%d count=%d", res.Chunks, idx.Count())
	}

	q, _ := embedding.NewMockEmbedder(testDims).Embed(ctx, "Drink enough water and eat seasonal vegetables.")
	matches, err := idx.Query(ctx, q, 1)
	if err != nil {
		t.Fatal(err)
	}
	m := matches[0].Metadata
	if m[models.MetaSource] != "general_diet.txt" || m[models.MetaCategory] != string(models.CategoryGeneral) {
		t.Errorf("top match metadata = %v", m)
	}
}

func TestIndexDirectory_reingestDoesNotDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pcos_plan.txt", strings.Repeat("Include protein at breakfast. ", 20))
	ix, idx := newTestIndexer(t, embedding.NewMockEmbedder(testDims), 150)
	ctx := context.Background()

	first, err := ix.IndexDirectory(ctx, dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ix.IndexDirectory(ctx, dir, false); err != nil {
		t.Fatal(err)
	}
	if idx.Count() != first.Chunks {
		t.Errorf("count after append re-ingest = %d, want %d", idx.Count(), first.Chunks)
	}
}

func TestIndexDirectory_resetDropsRemovedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "anaemia.txt", "Pair iron-rich foods with vitamin C.")
	ix, idx := newTestIndexer(t, embedding.NewMockEmbedder(testDims), 200)
	ctx := context.Background()
	if _, err := ix.IndexDirectory(ctx, dir, false); err != nil {
		t.Fatal(err)
	}

	other := t.TempDir()
	writeFile(t, other, "obesity.txt", "Keep portions small.")
	res, err := ix.IndexDirectory(ctx, other, true)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Count() != res.Chunks || res.Chunks != 1 {
		t.Errorf("count=%d chunks=%d", idx.Count(), res.Chunks)
	}
}

func TestIndexDirectory_resetKeepsIndexWhenNothingLoads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "anaemia.txt", "Pair iron-rich foods with vitamin C.")
	ix, idx := newTestIndexer(t, embedding.NewMockEmbedder(testDims), 200)
	ctx := context.Background()
	if _, err := ix.IndexDirectory(ctx, dir, false); err != nil {
		t.Fatal(err)
	}

	empty := t.TempDir()
	writeFile(t, empty, "blank.txt", "   ")
	res, err := ix.IndexDirectory(ctx, empty, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stored || len(res.Failures) != 1 {
		t.Errorf("result = %+v", res)
	}
	if idx.Count() != 1 {
		t.Errorf("index was cleared: count=%d", idx.Count())
	}
}

func TestIndexDirectory_failingFileIsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "diabetes_guide.txt", "Avoid sugary drinks.")
	writeFile(t, dir, "general_diet.txt", "POISON text that cannot be embedded.")
	emb := &failingEmbedder{MockEmbedder: embedding.NewMockEmbedder(testDims), failOn: "POISON"}
	ix, idx := newTestIndexer(t, emb, 200)

	res, err := ix.IndexDirectory(context.Background(), dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Stored || idx.Count() != 1 {
		t.Errorf("stored=%v count=%d", res.Stored, idx.Count())
	}
	if len(res.Failures) != 1 || res.Failures[0].Source != "general_diet.txt" {
		t.Errorf("failures = %+v", res.Failures)
	}
}

func TestIndexDirectory_missingDir(t *testing.T) {
	ix, idx := newTestIndexer(t, embedding.NewMockEmbedder(testDims), 200)
	res, err := ix.IndexDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"), true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stored || res.Files != 0 || idx.Count() != 0 {
		t.Errorf("result = %+v count=%d", res, idx.Count())
	}
}

func TestIndexDirectory_canceled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "general_diet.txt", "Eat slowly.")
	ix, _ := newTestIndexer(t, embedding.NewMockEmbedder(testDims), 200)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ix.IndexDirectory(ctx, dir, false); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestIndexDirectory_resetKeepsIndexWhenEmbeddingFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "anaemia.txt", "Pair iron-rich foods with vitamin C.")
	ix, idx := newTestIndexer(t, embedding.NewMockEmbedder(testDims), 200)
	ctx := context.Background()
	if _, err := ix.IndexDirectory(ctx, dir, false); err != nil {
		t.Fatal(err)
	}

	// an empty failOn matches every text
	down := &failingEmbedder{MockEmbedder: embedding.NewMockEmbedder(testDims), failOn: ""}
	rebuild := NewIndexer(NewLoader(nil), NewChunker(200, 0), down, idx, WithBatchSize(2))
	res, err := rebuild.IndexDirectory(ctx, dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stored || len(res.Failures) != 1 || res.Failures[0].Source != "anaemia.txt" {
		t.Errorf("result = %+v", res)
	}
	if idx.Count() != 1 {
		t.Errorf("index was cleared by a rebuild that embedded nothing: count=%d", idx.Count())
	}
}

func TestIndexDirectory_rebuildSurvivesCancelAfterReset(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "anaemia.txt", "Pair iron-rich foods with vitamin C.")
	writeFile(t, dir, "diabetes_guide.txt", "Avoid sugary drinks.")
	ctx, cancel := context.WithCancel(context.Background())
	idx, err := vector.NewMemoryIndex(testDims)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ix := NewIndexer(NewLoader(nil), NewChunker(200, 0), embedding.NewMockEmbedder(testDims),
		&cancelOnReset{Index: idx, cancel: cancel}, WithBatchSize(2))

	res, err := ix.IndexDirectory(ctx, dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Stored || idx.Count() != 2 {
		t.Errorf("stored=%v count=%d, want both files after reset", res.Stored, idx.Count())
	}
}

// cancelOnReset cancels the ingest context as soon as the index is cleared.
type cancelOnReset struct {
	vector.Index
	cancel context.CancelFunc
}

func (c *cancelOnReset) Reset(ctx context.Context) error {
	err := c.Index.Reset(ctx)
	c.cancel()
	return err
}
