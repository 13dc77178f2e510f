package vector

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func entry(id string, vec ...float32) Entry {
	return Entry{ID: id, Vector: vec, Text: "text " + id, Metadata: map[string]string{"source": id + ".pdf"}}
}

func TestMemoryIndex_UpsertQuery(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	if err := idx.Upsert(ctx, []Entry{entry("a", 1, 0, 0), entry("b", 0.9, 0.1, 0), entry("c", 0, 1, 0)}); err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 3 {
		t.Errorf("Count=%d", idx.Count())
	}
	results, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("order = %s, %s", results[0].ID, results[1].ID)
	}
	if results[0].Text != "text a" || results[0].Metadata["source"] != "a.pdf" {
		t.Errorf("payload not returned: %+v", results[0])
	}
}

func TestMemoryIndex_UpsertOverwrites(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, []Entry{entry("x", 1, 0)})
	_ = idx.Upsert(ctx, []Entry{{ID: "x", Vector: []float32{0, 1}, Text: "new"}})
	if idx.Count() != 1 {
		t.Errorf("Count=%d, want 1", idx.Count())
	}
	res, _ := idx.Query(ctx, []float32{0, 1}, 1)
	if res[0].Text != "new" {
		t.Errorf("text = %q", res[0].Text)
	}
}

func TestMemoryIndex_kLargerThanCount(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, []Entry{entry("x", 1, 0)})
	res, err := idx.Query(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 {
		t.Errorf("len=%d", len(res))
	}
	empty, _ := NewMemoryIndex(2)
	if res, _ := empty.Query(ctx, []float32{1, 0}, 4); len(res) != 0 {
		t.Errorf("empty index returned %d", len(res))
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	if err := idx.Upsert(ctx, []Entry{entry("a", 1, 0)}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("upsert err = %v", err)
	}
	if idx.Count() != 0 {
		t.Error("rejected batch must not be partially stored")
	}
	if _, err := idx.Query(ctx, []float32{1}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("query err = %v", err)
	}
}

func TestNewMemoryIndex_invalidDimensions(t *testing.T) {
	if _, err := NewMemoryIndex(0); err == nil {
		t.Error("expected error for zero dimensions")
	}
}

func TestOpenMemory_persistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	ctx := context.Background()
	idx, err := OpenMemory(dir, "mock", 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, []Entry{entry("a", 1, 0), entry("b", 0, 1)}); err != nil {
		t.Fatal(err)
	}
	_ = idx.Close()

	reopened, err := OpenMemory(dir, "mock", 2)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Count() != 2 {
		t.Errorf("Count after reopen = %d, want 2", reopened.Count())
	}
	if err := reopened.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	again, _ := OpenMemory(dir, "mock", 2)
	if again.Count() != 0 {
		t.Errorf("Count after reset = %d", again.Count())
	}
}

func TestOpenMemory_rejectsOtherModel(t *testing.T) {
	dir := t.TempDir()
	if _, err := OpenMemory(dir, "llama3", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenMemory(dir, "llama3", 3); !errors.Is(err, ErrCorrupt) {
		t.Errorf("dims change: err = %v, want ErrCorrupt", err)
	}
	if _, err := OpenMemory(dir, "nomic-embed-text", 2); !errors.Is(err, ErrCorrupt) {
		t.Errorf("model change: err = %v, want ErrCorrupt", err)
	}
}

func TestOpenMemory_corruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, snapshotFile), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenMemory(dir, "mock", 2); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestMemoryIndex_ranksByCosineForUnnormalizedVectors(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	if err := idx.Upsert(ctx, []Entry{entry("long", 10, 0), entry("aligned", 1, 1)}); err != nil {
		t.Fatal(err)
	}
	res, err := idx.Query(ctx, []float32{3, 3}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 || res[0].ID != "aligned" {
		t.Fatalf("order = %+v, want aligned first", res)
	}
	if math.Abs(res[0].Score-1) > 1e-6 || res[1].Score > 0.71 {
		t.Errorf("scores = %.4f, %.4f, want cosine values", res[0].Score, res[1].Score)
	}
}
