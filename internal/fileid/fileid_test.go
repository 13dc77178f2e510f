package fileid

import (
	"strings"
	"testing"
)

func TestFileDocID_stable(t *testing.T) {
	a := FileDocID("/data/guidelines/diabetes_guide.pdf")
	b := FileDocID("diabetes_guide.pdf")
	if a != b {
		t.Errorf("same base name should give same ID: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "file:") {
		t.Errorf("missing prefix: %s", a)
	}
	if FileDocID("general_diet.pdf") == a {
		t.Error("different files should differ")
	}
}

func TestChunkID(t *testing.T) {
	id := ChunkID("diabetes_guide.pdf", 0)
	if id != ChunkID("diabetes_guide.pdf", 0) {
		t.Error("ChunkID not deterministic")
	}
	if id == ChunkID("diabetes_guide.pdf", 1) {
		t.Error("sequence must change the ID")
	}
	if id == ChunkID("general_diet.pdf", 0) {
		t.Error("source must change the ID")
	}
	if len(id) != 36 {
		t.Errorf("want UUID string, got %q", id)
	}
}
