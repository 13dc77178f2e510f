package e2e

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/nutriguide/internal/config"
	"github.com/hyperjump/nutriguide/internal/engine"
	"github.com/hyperjump/nutriguide/internal/models"
)

const (
	e2eK          = 4
	e2eDimensions = 512
)

// writeCorpus writes every corpus file into dir, cycling through the supported formats,
// and returns the file name written for each stem.
func writeCorpus(t *testing.T, dir string, corpus *Corpus) map[string]string {
	t.Helper()
	names := make(map[string]string, len(corpus.Files))
	for i, f := range corpus.Files {
		ext := SupportedFileExtensions[i%len(SupportedFileExtensions)]
		data, err := EncodeGuideline(ext, f.Paragraphs)
		if err != nil {
			t.Fatalf("encode %s%s: %v", f.Stem, ext, err)
		}
		name := f.Stem + ext
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
		names[f.Stem] = name
	}
	return names
}

func e2eConfig(dir, backend string) *config.Config {
	cfg := &config.Config{
		Storage: config.StorageConfig{
			VectorDBPath:  filepath.Join(dir, "index"),
			VectorBackend: backend,
			PatientDBPath: filepath.Join(dir, "patients.db"),
		},
		Guidelines: config.GuidelinesConfig{Directory: filepath.Join(dir, "guidelines")},
		Embedding:  config.EmbeddingConfig{Provider: config.ProviderMock, Dimensions: e2eDimensions},
		Retrieval:  config.RetrievalConfig{DefaultK: e2eK, ChunkSize: 1000},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func startEngine(t *testing.T, cfg *config.Config) *engine.Engine {
	t.Helper()
	e, err := engine.New(context.Background(), engine.OptionsFromConfig(cfg, nil))
	if err != nil {
		t.Fatalf("start engine: %v", err)
	}
	return e
}

func runQueryCases(t *testing.T, e *engine.Engine, corpus *Corpus, names map[string]string) {
	t.Helper()
	ctx := context.Background()
	for _, tc := range corpus.TestCases {
		t.Run(tc.Description, func(t *testing.T) {
			res := e.Retrieve(ctx, tc.Query, e2eK)
			if res.Fallback {
				t.Fatalf("query %q: got fallback context", tc.Query)
			}
			want := names[tc.ExpectedStem]
			var found bool
			var got []string
			for _, h := range res.Hits {
				got = append(got, h.Chunk.Source)
				if h.Chunk.Source == want {
					found = true
					if h.Chunk.Category != tc.ExpectedTag {
						t.Errorf("hit from %s tagged %q, want %q", want, h.Chunk.Category, tc.ExpectedTag)
					}
				}
			}
			if !found {
				t.Errorf("query %q: expected %s in top %d, got %v", tc.Query, want, e2eK, got)
			}
		})
	}
}

// TestE2E_IngestRetrieveAndReattach ingests guideline files of every supported format,
// checks retrieval and category tags, then restarts the engine on the persisted index and
// checks that nothing was duplicated.
func TestE2E_IngestRetrieveAndReattach(t *testing.T) {
	for _, backend := range []string{config.BackendChromem, config.BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			cfg := e2eConfig(dir, backend)
			if err := os.MkdirAll(cfg.Guidelines.Directory, 0o755); err != nil {
				t.Fatal(err)
			}
			corpus := BuildCorpus()
			names := writeCorpus(t, cfg.Guidelines.Directory, corpus)

			first := startEngine(t, cfg)
			st := first.Status()
			if !st.IndexReady || st.State != models.StateIndexAttached {
				t.Fatalf("status after first start = %+v", st)
			}
			if st.DocumentCount != len(corpus.Files) {
				t.Errorf("document count = %d, want one chunk per file (%d)", st.DocumentCount, len(corpus.Files))
			}
			runQueryCases(t, first, corpus, names)
			if err := first.Close(); err != nil {
				t.Fatal(err)
			}

			second := startEngine(t, cfg)
			defer second.Close()
			if got := second.Status().DocumentCount; got != st.DocumentCount {
				t.Errorf("document count after re-attach = %d, want %d", got, st.DocumentCount)
			}
			runQueryCases(t, second, corpus, names)
		})
	}
}

func TestE2E_ContextCarriesCitations(t *testing.T) {
	dir := t.TempDir()
	cfg := e2eConfig(dir, config.BackendMemory)
	if err := os.MkdirAll(cfg.Guidelines.Directory, 0o755); err != nil {
		t.Fatal(err)
	}
	corpus := BuildCorpus()
	names := writeCorpus(t, cfg.Guidelines.Directory, corpus)

	e := startEngine(t, cfg)
	defer e.Close()

	res := e.Retrieve(context.Background(), "Can a diabetic patient eat mango and how much?", 1)
	if len(res.Hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(res.Hits))
	}
	want := "[Source: " + names["Diabetes_Guide"] + " | Tag: diabetes]\n"
	if len(res.Context) < len(want) || res.Context[:len(want)] != want {
		t.Errorf("context = %q, want prefix %q", res.Context, want)
	}
}
