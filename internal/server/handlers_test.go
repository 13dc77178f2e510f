package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/nutriguide/internal/clinical"
	"github.com/hyperjump/nutriguide/internal/config"
	"github.com/hyperjump/nutriguide/internal/consult"
	"github.com/hyperjump/nutriguide/internal/embedding"
	"github.com/hyperjump/nutriguide/internal/engine"
	"github.com/hyperjump/nutriguide/internal/models"
	"github.com/hyperjump/nutriguide/internal/storage"
	"github.com/hyperjump/nutriguide/internal/vector"
)

type scriptedGenerator struct{ fragments []string }

func (g *scriptedGenerator) Ready() bool { return true }

func (g *scriptedGenerator) Stream(context.Context, string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range g.fragments {
			if !yield(f, nil) {
				return
			}
		}
	}
}

type testEnv struct {
	handler    http.Handler
	guidelines string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	guidelines := filepath.Join(dir, "guidelines")
	if err := os.MkdirAll(guidelines, 0o755); err != nil {
		t.Fatal(err)
	}
	text := "Limit salt to five grams a day.\n\nMangoes are fine in small portions for most adults."
	if err := os.WriteFile(filepath.Join(guidelines, "hypertension_guide.txt"), []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.Guidelines.Directory = guidelines
	cfg.Storage.VectorDBPath = filepath.Join(dir, "index")
	cfg.Storage.VectorBackend = vector.BackendMemory
	cfg.Storage.PatientDBPath = filepath.Join(dir, "patients.db")
	cfg.Retrieval.ChunkSize = 60
	cfg.Server.RequestTimeoutSeconds = 10

	opts := engine.OptionsFromConfig(cfg, nil)
	opts.NewEmbedder = func(context.Context) (embedding.Embedder, error) {
		return embedding.NewMockEmbedder(32), nil
	}
	eng, err := engine.New(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { eng.Close() })

	store, err := storage.NewSQLiteStorage(cfg.Storage.PatientDBPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	formatter := clinical.NewFormatter(store, nil)
	gen := &scriptedGenerator{fragments: []string{"Limit. ", "Half a mango."}}
	svc := consult.NewService(eng, formatter, gen, consult.WithHistory(store), consult.WithPatientLookup(store))
	srv := NewServer(Deps{Engine: eng, Consult: svc, Patients: store, Contexts: formatter, Generator: gen}, cfg, nil)
	return &testEnv{handler: srv.Handler(), guidelines: guidelines}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHealthAndStatus(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("health status %d", w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status code %d", w.Code)
	}
	var st struct {
		EmbeddingsReady bool   `json:"embeddings_ready"`
		IndexReady      bool   `json:"index_ready"`
		DocumentCount   int    `json:"document_count"`
		State           string `json:"state"`
		GenerationReady bool   `json:"generation_ready"`
		Disk            struct {
			IndexBytes int64 `json:"index_bytes"`
		} `json:"disk"`
	}
	decode(t, w, &st)
	if !st.EmbeddingsReady || !st.IndexReady || st.DocumentCount != 2 || st.State != string(models.StateIndexAttached) || !st.GenerationReady {
		t.Errorf("status = %+v", st)
	}
	if st.Disk.IndexBytes == 0 {
		t.Error("index footprint not reported")
	}
}

func TestRetrieve(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/retrieve", map[string]interface{}{"query": "can I eat mangoes", "k": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("code %d: %s", w.Code, w.Body.String())
	}
	var r models.Retrieval
	decode(t, w, &r)
	if r.Fallback || len(r.Hits) != 1 || !strings.Contains(r.Context, "hypertension_guide.txt") {
		t.Errorf("retrieval = %+v", r)
	}

	bad := httptest.NewRecorder()
	env.handler.ServeHTTP(bad, httptest.NewRequest(http.MethodPost, "/api/v1/retrieve", strings.NewReader("{")))
	if bad.Code != http.StatusBadRequest {
		t.Errorf("bad body code %d", bad.Code)
	}
}

func TestIngest(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.guidelines, "general_diet.txt"), []byte("Drink water."), 0o644); err != nil {
		t.Fatal(err)
	}
	w := env.do(t, http.MethodPost, "/api/v1/ingest", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code %d: %s", w.Code, w.Body.String())
	}
	var res models.IngestResult
	decode(t, w, &res)
	if !res.Stored || res.Files != 2 || res.Chunks != 3 {
		t.Errorf("ingest = %+v", res)
	}
}

func TestPatients(t *testing.T) {
	env := newTestEnv(t)
	reg := clinical.Registration{Name: "Ravi", Age: 45, Gender: "Male", Condition: "Hypertension", Systolic: 150, Diastolic: 95, Goal: "Lower BP"}

	w := env.do(t, http.MethodPost, "/api/v1/patients", reg)
	if w.Code != http.StatusCreated {
		t.Fatalf("create code %d: %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodPost, "/api/v1/patients", reg); w.Code != http.StatusConflict {
		t.Errorf("duplicate code %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/patients", clinical.Registration{}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid code %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/patients/Ravi", nil)
	var view struct {
		Name      string `json:"name"`
		Condition string `json:"condition"`
		Markers   string `json:"clinical_markers"`
	}
	decode(t, w, &view)
	if view.Name != "Ravi" || view.Condition != "Hypertension" || view.Markers != "BP: 150/95 mmHg" {
		t.Errorf("view = %+v", view)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/patients/Nobody", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing patient code %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/patients/Nobody/context", nil)
	var pc map[string]string
	decode(t, w, &pc)
	if pc["context"] != clinical.GeneralPublic {
		t.Errorf("unknown patient context = %q", pc["context"])
	}

	w = env.do(t, http.MethodGet, "/api/v1/patients", nil)
	var list struct {
		Patients []map[string]interface{} `json:"patients"`
	}
	decode(t, w, &list)
	if len(list.Patients) != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestAskStreamsAndRecordsHistory(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/patients", clinical.Registration{Name: "Ravi", Condition: "Hypertension", Systolic: 150, Diastolic: 95})

	w := env.do(t, http.MethodPost, "/api/v1/ask", map[string]string{"patient": "Ravi", "question": "can I eat mangoes"})
	if w.Code != http.StatusOK {
		t.Fatalf("code %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type %q", ct)
	}
	var events []askEvent
	sc := bufio.NewScanner(w.Body)
	for sc.Scan() {
		var ev askEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		events = append(events, ev)
	}
	if len(events) != 3 || events[0].Type != "token" || events[1].Text != "Half a mango." {
		t.Fatalf("events = %+v", events)
	}
	last := events[2]
	if last.Type != "sources" || len(last.Sources) == 0 || last.Grounded == nil || !*last.Grounded {
		t.Errorf("sources event = %+v", last)
	}

	w = env.do(t, http.MethodGet, "/api/v1/patients/Ravi/history?limit=10", nil)
	var hist struct {
		Messages []models.Message `json:"messages"`
	}
	decode(t, w, &hist)
	if len(hist.Messages) != 2 || hist.Messages[1].Content != "Limit. Half a mango." {
		t.Errorf("history = %+v", hist.Messages)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/patients/Ravi/history?limit=x", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit code %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/ask", map[string]string{"question": " "}); w.Code != http.StatusBadRequest {
		t.Errorf("empty question code %d", w.Code)
	}
}
