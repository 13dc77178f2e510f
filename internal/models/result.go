package models

import "strconv"

// Hit is a retrieved chunk with its similarity score.
type Hit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Retrieval is the result of a retrieve call.
// Fallback is true when Context holds the fixed fallback text and Hits is empty.
type Retrieval struct {
	Context  string `json:"context"`
	Hits     []Hit  `json:"hits"`
	Fallback bool   `json:"fallback"`
}

// EngineState is the lifecycle state of the retrieval engine.
type EngineState string

const (
	StateUninitialized   EngineState = "uninitialized"
	StateEmbeddingsReady EngineState = "embeddings_ready"
	StateIndexAttached   EngineState = "index_attached"
	StateIndexEmpty      EngineState = "index_empty"
	StateDegraded        EngineState = "degraded"
)

// Status reports engine readiness.
type Status struct {
	EmbeddingsReady bool        `json:"embeddings_ready"`
	IndexReady      bool        `json:"index_ready"`
	DocumentCount   int         `json:"document_count"`
	State           EngineState `json:"state"`
	// Stale is set when guideline files changed since the last ingestion.
	Stale bool `json:"stale,omitempty"`
}

// FileError records a per-file ingestion failure.
type FileError struct {
	Source string `json:"source"`
	Err    string `json:"error"`
}

// IngestResult summarizes an ingestion run.
type IngestResult struct {
	Stored   bool        `json:"stored"`
	Files    int         `json:"files"`
	Chunks   int         `json:"chunks"`
	Failures []FileError `json:"failures,omitempty"`
}

// Source is a citation shown next to a generated answer.
type Source struct {
	File     string   `json:"file"`
	Category Category `json:"category"`
	Page     int      `json:"page"`
	Score    float64  `json:"score"`
	Preview  string   `json:"preview"`
}

func itoa(n int) string { return strconv.Itoa(n) }
