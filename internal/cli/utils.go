// Package cli renders command output for the nutriguide CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/nutriguide/internal/clinical"
	"github.com/hyperjump/nutriguide/internal/models"
	"github.com/hyperjump/nutriguide/internal/storage"
	"github.com/hyperjump/nutriguide/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

const rule = "─────────────────────────────────────────────────────────"

// StatusReport is what the status command prints.
type StatusReport struct {
	models.Status
	GenerationReady *bool              `json:"generation_ready,omitempty"`
	Disk            *storage.Footprint `json:"disk,omitempty"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRetrieval writes a retrieval result. Text output shows one block per hit, or the
// fallback context when nothing was retrieved.
func WriteRetrieval(w io.Writer, r models.Retrieval, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	if r.Fallback {
		fmt.Fprintf(w, "\nNo guideline context available.\n%s\n", r.Context)
		return nil
	}
	fmt.Fprintf(w, "\nRetrieved %d chunk(s)\n\n", len(r.Hits))
	for i, h := range r.Hits {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "[%d] %s | Tag: %s | Page: %d | Score: %.4f\n",
			i+1, h.Chunk.Source, h.Chunk.Category, h.Chunk.Page, h.Score)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(h.Chunk.Text, 300))
	}
	return nil
}

// WriteStatus writes engine readiness and the disk footprint.
func WriteStatus(w io.Writer, s StatusReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "state:              %s\n", s.State)
	fmt.Fprintf(w, "embeddings_ready:   %t\n", s.EmbeddingsReady)
	fmt.Fprintf(w, "index_ready:        %t\n", s.IndexReady)
	fmt.Fprintf(w, "document_count:     %d   # chunks in the vector index\n", s.DocumentCount)
	if s.Stale {
		fmt.Fprintln(w, "stale:              true   # guidelines changed since last ingest")
	}
	if s.GenerationReady != nil {
		fmt.Fprintf(w, "generation_ready:   %t\n", *s.GenerationReady)
	}
	if s.Disk != nil {
		fmt.Fprintf(w, "index_bytes:        %d\n", s.Disk.IndexBytes)
		fmt.Fprintf(w, "database_bytes:     %d\n", s.Disk.DatabaseBytes)
	}
	return nil
}

// WriteIngestResult writes the outcome of an ingestion run.
func WriteIngestResult(w io.Writer, r models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	if !r.Stored {
		fmt.Fprintln(w, "No guideline text found; index left unchanged.")
	} else {
		fmt.Fprintf(w, "Ingested %d file(s) into %d chunk(s)\n", r.Files, r.Chunks)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  skipped %s: %s\n", f.Source, f.Err)
	}
	return nil
}

// WriteSources writes the citations that follow a streamed answer.
func WriteSources(w io.Writer, sources []models.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, s := range sources {
		fmt.Fprintf(w, "  - %s (%s, page %d, score %.3f)\n", s.File, s.Category, s.Page, s.Score)
	}
}

// WritePatient writes one patient with the clinical markers of their profile.
func WritePatient(w io.Writer, p *models.Patient, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, patientJSON(p))
	}
	fmt.Fprint(w, clinical.Render(p))
	fmt.Fprintln(w)
	return nil
}

// WritePatients writes a patient list.
func WritePatients(w io.Writer, patients []*models.Patient, format OutputFormat) error {
	if format == OutputJSON {
		out := make([]interface{}, 0, len(patients))
		for _, p := range patients {
			out = append(out, patientJSON(p))
		}
		return writeJSON(w, out)
	}
	if len(patients) == 0 {
		fmt.Fprintln(w, "No patients registered.")
		return nil
	}
	for _, p := range patients {
		fmt.Fprintf(w, "%-24s %3d  %s\n", p.Name, p.Age, p.Condition())
	}
	return nil
}

// WriteHistory writes a consultation history oldest first.
func WriteHistory(w io.Writer, messages []*models.Message, format OutputFormat) error {
	if format == OutputJSON {
		if messages == nil {
			messages = []*models.Message{}
		}
		return writeJSON(w, messages)
	}
	for _, m := range messages {
		fmt.Fprintf(w, "[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.Role, m.Content)
	}
	return nil
}

func patientJSON(p *models.Patient) interface{} {
	return struct {
		*models.Patient
		Condition string `json:"condition"`
		Markers   string `json:"clinical_markers"`
	}{p, p.Condition(), clinical.Markers(p.Profile)}
}
