package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/nutriguide/internal/clinical"
	"github.com/hyperjump/nutriguide/internal/engine"
	"github.com/hyperjump/nutriguide/internal/models"
	"github.com/hyperjump/nutriguide/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Engine.Status()
	resp := map[string]interface{}{
		"embeddings_ready": st.EmbeddingsReady,
		"index_ready":      st.IndexReady,
		"document_count":   st.DocumentCount,
		"state":            st.State,
		"stale":            st.Stale,
	}
	if s.deps.Generator != nil {
		resp["generation_ready"] = s.deps.Generator.Ready()
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"guidelines_dir":   s.config.Guidelines.Directory,
			"vector_db_path":   s.config.Storage.VectorDBPath,
			"vector_backend":   s.config.Storage.VectorBackend,
			"embedding_model":  s.config.Embedding.Model,
			"generation_model": s.config.Generation.Model,
			"ingest_policy":    s.config.Guidelines.Policy,
			"chunk_size":       s.config.Retrieval.ChunkSize,
		}
		fp, err := storage.MeasureFootprint(s.config.Storage.VectorDBPath, s.config.Storage.PatientDBPath)
		if err == nil {
			resp["disk"] = fp
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("ingestion requested", zap.String("request_id", middleware.GetReqID(r.Context())))
	res, err := s.deps.Engine.Ingest(r.Context())
	if err != nil {
		s.logger.Error("ingestion failed", zap.Error(err))
		status := http.StatusInternalServerError
		if !errors.Is(err, engine.ErrUnwritable) {
			status = http.StatusServiceUnavailable
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

type retrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("retrieve request", zap.String("query", req.Query), zap.Int("k", req.K))
	s.respondJSON(w, http.StatusOK, s.deps.Engine.Retrieve(r.Context(), req.Query, req.K))
}

type patientView struct {
	*models.Patient
	Condition string `json:"condition"`
	Markers   string `json:"clinical_markers"`
}

func viewOf(p *models.Patient) patientView {
	return patientView{Patient: p, Condition: p.Condition(), Markers: clinical.Markers(p.Profile)}
}

func (s *Server) handleAddPatient(w http.ResponseWriter, r *http.Request) {
	if s.deps.Patients == nil {
		s.respondError(w, http.StatusNotImplemented, "patient store not configured")
		return
	}
	var reg clinical.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := reg.Patient()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Patients.AddPatient(r.Context(), p); err != nil {
		if errors.Is(err, storage.ErrPatientExists) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("add patient failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, viewOf(p))
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	if s.deps.Patients == nil {
		s.respondError(w, http.StatusNotImplemented, "patient store not configured")
		return
	}
	patients, err := s.deps.Patients.ListPatients(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]patientView, 0, len(patients))
	for _, p := range patients {
		views = append(views, viewOf(p))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"patients": views})
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	if s.deps.Patients == nil {
		s.respondError(w, http.StatusNotImplemented, "patient store not configured")
		return
	}
	p, err := s.deps.Patients.GetPatient(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, storage.ErrPatientNotFound) {
			s.respondError(w, http.StatusNotFound, "patient not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, viewOf(p))
}

func (s *Server) handlePatientContext(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.respondJSON(w, http.StatusOK, map[string]string{
		"patient": name,
		"context": s.deps.Contexts.PatientContext(r.Context(), name),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	msgs, err := s.deps.Consult.History(r.Context(), chi.URLParam(r, "name"), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

type askRequest struct {
	Patient  string `json:"patient"`
	Question string `json:"question"`
}

// askEvent is one line of the NDJSON answer stream.
type askEvent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Sources  []models.Source `json:"sources,omitempty"`
	Grounded *bool           `json:"grounded,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	s.logger.Debug("ask request", zap.String("patient", req.Patient), zap.String("question", req.Question))

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	send := func(ev askEvent) error {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	answer, err := s.deps.Consult.Ask(r.Context(), req.Patient, req.Question, func(frag string) error {
		return send(askEvent{Type: "token", Text: frag})
	})
	if err != nil {
		s.logger.Warn("ask failed", zap.String("patient", req.Patient), zap.Error(err))
		_ = send(askEvent{Type: "error", Error: err.Error()})
		return
	}
	grounded := answer.Grounded
	_ = send(askEvent{Type: "sources", Sources: answer.Sources, Grounded: &grounded})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
