// Package server provides the HTTP API for nutriguide.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/nutriguide/internal/config"
	"github.com/hyperjump/nutriguide/internal/consult"
	"github.com/hyperjump/nutriguide/internal/generation"
	"github.com/hyperjump/nutriguide/internal/models"
	"github.com/hyperjump/nutriguide/internal/storage"
)

// Engine is the retrieval engine surface the API exposes.
type Engine interface {
	Ingest(ctx context.Context) (models.IngestResult, error)
	Retrieve(ctx context.Context, query string, k int) models.Retrieval
	Status() models.Status
}

// Consultant answers questions and keeps their history.
type Consultant interface {
	Ask(ctx context.Context, patient, query string, emit func(string) error) (consult.Answer, error)
	History(ctx context.Context, patient string, limit int) ([]*models.Message, error)
}

// Deps are the components behind the API.
type Deps struct {
	Engine    Engine
	Consult   Consultant
	Patients  storage.PatientStore
	Contexts  consult.PatientContexter
	Generator generation.Generator
}

// Server is the HTTP server for the nutriguide API.
type Server struct {
	deps   Deps
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, config: cfg, logger: logger}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		// ingestion and streamed answers run as long as the client waits
		r.Post("/ingest", s.handleIngest)
		r.Post("/ask", s.handleAsk)

		r.Group(func(r chi.Router) {
			if s.config.Server.RequestTimeoutSeconds > 0 {
				r.Use(middleware.Timeout(time.Duration(s.config.Server.RequestTimeoutSeconds) * time.Second))
			}
			r.Use(middleware.Compress(5))
			r.Get("/status", s.handleStatus)
			r.Post("/retrieve", s.handleRetrieve)
			r.Post("/patients", s.handleAddPatient)
			r.Get("/patients", s.handleListPatients)
			r.Get("/patients/{name}", s.handleGetPatient)
			r.Get("/patients/{name}/context", s.handlePatientContext)
			r.Get("/patients/{name}/history", s.handleHistory)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
