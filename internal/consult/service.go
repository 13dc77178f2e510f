// Package consult answers patient questions: it retrieves guideline context, fuses it with
// the patient's clinical profile, streams the model's answer and records the exchange.
package consult

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/nutriguide/internal/generation"
	"github.com/hyperjump/nutriguide/internal/models"
	"github.com/hyperjump/nutriguide/internal/storage"
	"github.com/hyperjump/nutriguide/pkg/utils"
	"go.uber.org/zap"
)

// PreviewLength is the number of characters of a cited chunk shown with the answer.
const PreviewLength = 200

// Retriever returns guideline context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) models.Retrieval
}

// PatientContexter renders the clinical context of a patient.
type PatientContexter interface {
	PatientContext(ctx context.Context, name string) string
}

// Answer is a completed consultation.
type Answer struct {
	Text    string          `json:"text"`
	Sources []models.Source `json:"sources"`
	// Grounded is false when no guideline passage backed the answer.
	Grounded bool `json:"grounded"`
}

// Service runs consultations.
type Service struct {
	retriever Retriever
	patients  PatientContexter
	generator generation.Generator
	history   storage.HistoryStore
	lookup    storage.PatientStore
	k         int
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHistory records every exchange in h.
func WithHistory(h storage.HistoryStore) Option {
	return func(s *Service) { s.history = h }
}

// WithPatientLookup lets the service name the patient's condition in the prompt.
func WithPatientLookup(p storage.PatientStore) Option {
	return func(s *Service) { s.lookup = p }
}

// WithTopK sets how many guideline passages are retrieved per question.
func WithTopK(k int) Option {
	return func(s *Service) { s.k = k }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a consultation service.
func NewService(retriever Retriever, patients PatientContexter, generator generation.Generator, opts ...Option) *Service {
	s := &Service{
		retriever: retriever,
		patients:  patients,
		generator: generator,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers query for patient. Fragments are passed to emit as they arrive; an emit error
// stops generation and is returned. The exchange is stored in the history when the answer
// completes.
func (s *Service) Ask(ctx context.Context, patient, query string, emit func(string) error) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, errors.New("question is empty")
	}
	retrieval := s.retriever.Retrieve(ctx, query, s.k)
	prompt := Prompt{
		Condition: s.condition(ctx, patient),
		Context:   CombineContext(s.patients.PatientContext(ctx, patient), retrieval.Context),
		Query:     query,
	}

	var text strings.Builder
	for frag, err := range s.generator.Stream(ctx, prompt.Render()) {
		if err != nil {
			return Answer{}, fmt.Errorf("generate answer: %w", err)
		}
		text.WriteString(frag)
		if emit != nil {
			if err := emit(frag); err != nil {
				return Answer{}, err
			}
		}
	}

	answer := Answer{
		Text:     text.String(),
		Sources:  Sources(retrieval.Hits),
		Grounded: !retrieval.Fallback,
	}
	s.record(ctx, patient, query, answer)
	return answer, nil
}

func (s *Service) condition(ctx context.Context, patient string) string {
	if s.lookup == nil || strings.TrimSpace(patient) == "" {
		return ""
	}
	p, err := s.lookup.GetPatient(ctx, patient)
	if err != nil {
		return ""
	}
	return p.Condition()
}

func (s *Service) record(ctx context.Context, patient, query string, answer Answer) {
	if s.history == nil || strings.TrimSpace(patient) == "" {
		return
	}
	turns := []*models.Message{
		{Patient: patient, Role: models.RoleUser, Content: query},
		{Patient: patient, Role: models.RoleAssistant, Content: answer.Text, Sources: answer.Sources},
	}
	for _, m := range turns {
		if err := s.history.AppendMessage(ctx, m); err != nil {
			s.logger.Warn("failed to save consultation history", zap.String("patient", patient), zap.Error(err))
			return
		}
	}
}

// History returns the latest limit messages exchanged with patient.
func (s *Service) History(ctx context.Context, patient string, limit int) ([]*models.Message, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListMessages(ctx, patient, limit)
}

// Sources turns retrieval hits into citations with short previews.
func Sources(hits []models.Hit) []models.Source {
	sources := make([]models.Source, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, models.Source{
			File:     h.Chunk.Source,
			Category: h.Chunk.Category,
			Page:     h.Chunk.Page,
			Score:    h.Score,
			Preview:  utils.Truncate(h.Chunk.Text, PreviewLength),
		})
	}
	return sources
}
