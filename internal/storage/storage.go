// Package storage persists patients and their consultation history.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/nutriguide/internal/models"
)

var (
	// ErrPatientNotFound is returned when no patient has the requested name.
	ErrPatientNotFound = errors.New("patient not found")
	// ErrPatientExists is returned when registering a name that is already taken.
	ErrPatientExists = errors.New("patient already exists")
)

// PatientStore reads and registers patients.
type PatientStore interface {
	AddPatient(ctx context.Context, p *models.Patient) error
	GetPatient(ctx context.Context, name string) (*models.Patient, error)
	ListPatients(ctx context.Context) ([]*models.Patient, error)
}

// HistoryStore keeps consultation messages per patient.
type HistoryStore interface {
	AppendMessage(ctx context.Context, m *models.Message) error
	// ListMessages returns the latest limit messages oldest first; limit <= 0 returns all.
	ListMessages(ctx context.Context, patient string, limit int) ([]*models.Message, error)
}

// Storage is the full persistence surface.
type Storage interface {
	PatientStore
	HistoryStore
	Close() error
}
