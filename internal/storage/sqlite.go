package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/nutriguide/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS patients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		age INTEGER,
		gender TEXT,
		weight REAL,
		height REAL,
		activity_level TEXT,
		condition TEXT,
		profile TEXT,
		health_goal TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		sources TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_patient ON messages(patient, id);
	`
	_, err := db.Exec(schema)
	return err
}

// AddPatient registers p and sets its ID and CreatedAt.
func (s *SQLiteStorage) AddPatient(ctx context.Context, p *models.Patient) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errors.New("patient name is required")
	}
	profile, err := models.EncodeProfile(p.Profile)
	if err != nil {
		return err
	}
	p.CreatedAt = time.Now()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO patients (name, age, gender, weight, height, activity_level, condition, profile, health_goal, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Age, p.Gender, p.WeightKg, p.HeightCm, p.ActivityLevel, p.Condition(), string(profile), p.Goal, p.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %s", ErrPatientExists, p.Name)
		}
		return fmt.Errorf("failed to insert patient: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

const patientColumns = `id, name, age, gender, weight, height, activity_level, profile, health_goal, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*models.Patient, error) {
	var (
		p       models.Patient
		profile sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.WeightKg, &p.HeightCm,
		&p.ActivityLevel, &profile, &p.Goal, &p.CreatedAt); err != nil {
		return nil, err
	}
	prof, err := models.DecodeProfile([]byte(profile.String))
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", p.Name, err)
	}
	p.Profile = prof
	return &p, nil
}

// GetPatient returns the patient registered under name.
func (s *SQLiteStorage) GetPatient(ctx context.Context, name string) (*models.Patient, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE name = ?`, strings.TrimSpace(name))
	p, err := scanPatient(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPatients returns every patient ordered by name.
func (s *SQLiteStorage) ListPatients(ctx context.Context) ([]*models.Patient, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []*models.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// AppendMessage stores m and sets its ID and CreatedAt.
func (s *SQLiteStorage) AppendMessage(ctx context.Context, m *models.Message) error {
	var sources []byte
	if len(m.Sources) > 0 {
		var err error
		if sources, err = json.Marshal(m.Sources); err != nil {
			return fmt.Errorf("failed to marshal sources: %w", err)
		}
	}
	m.CreatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (patient, role, content, sources, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.Patient, m.Role, m.Content, string(sources), m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

// ListMessages returns the latest limit messages of patient, oldest first.
func (s *SQLiteStorage) ListMessages(ctx context.Context, patient string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient, role, content, sources, created_at FROM (
			SELECT id, patient, role, content, sources, created_at
			FROM messages WHERE patient = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		patient, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		var (
			m       models.Message
			sources sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Patient, &m.Role, &m.Content, &sources, &m.CreatedAt); err != nil {
			return nil, err
		}
		if sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &m.Sources); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
			}
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
