// Package config provides configuration loading and structs for the nutriguide service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Guidelines GuidelinesConfig `yaml:"guidelines"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RequestTimeoutSeconds bounds non-streaming requests. Ingestion and /ask are exempt.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

// StorageConfig holds paths for the vector index and the patient database.
type StorageConfig struct {
	VectorDBPath  string `yaml:"vector_db_path"`
	VectorBackend string `yaml:"vector_backend"`
	Collection    string `yaml:"collection"`
	PatientDBPath string `yaml:"patient_db_path"`
}

// GuidelinesConfig controls where guideline documents come from and how re-ingestion behaves.
type GuidelinesConfig struct {
	Directory   string `yaml:"directory"`
	ForceReload bool   `yaml:"force_reload"`
	// Policy is "rebuild" (clear the index before re-ingesting) or "append".
	Policy string `yaml:"policy"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is "ollama" or "mock".
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
	BatchSize  int    `yaml:"batch_size"`
	// RequestsPerSecond of 0 disables rate limiting.
	RequestsPerSecond     float64 `yaml:"requests_per_second"`
	FailureThreshold      int     `yaml:"failure_threshold"`
	BreakerTimeoutSeconds int     `yaml:"breaker_timeout_seconds"`
}

// RetrievalConfig holds chunking and search settings.
type RetrievalConfig struct {
	DefaultK     int `yaml:"default_k"`
	MaxK         int `yaml:"max_k"`
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// GenerationConfig holds language model settings.
type GenerationConfig struct {
	BaseURL       string  `yaml:"base_url"`
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	TopP          float64 `yaml:"top_p"`
	TopK          int     `yaml:"top_k"`
	NumPredict    int     `yaml:"num_predict"`
	RepeatPenalty float64 `yaml:"repeat_penalty"`
}

// WatchConfig controls the guideline directory watcher.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, expands paths, applies defaults and
// environment overrides. A missing file is not an error: defaults are used and relative
// paths resolve against the current directory.
func Load(path string) (*Config, error) {
	var cfg Config
	configDir := filepath.Dir(path)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if wd, werr := os.Getwd(); werr == nil {
			configDir = wd
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	ApplyDefaults(&cfg)
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.Storage.VectorDBPath = expandPath(cfg.Storage.VectorDBPath, configDir)
	cfg.Storage.PatientDBPath = expandPath(cfg.Storage.PatientDBPath, configDir)
	cfg.Guidelines.Directory = expandPath(cfg.Guidelines.Directory, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the process environment.
// Missing files are skipped; variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" or "../" are relative to
// configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
