package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ApplyEnv overrides cfg with values from environment variables.
// Unset or empty variables leave the current value untouched.
func ApplyEnv(cfg *Config) error {
	setPath(&cfg.Storage.VectorDBPath, "VECTOR_DB_PATH")
	setPath(&cfg.Storage.PatientDBPath, "PATIENT_DB_PATH")
	setPath(&cfg.Guidelines.Directory, "GUIDELINES_DIR")
	setString(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	setString(&cfg.Generation.Model, "OLLAMA_MODEL")
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
		cfg.Generation.BaseURL = v
	}

	var err error
	if cfg.Generation.Temperature, err = envFloat("MODEL_TEMPERATURE", cfg.Generation.Temperature); err != nil {
		return err
	}
	if cfg.Generation.TopP, err = envFloat("MODEL_TOP_P", cfg.Generation.TopP); err != nil {
		return err
	}
	if cfg.Generation.TopK, err = envInt("MODEL_TOP_K", cfg.Generation.TopK); err != nil {
		return err
	}
	if cfg.Generation.NumPredict, err = envInt("NUM_PREDICT", cfg.Generation.NumPredict); err != nil {
		return err
	}
	if v := os.Getenv("FORCE_RELOAD"); v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return fmt.Errorf("invalid FORCE_RELOAD %q: %w", v, perr)
		}
		cfg.Guidelines.ForceReload = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setPath resolves relative paths against the working directory, not the config file.
func setPath(dst *string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if abs, err := filepath.Abs(v); err == nil {
		v = abs
	}
	*dst = v
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}
