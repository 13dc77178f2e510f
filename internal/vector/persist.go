package vector

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	manifestFile    = "manifest.yaml"
	manifestVersion = 1
)

// Manifest describes how a persisted index was built.
type Manifest struct {
	Version    int       `yaml:"version"`
	Backend    string    `yaml:"backend"`
	Collection string    `yaml:"collection,omitempty"`
	Model      string    `yaml:"model,omitempty"`
	Dimensions int       `yaml:"dimensions"`
	UpdatedAt  time.Time `yaml:"updated_at"`
}

// ExistsOnDisk reports whether path exists and whether it is a non-empty directory.
// Callers check this before opening so that an empty store created by the open
// never masks a genuine prior index.
func ExistsOnDisk(path string) (exists, nonEmpty bool) {
	info, err := os.Stat(path)
	if err != nil {
		return false, false
	}
	if !info.IsDir() {
		return true, info.Size() > 0
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return true, false
	}
	return true, len(entries) > 0
}

// ReadManifest returns the manifest in dir, or nil when none was written.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %v", ErrCorrupt, err)
	}
	return &m, nil
}

// WriteManifest writes m into dir.
func WriteManifest(dir string, m *Manifest) error {
	m.Version = manifestVersion
	m.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0644); err != nil {
		return fmt.Errorf("%w: write manifest: %v", ErrUnwritable, err)
	}
	return nil
}

// checkManifest rejects a manifest written for another backend, model or dimensionality.
func checkManifest(m *Manifest, backend, model string, dims int) error {
	if m == nil {
		return nil
	}
	if m.Version != manifestVersion {
		return fmt.Errorf("%w: manifest version %d, want %d", ErrCorrupt, m.Version, manifestVersion)
	}
	if m.Backend != backend {
		return fmt.Errorf("%w: built by backend %q, opening with %q", ErrCorrupt, m.Backend, backend)
	}
	if m.Dimensions != 0 && m.Dimensions != dims {
		return fmt.Errorf("%w: %w: stored %d, embedder %d", ErrCorrupt, ErrDimensionMismatch, m.Dimensions, dims)
	}
	if m.Model != "" && model != "" && m.Model != model {
		return fmt.Errorf("%w: built with model %q, embedder is %q", ErrCorrupt, m.Model, model)
	}
	return nil
}

// ensureDir creates dir and verifies it accepts writes.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrUnwritable, err)
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnwritable, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

// Wipe removes everything under dir, leaving an empty directory.
func Wipe(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrUnwritable, dir, err)
	}
	return ensureDir(dir)
}
