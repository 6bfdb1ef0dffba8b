package models

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	apperrors "github.com/ZanzyTHEbar/flash/internal/errors"
)

var artifactExtensions = []string{".yaml", ".yml", ".json"}

// ErrArtifactNotFound is returned when no file exists for a model id.
var ErrArtifactNotFound = errors.New("model artifact not found")

// ArtifactStore reads and writes model artifacts under one directory.
type ArtifactStore struct {
	dataDir string
}

// NewArtifactStore creates a new artifact store
func NewArtifactStore(dataDir string) *ArtifactStore {
	return &ArtifactStore{dataDir: dataDir}
}

// Dir is the directory the store reads from.
func (s *ArtifactStore) Dir() string { return s.dataDir }

// Load reads <dir>/<id>.{yaml,yml,json}.
func (s *ArtifactStore) Load(id string) (*Artifact, error) {
	for _, ext := range artifactExtensions {
		path := filepath.Join(s.dataDir, id+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read model artifact %s: %w", path, err)
		}

		artifact, err := DecodeArtifact(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if artifact.ID == "" {
			artifact.ID = id
		}
		if artifact.ID != id {
			return nil, fmt.Errorf("%s: artifact id %q does not match file name", path, artifact.ID)
		}
		return artifact, nil
	}

	return nil, fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, id, s.dataDir)
}

// Save writes an artifact as YAML.
func (s *ArtifactStore) Save(a *Artifact) error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	data, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode model artifact: %w", err)
	}

	path := filepath.Join(s.dataDir, a.ID+".yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model artifact: %w", err)
	}
	return nil
}

// LoadPool loads and registers the given model ids. Base models are
// registered before models that depend on them.
func LoadPool(store *ArtifactStore, ids []string, opts ...PoolOption) (*Pool, error) {
	pool := NewPool(opts...)

	var base, meta []*Model
	for _, id := range ids {
		adapter, ok := AdapterFor(id)
		if !ok {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("unknown model id %q", id), nil)
		}

		artifact, err := store.Load(id)
		if err != nil {
			return nil, apperrors.NewModelError(id, err)
		}

		m, err := NewModelFromArtifact(adapter, artifact)
		if err != nil {
			return nil, err
		}

		if len(m.Dependencies()) == 0 {
			base = append(base, m)
		} else {
			meta = append(meta, m)
		}
	}

	for _, m := range append(base, meta...) {
		if err := pool.Register(m); err != nil {
			return nil, err
		}
	}
	return pool, nil
}
