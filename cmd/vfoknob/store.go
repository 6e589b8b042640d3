package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PersistedState is the tuning state that survives restarts.
type PersistedState struct {
	FrequencyHz int64            `yaml:"frequency_hz"`
	StepHz      int64            `yaml:"step_hz"`
	Band        string           `yaml:"band,omitempty"`
	BandMemory  map[string]int64 `yaml:"band_memory,omitempty"`
}

// StateStore loads and saves PersistedState.
type StateStore interface {
	// Load returns nil and no error when nothing was saved yet.
	Load() (*PersistedState, error)
	Save(PersistedState) error
}

// yamlStore keeps the state in a single YAML file. Writes go through a
// temporary file in the same directory and a rename, so a crash leaves
// either the old or the new file.
type yamlStore struct {
	path string
}

func newYAMLStore(path string) *yamlStore {
	return &yamlStore{path: ExpandPath(path)}
}

func (s *yamlStore) Load() (*PersistedState, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	var p PersistedState
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode state file %s: %w", s.path, err)
	}
	return &p, nil
}

func (s *yamlStore) Save(p PersistedState) error {
	b, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	f, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp) // no-op after a successful rename

	if _, err := f.Write(b); err != nil {
		f.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync state: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
