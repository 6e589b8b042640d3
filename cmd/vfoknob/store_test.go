package main

import (
	"os"
	"path/filepath"
	"testing"
)

// TestYAMLStore_MissingFile tests that a fresh install loads nothing.
func TestYAMLStore_MissingFile(t *testing.T) {
	s := newYAMLStore(filepath.Join(t.TempDir(), "state.yaml"))
	p, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil state, got %+v", p)
	}
}

// TestYAMLStore_SaveLoad tests a save followed by a load, including the
// directory being created on demand.
func TestYAMLStore_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	s := newYAMLStore(filepath.Join(dir, "state.yaml"))

	want := PersistedState{
		FrequencyHz: 14_074_000,
		StepHz:      100,
		Band:        "20m",
		BandMemory:  map[string]int64{"40m": 7_074_000, "20m": 14_074_000},
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || !got.Equal(want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the state file, got %d entries", len(entries))
	}
}

// TestYAMLStore_Overwrite tests that a second save replaces the first.
func TestYAMLStore_Overwrite(t *testing.T) {
	s := newYAMLStore(filepath.Join(t.TempDir(), "state.yaml"))
	if err := s.Save(PersistedState{FrequencyHz: 1, StepHz: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(PersistedState{FrequencyHz: 2, StepHz: 10}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.FrequencyHz != 2 || got.StepHz != 10 {
		t.Errorf("expected the second save, got %+v", got)
	}
}

// TestYAMLStore_Corrupt tests that a broken file is an error, not a reset.
func TestYAMLStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	if err := os.WriteFile(path, []byte("frequency_hz: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := newYAMLStore(path).Load(); err == nil {
		t.Errorf("expected a decode error")
	}
}
