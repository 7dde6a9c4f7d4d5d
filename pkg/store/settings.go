// Package store persists crop settings and captured artifacts.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/menta2k/framecrop/internal/utils"
	"github.com/menta2k/framecrop/pkg/types"
)

// DefaultInsets are used when no crop settings have been saved yet.
func DefaultInsets() types.CropInsets {
	return types.CropInsets{Top: 320, Right: 25, Bottom: 227, Left: 1257}
}

// SettingsStore loads and saves the persisted crop insets.
type SettingsStore interface {
	Load() (types.CropInsets, error)
	Save(insets types.CropInsets) error
}

// FileSettingsStore keeps crop insets in a JSON file.
type FileSettingsStore struct {
	path     string
	defaults types.CropInsets
	mu       sync.Mutex
}

// NewFileSettingsStore creates a store backed by path. Load returns defaults
// while the file does not exist.
func NewFileSettingsStore(path string, defaults types.CropInsets) *FileSettingsStore {
	return &FileSettingsStore{path: utils.ExpandHome(path), defaults: defaults.NonNegative()}
}

// Path returns the settings file path.
func (s *FileSettingsStore) Path() string { return s.path }

// Load reads the persisted insets.
func (s *FileSettingsStore) Load() (types.CropInsets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.defaults, nil
	}
	if err != nil {
		return types.CropInsets{}, fmt.Errorf("failed to read crop settings: %w", err)
	}

	var insets types.CropInsets
	if err := json.Unmarshal(data, &insets); err != nil {
		return types.CropInsets{}, fmt.Errorf("failed to parse crop settings: %w", err)
	}
	return insets.NonNegative(), nil
}

// Save writes insets, replacing the file atomically.
func (s *FileSettingsStore) Save(insets types.CropInsets) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(insets.NonNegative(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal crop settings: %w", err)
	}
	if err := utils.WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write crop settings: %w", err)
	}
	return nil
}

// Reset removes the settings file so Load returns the defaults again.
func (s *FileSettingsStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove crop settings: %w", err)
	}
	return nil
}

// MemorySettingsStore keeps crop insets in memory.
type MemorySettingsStore struct {
	mu     sync.Mutex
	insets types.CropInsets
	saves  int
}

// NewMemorySettingsStore creates a memory store holding initial.
func NewMemorySettingsStore(initial types.CropInsets) *MemorySettingsStore {
	return &MemorySettingsStore{insets: initial}
}

// Load returns the stored insets.
func (m *MemorySettingsStore) Load() (types.CropInsets, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insets, nil
}

// Save replaces the stored insets.
func (m *MemorySettingsStore) Save(insets types.CropInsets) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insets = insets.NonNegative()
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemorySettingsStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
