package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/framecrop/internal/utils"
	"github.com/menta2k/framecrop/pkg/codec"
	"github.com/menta2k/framecrop/pkg/types"
)

var (
	// ErrArtifactNotFound is returned for an unknown artifact id.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrInvalidID is returned for ids that cannot be used as file names.
	ErrInvalidID = errors.New("invalid artifact id")
)

// NewArtifactID returns a fresh opaque artifact identifier.
func NewArtifactID() string {
	return uuid.NewString()
}

// ArtifactStore stores compressed images keyed by an opaque id. Putting an
// existing id replaces the stored image.
type ArtifactStore interface {
	Put(id string, img types.CompressedImage) error
	Get(id string) (types.CompressedImage, error)
	Delete(id string) error
}

// Artifact describes a stored image.
type Artifact struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Format  string    `json:"format"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// DirArtifactStore keeps one file per artifact in a directory, named
// <id>.<ext> after the image format.
type DirArtifactStore struct {
	dir string
	mu  sync.Mutex
}

// NewDirArtifactStore creates a store rooted at dir. The directory is
// created on first write.
func NewDirArtifactStore(dir string) *DirArtifactStore {
	return &DirArtifactStore{dir: utils.ExpandHome(dir)}
}

// Dir returns the storage directory.
func (s *DirArtifactStore) Dir() string { return s.dir }

// Path returns the file path an artifact with id and format is stored at.
func (s *DirArtifactStore) Path(id, format string) string {
	return filepath.Join(s.dir, id+"."+codec.Extension(format))
}

// Put writes img under id, replacing any previous version.
func (s *DirArtifactStore) Put(id string, img types.CompressedImage) error {
	if !utils.ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if img.Len() == 0 {
		return fmt.Errorf("refusing to store empty artifact %s", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(id, img.Format)
	if err := utils.WriteFileAtomic(path, img.Data, 0644); err != nil {
		return fmt.Errorf("failed to store artifact %s: %w", id, err)
	}

	// drop a previous version stored under another format
	existing, _ := s.files(id)
	for _, f := range existing {
		if f != path {
			os.Remove(f)
		}
	}
	return nil
}

// Get reads the artifact stored under id.
func (s *DirArtifactStore) Get(id string) (types.CompressedImage, error) {
	if !utils.ValidID(id) {
		return types.CompressedImage{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.files(id)
	if err != nil {
		return types.CompressedImage{}, err
	}
	if len(files) == 0 {
		return types.CompressedImage{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	return codec.LoadCompressed(files[0])
}

// Delete removes the artifact stored under id.
func (s *DirArtifactStore) Delete(id string) error {
	if !utils.ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.files(id)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete artifact %s: %w", id, err)
		}
	}
	return nil
}

// List returns every stored artifact, newest first.
func (s *DirArtifactStore) List() ([]Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Artifact
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !utils.IsImageFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		name := entry.Name()
		out = append(out, Artifact{
			ID:      strings.TrimSuffix(name, filepath.Ext(name)),
			Path:    filepath.Join(s.dir, name),
			Format:  codec.FormatFromPath(name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	return out, nil
}

// Cleanup removes artifacts last modified more than olderThan ago and
// returns how many were removed.
func (s *DirArtifactStore) Cleanup(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !utils.IsImageFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (s *DirArtifactStore) files(id string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, id+".*"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range matches {
		if utils.IsImageFile(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// MemoryArtifactStore keeps artifacts in memory.
type MemoryArtifactStore struct {
	mu    sync.Mutex
	items map[string]types.CompressedImage
}

// NewMemoryArtifactStore creates an empty memory store.
func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{items: make(map[string]types.CompressedImage)}
}

// Put stores a copy of img under id.
func (m *MemoryArtifactStore) Put(id string, img types.CompressedImage) error {
	if id == "" {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	img.Data = append([]byte(nil), img.Data...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = img
	return nil
}

// Get returns the artifact stored under id.
func (m *MemoryArtifactStore) Get(id string) (types.CompressedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.items[id]
	if !ok {
		return types.CompressedImage{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	return img, nil
}

// Delete removes the artifact stored under id.
func (m *MemoryArtifactStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	delete(m.items, id)
	return nil
}

// Len returns the number of stored artifacts.
func (m *MemoryArtifactStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
