// Package statestore keeps pipeline snapshots as opaque values under string
// keys.
package statestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

const (
	DirMask  = 0o755
	FileMask = 0o644
)

var (
	ErrNotFound     = errors.New("snapshot not found")
	ErrInvalidKey   = errors.New("snapshot key is invalid")
	ErrInvalidValue = errors.New("snapshot value is empty")
)

// Store persists snapshots.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, val []byte) error
	Delete(key string) error
}

// FileStore keeps one file per key under a root directory.
type FileStore struct {
	sync.Mutex
	root string
}

// NewFileStore opens root, creating it when missing.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, DirMask); err != nil {
		return nil, fmt.Errorf("create state directory %q: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the directory snapshots are written to.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) Get(key string) ([]byte, error) {
	if !isValidKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	s.Lock()
	defer s.Unlock()

	val, err := os.ReadFile(filepath.Join(s.root, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return val, err
}

// Put writes val to a temporary file and renames it over the key, so a
// reader never observes a partial snapshot.
func (s *FileStore) Put(key string, val []byte) error {
	if !isValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if len(val) == 0 {
		return ErrInvalidValue
	}

	s.Lock()
	defer s.Unlock()

	return writeRename(filepath.Join(s.root, key), val)
}

func (s *FileStore) Delete(key string) error {
	if !isValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	s.Lock()
	defer s.Unlock()

	err := os.Remove(filepath.Join(s.root, key))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return err
}

func writeRename(target string, val []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(val); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, FileMask); err != nil {
		return err
	}
	return os.Rename(tmpName, target)
}

func isValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, ".") {
		return false
	}
	// reject ../../etc/passwd and friends
	return !strings.Contains(path.Clean(key), "/") && !strings.Contains(key, string(filepath.Separator))
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	vals map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vals: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.vals[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return append([]byte(nil), val...), nil
}

func (s *MemoryStore) Put(key string, val []byte) error {
	if key == "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if len(val) == 0 {
		return ErrInvalidValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = append([]byte(nil), val...)
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vals[key]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	delete(s.vals, key)
	return nil
}
