package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"konnect/internal/domain"
)

const kvFile = "kv.json"

// FileStore is a KVStore persisted as a single JSON object on disk.
// All methods are safe for concurrent use within one process.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore in dir, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "create store dir %s", dir)
	}
	return &FileStore{path: filepath.Join(dir, kvFile)}, nil
}

func (s *FileStore) load() (map[string][]byte, error) {
	m := make(map[string][]byte)
	if err := readJSON(s.path, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *FileStore) save(m map[string][]byte) error {
	return writeJSON(s.path, m, 0o600)
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (s *FileStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = append([]byte(nil), value...)
	return s.save(m)
}

// Delete removes key. A missing key is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return s.save(m)
}

// List returns the keys starting with prefix, sorted.
func (s *FileStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []string
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

var _ domain.KVStore = (*FileStore)(nil)
