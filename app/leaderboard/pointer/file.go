package pointer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps one JSON document per scope under a base directory.
type FileStore struct {
	basePath string
	mu       sync.Mutex
}

func NewFileStore(basePath string) (*FileStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("file pointer store: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create pointer directory %s: %w", basePath, err)
	}
	return &FileStore{basePath: basePath}, nil
}

func (f *FileStore) path(scope string) string {
	return filepath.Join(f.basePath, scope+".json")
}

func (f *FileStore) Load(_ context.Context, scope string) (*Pointer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// #nosec G304 -- scope comes from ScopeKey, which only emits safe characters
	data, err := os.ReadFile(f.path(scope))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pointer for scope '%s': %w", scope, err)
	}
	return decode(data)
}

// Save writes to a temporary file first and renames it over the old one so
// a crash never leaves a truncated pointer behind.
func (f *FileStore) Save(_ context.Context, scope string, p Pointer) error {
	data, err := encode(p)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.path(scope)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write pointer for scope '%s': %w", scope, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename pointer file for scope '%s': %w", scope, err)
	}
	return nil
}

func (f *FileStore) Clear(_ context.Context, scope string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(scope)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pointer for scope '%s': %w", scope, err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
