package blob

import (
	"context"
	"os"
	"path/filepath"
)

// LocalStore keeps blobs on the local filesystem under
// {root}/{purpose}/{key}. Suitable for single-node deployments and tests.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) path(key, purpose string) string {
	return filepath.Join(s.root, purpose, filepath.FromSlash(key))
}

func (s *LocalStore) Upload(_ context.Context, key, purpose string, data []byte) error {
	path := s.path(key, purpose)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &StorageError{Op: "upload", Key: key, Err: err}
	}

	// Write to a temp file then rename so readers never see partial data
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &StorageError{Op: "upload", Key: key, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &StorageError{Op: "upload", Key: key, Err: err}
	}
	return nil
}

func (s *LocalStore) Download(_ context.Context, key, purpose string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key, purpose))
	if err != nil {
		return nil, &StorageError{Op: "download", Key: key, Err: err}
	}
	return data, nil
}
