// Package blob provides the binary storage backend used for derived
// artifacts (extracted figure images) and raw provider payloads. Keys are
// namespaced by purpose; writing the same key twice overwrites.
package blob

import (
	"context"
	"fmt"

	"docsearch-platform/internal/config"
)

// Purposes namespace stored objects by why they exist.
const (
	PurposeDerived  = "derived"  // extracted/cropped figure binaries
	PurposePayloads = "payloads" // raw document-AI provider output
	PurposeUploads  = "uploads"  // original source files
)

// StorageError wraps a backend failure. Callers treat it as non-fatal for
// intermediate artifacts and fatal only for final index state.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("blob %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store is the blob storage port.
type Store interface {
	Upload(ctx context.Context, key, purpose string, data []byte) error
	Download(ctx context.Context, key, purpose string) ([]byte, error)
}

// NewStore builds the configured backend. Constructed once per process and
// stateless thereafter.
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case "s3":
		return NewS3Store(cfg)
	case "local", "":
		return NewLocalStore(cfg.FileStorageDir), nil
	default:
		return nil, fmt.Errorf("unknown blob backend: %s", cfg.BlobBackend)
	}
}
