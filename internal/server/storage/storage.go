// Package storage persists ciphertext blobs by their relative storage path.
// It never sees plaintext.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dmitrijs2005/miloc/internal/common"
	sc "github.com/dmitrijs2005/miloc/internal/server/config"
)

// BlobStore reads and writes whole blobs. Get and Delete return
// common.ErrorNotFound for an absent path.
type BlobStore interface {
	Put(ctx context.Context, storagePath string, data []byte) error
	Get(ctx context.Context, storagePath string) ([]byte, error)
	Delete(ctx context.Context, storagePath string) error
}

// ValidPath reports whether p is a clean, relative, slash-separated path that
// stays inside the store root.
func ValidPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return false
	}
	if path.Clean(p) != p {
		return false
	}
	return p != "." && p != ".." && !strings.HasPrefix(p, "../")
}

func checkPath(p string) error {
	if !ValidPath(p) {
		return fmt.Errorf("%w: storage path %q", common.ErrorValidation, p)
	}
	return nil
}

// New builds the store selected by config.StorageBackend.
func New(ctx context.Context, config *sc.Config) (BlobStore, error) {
	switch config.StorageBackend {
	case sc.StorageFS, "":
		return NewFileStore(config.MediaRoot)
	case sc.StorageS3:
		return NewS3Store(ctx, config)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", config.StorageBackend)
	}
}
