package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/miloc/internal/common"
	"github.com/dmitrijs2005/miloc/internal/filex"
)

// FileStore keeps blobs under a root directory on the local filesystem.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("media root: %w", err)
	}
	return &FileStore{root: abs}, nil
}

// Root returns the absolute media root.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) resolve(storagePath string) (string, error) {
	if err := checkPath(storagePath); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(storagePath)), nil
}

func (s *FileStore) Put(_ context.Context, storagePath string, data []byte) error {
	name, err := s.resolve(storagePath)
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(name, data, 0o600)
}

func (s *FileStore) Get(_ context.Context, storagePath string) ([]byte, error) {
	name, err := s.resolve(storagePath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FileStore) Delete(_ context.Context, storagePath string) error {
	name, err := s.resolve(storagePath)
	if err != nil {
		return err
	}

	if err := os.Remove(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}
