package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore implements Store on a local directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at the given directory. The directory is
// created on first write.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Location returns the root directory.
func (s *LocalStore) Location() string { return s.root }

// Get reads a blob.
func (s *LocalStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Put writes data to a temporary file in the same directory, syncs it, and renames it
// over the target.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.root, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(s.root, name)); err != nil {
		cleanup()
		return err
	}
	return nil
}
