// Package blobstore implements the local, namespace- and key-addressed blob
// persistence layer durablewriter.Putter writes through: one namespace
// directory per CDC stream, atomic file replacement so a reader never
// observes a half-written blob (§4.9, §11).
package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// Store persists named blobs under a root directory, one subdirectory per
// namespace. Writes are atomic: a reader either sees the previous content
// or the new content in full, never a partial write.
type Store struct {
	root string
}

// New creates a Store rooted at dir. dir is created if it does not exist.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root: %w", err)
	}

	return &Store{root: dir}, nil
}

func (s *Store) path(namespace, key string) string {
	return filepath.Join(s.root, namespace, key)
}

// Put atomically writes data under namespace/key, following distri's
// renameio.TempFile-then-CloseAtomicallyReplace pattern so a crash mid-write
// never corrupts an existing blob.
func (s *Store) Put(ctx context.Context, namespace, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dest := s.path(namespace, key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("blobstore: mkdir: %w", err)
	}

	f, err := renameio.TempFile("", dest)
	if err != nil {
		return fmt.Errorf("blobstore: open temp file: %w", err)
	}
	defer f.Cleanup()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("blobstore: write: %w", err)
	}

	if err := f.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("blobstore: finalize: %w", err)
	}

	return nil
}

// Get reads the blob stored under namespace/key.
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(namespace, key))
	if err != nil {
		return nil, fmt.Errorf("blobstore: read: %w", err)
	}

	return data, nil
}

// Delete removes the blob stored under namespace/key. Deleting a blob that
// does not exist is not an error.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.path(namespace, key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blobstore: delete: %w", err)
	}

	return nil
}

// List returns the keys stored under namespace.
func (s *Store) List(ctx context.Context, namespace string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, namespace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("blobstore: list: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			keys = append(keys, e.Name())
		}
	}

	return keys, nil
}
