package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore implements ArtifactStore on a directory tree.
type LocalStore struct {
	rootPath string
}

var _ ArtifactStore = (*LocalStore)(nil)

// NewLocalStore creates a store rooted at rootPath.
func NewLocalStore(rootPath string) *LocalStore {
	return &LocalStore{rootPath: rootPath}
}

// Root returns the directory backing the store.
func (s *LocalStore) Root() string { return s.rootPath }

func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(key))[1:]
	if clean == "" || clean != strings.TrimPrefix(filepath.ToSlash(key), "./") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return filepath.Join(s.rootPath, filepath.FromSlash(clean)), nil
}

// Put writes content through a temp file and rename so readers never see a
// partial artifact.
func (s *LocalStore) Put(ctx context.Context, key string, reader io.Reader) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, reader); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempFile.Name(), fullPath); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to rename temp file to %s: %w", fullPath, err)
	}

	return nil
}

// Get opens the artifact under key.
func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open artifact %s: %w", key, err)
	}
	return file, nil
}

// List returns the keys under prefix. A missing prefix yields no keys.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	root := s.rootPath
	if prefix != "" {
		var err error
		if root, err = s.resolve(prefix); err != nil {
			return nil, err
		}
	}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.rootPath, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list artifacts with prefix %s: %w", prefix, err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Delete removes an artifact.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to delete artifact %s: %w", key, err)
	}
	return nil
}

// PutBytes writes data under key.
func PutBytes(ctx context.Context, s ArtifactStore, key string, data []byte) error {
	return s.Put(ctx, key, bytes.NewReader(data))
}

// GetBytes reads the whole artifact under key.
func GetBytes(ctx context.Context, s ArtifactStore, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
