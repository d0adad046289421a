package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// LocalStore persists submission bytes under a root directory on disk.
type LocalStore struct {
	root   string
	logger zerolog.Logger
}

// NewLocalStore constructs a disk-backed store rooted at the given directory.
func NewLocalStore(root string, logger zerolog.Logger) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{
		root:   root,
		logger: logger.With().Str("component", "local_store").Logger(),
	}, nil
}

// Save writes the payload to <root>/<key>, creating parent directories. The
// file handle is closed on every exit path and close errors are surfaced so
// a short write never leaves a submission marked uploaded.
func (s *LocalStore) Save(ctx context.Context, key string, reader io.Reader) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create submission directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create submission file: %w", err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("write submission file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("flush submission file: %w", err)
	}

	return key, nil
}

// Read loads the stored bytes for the given key.
func (s *LocalStore) Read(ctx context.Context, storageKey string) ([]byte, error) {
	path, err := s.resolve(storageKey)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read submission file: %w", err)
	}
	return data, nil
}

// Delete removes the stored bytes. A missing file is not an error; the row
// delete must still proceed.
func (s *LocalStore) Delete(ctx context.Context, storageKey string) error {
	path, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove submission file: %w", err)
	}
	return nil
}

// resolve joins the key onto the root and rejects traversal outside it.
func (s *LocalStore) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(s.root, filepath.FromSlash(key)))
	rootAbs, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	pathAbs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", err
	}
	if pathAbs != rootAbs && !strings.HasPrefix(pathAbs, rootAbs+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage key escapes root: %s", key)
	}
	return cleaned, nil
}
