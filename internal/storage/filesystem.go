package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidKey is returned for keys that are empty or leave the store root.
var ErrInvalidKey = errors.New("storage: invalid key")

// FileStore keeps export archives and single images below a root directory.
// Files are written to a temporary sibling and renamed into place, so a
// reader never sees a partial archive.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Path returns where key lives on disk without touching it.
func (s *FileStore) Path(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return s.locate(clean), nil
}

// Write stores data at key, replacing any previous file, and returns the
// cleaned key.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	return s.WriteFrom(ctx, key, bytes.NewReader(data))
}

// WriteFrom streams r into key. The previous file, if any, stays in place
// until the copy has completed.
func (s *FileStore) WriteFrom(ctx context.Context, key string, r io.Reader) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	target := s.locate(clean)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("storage: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", clean, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return "", fmt.Errorf("storage: chmod %s: %w", clean, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: close %s: %w", clean, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		committed = true
		return "", fmt.Errorf("storage: commit %s: %w", clean, err)
	}
	committed = true
	return clean, nil
}

func (s *FileStore) locate(clean string) string {
	return filepath.Join(s.root, filepath.FromSlash(clean))
}

// cleanKey turns key into a slash-separated path relative to the root.
func cleanKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), `\`, "/")
	clean := strings.TrimLeft(path.Clean("/"+key), "/")
	if clean == "" || key == "" {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return clean, nil
}
