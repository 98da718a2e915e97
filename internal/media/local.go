package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps files under a directory on disk. References are paths
// relative to that directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Save(_ context.Context, key, _ string, r io.Reader) (string, error) {
	dest, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return "", err
	}

	dst, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	_, copyErr := io.Copy(dst, r)
	closeErr := dst.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	return key, nil
}

func (s *LocalStore) Delete(_ context.Context, ref string) error {
	target, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", ref, err)
	}
	return nil
}

func (s *LocalStore) Load(_ context.Context, ref string) ([]byte, error) {
	src, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	return data, err
}

// resolve keeps references inside root.
func (s *LocalStore) resolve(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	return filepath.Join(s.root, clean), nil
}
