// Package localstorage keeps images as plain files in one directory
package localstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/BgRemover/internal/model"
	"github.com/segmentio/ksuid"
)

var ErrOutsideDir = errors.New("key points outside of storage directory")

type Store struct {
	dir string
}

// New makes sure dir exists and returns a store rooted at its absolute path
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage dir %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %q: %w", abs, err)
	}
	return &Store{dir: abs}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// SaveResult writes png under a fresh name and returns its absolute path
func (s *Store) SaveResult(ctx context.Context, png []byte) (string, error) {
	if len(png) == 0 {
		return "", errors.New("empty result passed to SaveResult")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, ksuid.New().String()+model.GetImageFileExt[model.PNG])
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write result file: %w", err)
	}
	return path, nil
}

// Put stores r under key; size is ignored, the whole reader is copied
func (s *Store) Put(ctx context.Context, key string, _ int64, _ string, r io.Reader) error {
	if r == nil {
		return errors.New("nil reader passed to storage.Put")
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return f.Close()
}

// Get opens the file behind key; key may be a bare name or an absolute path inside the store
func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, contentType(path), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Path returns the absolute path a key maps to
func (s *Store) Path(key string) (string, error) {
	return s.resolve(key)
}

func (s *Store) resolve(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty storage key")
	}
	path := key
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, key)
	}
	path = filepath.Clean(path)
	if path != s.dir && !strings.HasPrefix(path, s.dir+string(filepath.Separator)) {
		return "", ErrOutsideDir
	}
	return path, nil
}

func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	for ct, e := range model.GetImageFileExt {
		if e == ext {
			return ct
		}
	}
	return "application/octet-stream"
}
