package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LocalStore keeps objects as flat files inside one directory.
type LocalStore struct {
	fs  afero.Fs
	dir string
}

// NewLocalStore stores files under dir on the OS file system, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &LocalStore{fs: afero.NewBasePathFs(afero.NewOsFs(), dir), dir: dir}, nil
}

// NewLocalStoreFs stores files at the root of fsys. Used with afero.NewMemMapFs in tests.
func NewLocalStoreFs(fsys afero.Fs) *LocalStore {
	return &LocalStore{fs: fsys}
}

// Dir is the OS directory backing the store, empty for non-OS file systems.
func (s *LocalStore) Dir() string {
	return s.dir
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return key, nil
}

func (s *LocalStore) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	name, err := cleanKey(key)
	if err != nil {
		return 0, err
	}

	f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", name, err)
	}

	written, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(name)
		return 0, fmt.Errorf("failed to write %s: %w", name, err)
	}
	return written, nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (Object, error) {
	name, err := cleanKey(key)
	if err != nil {
		return nil, ErrNotExist
	}

	f, err := s.fs.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotExist
	}
	return &localObject{File: f, size: info.Size()}, nil
}

func (s *LocalStore) Remove(ctx context.Context, key string) error {
	name, err := cleanKey(key)
	if err != nil {
		return ErrNotExist
	}
	if err := s.fs.Remove(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotExist
		}
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

func (s *LocalStore) Location(key string) string {
	if s.dir == "" {
		return key
	}
	return filepath.Join(s.dir, key)
}

// Exists reports whether key is present.
func (s *LocalStore) Exists(key string) bool {
	name, err := cleanKey(key)
	if err != nil {
		return false
	}
	ok, _ := afero.Exists(s.fs, name)
	return ok
}

// KeyFromPath maps an OS path inside Dir back to its storage key.
func (s *LocalStore) KeyFromPath(path string) (string, bool) {
	if s.dir == "" || filepath.Dir(filepath.Clean(path)) != filepath.Clean(s.dir) {
		return "", false
	}
	return filepath.Base(path), true
}

type localObject struct {
	afero.File
	size int64
}

func (o *localObject) Size() int64 {
	return o.size
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
