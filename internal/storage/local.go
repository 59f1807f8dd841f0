package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/spf13/afero"

	"github.com/rohits-web03/softvault/internal/apperr"
)

// LocalStore keeps objects on a filesystem rooted at the storage path.
type LocalStore struct {
	fs afero.Fs
}

// NewLocalStore roots a store at dir on the OS filesystem, creating it if
// needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create storage dir %s: %w", dir, err)
	}
	return NewFsStore(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewFsStore wraps an arbitrary afero filesystem; tests use a MemMapFs.
func NewFsStore(fsys afero.Fs) *LocalStore {
	return &LocalStore{fs: fsys}
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if err := checkKey(key); err != nil {
		return 0, err
	}
	if err := s.fs.MkdirAll(path.Dir(key), 0o755); err != nil {
		return 0, fmt.Errorf("cannot create dir for %s: %w", key, err)
	}
	f, err := s.fs.Create(key)
	if err != nil {
		return 0, fmt.Errorf("cannot create %s: %w", key, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(key)
		return 0, fmt.Errorf("cannot write %s: %w", key, err)
	}
	return n, nil
}

// Open returns an afero.File, which also satisfies io.ReadSeeker.
func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file %s: %w", key, apperr.ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

func (s *LocalStore) Remove(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.fs.Remove(key); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("file %s: %w", key, apperr.ErrNotFound)
		}
		return err
	}
	return nil
}
