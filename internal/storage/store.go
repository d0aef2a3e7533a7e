// Package storage opens lesson audio assets from object storage or a local directory.
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

	"github.com/shadanga/kriya/internal/errs"
)

// AssetStore opens stored audio by object key.
type AssetStore interface {
	// Open returns a reader and its size in bytes, or -1 when unknown.
	// errs.ErrNotFound when the key does not exist.
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
}

// DirStore serves assets from a directory tree, for development and tests.
type DirStore struct {
	root string
}

// NewDirStore constructs a DirStore rooted at dir.
func NewDirStore(dir string) (*DirStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("asset dir: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("asset dir %s is not a directory", abs)
	}
	return &DirStore{root: abs}, nil
}

// Open resolves key below the root. Keys escaping the root are treated as missing.
func (d *DirStore) Open(_ context.Context, key string) (io.ReadCloser, int64, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(clean)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, errs.ErrNotFound
		}
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, 0, errs.ErrNotFound
	}
	return f, st.Size(), nil
}

func cleanKey(key string) (string, error) {
	k := strings.TrimPrefix(strings.TrimSpace(key), "/")
	if k == "" || !fs.ValidPath(k) {
		return "", errs.ErrNotFound
	}
	return k, nil
}
