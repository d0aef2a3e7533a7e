package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shadanga/kriya/internal/errs"
)

func TestDirStore_Open(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "courses", "c1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "courses", "c1", "l1.mp3"), []byte("ID3audio"), 0o644))

	s, err := NewDirStore(root)
	require.NoError(t, err)

	rc, size, err := s.Open(context.Background(), "courses/c1/l1.mp3")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "ID3audio", string(b))
	require.Equal(t, int64(8), size)

	// leading slash tolerated
	rc2, _, err := s.Open(context.Background(), "/courses/c1/l1.mp3")
	require.NoError(t, err)
	rc2.Close()
}

func TestDirStore_MissingAndEscapes(t *testing.T) {
	root := t.TempDir()
	s, err := NewDirStore(root)
	require.NoError(t, err)

	for _, key := range []string{"", "nope.mp3", "../etc/passwd", "a/../../b", "."} {
		_, _, err := s.Open(context.Background(), key)
		require.ErrorIs(t, err, errs.ErrNotFound, "key %q", key)
	}

	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))
	_, _, err = s.Open(context.Background(), "dir")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestNewDirStore_RequiresDirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err := NewDirStore(f)
	require.Error(t, err)

	_, err = NewDirStore(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
