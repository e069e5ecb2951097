package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-energy/friendly-data/internal/fderrors"
)

func newTestStore(t *testing.T) (*LocalStore, string) {
	t.Helper()
	base := t.TempDir()
	store, err := NewLocalStore(base)
	require.NoError(t, err)
	return store, base
}

func TestLocalUploadDownload(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b\n1,2\n"), 0o644))
	require.NoError(t, store.Upload(ctx, src, "pkg/data.csv"))

	ok, err := store.Exists(ctx, "pkg/data.csv")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Exists(ctx, "pkg/nope.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	dest := filepath.Join(t.TempDir(), "deep", "copy.csv")
	require.NoError(t, store.Download(ctx, "pkg/data.csv", dest))
	body, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))
}

func TestLocalDownloadMissing(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Download(context.Background(), "no/such.csv", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fderrors.New(fderrors.CategoryStorage, fderrors.CodeObjectNotFound, "")))
}

func TestLocalListObjects(t *testing.T) {
	store, base := newTestStore(t)
	ctx := context.Background()
	for _, rel := range []string{"pkg/a.csv", "pkg/sub/b.csv", "other/c.csv"} {
		path := filepath.Join(base, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	objects, err := store.ListObjects(ctx, "pkg")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pkg/a.csv", "pkg/sub/b.csv"}, objects)

	objects, err = store.ListObjects(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestLocalCancelledContext(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Download(ctx, "a", "b"))
	assert.Error(t, store.Upload(ctx, "a", "b"))
	_, err := store.Exists(ctx, "a")
	assert.Error(t, err)
	_, err = store.ListObjects(ctx, "a")
	assert.Error(t, err)
}
