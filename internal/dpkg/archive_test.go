package dpkg

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-energy/friendly-data/internal/registry"
)

func TestPackUnpack(t *testing.T) {
	dir := pkgFixture(t)
	sub := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "extra.csv"), []byte("a\n1\n"), 0o644))

	out := filepath.Join(t.TempDir(), "pkg"+ArchiveExt)
	require.NoError(t, Pack(dir, out))

	dest := filepath.Join(t.TempDir(), "unpacked")
	got, err := Unpack(out, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, got)

	for _, rel := range []string{"capacity.csv", filepath.Join("data", "extra.csv")} {
		want, err := os.ReadFile(filepath.Join(dir, rel))
		require.NoError(t, err)
		have, err := os.ReadFile(filepath.Join(dest, rel))
		require.NoError(t, err)
		assert.Equal(t, want, have, rel)
	}
}

func TestUnpackDefaultDest(t *testing.T) {
	dir := pkgFixture(t)
	out := filepath.Join(t.TempDir(), "pkg"+ArchiveExt)
	require.NoError(t, Pack(dir, out))

	got, err := Unpack(out, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(out), "pkg"), got)
	_, err = os.Stat(filepath.Join(got, "capacity.csv"))
	assert.NoError(t, err)
}

func TestReadArchive(t *testing.T) {
	dir := pkgFixture(t)
	pkg, err := Create(Meta{Name: "arch_pkg"}, Index{fixtureEntry()}, dir, registry.New())
	require.NoError(t, err)
	_, err = Write(pkg, dir, nil)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "arch_pkg"+ArchiveExt)
	require.NoError(t, Pack(dir, out))

	got, err := Read(out)
	require.NoError(t, err)
	assert.Equal(t, "arch_pkg", got.Name)
	_, err = os.Stat(filepath.Join(got.BasePath, "capacity.csv"))
	assert.NoError(t, err)
}

func TestUnpackDotDotInFilename(t *testing.T) {
	// ".." inside a name is fine, only path traversal is refused
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a..b.csv"), []byte("x\n1\n"), 0o644))
	out := filepath.Join(t.TempDir(), "pkg"+ArchiveExt)
	require.NoError(t, Pack(dir, out))

	dest, err := Unpack(out, filepath.Join(t.TempDir(), "unpacked"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, "a..b.csv"))
	assert.NoError(t, err)
}

func TestUnpackRejectsTraversal(t *testing.T) {
	out := filepath.Join(t.TempDir(), "evil"+ArchiveExt)
	f, err := os.Create(out)
	require.NoError(t, err)
	sz := snappy.NewBufferedWriter(f)
	tw := tar.NewWriter(sz)
	body := []byte("x\n1\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "../escape.csv",
		Mode: 0o644,
		Size: int64(len(body)),
	}))
	_, err = tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, sz.Close())
	require.NoError(t, f.Close())

	dest := filepath.Join(t.TempDir(), "unpacked")
	_, err = Unpack(out, dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsafe path")
	_, err = os.Stat(filepath.Join(filepath.Dir(dest), "escape.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestUnpackMissingArchive(t *testing.T) {
	_, err := Unpack(filepath.Join(t.TempDir(), "nope"+ArchiveExt), "")
	assert.Error(t, err)
}
