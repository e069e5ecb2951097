package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-energy/friendly-data/internal/config"
	"github.com/sentinel-energy/friendly-data/internal/dpkg"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

// pkgFixture lays out a package directory with one dataset, an index, and a
// config file whose metadata needs no remote license lookup.
func pkgFixture(t *testing.T) (pkgDir, confFile string) {
	t.Helper()
	pkgDir = t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(pkgDir, name), []byte(body), 0o644))
	}
	write("capacity.csv", "region,technology,year,capacity\nUK,wind,2020,10\nDE,wind,2020,7\n")
	write("index.yaml", `
- path: capacity.csv
  idxcols: [region, technology, year]
`)
	write("conf.yaml", `
metadata:
  name: test_pkg
  title: Test package
  keywords: [energy, test]
  licenses:
    - name: CC0-1.0
      path: https://creativecommons.org/publicdomain/zero/1.0/
`)
	return pkgDir, filepath.Join(pkgDir, "conf.yaml")
}

func TestMetadataFromFileAndFlags(t *testing.T) {
	a := newTestApp(t)
	_, confFile := pkgFixture(t)

	meta, err := a.Metadata(context.Background(), confFile, MetaFlags{}, []string{"name", "licenses"})
	require.NoError(t, err)
	assert.Equal(t, "test_pkg", meta.Name)
	assert.Equal(t, []string{"energy", "test"}, meta.Keywords)

	meta, err = a.Metadata(context.Background(), confFile, MetaFlags{
		Name:     "renamed",
		Keywords: "solar wind",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "renamed", meta.Name)
	assert.Equal(t, []string{"solar", "wind"}, meta.Keywords)
}

func TestMetadataNameFromTitle(t *testing.T) {
	a := newTestApp(t)
	meta, err := a.Metadata(context.Background(), "", MetaFlags{Title: "Power plants (EU)"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Power_plants_EU", meta.Name)
}

func TestMetadataMandatory(t *testing.T) {
	a := newTestApp(t)
	_, err := a.Metadata(context.Background(), "", MetaFlags{}, []string{"name", "licenses"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name, licenses")
}

func TestCreateDescribeValidate(t *testing.T) {
	a := newTestApp(t)
	pkgDir, confFile := pkgFixture(t)

	out, err := a.Create(context.Background(), pkgDir, nil, MetaFlags{}, confFile)
	require.NoError(t, err)
	assert.Contains(t, out, "datapackage.json")

	pkg, err := dpkg.Read(pkgDir)
	require.NoError(t, err)
	assert.Equal(t, "test_pkg", pkg.Name)
	require.Len(t, pkg.Resources, 1)
	assert.Equal(t, []string{"region", "technology", "year"}, pkg.Resources[0].Schema.PrimaryKey)

	desc, err := a.Describe(pkgDir)
	require.NoError(t, err)
	assert.Contains(t, desc, "name: test_pkg")
	assert.Contains(t, desc, "capacity.csv")
	assert.Contains(t, desc, "primary key: region, technology, year")

	report, err := a.Validate(pkgDir)
	require.NoError(t, err)
	assert.Equal(t, "no issues found\n", report)
}

func TestCreateWithExtraPaths(t *testing.T) {
	a := newTestApp(t)
	pkgDir, confFile := pkgFixture(t)
	extra := filepath.Join(pkgDir, "notes.csv")
	require.NoError(t, os.WriteFile(extra, []byte("region,note\nUK,1\n"), 0o644))

	_, err := a.Create(context.Background(), pkgDir, []string{extra}, MetaFlags{}, confFile)
	require.NoError(t, err)

	pkg, err := dpkg.Read(pkgDir)
	require.NoError(t, err)
	assert.NotNil(t, pkg.Resource("notes.csv"))
}

func TestUpdate(t *testing.T) {
	a := newTestApp(t)
	pkgDir, confFile := pkgFixture(t)
	_, err := a.Create(context.Background(), pkgDir, nil, MetaFlags{}, confFile)
	require.NoError(t, err)

	_, err = a.Update(context.Background(), pkgDir, nil, MetaFlags{Title: "Renamed"}, "")
	require.NoError(t, err)

	pkg, err := dpkg.Read(pkgDir)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", pkg.Title)
	assert.Equal(t, "test_pkg", pkg.Name, "untouched fields kept")
}

func TestRemove(t *testing.T) {
	a := newTestApp(t)
	pkgDir, confFile := pkgFixture(t)
	_, err := a.Create(context.Background(), pkgDir, nil, MetaFlags{}, confFile)
	require.NoError(t, err)

	target := filepath.Join(pkgDir, "capacity.csv")
	_, err = a.Remove(pkgDir, []string{target}, true)
	require.NoError(t, err)

	pkg, err := dpkg.Read(pkgDir)
	require.NoError(t, err)
	assert.Empty(t, pkg.Resources)
	idx, err := dpkg.ReadIndex(filepath.Join(pkgDir, "index.yaml"))
	require.NoError(t, err)
	assert.Empty(t, idx)
	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestPackUnpackFetch(t *testing.T) {
	a := newTestApp(t)
	pkgDir, confFile := pkgFixture(t)
	_, err := a.Create(context.Background(), pkgDir, nil, MetaFlags{}, confFile)
	require.NoError(t, err)

	archive := filepath.Join(t.TempDir(), "pkg"+dpkg.ArchiveExt)
	_, err = a.Pack(pkgDir, archive)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "unpacked")
	out, err := a.Unpack(archive, dest)
	require.NoError(t, err)
	assert.Contains(t, out, dest)

	pkg, err := dpkg.Read(dest)
	require.NoError(t, err)
	assert.Equal(t, "test_pkg", pkg.Name)
}

func TestFetchFromLocalStore(t *testing.T) {
	a := newTestApp(t)
	pkgDir, confFile := pkgFixture(t)
	_, err := a.Create(context.Background(), pkgDir, nil, MetaFlags{}, confFile)
	require.NoError(t, err)

	// seed the configured local store with an archived package
	archive := filepath.Join(a.cfg.Storage.Path, "pkgs", "test"+dpkg.ArchiveExt)
	require.NoError(t, os.MkdirAll(filepath.Dir(archive), 0o755))
	require.NoError(t, dpkg.Pack(pkgDir, archive))

	out, err := a.Fetch(context.Background(), "pkgs/test"+dpkg.ArchiveExt, "")
	require.NoError(t, err)
	assert.Contains(t, out, "pkgs/test"+dpkg.ArchiveExt+" -> ")
}

func TestDescribeRegistry(t *testing.T) {
	a := newTestApp(t)
	out, err := a.DescribeRegistry("")
	require.NoError(t, err)
	assert.Contains(t, out, "idxcols:")
	assert.Contains(t, out, "cols:")
	assert.Contains(t, out, "technology: string")

	out, err = a.DescribeRegistry("cols")
	require.NoError(t, err)
	assert.NotContains(t, out, "idxcols:")

	_, err = a.DescribeRegistry("rows")
	assert.Error(t, err)
}

func TestToFromIAMC(t *testing.T) {
	a := newTestApp(t)
	pkgDir, _ := pkgFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "technology.csv"),
		[]byte("name,iamc\nwind,Wind\n"), 0o644))
	conv := filepath.Join(pkgDir, "iamc.yaml")
	require.NoError(t, os.WriteFile(conv, []byte(`
indices:
  model: demo-model
  scenario: baseline
  unit: MW
  technology: technology.csv
`), 0o644))
	idx := filepath.Join(pkgDir, "iamc-index.yaml")
	require.NoError(t, os.WriteFile(idx, []byte(`
- path: capacity.csv
  idxcols: [region, technology, year]
  iamc: Capacity|{technology}
`), 0o644))

	outPath := filepath.Join(pkgDir, "iamc.csv")
	out, err := a.ToIAMC(conv, idx, outPath, false)
	require.NoError(t, err)
	assert.Contains(t, out, outPath)
	body, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Capacity|Wind")

	outDir := filepath.Join(pkgDir, "decomposed")
	_, err = a.FromIAMC(conv, idx, outPath, outDir)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "capacity.csv"))
	assert.NoError(t, err)
}
