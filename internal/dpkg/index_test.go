package dpkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeIndexFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadIndex(t *testing.T) {
	path := writeIndexFile(t, `
- path: capacity.csv
  idxcols: [region, technology, year]
  iamc: Capacity|{technology}
  alias: {tech: technology}
- path: notes.csv
  name: notes
  skip: 2
`)
	idx, err := ReadIndex(path)
	require.NoError(t, err)
	require.Len(t, idx, 2)
	assert.Equal(t, []string{"region", "technology", "year"}, idx[0].IdxCols)
	assert.Equal(t, "Capacity|{technology}", idx[0].IAMC)
	assert.Equal(t, map[string]string{"tech": "technology"}, idx[0].Alias)
	assert.Equal(t, 2, idx[1].Skip)
	assert.Equal(t, "notes", idx[1].Label())
	assert.Equal(t, "capacity.csv", idx[0].Label())
}

func TestReadIndexUnknownKey(t *testing.T) {
	path := writeIndexFile(t, "- path: a.csv\n  idx_cols: [region]\n")
	_, err := ReadIndex(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idx_cols")
	assert.Contains(t, err.Error(), "bad key")
}

func TestReadIndexMultiAgg(t *testing.T) {
	path := writeIndexFile(t, `
- path: a.csv
  iamc: X
  agg:
    technology:
      - values: [a, b]
        variable: Y
    carrier:
      - values: [c]
        variable: Z
`)
	_, err := ReadIndex(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only one column")
}

func TestReadIndexNoPath(t *testing.T) {
	path := writeIndexFile(t, "- name: orphan\n")
	_, err := ReadIndex(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a path")
}

func TestReadIndexMissingFile(t *testing.T) {
	_, err := ReadIndex(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSheetYAML(t *testing.T) {
	var e Entry
	require.NoError(t, yaml.Unmarshal([]byte("path: a.xlsx\nsheet: 2\n"), &e))
	assert.Equal(t, Sheet{Number: 2, Set: true}, e.Sheet)

	require.NoError(t, yaml.Unmarshal([]byte("path: a.xlsx\nsheet: summary\n"), &e))
	assert.Equal(t, Sheet{Name: "summary", IsName: true, Set: true}, e.Sheet)

	// write-back keeps the original form, unset sheets are omitted
	raw, err := yaml.Marshal(Index{e, {Path: "b.csv"}})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "sheet: summary")
	assert.NotContains(t, string(raw), "b.csv\n  sheet")
}

func TestIndexIAMC(t *testing.T) {
	idx := Index{
		{Path: "a.csv", IAMC: "X"},
		{Path: "b.csv"},
		{Path: "c.csv", IAMC: "Y|{technology}"},
	}
	assert.Equal(t, []string{"a.csv", "c.csv"}, idx.IAMC().Paths())
	assert.Equal(t, []string{"a.csv", "b.csv", "c.csv"}, idx.Paths())
}

func TestAggRules(t *testing.T) {
	e := Entry{Agg: map[string][]AggRule{
		"technology": {{Values: []string{"a", "b"}, Variable: "X"}},
	}}
	col, rules := e.AggRules()
	assert.Equal(t, "technology", col)
	require.Len(t, rules, 1)
	assert.Equal(t, "X", rules[0].Variable)

	col, rules = Entry{}.AggRules()
	assert.Empty(t, col)
	assert.Nil(t, rules)
}

func TestWriteIndexRoundTrip(t *testing.T) {
	idx := Index{{
		Path:    "capacity.csv",
		IdxCols: []string{"region", "year"},
		IAMC:    "Capacity",
	}}
	path := filepath.Join(t.TempDir(), "index.yaml")
	require.NoError(t, WriteIndex(idx, path))

	got, err := ReadIndex(path)
	require.NoError(t, err)
	assert.Equal(t, idx, got)
}

func TestIndexPathFromPackagePath(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, IndexPathFromPackagePath(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.yaml"), []byte("[]"), 0o644))
	assert.Equal(t, filepath.Join(dir, "index.yaml"), IndexPathFromPackagePath(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte("[]"), 0o644))
	assert.Equal(t, filepath.Join(dir, "index.json"), IndexPathFromPackagePath(dir),
		"lexicographically first when several exist")
}
