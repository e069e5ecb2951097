package iamc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-energy/friendly-data/internal/dpkg"
	"github.com/sentinel-energy/friendly-data/internal/table"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConvertSourcesFromFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "technology.csv"), "name,iamc\nwind,Wind\nsolar,Solar\n")
	writeFile(t, filepath.Join(dir, "capacity.csv"),
		"region,technology,year,capacity\nUK,wind,2020,10\nUK,solar,2020,5\n")
	writeFile(t, filepath.Join(dir, "index.yaml"), `
- path: capacity.csv
  idxcols: [region, technology, year]
  iamc: "Capacity|{technology}"
`)
	writeFile(t, filepath.Join(dir, "conf.yaml"), `
indices:
  model: model-x
  scenario: default
  unit: MW
  technology: technology.csv
`)

	conv, err := FromFiles(filepath.Join(dir, "conf.yaml"), filepath.Join(dir, "index.yaml"))
	require.NoError(t, err)

	frame, err := conv.ConvertFiles(conv.Entries().Paths())
	require.NoError(t, err)
	require.Len(t, frame.Rows, 2)

	vars := map[string]float64{}
	for _, r := range frame.Rows {
		vars[r.Variable] = r.Value
	}
	assert.Equal(t, map[string]float64{"Capacity|Wind": 10, "Capacity|Solar": 5}, vars)
}

func TestConvertSourcesSkipsUnmatched(t *testing.T) {
	logs := captureLogs(t)
	entry := dpkg.Entry{Path: "cost.csv", IAMC: "Cost|Total"}
	conv := New(dpkg.Index{entry}, testConfig(), "")

	frame, err := conv.ConvertSources([]Source{FileSource("unrelated.csv")})
	require.NoError(t, err)
	assert.True(t, frame.Empty())
	assert.Equal(t, 1, strings.Count(logs.String(), "empty data set"))
}

func TestConvertSourcesInMemoryTable(t *testing.T) {
	entry := dpkg.Entry{Name: "cost", Path: "cost.csv", IAMC: "Cost|Total"}
	conv := New(dpkg.Index{entry}, testConfig(), "")

	in := table.New([]string{"region", "year"}, "cost")
	in.Append([]string{"UK", "2030"}, 42)

	frame, err := conv.ConvertSources([]Source{TableSource("cost", in)})
	require.NoError(t, err)
	require.Len(t, frame.Rows, 1)
	assert.Equal(t, "Cost|Total", frame.Rows[0].Variable)
}

func TestConvertSourcesDuplicateEntriesFirstWins(t *testing.T) {
	logs := captureLogs(t)
	entries := dpkg.Index{
		{Name: "cost", Path: "cost.csv", IAMC: "Cost|First"},
		{Name: "cost", Path: "cost.csv", IAMC: "Cost|Second"},
	}
	conv := New(entries, testConfig(), "")

	in := table.New([]string{"region", "year"}, "cost")
	in.Append([]string{"UK", "2030"}, 1)

	frame, err := conv.ConvertSources([]Source{TableSource("cost", in)})
	require.NoError(t, err)
	require.Len(t, frame.Rows, 1)
	assert.Equal(t, "Cost|First", frame.Rows[0].Variable)
	assert.Contains(t, logs.String(), "duplicate index entries")
}

func TestDecomposeAll(t *testing.T) {
	dir := t.TempDir()
	entry := dpkg.Entry{
		Path:    "capacity.csv",
		IdxCols: []string{"technology"},
		IAMC:    "Capacity|{technology}",
	}
	conv := New(dpkg.Index{entry}, testConfig(), dir).
		WithLevels("technology", NewLabelMap([]string{"wind"}, []string{"Wind"}))

	f := Frame{Rows: []Row{{
		Model: "m", Scenario: "s", Region: "UK",
		Variable: "Capacity|Wind", Unit: "MW", Year: 2020, Value: 10,
	}}}
	written, err := conv.DecomposeAll(f, dir)
	require.NoError(t, err)
	require.Len(t, written, 1)

	out, err := table.ReadCSV(filepath.Join(dir, "capacity.csv"), table.ReadOptions{
		IndexColumns: written[0].IdxCols,
	})
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, 10.0, out.Rows[0].Value)
}
