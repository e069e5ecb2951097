package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseLookup(t *testing.T) {
	r := New()
	col := r.Get("technology", IdxCols)
	assert.Equal(t, "string", col.Type)
	require.NotNil(t, col.Constraints)
	assert.Empty(t, col.Constraints.Enum)

	assert.True(t, r.Get("nonexistent", IdxCols).IsZero())
	assert.True(t, r.Get("region", "badtype").IsZero())
}

func TestGetReturnsCopy(t *testing.T) {
	r := New()
	col := r.Get("capacity_factor", Cols)
	require.NotNil(t, col.Constraints)
	*col.Constraints.Minimum = -1

	again := r.Get("capacity_factor", Cols)
	assert.Equal(t, 0.0, *again.Constraints.Minimum)
}

func TestWithCustomMergesAndIsolates(t *testing.T) {
	base := New()
	merged := base.WithCustom(Custom{
		IdxCols: []ColSchema{
			{Name: "technology", Constraints: &Constraints{Enum: []string{"wind", "solar"}}},
			{Name: "plant", Type: "string"},
		},
	})

	// merged layer: same-name entry field-merged, new entry appended
	tech := merged.Get("technology", IdxCols)
	assert.Equal(t, "string", tech.Type, "base type retained")
	assert.Equal(t, []string{"wind", "solar"}, tech.Constraints.Enum)
	assert.Equal(t, "string", merged.Get("plant", IdxCols).Type)

	// base registry untouched
	assert.Empty(t, base.Get("technology", IdxCols).Constraints.Enum)
	assert.True(t, base.Get("plant", IdxCols).IsZero())
}

func TestWithCustomInvalidLayerIgnored(t *testing.T) {
	base := New()

	got := base.WithCustom(Custom{Cols: []ColSchema{{Type: "number"}}})
	assert.Equal(t, base.All(""), got.All(""), "nameless column rejected")

	got = base.WithCustom(Custom{Cols: []ColSchema{{Name: "x", Type: "float"}}})
	assert.Equal(t, base.All(""), got.All(""), "unknown type rejected")
}

func TestWithCustomEmpty(t *testing.T) {
	base := New()
	assert.Equal(t, base.All(""), base.WithCustom(Custom{}).All(""))
}

func TestAll(t *testing.T) {
	r := New()
	all := r.All("")
	assert.Len(t, all, 2)
	assert.Equal(t, "region", all[IdxCols][0].Name, "base order retained")

	only := r.All(Cols)
	assert.Len(t, only, 1)
	assert.NotEmpty(t, only[Cols])
}

func TestCustomFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	body := `
registry:
  idxcols:
    - name: plant
      type: string
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	custom, err := CustomFromFile(path)
	require.NoError(t, err)
	require.Len(t, custom.IdxCols, 1)
	assert.Equal(t, "plant", custom.IdxCols[0].Name)
}

func TestCustomFromFileNoSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metadata:\n  name: test\n"), 0o644))

	custom, err := CustomFromFile(path)
	require.NoError(t, err)
	assert.True(t, custom.empty())
}

func TestCustomFromFileErrors(t *testing.T) {
	_, err := CustomFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("registry: [not, a, map]\n"), 0o644))
	_, err = CustomFromFile(path)
	assert.Error(t, err)
}
