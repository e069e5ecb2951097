package iamc

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/sentinel-energy/friendly-data/internal/dpkg"
	"github.com/sentinel-energy/friendly-data/internal/table"
)

// composing a table and decomposing the result must reproduce the table,
// modulo the defaulted IAMC columns picked up along the way
func TestComposeDecomposeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	genInput := gopter.CombineGens(
		gen.IntRange(1, 6),             // number of technologies
		gen.SliceOfN(6, gen.Float64Range(0, 1e6)), // values
		gen.IntRange(2000, 2100),       // year
	)

	properties.Property("round trip over templated entries", prop.ForAll(
		func(args []interface{}) bool {
			n := args[0].(int)
			values := args[1].([]float64)
			year := args[2].(int)

			keys := make([]string, n)
			labels := make([]string, n)
			for i := 0; i < n; i++ {
				keys[i] = fmt.Sprintf("tech%02d", i)
				labels[i] = fmt.Sprintf("Tech %02d", i)
			}

			entry := dpkg.Entry{
				Path:    "capacity.csv",
				IdxCols: []string{"technology"},
				IAMC:    "Capacity|{technology}",
			}
			conv := New(dpkg.Index{entry}, testConfig(), "").
				WithLevels("technology", NewLabelMap(keys, labels))

			in := table.New([]string{"region", "technology", "year"}, "capacity")
			for i, k := range keys {
				in.Append([]string{"UK", k, strconv.Itoa(year)}, values[i])
			}

			frames, err := conv.Compose(entry, in)
			if err != nil {
				return false
			}
			all := Frame{}
			for _, fr := range frames {
				all.Append(fr)
			}

			out, err := conv.Decompose(entry, all)
			if err != nil {
				return false
			}
			// drop the columns compose filled from defaults before comparing
			got := out.DropLevels("model", "scenario", "unit")
			return table.Equal(in, got)
		},
		genInput,
	))

	properties.TestingRun(t)
}

// the emitted variable always uses the configured label casing, and matching
// on the way back ignores the frame's casing
func TestCaseFoldRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("case-folded variable matching", prop.ForAll(
		func(upper bool) bool {
			entry := dpkg.Entry{
				Path:    "capacity.csv",
				IdxCols: []string{"technology"},
				IAMC:    "Capacity|{technology}",
			}
			conv := New(dpkg.Index{entry}, testConfig(), "").
				WithLevels("technology", NewLabelMap([]string{"wind"}, []string{"Wind"}))

			variable := "capacity|wind"
			if upper {
				variable = "CAPACITY|WIND"
			}
			f := Frame{Rows: []Row{{
				Model: "m", Scenario: "s", Region: "UK",
				Variable: variable, Unit: "MW", Year: 2020, Value: 1,
			}}}
			out, err := conv.Decompose(entry, f)
			if err != nil || len(out.Rows) != 1 {
				return false
			}
			return out.Rows[0].Index[out.Level("technology")] == "wind"
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}
