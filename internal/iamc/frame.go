// Package iamc implements the conversion engine between the package's
// native tabular resources (one file per variable, explicit categorical
// index columns) and the IAMC long format, where a single variable column
// encodes a semi-hierarchical name like "Capacity|Electricity|Wind".
package iamc

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/sentinel-energy/friendly-data/internal/fderrors"
)

// Idx is the canonical IAMC index: every IAMC frame is keyed by exactly this
// tuple, in this order.
var Idx = []string{"model", "scenario", "region", "variable", "unit", "year"}

// IsIdxCol reports whether name is one of the mandatory IAMC index columns.
func IsIdxCol(name string) bool {
	for _, n := range Idx {
		if n == name {
			return true
		}
	}
	return false
}

// Row is one IAMC record.
type Row struct {
	Model    string
	Scenario string
	Region   string
	Variable string
	Unit     string
	Year     int
	Value    float64
}

// Frame is a set of IAMC rows.
type Frame struct {
	Rows []Row
}

// Empty reports whether the frame has no rows.
func (f Frame) Empty() bool { return len(f.Rows) == 0 }

// Append concatenates other onto f.
func (f *Frame) Append(other Frame) {
	f.Rows = append(f.Rows, other.Rows...)
}

// Sorted returns a copy with rows ordered by the canonical index.
func (f Frame) Sorted() Frame {
	out := Frame{Rows: append([]Row(nil), f.Rows...)}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		a, b := out.Rows[i], out.Rows[j]
		switch {
		case a.Model != b.Model:
			return a.Model < b.Model
		case a.Scenario != b.Scenario:
			return a.Scenario < b.Scenario
		case a.Region != b.Region:
			return a.Region < b.Region
		case a.Variable != b.Variable:
			return a.Variable < b.Variable
		case a.Unit != b.Unit:
			return a.Unit < b.Unit
		default:
			return a.Year < b.Year
		}
	})
	return out
}

// index returns the row's index cell for the named IAMC column.
func (r Row) index(name string) string {
	switch name {
	case "model":
		return r.Model
	case "scenario":
		return r.Scenario
	case "region":
		return r.Region
	case "variable":
		return r.Variable
	case "unit":
		return r.Unit
	case "year":
		return strconv.Itoa(r.Year)
	}
	return ""
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes the frame to path in long form, or in wide form (years as
// columns) when wide is set. Parent directories are created as needed.
func WriteCSV(f Frame, path string, wide bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	w := csv.NewWriter(out)
	defer w.Flush()
	if !wide {
		if err := w.Write(append(append([]string{}, Idx...), "value")); err != nil {
			return err
		}
		for _, r := range f.Sorted().Rows {
			rec := []string{r.Model, r.Scenario, r.Region, r.Variable, r.Unit,
				strconv.Itoa(r.Year), formatValue(r.Value)}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		return w.Error()
	}
	return writeWide(w, f)
}

// writeWide pivots year out of the index into one column per year.
func writeWide(w *csv.Writer, f Frame) error {
	years := []int{}
	seen := map[int]bool{}
	for _, r := range f.Rows {
		if !seen[r.Year] {
			seen[r.Year] = true
			years = append(years, r.Year)
		}
	}
	sort.Ints(years)
	header := []string{"model", "scenario", "region", "variable", "unit"}
	for _, y := range years {
		header = append(header, strconv.Itoa(y))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	type key struct{ model, scenario, region, variable, unit string }
	order := []key{}
	cells := map[key]map[int]float64{}
	for _, r := range f.Sorted().Rows {
		k := key{r.Model, r.Scenario, r.Region, r.Variable, r.Unit}
		if _, ok := cells[k]; !ok {
			order = append(order, k)
			cells[k] = map[int]float64{}
		}
		cells[k][r.Year] = r.Value
	}
	for _, k := range order {
		rec := []string{k.model, k.scenario, k.region, k.variable, k.unit}
		for _, y := range years {
			if v, ok := cells[k][y]; ok {
				rec = append(rec, formatValue(v))
			} else {
				rec = append(rec, "")
			}
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}

// ReadCSV reads a long-form IAMC CSV file into a frame.
func ReadCSV(path string) (Frame, error) {
	in, err := os.Open(path)
	if err != nil {
		return Frame{}, err
	}
	defer in.Close()
	r := csv.NewReader(in)
	recs, err := r.ReadAll()
	if err != nil {
		return Frame{}, err
	}
	if len(recs) == 0 {
		return Frame{}, nil
	}
	at := map[string]int{}
	for i, h := range recs[0] {
		at[h] = i
	}
	for _, col := range append(append([]string{}, Idx...), "value") {
		if _, ok := at[col]; !ok {
			return Frame{}, fderrors.Newf(fderrors.CategoryConvert, fderrors.CodeMissingColumn,
				"%s: missing IAMC column %q", path, col)
		}
	}
	f := Frame{}
	for _, rec := range recs[1:] {
		year, err := strconv.Atoi(rec[at["year"]])
		if err != nil {
			return Frame{}, fderrors.Wrap(fderrors.CategoryConvert, fderrors.CodeBadValue,
				path+": year column", err)
		}
		value := math.NaN()
		if cell := rec[at["value"]]; cell != "" {
			if value, err = strconv.ParseFloat(cell, 64); err != nil {
				return Frame{}, fderrors.Wrap(fderrors.CategoryConvert, fderrors.CodeBadValue,
					path+": value column", err)
			}
		}
		f.Rows = append(f.Rows, Row{
			Model:    rec[at["model"]],
			Scenario: rec[at["scenario"]],
			Region:   rec[at["region"]],
			Variable: rec[at["variable"]],
			Unit:     rec[at["unit"]],
			Year:     year,
			Value:    value,
		})
	}
	return f, nil
}
