package table

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sentinel-energy/friendly-data/internal/fderrors"
)

// ReadOptions controls how a CSV file is read into a Table.
type ReadOptions struct {
	// IndexColumns are the columns that form the table index. Columns not
	// listed here are value columns.
	IndexColumns []string
	// ValueColumn selects the value column. When empty, the last non-index
	// column is used.
	ValueColumn string
	// TypeMap maps column names to schema types. Only consulted for the
	// value column; index cells are kept as text.
	TypeMap map[string]string
	// NAValues are additional tokens treated as missing values.
	NAValues map[string]bool
	// SkipRows is the number of leading rows to skip before the header.
	SkipRows int
	// NoExcept substitutes an empty table for a read error.
	NoExcept bool
}

var defaultNA = map[string]bool{"": true, "NA": true, "N/A": true, "NaN": true, "nan": true, "null": true}

func isNA(cell string, extra map[string]bool) bool {
	return defaultNA[cell] || extra[cell]
}

// ReadCSV reads a CSV file into a Table according to opts. Only CSV sources
// are supported; any other extension is a hard error unless opts.NoExcept is
// set, in which case an empty table is returned.
func ReadCSV(path string, opts ReadOptions) (*Table, error) {
	t, err := readCSV(path, opts)
	if err != nil && opts.NoExcept {
		return New(opts.IndexColumns, "value"), nil
	}
	return t, err
}

func readCSV(path string, opts ReadOptions) (*Table, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".csv" {
		return nil, fderrors.Newf(fderrors.CategoryPackage, fderrors.CodeUnsupportedSource,
			"%s: unsupported source type %q", path, ext)
	}
	grid, err := ReadGrid(path, opts.SkipRows)
	if err != nil {
		return nil, err
	}
	idxPos := make([]int, 0, len(opts.IndexColumns))
	for _, name := range opts.IndexColumns {
		at := grid.Column(name)
		if at < 0 {
			return nil, fderrors.Newf(fderrors.CategoryPackage, fderrors.CodeBadValue,
				"%s: index column %q not found", path, name)
		}
		idxPos = append(idxPos, at)
	}
	valName := opts.ValueColumn
	valAt := -1
	if valName != "" {
		if valAt = grid.Column(valName); valAt < 0 {
			return nil, fderrors.Newf(fderrors.CategoryPackage, fderrors.CodeBadValue,
				"%s: value column %q not found", path, valName)
		}
	} else {
		// last column that is not part of the index
		for i := len(grid.Header) - 1; i >= 0; i-- {
			if !contains(opts.IndexColumns, grid.Header[i]) {
				valAt, valName = i, grid.Header[i]
				break
			}
		}
		if valAt < 0 {
			return nil, fderrors.Newf(fderrors.CategoryPackage, fderrors.CodeBadValue,
				"%s: no value column outside the index", path)
		}
	}
	out := New(opts.IndexColumns, valName)
	for _, rec := range grid.Rows {
		idx := make([]string, len(idxPos))
		for j, at := range idxPos {
			idx[j] = rec[at]
		}
		v := math.NaN()
		if !isNA(rec[valAt], opts.NAValues) {
			v, err = strconv.ParseFloat(strings.TrimSpace(rec[valAt]), 64)
			if err != nil {
				return nil, fderrors.Wrap(fderrors.CategoryPackage, fderrors.CodeBadValue,
					path+": value column "+valName, err)
			}
		}
		out.Rows = append(out.Rows, Row{Index: idx, Value: v})
	}
	return out, nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// WriteCSV writes a table to path, index columns leading. Parent directories
// are created as needed. NaN values are written as empty cells.
func WriteCSV(t *Table, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	header := append(append([]string{}, t.IndexNames...), t.ValueName)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range t.Rows {
		rec := append(append([]string{}, r.Index...), formatValue(r.Value))
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Grid is a raw CSV grid: a header row and string cells. It backs schema
// inference, where cell types are not yet known.
type Grid struct {
	Header []string
	Rows   [][]string
}

// ReadGrid reads a CSV file as raw cells, skipping skip leading rows before
// the header.
func ReadGrid(path string, skip int) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if skip >= len(recs) {
		return &Grid{}, nil
	}
	recs = recs[skip:]
	if len(recs) == 0 {
		return &Grid{}, nil
	}
	g := &Grid{Header: recs[0]}
	for _, rec := range recs[1:] {
		// pad ragged rows so column access stays in bounds
		for len(rec) < len(g.Header) {
			rec = append(rec, "")
		}
		g.Rows = append(g.Rows, rec)
	}
	return g, nil
}

// Column returns the position of the named column, or -1.
func (g *Grid) Column(name string) int {
	for i, h := range g.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Values returns the distinct non-missing values of the named column, in
// first-seen order.
func (g *Grid) Values(name string) []string {
	at := g.Column(name)
	if at < 0 {
		return nil
	}
	seen := map[string]bool{}
	vals := []string{}
	for _, rec := range g.Rows {
		v := rec[at]
		if isNA(v, nil) || seen[v] {
			continue
		}
		seen[v] = true
		vals = append(vals, v)
	}
	return vals
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// InferType deduces a schema type from raw cells: boolean, integer, number,
// datetime, or string. Missing values are ignored; a column of only missing
// values is typed string.
func InferType(cells []string) string {
	seen := false
	isBool, isInt, isNum, isDate := true, true, true, true
	for _, c := range cells {
		if isNA(c, nil) {
			continue
		}
		seen = true
		c = strings.TrimSpace(c)
		if lc := strings.ToLower(c); lc != "true" && lc != "false" {
			isBool = false
		}
		if _, err := strconv.ParseInt(c, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			isNum = false
		}
		if isDate {
			ok := false
			for _, layout := range datetimeLayouts {
				if _, err := time.Parse(layout, c); err == nil {
					ok = true
					break
				}
			}
			isDate = ok
		}
	}
	switch {
	case !seen:
		return "string"
	case isBool:
		return "boolean"
	case isInt:
		return "integer"
	case isNum:
		return "number"
	case isDate:
		return "datetime"
	default:
		return "string"
	}
}
