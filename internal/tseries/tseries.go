// Package tseries reshapes commonly seen time series layouts into the
// single date-indexed long form the package tooling expects.
package tseries

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sentinel-energy/friendly-data/internal/fderrors"
)

// Point is one observation of a long-form time series.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is a long-form time series in file order.
type Series struct {
	Name   string
	Points []Point
}

// TableOptions configures reading a "table" layout: one date row index and
// one column per time step within the date (hours of a day, months of a
// year).
type TableOptions struct {
	// ColUnits is the time unit of the columns: "month" or "hour".
	ColUnits string
	// ZeroIdx marks the columns as zero-indexed; hour and month columns are
	// usually counted from 1.
	ZeroIdx bool
	// RowFmt is the Go time layout of the date column. Empty picks "2006"
	// for months and "2006-01-02" for hours.
	RowFmt string
	// SkipRows skips leading rows before the header.
	SkipRows int
}

// FromTable flattens a table-shaped time series (date rows, time step
// columns) into a single long series. Column headers must be the integer
// step offsets.
func FromTable(path string, opts TableOptions) (*Series, error) {
	unit := opts.ColUnits
	switch {
	case strings.Contains(unit, "month"):
		unit = "month"
	case strings.Contains(unit, "hour"):
		unit = "hour"
	default:
		return nil, fderrors.Newf(fderrors.CategoryConvert, fderrors.CodeBadValue,
			"%s: unsupported column units", opts.ColUnits)
	}

	rowFmt := opts.RowFmt
	if rowFmt == "" {
		if unit == "month" {
			rowFmt = "2006"
		} else {
			rowFmt = "2006-01-02"
		}
	}

	recs, err := readRecords(path, opts.SkipRows)
	if err != nil {
		return nil, err
	}
	if len(recs) < 2 {
		return &Series{Name: stemOf(path)}, nil
	}

	header := recs[0]
	steps := make([]int, len(header))
	for i := 1; i < len(header); i++ {
		n, err := strconv.Atoi(strings.TrimSpace(header[i]))
		if err != nil {
			return nil, fderrors.Newf(fderrors.CategoryConvert, fderrors.CodeBadValue,
				"%s: column %q is not a time step", path, header[i])
		}
		steps[i] = n
	}

	base := 1
	if opts.ZeroIdx {
		base = 0
	}
	out := &Series{Name: stemOf(path)}
	for _, rec := range recs[1:] {
		start, err := time.Parse(rowFmt, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fderrors.Wrap(fderrors.CategoryConvert, fderrors.CodeBadValue, path, err)
		}
		for i := 1; i < len(rec) && i < len(header); i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				continue
			}
			out.Points = append(out.Points, Point{Time: stepTime(start, unit, steps[i]-base), Value: v})
		}
	}
	return out, nil
}

func stepTime(start time.Time, unit string, n int) time.Time {
	if unit == "month" {
		return start.AddDate(0, n, 0)
	}
	return start.Add(time.Duration(n) * time.Hour)
}

// MulticolOptions configures reading a "multicol" layout, where the
// datetime is split over several columns.
type MulticolOptions struct {
	// DateCols are the columns joined (space separated) to form the
	// datetime, in order.
	DateCols []string
	// Layout parses the joined datetime; empty uses "2006-01-02 15:04".
	Layout string
	// ValueCol is the observation column; empty picks the first column not
	// used for the datetime.
	ValueCol string
	// SkipRows skips leading rows before the header.
	SkipRows int
}

// FromMulticol combines split datetime columns into a single long series.
func FromMulticol(path string, opts MulticolOptions) (*Series, error) {
	if len(opts.DateCols) == 0 {
		return nil, fderrors.New(fderrors.CategoryConvert, fderrors.CodeBadValue,
			"missing list of datetime columns")
	}
	layout := opts.Layout
	if layout == "" {
		layout = "2006-01-02 15:04"
	}

	recs, err := readRecords(path, opts.SkipRows)
	if err != nil {
		return nil, err
	}
	if len(recs) < 2 {
		return &Series{Name: stemOf(path)}, nil
	}

	header := recs[0]
	colAt := map[string]int{}
	for i, h := range header {
		colAt[h] = i
	}
	dateAt := make([]int, len(opts.DateCols))
	for i, col := range opts.DateCols {
		at, ok := colAt[col]
		if !ok {
			return nil, fderrors.Newf(fderrors.CategoryConvert, fderrors.CodeMissingColumn,
				"%s: datetime column %q not found", path, col)
		}
		dateAt[i] = at
	}

	valueAt := -1
	if opts.ValueCol != "" {
		at, ok := colAt[opts.ValueCol]
		if !ok {
			return nil, fderrors.Newf(fderrors.CategoryConvert, fderrors.CodeMissingColumn,
				"%s: value column %q not found", path, opts.ValueCol)
		}
		valueAt = at
	} else {
		used := map[int]bool{}
		for _, at := range dateAt {
			used[at] = true
		}
		for i := range header {
			if !used[i] {
				valueAt = i
				break
			}
		}
	}
	if valueAt < 0 {
		return nil, fderrors.Newf(fderrors.CategoryConvert, fderrors.CodeMissingColumn,
			"%s: no value column", path)
	}

	out := &Series{Name: header[valueAt]}
	for _, rec := range recs[1:] {
		parts := make([]string, len(dateAt))
		for i, at := range dateAt {
			parts[i] = strings.TrimSpace(rec[at])
		}
		t, err := time.Parse(layout, strings.Join(parts, " "))
		if err != nil {
			return nil, fderrors.Wrap(fderrors.CategoryConvert, fderrors.CodeBadValue, path, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[valueAt]), 64)
		if err != nil {
			continue
		}
		out.Points = append(out.Points, Point{Time: t, Value: v})
	}
	return out, nil
}

// WriteCSV writes a series as a two-column (time, name) CSV file.
func (s *Series) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", s.Name}); err != nil {
		return err
	}
	for _, p := range s.Points {
		rec := []string{p.Time.Format(time.RFC3339), strconv.FormatFloat(p.Value, 'g', -1, 64)}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readRecords(path string, skip int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryConvert, fderrors.CodeMissingFile, path, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryConvert, fderrors.CodeBadValue, path, err)
	}
	if skip >= len(recs) {
		return nil, nil
	}
	return recs[skip:], nil
}

func stemOf(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
