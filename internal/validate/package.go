package validate

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sentinel-energy/friendly-data/internal/dpkg"
	"github.com/sentinel-energy/friendly-data/internal/registry"
)

// Issue is one validation finding in a package resource. Row is 1-based
// counting the header; zero means the issue is not tied to a row.
type Issue struct {
	Path   string
	Row    int
	Col    string
	Error  string
	Remark string
}

var naTokens = map[string]bool{"": true, "NA": true, "N/A": true, "NaN": true, "nan": true, "null": true}

// CheckPackage validates every resource of a package against its schema:
// header labels, cell counts, cell types, field constraints, and primary
// key uniqueness. It
// returns the issues found; an empty slice means the package is clean.
func CheckPackage(pkg *dpkg.Package) ([]Issue, error) {
	var issues []Issue
	for _, res := range pkg.Resources {
		found, err := checkResource(pkg.BasePath, res)
		if err != nil {
			return nil, err
		}
		issues = append(issues, found...)
	}
	return issues, nil
}

func checkResource(basePath string, res dpkg.Resource) ([]Issue, error) {
	path := filepath.Join(basePath, res.Path)
	f, err := os.Open(path)
	if err != nil {
		return []Issue{{Path: res.Path, Error: "missing-file", Remark: err.Error()}}, nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return []Issue{{Path: res.Path, Error: "source-error", Remark: err.Error()}}, nil
	}
	for res.Skip > 0 && len(recs) > 0 {
		recs = recs[1:]
		res.Skip--
	}
	if len(recs) == 0 {
		return []Issue{{Path: res.Path, Error: "blank-header", Remark: "resource has no header row"}}, nil
	}

	header := recs[0]
	var issues []Issue
	report := func(row int, col, code, remark string) {
		issues = append(issues, Issue{Path: res.Path, Row: row, Col: col, Error: code, Remark: remark})
	}

	seen := map[string]bool{}
	for _, label := range header {
		if label == "" {
			report(1, "", "blank-label", "header has an empty label")
			continue
		}
		if seen[label] {
			report(1, label, "duplicate-label", "label appears more than once")
		}
		seen[label] = true
	}
	for _, fld := range res.Schema.Fields {
		if !seen[fld.Name] {
			report(1, fld.Name, "missing-label", "schema field not in header")
		}
	}
	known := map[string]bool{}
	for _, fld := range res.Schema.Fields {
		known[fld.Name] = true
	}
	for _, label := range header {
		if label != "" && !known[label] {
			report(1, label, "extra-label", "header label not in schema")
		}
	}

	missing := naTokens
	if len(res.Schema.MissingValues) > 0 {
		missing = map[string]bool{}
		for _, tok := range res.Schema.MissingValues {
			missing[tok] = true
		}
	}

	colAt := map[string]int{}
	for i, label := range header {
		colAt[label] = i
	}
	priAt := []int{}
	for _, col := range res.Schema.PrimaryKey {
		if at, ok := colAt[col]; ok {
			priAt = append(priAt, at)
		}
	}
	priSeen := map[string]int{}

	for i, rec := range recs[1:] {
		rowNum := i + 2
		if len(rec) > len(header) {
			report(rowNum, "", "extra-cell", fmt.Sprintf("row has %d cells, header has %d", len(rec), len(header)))
		}
		if len(rec) < len(header) {
			report(rowNum, "", "missing-cell", fmt.Sprintf("row has %d cells, header has %d", len(rec), len(header)))
		}
		if blankRow(rec, missing) {
			report(rowNum, "", "blank-row", "row has no values")
			continue
		}
		for _, fld := range res.Schema.Fields {
			at, ok := colAt[fld.Name]
			if !ok || at >= len(rec) {
				continue
			}
			cell := rec[at]
			if missing[cell] {
				continue
			}
			if !cellIs(cell, fld.Type) {
				report(rowNum, fld.Name, "type-error", fmt.Sprintf("%q is not a valid %s", cell, fld.Type))
			} else if fld.Constraints != nil {
				if msg := constraintViolation(cell, fld.Type, fld.Constraints); msg != "" {
					report(rowNum, fld.Name, "constraint-error", msg)
				}
			}
		}
		if len(priAt) == len(res.Schema.PrimaryKey) && len(priAt) > 0 {
			parts := make([]string, len(priAt))
			for j, at := range priAt {
				if at < len(rec) {
					parts[j] = rec[at]
				}
			}
			key := strings.Join(parts, "\x00")
			if first, dup := priSeen[key]; dup {
				report(rowNum, strings.Join(res.Schema.PrimaryKey, ","), "primary-key-error",
					fmt.Sprintf("duplicates row %d", first))
			} else {
				priSeen[key] = rowNum
			}
		}
	}
	return issues, nil
}

func constraintViolation(cell, typ string, c *registry.Constraints) string {
	cell = strings.TrimSpace(cell)
	if len(c.Enum) > 0 {
		found := false
		for _, v := range c.Enum {
			if v == cell {
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("%q is not one of [%s]", cell, strings.Join(c.Enum, ", "))
		}
	}
	if (typ == "integer" || typ == "number") && (c.Minimum != nil || c.Maximum != nil) {
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return ""
		}
		if c.Minimum != nil && v < *c.Minimum {
			return fmt.Sprintf("%v is below the minimum %v", v, *c.Minimum)
		}
		if c.Maximum != nil && v > *c.Maximum {
			return fmt.Sprintf("%v is above the maximum %v", v, *c.Maximum)
		}
	}
	return ""
}

func blankRow(rec []string, missing map[string]bool) bool {
	for _, cell := range rec {
		if !missing[cell] {
			return false
		}
	}
	return true
}

func cellIs(cell, typ string) bool {
	cell = strings.TrimSpace(cell)
	switch typ {
	case "boolean":
		lc := strings.ToLower(cell)
		return lc == "true" || lc == "false"
	case "integer":
		_, err := strconv.ParseInt(cell, 10, 64)
		return err == nil
	case "number":
		_, err := strconv.ParseFloat(cell, 64)
		return err == nil
	case "datetime", "date":
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
			if _, err := time.Parse(layout, cell); err == nil {
				return true
			}
		}
		return false
	}
	return true
}

// Summarise renders issues as a line-per-issue text report.
func Summarise(issues []Issue) string {
	if len(issues) == 0 {
		return ""
	}
	var b strings.Builder
	for _, is := range issues {
		name := filepath.Base(is.Path)
		if is.Row > 0 {
			fmt.Fprintf(&b, "%s:%d", name, is.Row)
		} else {
			b.WriteString(name)
		}
		if is.Col != "" {
			fmt.Fprintf(&b, " [%s]", is.Col)
		}
		fmt.Fprintf(&b, " %s: %s\n", is.Error, is.Remark)
	}
	return b.String()
}
