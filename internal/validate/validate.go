// Package validate checks data package resources against their schemas.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sentinel-energy/friendly-data/internal/dpkg"
)

// SchemaDiff is the result of comparing a resource schema with a reference.
// A zero diff means the schema passed.
type SchemaDiff struct {
	// Missing lists reference columns absent from the checked schema.
	Missing []string
	// Mismatched maps column names to their (reference, actual) types.
	Mismatched map[string][2]string
	// PrimaryKey lists positions where the primary keys differ; each element
	// is the position, the reference column, and the actual column, either
	// of which may be empty when one key is shorter.
	PrimaryKey [][3]string
}

// OK reports whether the schema passed all checks.
func (d SchemaDiff) OK() bool {
	return len(d.Missing) == 0 && len(d.Mismatched) == 0 && len(d.PrimaryKey) == 0
}

// CheckSchema compares a schema against a reference. The reference is a
// minimal set: extra columns in dst are fine, omissions are not. Name
// comparisons are case-sensitive. remap renames dst columns before the
// comparison, to undo dataset-local aliases.
func CheckSchema(ref, dst dpkg.Schema, remap map[string]string) SchemaDiff {
	dstFields := make([]struct{ name, typ string }, 0, len(dst.Fields))
	for _, fld := range dst.Fields {
		name := fld.Name
		if mapped, ok := remap[name]; ok {
			name = mapped
		}
		dstFields = append(dstFields, struct{ name, typ string }{name, fld.Type})
	}

	dstTypes := map[string]string{}
	for _, fld := range dstFields {
		dstTypes[fld.name] = fld.typ
	}

	diff := SchemaDiff{Mismatched: map[string][2]string{}}
	for _, fld := range ref.Fields {
		typ, ok := dstTypes[fld.Name]
		if !ok {
			diff.Missing = append(diff.Missing, fld.Name)
			continue
		}
		if typ != fld.Type {
			diff.Mismatched[fld.Name] = [2]string{fld.Type, typ}
		}
	}
	sort.Strings(diff.Missing)

	n := len(ref.PrimaryKey)
	if len(dst.PrimaryKey) > n {
		n = len(dst.PrimaryKey)
	}
	for i := 0; i < n; i++ {
		var refCol, dstCol string
		if i < len(ref.PrimaryKey) {
			refCol = ref.PrimaryKey[i]
		}
		if i < len(dst.PrimaryKey) {
			dstCol = dst.PrimaryKey[i]
		}
		if refCol != dstCol {
			diff.PrimaryKey = append(diff.PrimaryKey, [3]string{fmt.Sprint(i), refCol, dstCol})
		}
	}
	if len(diff.Mismatched) == 0 {
		diff.Mismatched = nil
	}
	return diff
}

// Summary renders the diff as a small text report; empty when the schema
// passed.
func (d SchemaDiff) Summary() string {
	if d.OK() {
		return ""
	}
	var b strings.Builder
	if len(d.Missing) > 0 {
		fmt.Fprintf(&b, "missing column names: %s\n", strings.Join(d.Missing, ", "))
	}
	if len(d.Mismatched) > 0 {
		b.WriteString("mismatched column types:\n")
		cols := make([]string, 0, len(d.Mismatched))
		for col := range d.Mismatched {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		for _, col := range cols {
			types := d.Mismatched[col]
			fmt.Fprintf(&b, "  %s: %s != %s\n", col, types[0], types[1])
		}
	}
	if len(d.PrimaryKey) > 0 {
		b.WriteString("mismatched index levels/cols:\n")
		for _, row := range d.PrimaryKey {
			fmt.Fprintf(&b, "  %s: %s != %s\n", row[0], row[1], row[2])
		}
	}
	return b.String()
}
