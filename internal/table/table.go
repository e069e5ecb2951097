// Package table provides the in-memory tabular model the conversion engine
// operates on: a set of named index columns holding categorical values, and a
// single numeric value column. All transformations return new tables; a Table
// is never mutated through a returned copy.
package table

import (
	"math"
	"sort"
	"strings"
)

// Row is one record: index cells aligned with the table's index names, and
// the numeric value.
type Row struct {
	Index []string
	Value float64
}

// Table is a long-format dataset indexed by named categorical columns.
type Table struct {
	// IndexNames are the index column names, in order.
	IndexNames []string
	// ValueName is the name of the sole value column.
	ValueName string
	Rows      []Row
}

// New returns an empty table with the given index columns and value column.
func New(indexNames []string, valueName string) *Table {
	return &Table{
		IndexNames: append([]string(nil), indexNames...),
		ValueName:  valueName,
	}
}

// Append adds a row. The index slice must align with IndexNames.
func (t *Table) Append(index []string, value float64) {
	t.Rows = append(t.Rows, Row{Index: append([]string(nil), index...), Value: value})
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// Level returns the position of the named index level, or -1.
func (t *Table) Level(name string) int {
	for i, n := range t.IndexNames {
		if n == name {
			return i
		}
	}
	return -1
}

// HasLevel reports whether the named index level exists.
func (t *Table) HasLevel(name string) bool { return t.Level(name) >= 0 }

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := New(t.IndexNames, t.ValueName)
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = Row{Index: append([]string(nil), r.Index...), Value: r.Value}
	}
	return out
}

// RenameLevels renames index levels according to the alias mapping
// (old name -> new name). Names absent from the mapping are kept. This is a
// pure rename: no rows are dropped or reordered.
func (t *Table) RenameLevels(alias map[string]string) *Table {
	out := t.Clone()
	for i, n := range out.IndexNames {
		if to, ok := alias[n]; ok {
			out.IndexNames[i] = to
		}
	}
	return out
}

// RenameValue returns a copy with the value column renamed.
func (t *Table) RenameValue(name string) *Table {
	out := t.Clone()
	out.ValueName = name
	return out
}

// WithConstantLevel returns a copy with a new index level appended, set to a
// constant for every row.
func (t *Table) WithConstantLevel(name, value string) *Table {
	out := t.Clone()
	out.IndexNames = append(out.IndexNames, name)
	for i := range out.Rows {
		out.Rows[i].Index = append(out.Rows[i].Index, value)
	}
	return out
}

// DropLevels returns a copy with the named index levels removed.
func (t *Table) DropLevels(names ...string) *Table {
	drop := map[string]bool{}
	for _, n := range names {
		drop[n] = true
	}
	keep := []int{}
	outNames := []string{}
	for i, n := range t.IndexNames {
		if !drop[n] {
			keep = append(keep, i)
			outNames = append(outNames, n)
		}
	}
	out := New(outNames, t.ValueName)
	for _, r := range t.Rows {
		idx := make([]string, len(keep))
		for j, i := range keep {
			idx[j] = r.Index[i]
		}
		out.Rows = append(out.Rows, Row{Index: idx, Value: r.Value})
	}
	return out
}

// Select returns the rows whose value at the named level satisfies pred.
// An unknown level yields an empty table.
func (t *Table) Select(level string, pred func(string) bool) *Table {
	out := New(t.IndexNames, t.ValueName)
	i := t.Level(level)
	if i < 0 {
		return out
	}
	for _, r := range t.Rows {
		if pred(r.Index[i]) {
			out.Rows = append(out.Rows, Row{Index: append([]string(nil), r.Index...), Value: r.Value})
		}
	}
	return out
}

// SelectIn returns the rows whose value at the named level is in the set.
func (t *Table) SelectIn(level string, values map[string]bool) *Table {
	return t.Select(level, func(v string) bool { return values[v] })
}

// LevelValues returns the distinct values of the named index level, in
// first-seen order.
func (t *Table) LevelValues(name string) []string {
	i := t.Level(name)
	if i < 0 {
		return nil
	}
	seen := map[string]bool{}
	vals := []string{}
	for _, r := range t.Rows {
		if !seen[r.Index[i]] {
			seen[r.Index[i]] = true
			vals = append(vals, r.Index[i])
		}
	}
	return vals
}

// GroupSum groups rows by the given index levels and sums the value column.
// The result is indexed by exactly the grouping levels, in the given order.
func (t *Table) GroupSum(by []string) *Table {
	pos := make([]int, len(by))
	for j, n := range by {
		pos[j] = t.Level(n)
	}
	out := New(by, t.ValueName)
	sums := map[string]int{} // group key -> row position in out
	for _, r := range t.Rows {
		parts := make([]string, len(pos))
		for j, i := range pos {
			parts[j] = r.Index[i]
		}
		key := strings.Join(parts, "\x00")
		if at, ok := sums[key]; ok {
			out.Rows[at].Value += r.Value
		} else {
			sums[key] = len(out.Rows)
			out.Rows = append(out.Rows, Row{Index: parts, Value: r.Value})
		}
	}
	return out
}

// ReorderLevels returns a copy with the index levels in the given order.
// Every name in order must be an existing level.
func (t *Table) ReorderLevels(order []string) *Table {
	pos := make([]int, len(order))
	for j, n := range order {
		pos[j] = t.Level(n)
	}
	out := New(order, t.ValueName)
	for _, r := range t.Rows {
		idx := make([]string, len(pos))
		for j, i := range pos {
			idx[j] = r.Index[i]
		}
		out.Rows = append(out.Rows, Row{Index: idx, Value: r.Value})
	}
	return out
}

// Sorted returns a copy with rows in lexicographic index order. Useful for
// deterministic output and comparisons.
func (t *Table) Sorted() *Table {
	out := t.Clone()
	sort.SliceStable(out.Rows, func(i, j int) bool {
		a, b := out.Rows[i].Index, out.Rows[j].Index
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	return out
}

// Equal reports whether two tables hold the same rows under the same columns,
// ignoring row order and index level order.
func Equal(a, b *Table) bool {
	if a.ValueName != b.ValueName || len(a.IndexNames) != len(b.IndexNames) {
		return false
	}
	for _, n := range a.IndexNames {
		if b.Level(n) < 0 {
			return false
		}
	}
	if len(a.Rows) != len(b.Rows) {
		return false
	}
	bb := b.ReorderLevels(a.IndexNames).Sorted()
	aa := a.Sorted()
	for i := range aa.Rows {
		ra, rb := aa.Rows[i], bb.Rows[i]
		for k := range ra.Index {
			if ra.Index[k] != rb.Index[k] {
				return false
			}
		}
		if ra.Value != rb.Value && !(math.IsNaN(ra.Value) && math.IsNaN(rb.Value)) {
			return false
		}
	}
	return true
}
