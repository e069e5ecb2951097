package iamc

import (
	"encoding/csv"
	"os"
	"strings"
	"unicode"

	"github.com/sentinel-energy/friendly-data/internal/fderrors"
)

// LabelMap is the universe of permissible values for one user-defined index
// column: an ordered mapping from raw value to the display label substituted
// into IAMC variable names. Reversed (case-insensitively), it drives the
// lookup during decomposition.
type LabelMap struct {
	keys   []string
	labels map[string]string
}

// NewLabelMap builds a label map from parallel key/label slices. A label
// equal to the empty string falls back to the capitalized key.
func NewLabelMap(keys, labels []string) *LabelMap {
	m := &LabelMap{labels: map[string]string{}}
	for i, k := range keys {
		if _, ok := m.labels[k]; ok {
			continue
		}
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		if label == "" {
			label = capitalize(k)
		}
		m.keys = append(m.keys, k)
		m.labels[k] = label
	}
	return m
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return string(unicode.ToUpper(r[0])) + strings.ToLower(string(r[1:]))
}

// Len returns the number of values in the universe.
func (m *LabelMap) Len() int { return len(m.keys) }

// Keys returns the raw values, in order.
func (m *LabelMap) Keys() []string { return append([]string(nil), m.keys...) }

// Label returns the display label for a raw value; unknown values map to
// themselves.
func (m *LabelMap) Label(key string) string {
	if label, ok := m.labels[key]; ok {
		return label
	}
	return key
}

// Has reports whether the raw value is in the universe.
func (m *LabelMap) Has(key string) bool {
	_, ok := m.labels[key]
	return ok
}

// KeySet returns the universe as a set.
func (m *LabelMap) KeySet() map[string]bool {
	set := make(map[string]bool, len(m.keys))
	for _, k := range m.keys {
		set[k] = true
	}
	return set
}

// Intersect restricts the universe to the given values, preserving order.
// Used to avoid generating combinations for values the current table does
// not contain.
func (m *LabelMap) Intersect(values []string) *LabelMap {
	in := map[string]bool{}
	for _, v := range values {
		in[v] = true
	}
	out := &LabelMap{labels: map[string]string{}}
	for _, k := range m.keys {
		if in[k] {
			out.keys = append(out.keys, k)
			out.labels[k] = m.labels[k]
		}
	}
	return out
}

// Difference removes the given values from the universe. Used to keep
// values consumed by an aggregation rule out of the residual cross-product.
func (m *LabelMap) Difference(values []string) *LabelMap {
	drop := map[string]bool{}
	for _, v := range values {
		drop[v] = true
	}
	out := &LabelMap{labels: map[string]string{}}
	for _, k := range m.keys {
		if !drop[k] {
			out.keys = append(out.keys, k)
			out.labels[k] = m.labels[k]
		}
	}
	return out
}

// ReadLevels reads a two-column (name, iamc) lookup table defining the
// universe of one index column. Rows with a missing label fall back to the
// capitalized name.
func ReadLevels(path string) (*LabelMap, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryConfig, fderrors.CodeMissingFile, path, err)
	}
	defer in.Close()
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryConfig, fderrors.CodeBadLevels, path, err)
	}
	if len(recs) == 0 {
		return nil, fderrors.Newf(fderrors.CategoryConfig, fderrors.CodeBadLevels,
			"%s: empty levels file", path)
	}
	nameAt, labelAt := -1, -1
	for i, h := range recs[0] {
		switch h {
		case "name":
			nameAt = i
		case "iamc":
			labelAt = i
		}
	}
	if nameAt < 0 {
		return nil, fderrors.Newf(fderrors.CategoryConfig, fderrors.CodeBadLevels,
			"%s: missing %q column", path, "name")
	}
	keys, labels := []string{}, []string{}
	for _, rec := range recs[1:] {
		if nameAt >= len(rec) || rec[nameAt] == "" {
			continue
		}
		keys = append(keys, rec[nameAt])
		if labelAt >= 0 && labelAt < len(rec) {
			labels = append(labels, rec[labelAt])
		} else {
			labels = append(labels, "")
		}
	}
	return NewLabelMap(keys, labels), nil
}
