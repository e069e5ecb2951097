// Package dpkg manages data packages: the package index that declares how
// each tabular resource is read and converted, and the datapackage.json
// descriptor with per-resource schemas.
package dpkg

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/sentinel-energy/friendly-data/internal/fderrors"
)

// AggRule rolls up several categorical values of one column into a single
// synthetic IAMC variable via summation.
type AggRule struct {
	Values   []string `yaml:"values" json:"values"`
	Variable string   `yaml:"variable" json:"variable"`
}

// Sheet selects an Excel sheet by 0-indexed position or by name.
type Sheet struct {
	Number int
	Name   string
	IsName bool
	Set    bool
}

// IsZero lets yaml omit an unset sheet.
func (s Sheet) IsZero() bool { return !s.Set }

// MarshalYAML writes back the form the entry used.
func (s Sheet) MarshalYAML() (interface{}, error) {
	if s.IsName {
		return s.Name, nil
	}
	return s.Number, nil
}

// UnmarshalYAML accepts either an integer or a string.
func (s *Sheet) UnmarshalYAML(value *yaml.Node) error {
	var n int
	if err := value.Decode(&n); err == nil {
		*s = Sheet{Number: n, Set: true}
		return nil
	}
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	*s = Sheet{Name: name, IsName: true, Set: true}
	return nil
}

// Entry is the per-resource configuration record from the package index.
type Entry struct {
	Path        string              `yaml:"path" json:"path"`
	Name        string              `yaml:"name,omitempty" json:"name,omitempty"`
	Description string              `yaml:"description,omitempty" json:"description,omitempty"`
	Skip        int                 `yaml:"skip,omitempty" json:"skip,omitempty"`
	Alias       map[string]string   `yaml:"alias,omitempty" json:"alias,omitempty"`
	Sheet       Sheet               `yaml:"sheet,omitempty" json:"sheet,omitempty"`
	IdxCols     []string            `yaml:"idxcols,omitempty" json:"idxcols,omitempty"`
	IAMC        string              `yaml:"iamc,omitempty" json:"iamc,omitempty"`
	Agg         map[string][]AggRule `yaml:"agg,omitempty" json:"agg,omitempty"`
}

// Label returns the most meaningful identifier for log messages: the name
// when present, else the path.
func (e Entry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Path
}

// AggRules returns the aggregated column and its rules. The index schema
// allows exactly one aggregated column per entry.
func (e Entry) AggRules() (string, []AggRule) {
	for col, rules := range e.Agg {
		return col, rules
	}
	return "", nil
}

// entryKeys is the fixed whitelist of keys accepted in an index entry.
var entryKeys = map[string]bool{
	"path":        true,
	"name":        true,
	"description": true,
	"skip":        true,
	"alias":       true,
	"sheet":       true,
	"idxcols":     true,
	"iamc":        true,
	"agg":         true,
}

// Index is the list of entries from an index file, one per resource.
type Index []Entry

// IAMC returns the entries that participate in IAMC conversion, that is,
// entries with a variable name or template configured.
func (idx Index) IAMC() Index {
	out := Index{}
	for _, e := range idx {
		if e.IAMC != "" {
			out = append(out, e)
		}
	}
	return out
}

// Paths returns the path of every entry.
func (idx Index) Paths() []string {
	paths := make([]string, len(idx))
	for i, e := range idx {
		paths[i] = e.Path
	}
	return paths
}

// ReadIndex reads and validates an index file (YAML or JSON). Validation is
// strict: an entry key outside the fixed whitelist is a hard error naming
// the offending key, and an agg section may aggregate only one column.
func ReadIndex(path string) (Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryConfig, fderrors.CodeMissingFile, path, err)
	}
	// first pass over raw maps so unknown keys can be reported by name
	var rawIdx []map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &rawIdx); err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryConfig, fderrors.CodeBadIndex,
			fmt.Sprintf("%s: bad index file", path), err)
	}
	for _, rec := range rawIdx {
		for key := range rec {
			if !entryKeys[key] {
				return nil, fderrors.Newf(fderrors.CategoryConfig, fderrors.CodeUnknownKey,
					"%s: %q: bad key in index file", path, key)
			}
		}
	}
	var idx Index
	if err := yaml.Unmarshal(raw, &idx); err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryConfig, fderrors.CodeBadIndex,
			fmt.Sprintf("%s: bad index file", path), err)
	}
	for _, e := range idx {
		if e.Path == "" {
			return nil, fderrors.Newf(fderrors.CategoryConfig, fderrors.CodeBadIndex,
				"%s: entry %q without a path", path, e.Label())
		}
		if len(e.Agg) > 1 {
			return nil, fderrors.Newf(fderrors.CategoryConvert, fderrors.CodeMultiAgg,
				"%s: %s: only one column may be aggregated per entry", path, e.Label())
		}
	}
	return idx, nil
}

// WriteIndex writes an index to a YAML file.
func WriteIndex(idx Index, path string) error {
	raw, err := yaml.Marshal(idx)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// IndexPathFromPackagePath locates an index file (index.yaml, index.yml, or
// index.json) in a package directory. Returns the lexicographically first
// match with a warning when several exist, or an empty string with a warning
// when there is none.
func IndexPathFromPackagePath(pkgDir string) string {
	matches := []string{}
	for _, pat := range []string{"index.yaml", "index.yml", "index.json"} {
		p := filepath.Join(pkgDir, pat)
		if _, err := os.Stat(p); err == nil {
			matches = append(matches, p)
		}
	}
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		slog.Warn("no index file found", "dir", pkgDir)
		return ""
	case 1:
	default:
		slog.Warn("multiple index files, using first", "found", matches, "using", matches[0])
	}
	return matches[0]
}
