// Package registry provides the catalog of known column names and their
// declared types and constraints. A Registry value is immutable: it is
// constructed once by merging the shipped base layer with an optional custom
// layer, and passed explicitly to whoever needs column metadata. There is no
// process-wide overlay to activate or restore.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sentinel-energy/friendly-data/internal/fderrors"
)

// Column types recognised by the registry.
const (
	IdxCols = "idxcols"
	Cols    = "cols"
)

// validTypes is the set of schema types accepted for a column.
var validTypes = map[string]bool{
	"boolean":   true,
	"date":      true,
	"time":      true,
	"datetime":  true,
	"year":      true,
	"yearmonth": true,
	"integer":   true,
	"number":    true,
	"string":    true,
}

// Constraints holds the constraint section of a column schema.
type Constraints struct {
	Enum     []string `yaml:"enum,omitempty" json:"enum,omitempty"`
	Minimum  *float64 `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum  *float64 `yaml:"maximum,omitempty" json:"maximum,omitempty"`
	Required bool     `yaml:"required,omitempty" json:"required,omitempty"`
}

func (c *Constraints) clone() *Constraints {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Enum = append([]string(nil), c.Enum...)
	if c.Minimum != nil {
		v := *c.Minimum
		cp.Minimum = &v
	}
	if c.Maximum != nil {
		v := *c.Maximum
		cp.Maximum = &v
	}
	return &cp
}

// ColSchema describes a column: its name, schema type, and constraints.
// The zero value means "no metadata"; callers fall back to data-driven
// defaults.
type ColSchema struct {
	Name        string       `yaml:"name" json:"name"`
	Type        string       `yaml:"type,omitempty" json:"type,omitempty"`
	Constraints *Constraints `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Alias       string       `yaml:"alias,omitempty" json:"alias,omitempty"`
}

// IsZero reports whether the schema carries no metadata.
func (c ColSchema) IsZero() bool {
	return c.Name == "" && c.Type == "" && c.Constraints == nil && c.Alias == ""
}

func (c ColSchema) clone() ColSchema {
	c.Constraints = c.Constraints.clone()
	return c
}

// merge overlays the non-zero fields of other on top of c.
func (c ColSchema) merge(other ColSchema) ColSchema {
	out := c.clone()
	if other.Type != "" {
		out.Type = other.Type
	}
	if other.Constraints != nil {
		out.Constraints = other.Constraints.clone()
	}
	if other.Alias != "" {
		out.Alias = other.Alias
	}
	return out
}

// Custom is a custom registry layer: per column type, a list of column
// schemas that override or extend the base layer.
type Custom struct {
	IdxCols []ColSchema `yaml:"idxcols,omitempty"`
	Cols    []ColSchema `yaml:"cols,omitempty"`
}

func (c Custom) empty() bool {
	return len(c.IdxCols) == 0 && len(c.Cols) == 0
}

// validate checks a custom layer against the column schema shape.
func (c Custom) validate() error {
	for colT, cols := range map[string][]ColSchema{IdxCols: c.IdxCols, Cols: c.Cols} {
		for _, col := range cols {
			if col.Name == "" {
				return fderrors.Newf(fderrors.CategoryRegistry, fderrors.CodeBadSchema,
					"%s: column without a name", colT)
			}
			if col.Type != "" && !validTypes[col.Type] {
				return fderrors.Newf(fderrors.CategoryRegistry, fderrors.CodeBadSchema,
					"%s/%s: unknown type %q", colT, col.Name, col.Type)
			}
		}
	}
	return nil
}

// CustomFromFile reads the "registry" section of a YAML or JSON config file
// into a custom layer. A file without a registry section yields an empty
// layer.
func CustomFromFile(path string) (Custom, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Custom{}, fderrors.Wrap(fderrors.CategoryRegistry, fderrors.CodeBadSchema,
			filepath.ToSlash(path), err)
	}
	var conf struct {
		Registry Custom `yaml:"registry" json:"registry"`
	}
	if err := yaml.Unmarshal(raw, &conf); err != nil {
		return Custom{}, fderrors.Wrap(fderrors.CategoryRegistry, fderrors.CodeBadSchema,
			fmt.Sprintf("%s: cannot parse registry section", path), err)
	}
	return conf.Registry, nil
}

// Registry maps column names to their schemas, per column type.
type Registry struct {
	cols map[string]map[string]ColSchema // colType -> name -> schema
	// base order is retained so All output is stable
	order map[string][]string
}

// New returns a registry with only the shipped base layer.
func New() Registry {
	r := Registry{
		cols:  map[string]map[string]ColSchema{IdxCols: {}, Cols: {}},
		order: map[string][]string{},
	}
	for colT, cols := range map[string][]ColSchema{IdxCols: baseIdxCols, Cols: baseCols} {
		for _, col := range cols {
			r.cols[colT][col.Name] = col.clone()
			r.order[colT] = append(r.order[colT], col.Name)
		}
	}
	return r
}

// WithCustom returns a copy of the registry with the custom layer merged in.
// Same-name entries are field-merged over the base entry; new entries are
// appended. An invalid layer is logged and ignored, and the receiver is
// returned unchanged: a custom registry augments a default installation that
// must keep working.
func (r Registry) WithCustom(custom Custom) Registry {
	if custom.empty() {
		return r
	}
	if err := custom.validate(); err != nil {
		slog.Warn("ignoring bad custom registry", "error", err)
		return r
	}
	out := Registry{
		cols:  map[string]map[string]ColSchema{IdxCols: {}, Cols: {}},
		order: map[string][]string{},
	}
	for colT, cols := range r.cols {
		for name, col := range cols {
			out.cols[colT][name] = col.clone()
		}
		out.order[colT] = append([]string(nil), r.order[colT]...)
	}
	for colT, cols := range map[string][]ColSchema{IdxCols: custom.IdxCols, Cols: custom.Cols} {
		for _, col := range cols {
			if base, ok := out.cols[colT][col.Name]; ok {
				out.cols[colT][col.Name] = base.merge(col)
			} else {
				out.cols[colT][col.Name] = col.clone()
				out.order[colT] = append(out.order[colT], col.Name)
			}
		}
	}
	return out
}

// Get returns the schema for a column of the given type. It never fails:
// a column absent from the registry yields a zero ColSchema, which callers
// must treat as "no metadata".
func (r Registry) Get(name, colType string) ColSchema {
	cols, ok := r.cols[colType]
	if !ok {
		return ColSchema{}
	}
	return cols[name].clone()
}

// All returns every column schema, keyed by column type. When colType is
// non-empty, only that type is included.
func (r Registry) All(colType string) map[string][]ColSchema {
	out := map[string][]ColSchema{}
	for colT, names := range r.order {
		if colType != "" && colT != colType {
			continue
		}
		cols := make([]ColSchema, 0, len(names))
		for _, name := range names {
			cols = append(cols, r.cols[colT][name].clone())
		}
		out[colT] = cols
	}
	return out
}
