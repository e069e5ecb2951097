package dpkg

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sentinel-energy/friendly-data/internal/fderrors"
	"github.com/sentinel-energy/friendly-data/internal/registry"
	"github.com/sentinel-energy/friendly-data/internal/table"
)

// License identifies a license in package metadata.
type License struct {
	Name  string `json:"name" yaml:"name"`
	Path  string `json:"path,omitempty" yaml:"path,omitempty"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// Schema is a tabular resource schema: typed fields, the primary key, and
// tokens treated as missing values.
type Schema struct {
	Fields        []registry.ColSchema `json:"fields" yaml:"fields"`
	PrimaryKey    []string             `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	MissingValues []string             `json:"missingValues,omitempty" yaml:"missingValues,omitempty"`
}

// Field returns the named field, or a zero schema.
func (s Schema) Field(name string) registry.ColSchema {
	for _, f := range s.Fields {
		if f.Name == name {
			return f
		}
	}
	return registry.ColSchema{}
}

// Resource describes one tabular file in a package.
type Resource struct {
	Name   string `json:"name" yaml:"name"`
	Path   string `json:"path" yaml:"path"`
	Skip   int    `json:"skip,omitempty" yaml:"skip,omitempty"`
	Schema Schema `json:"schema" yaml:"schema"`
}

// Meta is user-supplied package metadata.
type Meta struct {
	Name        string    `json:"name" yaml:"name"`
	Title       string    `json:"title,omitempty" yaml:"title,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Keywords    []string  `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Licenses    []License `json:"licenses,omitempty" yaml:"licenses,omitempty"`
}

// Package is a data package descriptor: metadata plus resources.
type Package struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Keywords    []string   `json:"keywords,omitempty"`
	Licenses    []License  `json:"licenses,omitempty"`
	Resources   []Resource `json:"resources"`

	// BasePath is the package directory; not serialised.
	BasePath string `json:"-"`
}

// Resource returns the resource at the given path, or nil.
func (p *Package) Resource(path string) *Resource {
	for i := range p.Resources {
		if p.Resources[i].Path == path {
			return &p.Resources[i]
		}
	}
	return nil
}

// AddResource appends a resource, replacing any existing resource with the
// same path.
func (p *Package) AddResource(res Resource) {
	if at := p.Resource(res.Path); at != nil {
		*at = res
		return
	}
	p.Resources = append(p.Resources, res)
}

// RemoveResource drops the resource at the given path. Reports whether a
// resource was removed.
func (p *Package) RemoveResource(path string) bool {
	for i := range p.Resources {
		if p.Resources[i].Path == path {
			p.Resources = append(p.Resources[:i], p.Resources[i+1:]...)
			return true
		}
	}
	return false
}

// Sanitise renders a string usable as a resource or file name.
func Sanitise(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(" @&()/", r)
	})
	return strings.Join(parts, "_")
}

// stem returns a file's base name without the extension; used to derive
// resource and value column names.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ResourceFromEntry reads the file an index entry points to and builds a
// resource with a fully typed schema. Index column metadata comes from the
// registry (through the entry's aliases); columns carrying an empty enum
// constraint get the constraint back-filled with the values present in the
// data. Value columns fall back to inferred types when the registry has no
// metadata for them.
func ResourceFromEntry(entry Entry, pkgDir string, reg registry.Registry) (Resource, error) {
	fpath := filepath.Join(pkgDir, entry.Path)
	grid, err := table.ReadGrid(fpath, entry.Skip)
	if err != nil {
		return Resource{}, fderrors.Wrap(fderrors.CategoryPackage, fderrors.CodeBadValue,
			fmt.Sprintf("error reading %s", entry.Path), err)
	}
	alias := entry.Alias
	if alias == nil {
		alias = map[string]string{}
	}
	lookup := func(col, colT string) registry.ColSchema {
		name := col
		if to, ok := alias[col]; ok {
			name = to
		}
		sch := reg.Get(name, colT)
		sch.Name = col
		if name != col {
			sch.Alias = name
		}
		return sch
	}
	fields := []registry.ColSchema{}
	for _, col := range entry.IdxCols {
		if grid.Column(col) < 0 {
			return Resource{}, fderrors.Newf(fderrors.CategoryPackage, fderrors.CodeMissingColumn,
				"%s: index column %q not in file", entry.Path, col)
		}
		sch := lookup(col, registry.IdxCols)
		if sch.Type == "" {
			sch.Type = table.InferType(columnCells(grid, col))
		}
		if sch.Constraints != nil && sch.Constraints.Enum != nil && len(sch.Constraints.Enum) == 0 {
			sch.Constraints.Enum = grid.Values(col)
		}
		fields = append(fields, sch)
	}
	for _, col := range grid.Header {
		if containsName(entry.IdxCols, col) {
			continue
		}
		sch := lookup(col, registry.Cols)
		if sch.Type == "" {
			sch.Type = table.InferType(columnCells(grid, col))
		}
		fields = append(fields, sch)
	}
	name := entry.Name
	if name == "" {
		name = Sanitise(stem(entry.Path))
	}
	return Resource{
		Name: name,
		Path: entry.Path,
		Skip: entry.Skip,
		Schema: Schema{
			Fields:     fields,
			PrimaryKey: append([]string(nil), entry.IdxCols...),
		},
	}, nil
}

func columnCells(g *table.Grid, name string) []string {
	at := g.Column(name)
	if at < 0 {
		return nil
	}
	cells := make([]string, len(g.Rows))
	for i, rec := range g.Rows {
		cells[i] = rec[at]
	}
	return cells
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// EntryFromResource builds an index entry from a resource, carrying over the
// primary key and any field aliases.
func EntryFromResource(res Resource) Entry {
	entry := Entry{
		Name:    res.Name,
		Path:    res.Path,
		IdxCols: append([]string(nil), res.Schema.PrimaryKey...),
	}
	alias := map[string]string{}
	for _, f := range res.Schema.Fields {
		if f.Alias != "" {
			alias[f.Name] = f.Alias
		}
	}
	if len(alias) > 0 {
		entry.Alias = alias
	}
	return entry
}

// Create builds a package from metadata and an index, inferring a schema for
// every indexed resource. Files named by the index that do not exist are
// skipped with a warning.
func Create(meta Meta, idx Index, pkgDir string, reg registry.Registry) (*Package, error) {
	pkg := &Package{
		ID:          uuid.NewString(),
		Name:        meta.Name,
		Title:       meta.Title,
		Description: meta.Description,
		Keywords:    meta.Keywords,
		Licenses:    meta.Licenses,
		BasePath:    pkgDir,
	}
	for _, entry := range idx {
		if _, err := os.Stat(filepath.Join(pkgDir, entry.Path)); err != nil {
			slog.Warn("skipped, does not exist", "path", entry.Path)
			continue
		}
		res, err := ResourceFromEntry(entry, pkgDir, reg)
		if err != nil {
			return nil, err
		}
		pkg.AddResource(res)
	}
	return pkg, nil
}

// Read loads a package descriptor. Accepts a package directory (containing
// datapackage.json), a path to datapackage.json itself, or a package archive
// (see Unpack).
func Read(path string) (*Package, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryPackage, fderrors.CodeNoDescriptor, path, err)
	}
	var descriptor, basePath string
	switch {
	case st.IsDir():
		descriptor = filepath.Join(path, "datapackage.json")
		basePath = path
	case strings.HasSuffix(path, ".json"):
		descriptor = path
		basePath = filepath.Dir(path)
	case strings.HasSuffix(path, ArchiveExt):
		dir, err := Unpack(path, "")
		if err != nil {
			return nil, err
		}
		descriptor = filepath.Join(dir, "datapackage.json")
		basePath = dir
	default:
		return nil, fderrors.Newf(fderrors.CategoryPackage, fderrors.CodeUnsupportedSource,
			"%s: not a directory, JSON descriptor, or archive", path)
	}
	raw, err := os.ReadFile(descriptor)
	if err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryPackage, fderrors.CodeNoDescriptor, descriptor, err)
	}
	pkg := &Package{}
	if err := json.Unmarshal(raw, pkg); err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryPackage, fderrors.CodeNoDescriptor, descriptor, err)
	}
	pkg.BasePath = basePath
	return pkg, nil
}

// Write serialises a package descriptor to pkgDir/datapackage.json, and the
// index (when given) to pkgDir/index.yaml. Returns the files written.
func Write(pkg *Package, pkgDir string, idx Index) ([]string, error) {
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return nil, err
	}
	files := []string{filepath.Join(pkgDir, "datapackage.json")}
	raw, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(files[0], raw, 0o644); err != nil {
		return nil, err
	}
	if idx != nil {
		fpath := filepath.Join(pkgDir, "index.yaml")
		if err := WriteIndex(idx, fpath); err != nil {
			return nil, err
		}
		files = append(files, fpath)
	}
	return files, nil
}
