package iamc

import (
	"log/slog"
	"path/filepath"

	"github.com/sentinel-energy/friendly-data/internal/dpkg"
	"github.com/sentinel-energy/friendly-data/internal/table"
)

// Source is one input to a conversion run: either a file path matched
// against entry paths, or an in-memory table matched against entry names.
// Exactly one of the two is set.
type Source struct {
	Path  string
	Name  string
	Table *table.Table
}

// FileSource names a CSV file, relative to the converter's base path.
func FileSource(path string) Source { return Source{Path: path} }

// TableSource wraps an in-memory table under an entry name.
func TableSource(name string, t *table.Table) Source {
	return Source{Name: name, Table: t}
}

// ConvertSources composes every source that matches an index entry into a
// single frame. Sources without a matching entry are skipped silently; a
// source matching several entries uses the first and logs the rest. An
// empty overall result logs a single warning.
func (c *Converter) ConvertSources(sources []Source) (Frame, error) {
	out := Frame{}
	for _, src := range sources {
		entry, ok := c.matchEntry(src)
		if !ok {
			continue
		}
		t := src.Table
		if t == nil {
			var err error
			t, err = table.ReadCSV(filepath.Join(c.basepath, entry.Path), table.ReadOptions{
				IndexColumns: entry.IdxCols,
				SkipRows:     entry.Skip,
			})
			if err != nil {
				return Frame{}, err
			}
		}
		frames, err := c.Compose(entry, t)
		if err != nil {
			return Frame{}, err
		}
		for _, fr := range frames {
			out.Append(fr)
		}
	}
	if out.Empty() {
		slog.Warn("empty data set, check config and index file")
	}
	return out, nil
}

// ConvertFiles is ConvertSources over file paths.
func (c *Converter) ConvertFiles(paths []string) (Frame, error) {
	srcs := make([]Source, len(paths))
	for i, p := range paths {
		srcs[i] = FileSource(p)
	}
	return c.ConvertSources(srcs)
}

func (c *Converter) matchEntry(src Source) (dpkg.Entry, bool) {
	matches := dpkg.Index{}
	for _, entry := range c.entries {
		switch {
		case src.Path != "" && samePath(entry.Path, src.Path):
			matches = append(matches, entry)
		case src.Path == "" && entry.Label() == src.Name:
			matches = append(matches, entry)
		}
	}
	if len(matches) == 0 {
		return dpkg.Entry{}, false
	}
	if len(matches) > 1 {
		slog.Warn("duplicate index entries, using first",
			"source", src.Path+src.Name, "count", len(matches))
	}
	return matches[0], true
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
