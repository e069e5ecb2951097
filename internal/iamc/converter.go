package iamc

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sentinel-energy/friendly-data/internal/dpkg"
	"github.com/sentinel-energy/friendly-data/internal/fderrors"
	"github.com/sentinel-energy/friendly-data/internal/table"
)

// Config is the conversion configuration: per index column, either a default
// value (mandatory IAMC columns missing from a table get this constant) or a
// path to a two-column (name, iamc) levels file (user-defined columns).
type Config struct {
	// Defaults maps mandatory IAMC columns to their constant default.
	Defaults map[string]string
	// LevelFiles maps user-defined index columns to their levels file,
	// relative to the converter's base path.
	LevelFiles map[string]string
}

// ReadConfig reads the "indices" section of a conversion config file.
// Values must be scalars (strings, or integers for year); anything else is a
// hard configuration error naming the offending column.
func ReadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fderrors.Wrap(fderrors.CategoryConfig, fderrors.CodeMissingFile, path, err)
	}
	var conf struct {
		Indices map[string]yaml.Node `yaml:"indices"`
	}
	if err := yaml.Unmarshal(raw, &conf); err != nil {
		return Config{}, fderrors.Wrap(fderrors.CategoryConfig, fderrors.CodeBadValue, path, err)
	}
	if len(conf.Indices) == 0 {
		return Config{}, fderrors.Newf(fderrors.CategoryConfig, fderrors.CodeBadValue,
			"%s: must define an %q mapping of index columns to level files or defaults", path, "indices")
	}
	out := Config{Defaults: map[string]string{}, LevelFiles: map[string]string{}}
	for col, node := range conf.Indices {
		var s string
		if err := node.Decode(&s); err != nil {
			var n int
			if err := node.Decode(&n); err != nil {
				return Config{}, fderrors.Newf(fderrors.CategoryConfig, fderrors.CodeBadValue,
					"%s: %q: index values must be strings or integers", path, col)
			}
			s = strconv.Itoa(n)
		}
		if IsIdxCol(col) {
			out.Defaults[col] = s
		} else {
			out.LevelFiles[col] = s
		}
	}
	return out, nil
}

// Converter maps tabular resources to IAMC rows and back, according to a
// package index and a conversion config. Level universes are resolved
// lazily from their files and cached on the converter.
type Converter struct {
	entries  dpkg.Index
	conf     Config
	basepath string
	levels   map[string]*LabelMap
}

// New returns a converter over the IAMC-relevant entries of idx. Level file
// paths in conf are resolved against basepath.
func New(idx dpkg.Index, conf Config, basepath string) *Converter {
	return &Converter{
		entries:  idx.IAMC(),
		conf:     conf,
		basepath: basepath,
		levels:   map[string]*LabelMap{},
	}
}

// FromFiles builds a converter from a conversion config file and an index
// file. The index file's directory becomes the package base path.
func FromFiles(confPath, idxPath string) (*Converter, error) {
	conf, err := ReadConfig(confPath)
	if err != nil {
		return nil, err
	}
	idx, err := dpkg.ReadIndex(idxPath)
	if err != nil {
		return nil, err
	}
	return New(idx, conf, filepath.Dir(idxPath)), nil
}

// Entries returns the IAMC-relevant index entries.
func (c *Converter) Entries() dpkg.Index { return c.entries }

// WithLevels sets the value universe of an index column directly, bypassing
// the level file.
func (c *Converter) WithLevels(col string, lv *LabelMap) *Converter {
	c.levels[col] = lv
	return c
}

// Basepath returns the package base path.
func (c *Converter) Basepath() string { return c.basepath }

// levelsFor resolves the value universe of one user-defined index column,
// caching the result.
func (c *Converter) levelsFor(col string) (*LabelMap, bool, error) {
	if lv, ok := c.levels[col]; ok {
		return lv, true, nil
	}
	fpath, ok := c.conf.LevelFiles[col]
	if !ok {
		return nil, false, nil
	}
	lv, err := ReadLevels(filepath.Join(c.basepath, fpath))
	if err != nil {
		return nil, false, err
	}
	c.levels[col] = lv
	return lv, true, nil
}

// indexLevels resolves the universes for the user-defined columns among
// cols. Columns without a configured levels file are left out, mirroring
// the treatment of resources absent from the index: not configured means
// not part of the conversion.
func (c *Converter) indexLevels(cols []string) (map[string]*LabelMap, error) {
	out := map[string]*LabelMap{}
	for _, col := range cols {
		if IsIdxCol(col) {
			continue
		}
		lv, ok, err := c.levelsFor(col)
		if err != nil {
			return nil, err
		}
		if ok {
			out[col] = lv
		}
	}
	return out, nil
}

// resolveDefaults appends constant index levels for every mandatory IAMC
// column (except variable) missing from the table, using the configured
// defaults.
func (c *Converter) resolveDefaults(t *table.Table) *table.Table {
	for _, col := range Idx {
		if col == "variable" || t.HasLevel(col) {
			continue
		}
		if def, ok := c.conf.Defaults[col]; ok {
			t = t.WithConstantLevel(col, def)
		}
	}
	return t
}

// Compose converts one resource table to IAMC rows according to its index
// entry. The result is one or more fragments: aggregation rules emit one
// fragment each, followed by the residual fragment of un-aggregated rows.
func (c *Converter) Compose(entry dpkg.Entry, t *table.Table) ([]Frame, error) {
	t = t.RenameLevels(entry.Alias)
	t = c.resolveDefaults(t)
	lvls, err := c.indexLevels(t.IndexNames)
	if err != nil {
		return nil, err
	}

	frames := []Frame{}
	working := t
	if col, rules := entry.AggRules(); col != "" {
		if !t.HasLevel(col) {
			return nil, fderrors.Newf(fderrors.CategoryConvert, fderrors.CodeBadEntry,
				"%s: aggregated column %q not in table index", entry.Label(), col)
		}
		aggVals := map[string]bool{}
		for _, rule := range rules {
			for _, v := range rule.Values {
				aggVals[v] = true
			}
		}
		dfAgg := t.SelectIn(col, aggVals)
		rest := without(t.IndexNames, col)
		for _, rule := range rules {
			ruleVals := map[string]bool{}
			for _, v := range rule.Values {
				ruleVals[v] = true
			}
			g := dfAgg.SelectIn(col, ruleVals).GroupSum(rest)
			fr, err := c.frameFromTable(g, entry,
				func(map[string]string) (string, error) { return rule.Variable, nil })
			if err != nil {
				return nil, err
			}
			frames = append(frames, fr)
		}
		// keep aggregated values out of the residual fragment: restrict the
		// working table to the configured universe and subtract the
		// aggregated values from it
		if lv, ok := lvls[col]; ok {
			working = t.SelectIn(col, lv.KeySet())
			lvls[col] = lv.Difference(setKeys(aggVals))
		} else {
			working = t.Select(col, func(v string) bool { return !aggVals[v] })
		}
	}

	for col, lv := range lvls {
		lvls[col] = lv.Intersect(working.LevelValues(col))
	}

	var residual Frame
	if isTemplate(entry.IAMC) {
		sel := working
		for col, lv := range lvls {
			sel = sel.SelectIn(col, lv.KeySet())
		}
		residual, err = c.frameFromTable(sel, entry, func(cells map[string]string) (string, error) {
			vals := map[string]string{}
			for col, lv := range lvls {
				vals[col] = lv.Label(cells[col])
			}
			return formatTemplate(entry.IAMC, vals)
		})
	} else {
		residual, err = c.frameFromTable(working, entry,
			func(map[string]string) (string, error) { return entry.IAMC, nil })
	}
	if err != nil {
		return nil, err
	}
	frames = append(frames, residual)

	total := 0
	for _, fr := range frames {
		total += len(fr.Rows)
	}
	if total == 0 {
		slog.Warn("empty conversion result, check index entry", "entry", entry.Label())
	}
	return frames, nil
}

// frameFromTable finalises a table as IAMC rows: the variable is computed
// per row from the table's own (user-defined) index cells, user levels are
// dropped, and the index is reordered to the canonical tuple.
func (c *Converter) frameFromTable(t *table.Table, entry dpkg.Entry, variable func(map[string]string) (string, error)) (Frame, error) {
	pos := map[string]int{}
	for _, col := range []string{"model", "scenario", "region", "unit", "year"} {
		at := t.Level(col)
		if at < 0 {
			return Frame{}, fderrors.Newf(fderrors.CategoryConfig, fderrors.CodeBadValue,
				"%s: missing mandatory IAMC column %q and no default configured", entry.Label(), col)
		}
		pos[col] = at
	}
	userAt := map[string]int{}
	for i, col := range t.IndexNames {
		if !IsIdxCol(col) {
			userAt[col] = i
		}
	}
	f := Frame{}
	for _, r := range t.Rows {
		cells := make(map[string]string, len(userAt))
		for col, i := range userAt {
			cells[col] = r.Index[i]
		}
		v, err := variable(cells)
		if err != nil {
			return Frame{}, err
		}
		year, err := strconv.Atoi(strings.TrimSpace(r.Index[pos["year"]]))
		if err != nil {
			return Frame{}, fderrors.Wrap(fderrors.CategoryConvert, fderrors.CodeBadValue,
				fmt.Sprintf("%s: year level", entry.Label()), err)
		}
		f.Rows = append(f.Rows, Row{
			Model:    r.Index[pos["model"]],
			Scenario: r.Index[pos["scenario"]],
			Region:   r.Index[pos["region"]],
			Variable: v,
			Unit:     r.Index[pos["unit"]],
			Year:     year,
			Value:    r.Value,
		})
	}
	return f, nil
}

// Decompose converts IAMC rows to one resource table according to its index
// entry. For templated entries every combination of the configured level
// universes is formatted forward and matched case-insensitively against the
// frame's variable column; matched rows get the combination's raw values as
// new index levels. Literal entries are a case-insensitive equality filter.
func (c *Converter) Decompose(entry dpkg.Entry, f Frame) (*table.Table, error) {
	valueName := stem(entry.Path)
	iamcCols := []string{"model", "scenario", "region", "unit", "year"}

	if !isTemplate(entry.IAMC) {
		out := table.New(iamcCols, valueName)
		want := strings.ToLower(entry.IAMC)
		for _, r := range f.Rows {
			if strings.ToLower(r.Variable) == want {
				out.Append(iamcIndex(r), r.Value)
			}
		}
		if out.Empty() {
			slog.Warn("no rows matched, check index entry", "entry", entry.Label())
		}
		return out, nil
	}

	userCols := []string{}
	universes := []*LabelMap{}
	for _, col := range entry.IdxCols {
		if IsIdxCol(col) {
			continue
		}
		lv, ok, err := c.levelsFor(col)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fderrors.Newf(fderrors.CategoryConfig, fderrors.CodeBadLevels,
				"%s: no levels configured for index column %q", entry.Label(), col)
		}
		userCols = append(userCols, col)
		universes = append(universes, lv)
	}

	// evaluate the template forward for every combination, and record a
	// case-folded reverse mapping to the combination's raw values
	reverse := map[string][]string{}
	combo := make([]string, len(userCols))
	var walk func(level int) error
	walk = func(level int) error {
		if level == len(userCols) {
			vals := map[string]string{}
			for i, col := range userCols {
				vals[col] = universes[i].Label(combo[i])
			}
			formatted, err := formatTemplate(entry.IAMC, vals)
			if err != nil {
				return err
			}
			reverse[strings.ToLower(formatted)] = append([]string(nil), combo...)
			return nil
		}
		for _, key := range universes[level].Keys() {
			combo[level] = key
			if err := walk(level + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return nil, err
	}

	out := table.New(append(append([]string{}, iamcCols...), userCols...), valueName)
	for _, r := range f.Rows {
		keys, ok := reverse[strings.ToLower(r.Variable)]
		if !ok {
			continue
		}
		out.Append(append(iamcIndex(r), keys...), r.Value)
	}
	if out.Empty() {
		slog.Warn("no rows matched, check index entry", "entry", entry.Label())
	}
	return out, nil
}

// DecomposeAll decomposes a frame into one file per index entry under
// outDir, and returns the entries whose file was written.
func (c *Converter) DecomposeAll(f Frame, outDir string) (dpkg.Index, error) {
	written := dpkg.Index{}
	for _, entry := range c.entries {
		t, err := c.Decompose(entry, f)
		if err != nil {
			return nil, err
		}
		if err := table.WriteCSV(t.Sorted(), filepath.Join(outDir, entry.Path)); err != nil {
			return nil, err
		}
		out := entry
		if len(out.IdxCols) == 0 {
			out.IdxCols = t.IndexNames
		}
		written = append(written, out)
	}
	return written, nil
}

func iamcIndex(r Row) []string {
	return []string{r.Model, r.Scenario, r.Region, r.Unit, strconv.Itoa(r.Year)}
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func without(names []string, drop string) []string {
	out := []string{}
	for _, n := range names {
		if n != drop {
			out = append(out, n)
		}
	}
	return out
}

func setKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// isTemplate reports whether the configured variable name carries
// {placeholder} tokens.
func isTemplate(s string) bool {
	open, close := strings.Count(s, "{"), strings.Count(s, "}")
	return open > 0 && open == close
}

// formatTemplate substitutes {name} placeholders with their values. A
// placeholder without a value is a configuration error.
func formatTemplate(tmpl string, vals map[string]string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		ch := tmpl[i]
		if ch != '{' {
			b.WriteByte(ch)
			continue
		}
		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			return "", fderrors.Newf(fderrors.CategoryConfig, fderrors.CodeBadEntry,
				"%q: unbalanced braces in variable template", tmpl)
		}
		name := tmpl[i+1 : i+end]
		val, ok := vals[name]
		if !ok {
			return "", fderrors.Newf(fderrors.CategoryConfig, fderrors.CodeBadEntry,
				"%q: no index column for template parameter %q", tmpl, name)
		}
		b.WriteString(val)
		i += end
	}
	return b.String(), nil
}
