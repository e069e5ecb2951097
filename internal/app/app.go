// Package app wires the friendly-data components behind the operations the
// command line exposes.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sentinel-energy/friendly-data/internal/config"
	"github.com/sentinel-energy/friendly-data/internal/dpkg"
	"github.com/sentinel-energy/friendly-data/internal/fderrors"
	"github.com/sentinel-energy/friendly-data/internal/iamc"
	"github.com/sentinel-energy/friendly-data/internal/license"
	"github.com/sentinel-energy/friendly-data/internal/registry"
	"github.com/sentinel-energy/friendly-data/internal/storage"
	"github.com/sentinel-energy/friendly-data/internal/validate"
)

// App holds the shared resources behind the command line operations.
type App struct {
	cfg      *config.Config
	cache    *license.Cache
	licenses *license.Client
}

// New creates the application from a resolved configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	cache, err := license.OpenCache(cfg.CacheFile)
	if err != nil {
		slog.Warn("license cache unavailable, fetching without cache", "error", err)
		cache = nil
	}
	return &App{
		cfg:      cfg,
		cache:    cache,
		licenses: license.NewClient(nil, cache),
	}, nil
}

// Close releases shared resources.
func (a *App) Close() error {
	if a.cache != nil {
		return a.cache.Close()
	}
	return nil
}

// Licenses exposes the ODLS client.
func (a *App) Licenses() *license.Client { return a.licenses }

// Registry builds the column registry: the shipped base, additions from the
// tool configuration, then additions from the given config file.
func (a *App) Registry(confFile string) registry.Registry {
	reg := registry.New()
	for _, path := range []string{a.cfg.RegistryFile, confFile} {
		if path == "" {
			continue
		}
		custom, err := registry.CustomFromFile(path)
		if err != nil {
			slog.Warn("skipping registry additions", "file", path, "error", err)
			continue
		}
		reg = reg.WithCustom(custom)
	}
	return reg
}

// MetaFlags are the package metadata fields settable from the command line.
// Flags override values from the config file's metadata section.
type MetaFlags struct {
	Name        string
	Title       string
	License     string
	Description string
	Keywords    string
}

// Metadata assembles package metadata from the config file and flags,
// requiring the mandatory fields.
func (a *App) Metadata(ctx context.Context, confFile string, flags MetaFlags, mandatory []string) (dpkg.Meta, error) {
	meta := dpkg.Meta{}
	if confFile != "" {
		raw, err := os.ReadFile(confFile)
		if err != nil {
			return dpkg.Meta{}, fderrors.Wrap(fderrors.CategoryConfig, fderrors.CodeMissingFile, confFile, err)
		}
		var conf struct {
			Metadata dpkg.Meta `yaml:"metadata"`
		}
		if err := yaml.Unmarshal(raw, &conf); err != nil {
			return dpkg.Meta{}, fderrors.Wrap(fderrors.CategoryConfig, fderrors.CodeBadValue, confFile, err)
		}
		meta = conf.Metadata
		if len(meta.Licenses) > 0 {
			meta, err = a.licenses.Resolve(ctx, meta)
			if err != nil {
				return dpkg.Meta{}, err
			}
		}
	}

	if flags.Title != "" {
		meta.Title = flags.Title
	}
	switch {
	case flags.Name != "":
		meta.Name = flags.Name
	case meta.Name == "" && meta.Title != "":
		meta.Name = dpkg.Sanitise(meta.Title)
	}
	if flags.Description != "" {
		meta.Description = flags.Description
	}
	if flags.Keywords != "" {
		meta.Keywords = strings.Fields(flags.Keywords)
	}
	if flags.License != "" {
		lic, err := a.licenses.Get(ctx, flags.License, "all")
		if err != nil {
			return dpkg.Meta{}, err
		}
		meta.Licenses = []dpkg.License{lic}
	}

	var missing []string
	for _, field := range mandatory {
		switch field {
		case "name":
			if meta.Name == "" {
				missing = append(missing, field)
			}
		case "licenses":
			if len(meta.Licenses) == 0 {
				missing = append(missing, field)
			}
		}
	}
	if len(missing) > 0 {
		return dpkg.Meta{}, fderrors.Newf(fderrors.CategoryPackage, fderrors.CodeBadValue,
			"mandatory metadata missing: %s", strings.Join(missing, ", "))
	}
	return meta, nil
}

// resolveIndex accepts an index file or a package directory and returns the
// package directory and its index.
func resolveIndex(path string) (string, dpkg.Index, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fderrors.Wrap(fderrors.CategoryPackage, fderrors.CodeMissingFile, path, err)
	}
	idxPath := path
	pkgDir := filepath.Dir(path)
	if info.IsDir() {
		pkgDir = path
		idxPath = dpkg.IndexPathFromPackagePath(path)
		if idxPath == "" {
			return "", nil, fderrors.Newf(fderrors.CategoryPackage, fderrors.CodeMissingFile,
				"%s: no index file in package directory", path)
		}
	}
	idx, err := dpkg.ReadIndex(idxPath)
	if err != nil {
		return "", nil, err
	}
	return pkgDir, idx, nil
}

// Create builds a package descriptor from an index file (or a package
// directory holding one) plus extra dataset paths not in the index.
func (a *App) Create(ctx context.Context, idxPath string, extra []string, flags MetaFlags, confFile string) (string, error) {
	meta, err := a.Metadata(ctx, confFile, flags, []string{"name", "licenses"})
	if err != nil {
		return "", err
	}
	pkgDir, idx, err := resolveIndex(idxPath)
	if err != nil {
		return "", err
	}
	idx = appendExtraPaths(idx, pkgDir, extra)

	pkg, err := dpkg.Create(meta, idx, pkgDir, a.Registry(confFile))
	if err != nil {
		return "", err
	}
	files, err := dpkg.Write(pkg, pkgDir, idx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Package metadata: %s", files[0]), nil
}

// appendExtraPaths adds bare index entries for datasets not already listed.
func appendExtraPaths(idx dpkg.Index, pkgDir string, extra []string) dpkg.Index {
	known := map[string]bool{}
	for _, entry := range idx {
		known[filepath.Clean(entry.Path)] = true
	}
	for _, p := range extra {
		rel := p
		if r, err := filepath.Rel(pkgDir, p); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
		if known[filepath.Clean(rel)] {
			continue
		}
		idx = append(idx, dpkg.Entry{Path: rel})
		known[filepath.Clean(rel)] = true
	}
	return idx
}

// Update refreshes package metadata, and re-reads the schemas of the given
// datasets (or all, when none are given).
func (a *App) Update(ctx context.Context, pkgPath string, fpaths []string, flags MetaFlags, confFile string) (string, error) {
	meta, err := a.Metadata(ctx, confFile, flags, nil)
	if err != nil {
		return "", err
	}
	pkg, err := dpkg.Read(pkgPath)
	if err != nil {
		return "", err
	}
	mergeMeta(pkg, meta)

	pkgDir, idx, err := resolveIndex(pkgPath)
	if err != nil {
		return "", err
	}
	if len(fpaths) > 0 {
		idx = appendExtraPaths(idx, pkgDir, fpaths)
		reg := a.Registry(confFile)
		for _, p := range fpaths {
			entry := entryFor(idx, pkgDir, p)
			res, err := dpkg.ResourceFromEntry(entry, pkgDir, reg)
			if err != nil {
				return "", err
			}
			pkg.AddResource(res)
		}
	}
	files, err := dpkg.Write(pkg, pkgDir, idx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Package metadata: %s", files[0]), nil
}

func mergeMeta(pkg *dpkg.Package, meta dpkg.Meta) {
	if meta.Name != "" {
		pkg.Name = meta.Name
	}
	if meta.Title != "" {
		pkg.Title = meta.Title
	}
	if meta.Description != "" {
		pkg.Description = meta.Description
	}
	if len(meta.Keywords) > 0 {
		pkg.Keywords = meta.Keywords
	}
	if len(meta.Licenses) > 0 {
		pkg.Licenses = meta.Licenses
	}
}

func entryFor(idx dpkg.Index, pkgDir, fpath string) dpkg.Entry {
	rel := fpath
	if r, err := filepath.Rel(pkgDir, fpath); err == nil && !strings.HasPrefix(r, "..") {
		rel = r
	}
	for _, entry := range idx {
		if filepath.Clean(entry.Path) == filepath.Clean(rel) {
			return entry
		}
	}
	return dpkg.Entry{Path: rel}
}

// Remove drops datasets from the package descriptor and index, optionally
// deleting the files.
func (a *App) Remove(pkgPath string, fpaths []string, rmFromDisk bool) (string, error) {
	pkg, err := dpkg.Read(pkgPath)
	if err != nil {
		return "", err
	}
	pkgDir, idx, err := resolveIndex(pkgPath)
	if err != nil {
		return "", err
	}

	removed := false
	var kept dpkg.Index
	for _, entry := range idx {
		if pathListed(fpaths, pkgDir, entry.Path) {
			removed = true
			continue
		}
		kept = append(kept, entry)
	}
	for _, res := range append([]dpkg.Resource{}, pkg.Resources...) {
		if pathListed(fpaths, pkgDir, res.Path) {
			pkg.RemoveResource(res.Path)
			removed = true
		}
	}
	if !removed {
		slog.Info("no resources to remove in package")
	}
	if kept == nil {
		kept = dpkg.Index{}
	}

	files, err := dpkg.Write(pkg, pkgDir, kept)
	if err != nil {
		return "", err
	}
	if rmFromDisk {
		for _, fp := range fpaths {
			if err := os.Remove(fp); err != nil {
				slog.Warn("could not delete dataset", "path", fp, "error", err)
			}
		}
	}
	return fmt.Sprintf("Package metadata: %s\nPackage index: %s", files[0], files[1]), nil
}

func pathListed(fpaths []string, pkgDir, resPath string) bool {
	full := filepath.Clean(filepath.Join(pkgDir, resPath))
	for _, fp := range fpaths {
		if filepath.Clean(fp) == full || filepath.Clean(fp) == filepath.Clean(resPath) {
			return true
		}
	}
	return false
}

// Describe summarises a package: its metadata and per-resource schemas.
func (a *App) Describe(pkgPath string) (string, error) {
	pkg, err := dpkg.Read(pkgPath)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", pkg.Name)
	if pkg.Title != "" {
		fmt.Fprintf(&b, "title: %s\n", pkg.Title)
	}
	if pkg.Description != "" {
		fmt.Fprintf(&b, "description: %s\n", pkg.Description)
	}
	if len(pkg.Keywords) > 0 {
		fmt.Fprintf(&b, "keywords: %s\n", strings.Join(pkg.Keywords, ", "))
	}
	for _, lic := range pkg.Licenses {
		fmt.Fprintf(&b, "license: %s (%s)\n", lic.Name, lic.Path)
	}
	fmt.Fprintf(&b, "resources: %d\n", len(pkg.Resources))
	for _, res := range pkg.Resources {
		fmt.Fprintf(&b, "  %s\n", res.Path)
		for _, fld := range res.Schema.Fields {
			fmt.Fprintf(&b, "    %s: %s\n", fld.Name, fld.Type)
		}
		if len(res.Schema.PrimaryKey) > 0 {
			fmt.Fprintf(&b, "    primary key: %s\n", strings.Join(res.Schema.PrimaryKey, ", "))
		}
	}
	return b.String(), nil
}

// DescribeRegistry renders the column registry, optionally restricted to
// one column type ("idxcols" or "cols").
func (a *App) DescribeRegistry(colType string) (string, error) {
	reg := a.Registry("")
	types := []string{registry.IdxCols, registry.Cols}
	if colType != "" {
		if colType != registry.IdxCols && colType != registry.Cols {
			return "", fderrors.Newf(fderrors.CategoryRegistry, fderrors.CodeBadValue,
				"unknown column type: %s", colType)
		}
		types = []string{colType}
	}
	var b strings.Builder
	for _, typ := range types {
		fmt.Fprintf(&b, "%s:\n", typ)
		all := reg.All(typ)
		names := make([]string, 0, len(all))
		for name := range all {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, sch := range all[name] {
				fmt.Fprintf(&b, "  %s: %s\n", sch.Name, sch.Type)
			}
		}
	}
	return b.String(), nil
}

// ToIAMC composes the datasets of a package into one IAMC file.
func (a *App) ToIAMC(confPath, idxPath, outPath string, wide bool) (string, error) {
	conv, err := iamc.FromFiles(confPath, idxPath)
	if err != nil {
		return "", err
	}
	paths := conv.Entries().Paths()
	frame, err := conv.ConvertFiles(paths)
	if err != nil {
		return "", err
	}
	if err := iamc.WriteCSV(frame.Sorted(), outPath, wide); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s -> %s", strings.Join(paths, ", "), outPath), nil
}

// FromIAMC decomposes an IAMC file into per-entry datasets under outDir.
func (a *App) FromIAMC(confPath, idxPath, iamcPath, outDir string) (string, error) {
	conv, err := iamc.FromFiles(confPath, idxPath)
	if err != nil {
		return "", err
	}
	frame, err := iamc.ReadCSV(iamcPath)
	if err != nil {
		return "", err
	}
	written, err := conv.DecomposeAll(frame, outDir)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s -> %s", iamcPath, strings.Join(written.Paths(), ", ")), nil
}

// Validate checks every package resource against its schema and returns a
// text report; empty means clean.
func (a *App) Validate(pkgPath string) (string, error) {
	pkg, err := dpkg.Read(pkgPath)
	if err != nil {
		return "", err
	}
	issues, err := validate.CheckPackage(pkg)
	if err != nil {
		return "", err
	}
	if len(issues) == 0 {
		return "no issues found\n", nil
	}
	return validate.Summarise(issues), nil
}

// Pack archives a package directory.
func (a *App) Pack(pkgDir, outPath string) (string, error) {
	if outPath == "" {
		outPath = filepath.Clean(pkgDir) + dpkg.ArchiveExt
	}
	if err := dpkg.Pack(pkgDir, outPath); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s -> %s", pkgDir, outPath), nil
}

// Unpack extracts a package archive.
func (a *App) Unpack(archivePath, destDir string) (string, error) {
	dir, err := dpkg.Unpack(archivePath, destDir)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s -> %s", archivePath, dir), nil
}

// Fetch downloads a package from the configured object store.
func (a *App) Fetch(ctx context.Context, remotePath, destDir string) (string, error) {
	store, err := a.objectStore(ctx)
	if err != nil {
		return "", err
	}
	if destDir == "" {
		destDir = filepath.Join(a.cfg.Fetch.DownloadDir, dpkg.Sanitise(remotePath))
	}
	fetcher := storage.NewFetcher(store, a.cfg.Fetch.Concurrency)
	pkg, err := fetcher.FetchPackage(ctx, remotePath, destDir)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s -> %s", remotePath, pkg.BasePath), nil
}

func (a *App) objectStore(ctx context.Context) (storage.ObjectStore, error) {
	switch a.cfg.Storage.Type {
	case "s3":
		return storage.NewS3Store(ctx, a.cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       a.cfg.Storage.S3.Region,
			Endpoint:     a.cfg.Storage.S3.Endpoint,
			UsePathStyle: a.cfg.Storage.S3.UsePathStyle,
		})
	default:
		return storage.NewLocalStore(a.cfg.Storage.Path)
	}
}
