package dpkg

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"

	"github.com/sentinel-energy/friendly-data/internal/fderrors"
)

// ArchiveExt is the extension for package archives: a tar stream compressed
// with snappy.
const ArchiveExt = ".tar.sz"

// Pack writes a package directory into an archive at outPath. Paths inside
// the archive are relative to pkgDir, so unpacking recreates the package
// layout.
func Pack(pkgDir, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fderrors.Wrap(fderrors.CategoryPackage, fderrors.CodeArchiveFailed, outPath, err)
	}
	defer out.Close()
	sz := snappy.NewBufferedWriter(out)
	tw := tar.NewWriter(sz)

	err = filepath.Walk(pkgDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(pkgDir, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return fderrors.Wrap(fderrors.CategoryPackage, fderrors.CodeArchiveFailed, pkgDir, err)
	}
	if err := tw.Close(); err != nil {
		return fderrors.Wrap(fderrors.CategoryPackage, fderrors.CodeArchiveFailed, outPath, err)
	}
	if err := sz.Close(); err != nil {
		return fderrors.Wrap(fderrors.CategoryPackage, fderrors.CodeArchiveFailed, outPath, err)
	}
	return nil
}

// Unpack extracts a package archive into destDir and returns the directory
// holding the package. When destDir is empty, a directory named after the
// archive is created next to it.
func Unpack(archivePath, destDir string) (string, error) {
	if destDir == "" {
		destDir = strings.TrimSuffix(archivePath, ArchiveExt)
	}
	in, err := os.Open(archivePath)
	if err != nil {
		return "", fderrors.Wrap(fderrors.CategoryPackage, fderrors.CodeArchiveFailed, archivePath, err)
	}
	defer in.Close()
	tr := tar.NewReader(snappy.NewReader(in))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fderrors.Wrap(fderrors.CategoryPackage, fderrors.CodeArchiveFailed, archivePath, err)
		}
		// refuse entries escaping the destination
		name := filepath.FromSlash(hdr.Name)
		if !filepath.IsLocal(name) {
			return "", fderrors.Newf(fderrors.CategoryPackage, fderrors.CodeArchiveFailed,
				"%s: unsafe path %q in archive", archivePath, hdr.Name)
		}
		target := filepath.Join(destDir, name)
		if hdr.Typeflag == tar.TypeDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", err
		}
		f, err := os.Create(target)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return "", fderrors.Wrap(fderrors.CategoryPackage, fderrors.CodeArchiveFailed, target, err)
		}
		f.Close()
	}
	return destDir, nil
}
