package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/sentinel-energy/friendly-data/internal/fderrors"
)

// LocalStore implements ObjectStore over a directory tree. It serves
// file-based package registries and the tests.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a local package store rooted at basePath.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryStorage, fderrors.CodeFetchFailed, basePath, err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// Download copies the object at objectPath to localPath.
func (l *LocalStore) Download(ctx context.Context, objectPath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	srcPath := l.fullPath(objectPath)
	if _, err := os.Stat(srcPath); os.IsNotExist(err) {
		return fderrors.Newf(fderrors.CategoryStorage, fderrors.CodeObjectNotFound,
			"%s: no such object", objectPath)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fderrors.Wrap(fderrors.CategoryStorage, fderrors.CodeDownloadFailed, objectPath, err)
	}
	return copyFile(srcPath, localPath, objectPath)
}

// Upload copies the file at localPath to objectPath.
func (l *LocalStore) Upload(ctx context.Context, localPath, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	destPath := l.fullPath(objectPath)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fderrors.Wrap(fderrors.CategoryStorage, fderrors.CodeFetchFailed, objectPath, err)
	}
	return copyFile(localPath, destPath, objectPath)
}

// Exists reports whether an object exists.
func (l *LocalStore) Exists(ctx context.Context, objectPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(l.fullPath(objectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListObjects returns all object paths under the given prefix.
func (l *LocalStore) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var objects []string
	err := filepath.Walk(l.fullPath(prefix), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			rel, err := filepath.Rel(l.basePath, path)
			if err != nil {
				return err
			}
			objects = append(objects, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

func (l *LocalStore) fullPath(objectPath string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(objectPath))
}

func copyFile(src, dst, objectPath string) error {
	in, err := os.Open(src)
	if err != nil {
		return fderrors.Wrap(fderrors.CategoryStorage, fderrors.CodeDownloadFailed, objectPath, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fderrors.Wrap(fderrors.CategoryStorage, fderrors.CodeDownloadFailed, objectPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fderrors.Wrap(fderrors.CategoryStorage, fderrors.CodeDownloadFailed, objectPath, err)
	}
	return nil
}
