package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sentinel-energy/friendly-data/internal/dpkg"
	"github.com/sentinel-energy/friendly-data/internal/fderrors"
)

// Fetcher downloads data packages from an object store, pulling resource
// files in parallel.
type Fetcher struct {
	store       ObjectStore
	concurrency int
}

// NewFetcher creates a fetcher. concurrency bounds parallel downloads; zero
// or negative falls back to 4.
func NewFetcher(store ObjectStore, concurrency int) *Fetcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Fetcher{store: store, concurrency: concurrency}
}

// FetchPackage downloads the package under prefix into destDir and returns
// the unpacked package. A prefix ending in the archive extension is
// downloaded as a single object and unpacked; otherwise every object under
// the prefix is mirrored into destDir.
func (f *Fetcher) FetchPackage(ctx context.Context, prefix, destDir string) (*dpkg.Package, error) {
	if strings.HasSuffix(prefix, dpkg.ArchiveExt) {
		return f.fetchArchive(ctx, prefix, destDir)
	}

	objects, err := f.store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fderrors.Newf(fderrors.CategoryStorage, fderrors.CodeObjectNotFound,
			"%s: no package objects under prefix", prefix)
	}

	sem := semaphore.NewWeighted(int64(f.concurrency))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, obj := range objects {
		if err := sem.Acquire(ctx, 1); err != nil {
			// wait for workers already started before handing destDir back
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(obj string) {
			defer wg.Done()
			defer sem.Release(1)
			rel := strings.TrimPrefix(strings.TrimPrefix(obj, prefix), "/")
			local := filepath.Join(destDir, filepath.FromSlash(rel))
			err := os.MkdirAll(filepath.Dir(local), 0o755)
			if err == nil {
				err = f.store.Download(ctx, obj, local)
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fderrors.Wrap(fderrors.CategoryStorage, fderrors.CodeDownloadFailed, obj, err)
				}
				mu.Unlock()
			}
		}(obj)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	slog.Info("fetched package", "prefix", prefix, "objects", len(objects), "dest", destDir)
	return dpkg.Read(destDir)
}

func (f *Fetcher) fetchArchive(ctx context.Context, objectPath, destDir string) (*dpkg.Package, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryStorage, fderrors.CodeFetchFailed, destDir, err)
	}
	local := filepath.Join(destDir, filepath.Base(objectPath))
	if err := f.store.Download(ctx, objectPath, local); err != nil {
		return nil, err
	}
	pkgDir, err := dpkg.Unpack(local, "")
	if err != nil {
		return nil, err
	}
	return dpkg.Read(pkgDir)
}
