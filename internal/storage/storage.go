// Package storage fetches data packages from object stores.
package storage

import "context"

// ObjectStore abstracts the object stores a registry of data packages can
// live in. Implementations cover S3 and the local filesystem.
type ObjectStore interface {
	// Download copies the object at objectPath to localPath.
	Download(ctx context.Context, objectPath, localPath string) error

	// Upload copies the file at localPath to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Exists reports whether an object exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
