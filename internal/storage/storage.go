// Package storage abstracts where part files live. Parts are directories of
// immutable files; remote backends store each file as one object under the
// part's prefix, and readers fetch whole part directories to a local cache
// before opening them.
package storage

import "context"

// ObjectStorage abstracts object storage operations.
// Implementations include S3 and the local filesystem.
type ObjectStorage interface {
	// Upload copies a local file to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download copies the object at objectPath to localPath, creating
	// parent directories as needed.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists reports whether an object exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
