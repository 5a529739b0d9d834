package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	gerrors "github.com/granitedb/granite/internal/errors"
)

// LocalStorage implements ObjectStorage on the local filesystem, rooted at
// basePath. Used for single-node deployments and tests.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a local filesystem storage rooted at basePath.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, gerrors.NewStorageError(gerrors.CodeUploadFailed, "create storage root", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) fullPath(objectPath string) string {
	return filepath.Join(l.basePath, objectPath)
}

// Upload copies a local file into the storage root.
func (l *LocalStorage) Upload(ctx context.Context, localPath, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest := l.fullPath(objectPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return gerrors.NewStorageError(gerrors.CodeUploadFailed, "create object directory", err)
	}
	return copyFile(localPath, dest, gerrors.CodeUploadFailed)
}

// Download copies an object out of the storage root.
func (l *LocalStorage) Download(ctx context.Context, objectPath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := l.fullPath(objectPath)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return gerrors.Newf(gerrors.ErrCategoryStorage, gerrors.CodeObjectNotFound, "object %s not found", objectPath)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return gerrors.NewStorageError(gerrors.CodeDownloadFailed, "create destination directory", err)
	}
	return copyFile(src, localPath, gerrors.CodeDownloadFailed)
}

// Delete removes an object. Missing objects are ignored.
func (l *LocalStorage) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(l.fullPath(objectPath)); err != nil && !os.IsNotExist(err) {
		return gerrors.NewStorageError(gerrors.CodeUploadFailed, "delete object", err)
	}
	return nil
}

// Exists reports whether an object exists in the storage root.
func (l *LocalStorage) Exists(ctx context.Context, objectPath string) (bool, error) {
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

// ListObjects returns all object paths under the given prefix, relative to
// the storage root.
func (l *LocalStorage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var objects []string
	err := filepath.Walk(l.fullPath(prefix), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil // empty prefix
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
		return nil, gerrors.NewStorageError(gerrors.CodeDownloadFailed, "list objects", err)
	}
	return objects, nil
}

func copyFile(src, dst, failCode string) error {
	in, err := os.Open(src)
	if err != nil {
		return gerrors.NewStorageError(failCode, "open source file", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return gerrors.NewStorageError(failCode, "create destination file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return gerrors.NewStorageError(failCode, "copy file", err)
	}
	return out.Close()
}
