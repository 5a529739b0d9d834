package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	gerrors "github.com/granitedb/granite/internal/errors"
)

// PartFetcher materializes remote part directories into a local cache so
// readers can open them with regular file IO. A part whose directory already
// exists locally is not fetched again; part files are immutable once written.
type PartFetcher struct {
	storage     ObjectStorage
	cacheDir    string
	concurrency int

	mu       sync.Mutex
	inflight map[string]*sync.WaitGroup
}

// NewPartFetcher creates a fetcher that caches parts under cacheDir and
// downloads at most concurrency files in parallel per part.
func NewPartFetcher(storage ObjectStorage, cacheDir string, concurrency int) (*PartFetcher, error) {
	if concurrency <= 0 {
		concurrency = 4
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, gerrors.NewStorageError(gerrors.CodeDownloadFailed, "create fetch cache directory", err)
	}
	return &PartFetcher{
		storage:     storage,
		cacheDir:    cacheDir,
		concurrency: concurrency,
		inflight:    make(map[string]*sync.WaitGroup),
	}, nil
}

// Fetch downloads every object under objectPrefix into the cache and returns
// the local part directory. Concurrent fetches of the same part wait for the
// first to finish.
func (f *PartFetcher) Fetch(ctx context.Context, objectPrefix string) (string, error) {
	localDir := filepath.Join(f.cacheDir, filepath.FromSlash(objectPrefix))

	f.mu.Lock()
	if wg, ok := f.inflight[objectPrefix]; ok {
		f.mu.Unlock()
		wg.Wait()
		if _, err := os.Stat(localDir); err == nil {
			return localDir, nil
		}
		// The earlier fetch failed; fall through and retry.
		f.mu.Lock()
	}
	if _, err := os.Stat(localDir); err == nil {
		f.mu.Unlock()
		return localDir, nil
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	f.inflight[objectPrefix] = wg
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.inflight, objectPrefix)
		f.mu.Unlock()
		wg.Done()
	}()

	if err := f.download(ctx, objectPrefix, localDir); err != nil {
		os.RemoveAll(localDir + ".tmp")
		return "", err
	}
	return localDir, nil
}

func (f *PartFetcher) download(ctx context.Context, objectPrefix, localDir string) error {
	objects, err := f.storage.ListObjects(ctx, objectPrefix)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return gerrors.Newf(gerrors.ErrCategoryStorage, gerrors.CodeObjectNotFound,
			"no objects under prefix %s", objectPrefix)
	}

	// Download into a temporary directory and rename, so a half-fetched
	// part is never visible at localDir.
	tmpDir := localDir + ".tmp"
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return gerrors.NewStorageError(gerrors.CodeDownloadFailed, "create staging directory", err)
	}

	sem := semaphore.NewWeighted(int64(f.concurrency))
	var dlWG sync.WaitGroup
	var dlMu sync.Mutex
	var firstErr error

	for _, obj := range objects {
		rel := strings.TrimPrefix(strings.TrimPrefix(obj, objectPrefix), "/")
		if rel == "" {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			dlMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			dlMu.Unlock()
			break
		}
		dlWG.Add(1)
		go func(objectPath, localPath string) {
			defer sem.Release(1)
			defer dlWG.Done()
			if err := f.storage.Download(ctx, objectPath, localPath); err != nil {
				dlMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				dlMu.Unlock()
			}
		}(obj, filepath.Join(tmpDir, filepath.FromSlash(rel)))
	}
	dlWG.Wait()

	if firstErr != nil {
		os.RemoveAll(tmpDir)
		return firstErr
	}

	if err := os.MkdirAll(filepath.Dir(localDir), 0755); err != nil {
		os.RemoveAll(tmpDir)
		return gerrors.NewStorageError(gerrors.CodeDownloadFailed, "create cache directory", err)
	}
	if err := os.Rename(tmpDir, localDir); err != nil {
		os.RemoveAll(tmpDir)
		return gerrors.NewStorageError(gerrors.CodeDownloadFailed, "publish fetched part", err)
	}
	return nil
}

// UploadDir uploads every file under localDir to objectPrefix. Used when
// registering parts that live in object storage.
func (f *PartFetcher) UploadDir(ctx context.Context, localDir, objectPrefix string) error {
	return UploadDir(ctx, f.storage, localDir, objectPrefix)
}

// UploadDir uploads every file under localDir to objectPrefix on storage.
func UploadDir(ctx context.Context, storage ObjectStorage, localDir, objectPrefix string) error {
	return filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		objectPath := objectPrefix + "/" + filepath.ToSlash(rel)
		return storage.Upload(ctx, path, objectPath)
	})
}
