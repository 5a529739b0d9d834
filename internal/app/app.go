// Package app wires configuration, storage, the catalog table, and the HTTP
// API into a single service lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"

	httpapi "github.com/granitedb/granite/internal/api/http"
	"github.com/granitedb/granite/internal/config"
	"github.com/granitedb/granite/internal/indexread"
	"github.com/granitedb/granite/internal/logging"
	"github.com/granitedb/granite/internal/marks"
	"github.com/granitedb/granite/internal/server"
	"github.com/granitedb/granite/internal/storage"
	"github.com/granitedb/granite/internal/table"
	"github.com/rs/zerolog"
)

// App owns the shared resources of the index server.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	storage  storage.ObjectStorage
	fetcher  *storage.PartFetcher
	table    *table.Table
	index    *indexread.IndexTable
	shutdown *server.ShutdownManager
	httpSrv  *server.GracefulHTTPServer
}

// New validates the configuration and prepares an App. No resources are
// opened until Run.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return &App{
		cfg: cfg,
		log: logging.Component("app"),
	}, nil
}

// Run opens all resources, serves the HTTP API, and blocks until a shutdown
// signal arrives or startup fails.
func (a *App) Run(ctx context.Context) error {
	a.shutdown = server.NewShutdownManager(server.ShutdownConfig{})

	if err := a.initStorage(ctx); err != nil {
		return err
	}
	if err := a.openTable(ctx); err != nil {
		a.shutdown.Shutdown(ctx, "startup failed")
		return err
	}

	index, err := indexread.New(ctx, a.table, indexread.Options{
		WithMarks: a.cfg.WithMarks,
		MarkCache: marks.NewCache(a.cfg.MarkCacheBytes),
	})
	if err != nil {
		a.shutdown.Shutdown(ctx, "startup failed")
		return fmt.Errorf("failed to open index table: %w", err)
	}
	a.index = index

	handler := a.shutdown.Middleware(httpapi.NewRouter(a.index))
	a.httpSrv = server.NewGracefulHTTPServer(&http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}, a.shutdown)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().
			Str("addr", a.cfg.HTTP.Addr).
			Str("table", a.cfg.TableName).
			Msg("serving part index")
		errCh <- a.httpSrv.ListenAndServe()
	}()

	go a.shutdown.ListenForSignals(ctx)

	select {
	case err := <-errCh:
		if err != nil {
			a.shutdown.Shutdown(ctx, "server error")
			return err
		}
		return nil
	case <-a.shutdown.ShutdownCh():
		return <-errCh
	}
}

// Stop triggers a graceful shutdown.
func (a *App) Stop(ctx context.Context) error {
	if a.shutdown == nil {
		return nil
	}
	return a.shutdown.Shutdown(ctx, "stop requested")
}

func (a *App) initStorage(ctx context.Context) error {
	var err error
	switch a.cfg.Storage.Type {
	case "local":
		a.storage, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if a.cfg.Storage.S3.Region != "" {
			s3Cfg.Region = a.cfg.Storage.S3.Region
		}
		if a.cfg.Storage.S3.Endpoint != "" {
			s3Cfg.Endpoint = a.cfg.Storage.S3.Endpoint
		}
		s3Cfg.UsePathStyle = a.cfg.Storage.S3.UsePathStyle
		a.storage, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, s3Cfg)
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.log.Info().Str("type", a.cfg.Storage.Type).Msg("storage initialized")

	a.fetcher, err = storage.NewPartFetcher(a.storage, a.cfg.Storage.CacheDir, a.cfg.Storage.FetchConcurrency)
	if err != nil {
		return fmt.Errorf("failed to initialize part fetcher: %w", err)
	}
	return nil
}

func (a *App) openTable(ctx context.Context) error {
	tbl, err := table.Open(ctx, a.cfg.DataDir, a.cfg.TableName, table.Options{
		Fetcher: a.fetcher,
	})
	if err != nil {
		return fmt.Errorf("failed to open table %s: %w", a.cfg.TableName, err)
	}
	a.table = tbl
	a.shutdown.RegisterCloser(tbl)
	return nil
}
