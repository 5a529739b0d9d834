// Package table opens part-based tables: a directory holding a catalog
// database and one subdirectory per local part. Parts registered with an
// object path live in remote storage and are fetched on first use.
package table

import (
	"context"
	"path/filepath"

	"github.com/granitedb/granite/internal/catalog"
	gerrors "github.com/granitedb/granite/internal/errors"
	"github.com/granitedb/granite/internal/part"
	"github.com/granitedb/granite/internal/storage"
	"github.com/granitedb/granite/pkg/types"
)

// CatalogFileName is the catalog database file inside a table directory.
const CatalogFileName = "catalog.db"

// Options configures how a table is opened.
type Options struct {
	// Fetcher materializes remote parts locally. Required only when the
	// catalog holds parts with an object path.
	Fetcher *storage.PartFetcher
}

// Table is an open part-based table.
type Table struct {
	name    string
	dir     string
	cat     *catalog.Catalog
	rec     *catalog.TableRecord
	fetcher *storage.PartFetcher
}

// Open opens the table name rooted at dir. The table must already be
// registered in the directory's catalog.
func Open(ctx context.Context, dir, name string, opts Options) (*Table, error) {
	cat, err := catalog.Open(filepath.Join(dir, CatalogFileName))
	if err != nil {
		return nil, err
	}
	rec, err := cat.GetTable(ctx, name)
	if err != nil {
		cat.Close()
		return nil, err
	}
	return &Table{
		name:    name,
		dir:     dir,
		cat:     cat,
		rec:     rec,
		fetcher: opts.Fetcher,
	}, nil
}

// Close releases the table's catalog connection.
func (t *Table) Close() error {
	return t.cat.Close()
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Engine returns the table's engine kind.
func (t *Table) Engine() string { return t.rec.Engine }

// Schema returns the table's column definitions.
func (t *Table) Schema() types.Schema { return t.rec.Schema }

// PrimaryKey returns the primary key column definitions, in key order.
func (t *Table) PrimaryKey() (types.Schema, error) {
	defs := make(types.Schema, 0, len(t.rec.PrimaryKey))
	for _, name := range t.rec.PrimaryKey {
		pos, ok := t.rec.Schema.Position(name)
		if !ok {
			return nil, gerrors.Newf(gerrors.ErrCategoryCatalog, gerrors.CodeCorruptionDetected,
				"primary key column %s missing from schema of table %s", name, t.name)
		}
		defs = append(defs, t.rec.Schema[pos])
	}
	return defs, nil
}

// Catalog exposes the underlying catalog for administrative tooling.
func (t *Table) Catalog() *catalog.Catalog { return t.cat }

// Parts opens all active parts and returns them in catalog registration
// order. The slice is a point-in-time snapshot: parts registered or detached
// afterwards do not affect it.
func (t *Table) Parts(ctx context.Context) ([]*part.Part, error) {
	recs, err := t.cat.ListActiveParts(ctx, t.name)
	if err != nil {
		return nil, err
	}

	parts := make([]*part.Part, 0, len(recs))
	for _, rec := range recs {
		dir, err := t.partDir(ctx, rec)
		if err != nil {
			return nil, err
		}
		p, err := part.Open(dir)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

func (t *Table) partDir(ctx context.Context, rec *catalog.PartRecord) (string, error) {
	if rec.ObjectPath == "" {
		return filepath.Join(t.dir, rec.PartName), nil
	}
	if t.fetcher == nil {
		return "", gerrors.Newf(gerrors.ErrCategoryStorage, gerrors.CodeDownloadFailed,
			"part %s lives in object storage but no fetcher is configured", rec.PartName)
	}
	return t.fetcher.Fetch(ctx, rec.ObjectPath)
}
