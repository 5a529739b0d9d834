// Package catalog manages table and part metadata in catalog.db. Each table
// directory carries one catalog recording the table's engine kind, schema,
// primary key, and the list of live parts.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	gerrors "github.com/granitedb/granite/internal/errors"
	"github.com/granitedb/granite/pkg/types"
)

// EngineMergeTree is the engine kind of part-based Granite tables. The
// parts-index virtual table only accepts sources of this kind.
const EngineMergeTree = "granite_merge_tree"

// TableRecord describes one table in the catalog.
type TableRecord struct {
	Name       string
	Engine     string
	Schema     types.Schema
	PrimaryKey []string
	CreatedAt  time.Time
}

// PartRecord describes one registered part.
type PartRecord struct {
	PartName   string
	TableName  string
	Layout     string
	RowCount   int64
	SizeBytes  int64
	ObjectPath string // non-empty when the part lives in object storage
	CreatedAt  time.Time
	Detached   bool
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS tables (
    name             TEXT PRIMARY KEY,
    engine           TEXT NOT NULL,
    schema_json      TEXT NOT NULL,
    primary_key_json TEXT NOT NULL,
    created_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS parts (
    part_name   TEXT PRIMARY KEY,
    table_name  TEXT NOT NULL,
    layout      TEXT NOT NULL,
    row_count   INTEGER NOT NULL,
    size_bytes  INTEGER NOT NULL,
    object_path TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    detached    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_parts_table ON parts(table_name, detached);
`

// Catalog is a SQLite-backed table/part catalog.
type Catalog struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex // serializes writes; SQLite handles concurrent reads
}

// Open opens (creating if necessary) the catalog at dbPath.
func Open(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, gerrors.NewCatalogError(gerrors.CodeCorruptionDetected, "open catalog", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, gerrors.NewCatalogError(gerrors.CodeCorruptionDetected, "initialize catalog schema", err)
	}

	return &Catalog{db: db, dbPath: dbPath}, nil
}

// Close closes the catalog database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// CreateTable registers a table, replacing any existing record of the same
// name.
func (c *Catalog) CreateTable(ctx context.Context, rec *TableRecord) error {
	schemaJSON, err := json.Marshal(rec.Schema)
	if err != nil {
		return gerrors.NewCatalogError(gerrors.CodeCorruptionDetected, "encode schema", err)
	}
	pkJSON, err := json.Marshal(rec.PrimaryKey)
	if err != nil {
		return gerrors.NewCatalogError(gerrors.CodeCorruptionDetected, "encode primary key", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tables (name, engine, schema_json, primary_key_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Name, rec.Engine, string(schemaJSON), string(pkJSON), rec.CreatedAt.Unix(),
	)
	if err != nil {
		return gerrors.NewCatalogError(gerrors.CodeCorruptionDetected, "register table", err)
	}
	return nil
}

// GetTable retrieves a table record by name.
func (c *Catalog) GetTable(ctx context.Context, name string) (*TableRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT name, engine, schema_json, primary_key_json, created_at FROM tables WHERE name = ?`, name)

	var rec TableRecord
	var schemaJSON, pkJSON string
	var createdAt int64
	if err := row.Scan(&rec.Name, &rec.Engine, &schemaJSON, &pkJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, gerrors.Newf(gerrors.ErrCategoryCatalog, gerrors.CodeTableNotFound, "table %s not found", name)
		}
		return nil, gerrors.NewCatalogError(gerrors.CodeCorruptionDetected, "read table", err)
	}
	if err := json.Unmarshal([]byte(schemaJSON), &rec.Schema); err != nil {
		return nil, gerrors.NewCatalogError(gerrors.CodeCorruptionDetected, "decode schema", err)
	}
	if err := json.Unmarshal([]byte(pkJSON), &rec.PrimaryKey); err != nil {
		return nil, gerrors.NewCatalogError(gerrors.CodeCorruptionDetected, "decode primary key", err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	return &rec, nil
}

// RegisterPart adds a part to the catalog.
func (c *Catalog) RegisterPart(ctx context.Context, rec *PartRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO parts (part_name, table_name, layout, row_count, size_bytes, object_path, created_at, detached)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		rec.PartName, rec.TableName, rec.Layout, rec.RowCount, rec.SizeBytes, rec.ObjectPath, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return gerrors.NewCatalogError(gerrors.CodeCorruptionDetected,
			fmt.Sprintf("register part %s", rec.PartName), err)
	}
	return nil
}

// ListActiveParts returns the non-detached parts of a table in registration
// order. That order is the part order the index virtual table exposes; it
// is not sorted by name or creation time.
func (c *Catalog) ListActiveParts(ctx context.Context, tableName string) ([]*PartRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT part_name, table_name, layout, row_count, size_bytes, object_path, created_at, detached
		 FROM parts WHERE table_name = ? AND detached = 0 ORDER BY rowid`, tableName)
	if err != nil {
		return nil, gerrors.NewCatalogError(gerrors.CodeCorruptionDetected, "list parts", err)
	}
	defer rows.Close()

	var out []*PartRecord
	for rows.Next() {
		var rec PartRecord
		var createdAt int64
		var detached int
		if err := rows.Scan(&rec.PartName, &rec.TableName, &rec.Layout, &rec.RowCount,
			&rec.SizeBytes, &rec.ObjectPath, &createdAt, &detached); err != nil {
			return nil, gerrors.NewCatalogError(gerrors.CodeCorruptionDetected, "scan part", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.Detached = detached != 0
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, gerrors.NewCatalogError(gerrors.CodeCorruptionDetected, "iterate parts", err)
	}
	return out, nil
}

// DetachPart marks a part as detached so readers no longer see it.
func (c *Catalog) DetachPart(ctx context.Context, partName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.db.ExecContext(ctx, `UPDATE parts SET detached = 1 WHERE part_name = ?`, partName)
	if err != nil {
		return gerrors.NewCatalogError(gerrors.CodeCorruptionDetected,
			fmt.Sprintf("detach part %s", partName), err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return gerrors.Newf(gerrors.ErrCategoryCatalog, gerrors.CodePartNotFound, "part %s not found", partName)
	}
	return nil
}
