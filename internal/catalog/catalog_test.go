package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gerrors "github.com/granitedb/granite/internal/errors"
	"github.com/granitedb/granite/pkg/types"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCreateAndGetTable(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	schema := types.Schema{
		{Name: "id", Type: types.UInt64()},
		{Name: "payload", Type: types.String()},
	}
	rec := &TableRecord{
		Name:       "events",
		Engine:     EngineMergeTree,
		Schema:     schema,
		PrimaryKey: []string{"id"},
		CreatedAt:  time.Now(),
	}
	if err := c.CreateTable(ctx, rec); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	got, err := c.GetTable(ctx, "events")
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	if got.Engine != EngineMergeTree {
		t.Errorf("engine = %q, want %q", got.Engine, EngineMergeTree)
	}
	if got.Schema.Len() != 2 || got.Schema[0].Name != "id" || got.Schema[1].Name != "payload" {
		t.Errorf("schema mismatch: %+v", got.Schema)
	}
	if !got.Schema[0].Type.Equal(types.UInt64()) {
		t.Errorf("id type = %s, want UInt64", got.Schema[0].Type)
	}
	if len(got.PrimaryKey) != 1 || got.PrimaryKey[0] != "id" {
		t.Errorf("primary key = %v, want [id]", got.PrimaryKey)
	}
}

func TestGetTableNotFound(t *testing.T) {
	c := openTestCatalog(t)

	_, err := c.GetTable(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing table")
	}
	var ge *gerrors.GraniteError
	if !errors.As(err, &ge) || ge.Code != gerrors.CodeTableNotFound {
		t.Errorf("error = %v, want code TABLE_NOT_FOUND", err)
	}
}

func TestPartRegistrationOrder(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	// Registration order deliberately differs from lexicographic order.
	names := []string{"p_20240103_2", "p_20240101_1", "p_20240102_5"}
	for _, name := range names {
		err := c.RegisterPart(ctx, &PartRecord{
			PartName:  name,
			TableName: "events",
			Layout:    "wide",
			RowCount:  100,
			SizeBytes: 4096,
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("RegisterPart(%s): %v", name, err)
		}
	}

	parts, err := c.ListActiveParts(ctx, "events")
	if err != nil {
		t.Fatalf("ListActiveParts: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}
	for i, name := range names {
		if parts[i].PartName != name {
			t.Errorf("parts[%d] = %s, want %s", i, parts[i].PartName, name)
		}
	}
}

func TestDetachPart(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	for _, name := range []string{"p1", "p2"} {
		err := c.RegisterPart(ctx, &PartRecord{
			PartName: name, TableName: "events", Layout: "compact",
			RowCount: 10, CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("RegisterPart(%s): %v", name, err)
		}
	}

	if err := c.DetachPart(ctx, "p1"); err != nil {
		t.Fatalf("DetachPart: %v", err)
	}

	parts, err := c.ListActiveParts(ctx, "events")
	if err != nil {
		t.Fatalf("ListActiveParts: %v", err)
	}
	if len(parts) != 1 || parts[0].PartName != "p2" {
		t.Errorf("active parts = %+v, want only p2", parts)
	}
}

func TestDetachMissingPart(t *testing.T) {
	c := openTestCatalog(t)

	err := c.DetachPart(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error detaching unknown part")
	}
	var ge *gerrors.GraniteError
	if !errors.As(err, &ge) || ge.Code != gerrors.CodePartNotFound {
		t.Errorf("error = %v, want code PART_NOT_FOUND", err)
	}
}

func TestCatalogReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec := &TableRecord{
		Name:   "t",
		Engine: EngineMergeTree,
		Schema: types.Schema{{Name: "k", Type: types.Int64()}},
	}
	if err := c.CreateTable(context.Background(), rec); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()
	got, err := c2.GetTable(context.Background(), "t")
	if err != nil {
		t.Fatalf("GetTable after reopen: %v", err)
	}
	if got.Name != "t" {
		t.Errorf("name = %q, want t", got.Name)
	}
}
