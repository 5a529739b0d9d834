package indexread

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/granitedb/granite/internal/access"
	"github.com/granitedb/granite/internal/catalog"
	"github.com/granitedb/granite/internal/column"
	"github.com/granitedb/granite/internal/marks"
	"github.com/granitedb/granite/internal/part"
	"github.com/granitedb/granite/internal/query/parser"
	"github.com/granitedb/granite/internal/table"
	"github.com/granitedb/granite/pkg/types"

	gerrors "github.com/granitedb/granite/internal/errors"
)

var testSchema = types.Schema{
	{Name: "id", Type: types.UInt64()},
	{Name: "payload", Type: types.String()},
}

// manualPart describes an index-only part written straight to disk, without
// column streams. Good enough for every read that does not touch marks.
type manualPart struct {
	name           string
	layout         part.Layout
	rowsPerGranule []uint64
	idValues       []uint64
}

func writeManualPart(t *testing.T, dir string, mp manualPart) {
	t.Helper()
	partDir := filepath.Join(dir, mp.name)
	if err := os.MkdirAll(partDir, 0755); err != nil {
		t.Fatal(err)
	}

	var total uint64
	for _, n := range mp.rowsPerGranule {
		total += n
	}
	writeTestJSON(t, filepath.Join(partDir, part.MetaFileName), map[string]interface{}{
		"name":             mp.name,
		"layout":           string(mp.layout),
		"columns":          testSchema,
		"rows_per_granule": mp.rowsPerGranule,
		"total_rows":       total,
	})
	writeTestJSON(t, filepath.Join(partDir, part.ChecksumsFileName), map[string]interface{}{})
	writeTestJSON(t, filepath.Join(partDir, part.PrimaryIndexName), map[string]interface{}{
		"columns": []map[string]interface{}{
			{"name": "id", "type": types.UInt64(), "values": mp.idValues},
		},
	})
}

func writeTestJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func setupSource(t *testing.T, dir string, schema types.Schema, partNames ...string) *table.Table {
	t.Helper()
	ctx := context.Background()

	cat, err := catalog.Open(filepath.Join(dir, table.CatalogFileName))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	err = cat.CreateTable(ctx, &catalog.TableRecord{
		Name:       "events",
		Engine:     catalog.EngineMergeTree,
		Schema:     schema,
		PrimaryKey: []string{"id"},
		CreatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	for _, name := range partNames {
		p, err := part.Open(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("open part %s: %v", name, err)
		}
		err = cat.RegisterPart(ctx, &catalog.PartRecord{
			PartName:  name,
			TableName: "events",
			Layout:    string(p.Layout()),
			RowCount:  int64(p.Granularity().TotalRows()),
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("register part %s: %v", name, err)
		}
	}
	cat.Close()

	tbl, err := table.Open(ctx, dir, "events", table.Options{})
	if err != nil {
		t.Fatalf("open table: %v", err)
	}
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

func twoPartSource(t *testing.T) *table.Table {
	t.Helper()
	dir := t.TempDir()
	writeManualPart(t, dir, manualPart{
		name: "P1", layout: part.LayoutWide,
		rowsPerGranule: []uint64{1, 2, 1}, idValues: []uint64{0, 1, 3},
	})
	writeManualPart(t, dir, manualPart{
		name: "P2", layout: part.LayoutWide,
		rowsPerGranule: []uint64{5}, idValues: []uint64{0},
	})
	return setupSource(t, dir, testSchema, "P1", "P2")
}

func readAll(t *testing.T, gen *ChunkGenerator) []*column.Chunk {
	t.Helper()
	var chunks []*column.Chunk
	for {
		chunk, err := gen.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if chunk == nil {
			return chunks
		}
		chunks = append(chunks, chunk)
	}
}

func chunkRows(c *column.Chunk) [][]interface{} {
	rows := make([][]interface{}, c.Rows())
	for i := range rows {
		rows[i] = c.Row(i)
	}
	return rows
}

func TestTwoPartScenario(t *testing.T) {
	it, err := New(context.Background(), twoPartSource(t), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	gen, err := it.Read(context.Background(), []string{"id", MarkNumberColumn, RowsInGranuleColumn}, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	chunks := readAll(t, gen)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	wantP1 := [][]interface{}{
		{uint64(0), uint64(0), uint64(1)},
		{uint64(1), uint64(1), uint64(2)},
		{uint64(3), uint64(2), uint64(1)},
	}
	if got := chunkRows(chunks[0]); !reflect.DeepEqual(got, wantP1) {
		t.Errorf("P1 rows = %v, want %v", got, wantP1)
	}
	wantP2 := [][]interface{}{{uint64(0), uint64(0), uint64(5)}}
	if got := chunkRows(chunks[1]); !reflect.DeepEqual(got, wantP2) {
		t.Errorf("P2 rows = %v, want %v", got, wantP2)
	}

	snap := gen.Stats().Snapshot()
	if snap.ChunksEmitted != 2 || snap.RowsEmitted != 4 || snap.PartsScanned != 2 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestPartNameColumnConstant(t *testing.T) {
	it, err := New(context.Background(), twoPartSource(t), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gen, err := it.Read(context.Background(), []string{PartNameColumn}, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	chunks := readAll(t, gen)
	wantNames := []string{"P1", "P2"}
	for ci, chunk := range chunks {
		for i := 0; i < chunk.Rows(); i++ {
			if got := chunk.ColumnAt(0).Value(i); got != wantNames[ci] {
				t.Errorf("chunk %d row %d part_name = %v, want %s", ci, i, got, wantNames[ci])
			}
		}
	}
}

func TestPartNameFilter(t *testing.T) {
	it, err := New(context.Background(), twoPartSource(t), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	cols := []string{"id", MarkNumberColumn, RowsInGranuleColumn}

	unfiltered, err := it.Read(ctx, cols, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	all := readAll(t, unfiltered)

	expr, err := parser.ParseExpression("part_name = 'P2'")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	filtered, err := it.Read(ctx, cols, expr)
	if err != nil {
		t.Fatalf("filtered Read: %v", err)
	}
	got := readAll(t, filtered)

	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	if !reflect.DeepEqual(chunkRows(got[0]), chunkRows(all[1])) {
		t.Errorf("filtered chunk differs from unfiltered P2 chunk")
	}
	if snap := filtered.Stats().Snapshot(); snap.PartsPruned != 1 {
		t.Errorf("parts pruned = %d, want 1", snap.PartsPruned)
	}
}

func TestFilterToNothing(t *testing.T) {
	it, err := New(context.Background(), twoPartSource(t), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	expr, err := parser.ParseExpression("part_name = 'P9'")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	gen, err := it.Read(context.Background(), []string{"id"}, expr)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if chunks := readAll(t, gen); len(chunks) != 0 {
		t.Errorf("got %d chunks, want 0", len(chunks))
	}
}

func TestFilterWithoutPartNameIsSkipped(t *testing.T) {
	it, err := New(context.Background(), twoPartSource(t), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Predicates not naming part_name must never prune parts.
	expr, err := parser.ParseExpression("mark_number > 100")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	gen, err := it.Read(context.Background(), []string{"id"}, expr)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if chunks := readAll(t, gen); len(chunks) != 2 {
		t.Errorf("got %d chunks, want all 2", len(chunks))
	}
}

func TestUnknownColumnFailsBeforeChunks(t *testing.T) {
	it, err := New(context.Background(), twoPartSource(t), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = it.Read(context.Background(), []string{"id", "bogus"}, nil)
	if err == nil {
		t.Fatal("expected unknown column error")
	}
	var ge *gerrors.GraniteError
	if !errors.As(err, &ge) || ge.Code != gerrors.CodeUnknownColumn {
		t.Errorf("error = %v, want code UNKNOWN_COLUMN", err)
	}
}

func TestMarkColumnRequiresWithMarks(t *testing.T) {
	it, err := New(context.Background(), twoPartSource(t), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := it.Read(context.Background(), []string{"payload.mark"}, nil); err == nil {
		t.Fatal("mark pseudo-columns must not resolve when marks are disabled")
	}
}

func TestIdempotentReads(t *testing.T) {
	it, err := New(context.Background(), twoPartSource(t), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	cols := []string{"id", PartNameColumn, RowsInGranuleColumn}

	first, err := it.Read(ctx, cols, nil)
	if err != nil {
		t.Fatalf("first Read: %v", err)
	}
	second, err := it.Read(ctx, cols, nil)
	if err != nil {
		t.Fatalf("second Read: %v", err)
	}

	a, b := readAll(t, first), readAll(t, second)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !reflect.DeepEqual(chunkRows(a[i]), chunkRows(b[i])) {
			t.Errorf("chunk %d differs between identical reads", i)
		}
	}
}

func TestZeroGranulePart(t *testing.T) {
	dir := t.TempDir()
	writeManualPart(t, dir, manualPart{
		name: "empty", layout: part.LayoutWide,
		rowsPerGranule: nil, idValues: nil,
	})
	src := setupSource(t, dir, testSchema, "empty")

	it, err := New(context.Background(), src, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gen, err := it.Read(context.Background(), []string{"id", MarkNumberColumn}, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	chunks := readAll(t, gen)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 (zero-height chunks are still emitted)", len(chunks))
	}
	if chunks[0].Rows() != 0 || chunks[0].Width() != 2 {
		t.Errorf("chunk shape = %dx%d, want 0x2", chunks[0].Rows(), chunks[0].Width())
	}
}

func TestBadSourceTable(t *testing.T) {
	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, table.CatalogFileName))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	err = cat.CreateTable(context.Background(), &catalog.TableRecord{
		Name:   "logs",
		Engine: "append_log",
		Schema: testSchema,
	})
	cat.Close()
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	tbl, err := table.Open(context.Background(), dir, "logs", table.Options{})
	if err != nil {
		t.Fatalf("open table: %v", err)
	}
	defer tbl.Close()

	_, err = New(context.Background(), tbl, Options{})
	if err == nil {
		t.Fatal("expected error for non part-based source table")
	}
	var ge *gerrors.GraniteError
	if !errors.As(err, &ge) || ge.Code != gerrors.CodeBadSourceTable {
		t.Errorf("error = %v, want code BAD_SOURCE_TABLE", err)
	}
}

func TestAccessCheckedOnUnderlyingColumns(t *testing.T) {
	policy := access.NewColumnPolicy()
	policy.Grant("events", []string{"payload"})

	it, err := New(context.Background(), twoPartSource(t), Options{Authorizer: policy, WithMarks: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	// id resolves to the underlying id column, which is not granted.
	if _, err := it.Read(ctx, []string{"id"}, nil); err == nil {
		t.Error("expected denial for ungranted primary-key column")
	}

	// payload.mark touches only payload, which is granted.
	if _, err := it.Read(ctx, []string{"payload.mark"}, nil); err != nil {
		t.Errorf("granted mark column denied: %v", err)
	}

	// Synthetic metadata columns touch no underlying column at all.
	if _, err := it.Read(ctx, []string{PartNameColumn, MarkNumberColumn}, nil); err != nil {
		t.Errorf("metadata-only read denied: %v", err)
	}
}

func TestSchemaShape(t *testing.T) {
	it, err := New(context.Background(), twoPartSource(t), Options{WithMarks: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	schema := it.Schema()
	want := []string{"id", PartNameColumn, MarkNumberColumn, RowsInGranuleColumn, "id.mark", "payload.mark"}
	if !reflect.DeepEqual(schema.Names(), want) {
		t.Errorf("schema names = %v, want %v", schema.Names(), want)
	}
	pos, _ := schema.Position("payload.mark")
	wantType := "Tuple(offset_in_compressed_file Nullable(UInt64), offset_in_decompressed_block Nullable(UInt64))"
	if got := schema[pos].Type.String(); got != wantType {
		t.Errorf("mark column type = %s, want %s", got, wantType)
	}
}

// Mark-reading tests below use real parts with column streams.

func writeRealPart(t *testing.T, dir, name string, layout part.Layout, rows, granuleSize int) {
	t.Helper()
	ids := make([]interface{}, rows)
	payloads := make([]interface{}, rows)
	for i := 0; i < rows; i++ {
		ids[i] = uint64(i)
		payloads[i] = "value"
	}
	err := part.Write(filepath.Join(dir, name), name, testSchema, []string{"id"},
		map[string][]interface{}{"id": ids, "payload": payloads},
		part.WriterOptions{Layout: layout, GranuleSize: granuleSize})
	if err != nil {
		t.Fatalf("write part: %v", err)
	}
}

func TestWideMarks(t *testing.T) {
	dir := t.TempDir()
	writeRealPart(t, dir, "w1", part.LayoutWide, 10, 4) // granules [4,4,2]
	src := setupSource(t, dir, testSchema, "w1")

	it, err := New(context.Background(), src, Options{WithMarks: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gen, err := it.Read(context.Background(), []string{MarkNumberColumn, "payload.mark"}, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	chunks := readAll(t, gen)
	if len(chunks) != 1 || chunks[0].Rows() != 3 {
		t.Fatalf("chunks = %d", len(chunks))
	}

	var prev uint64
	for i := 0; i < 3; i++ {
		pair := chunks[0].ColumnAt(1).Value(i).([]interface{})
		compressed := pair[0].(uint64)
		if pair[1].(uint64) != 0 {
			t.Errorf("granule %d decompressed offset = %v, want 0", i, pair[1])
		}
		if i == 0 && compressed != 0 {
			t.Errorf("first granule offset = %d, want 0", compressed)
		}
		if i > 0 && compressed <= prev {
			t.Errorf("granule %d offset %d not past previous %d", i, compressed, prev)
		}
		prev = compressed
	}
	if loads := gen.Stats().MarkLoads.Load(); loads != 3 {
		t.Errorf("mark loads = %d, want 3", loads)
	}
}

func TestCompactMarksShareOneLoader(t *testing.T) {
	dir := t.TempDir()
	writeRealPart(t, dir, "c1", part.LayoutCompact, 6, 3) // granules [3,3]
	src := setupSource(t, dir, testSchema, "c1")

	cache := marks.NewCache(0)
	it, err := New(context.Background(), src, Options{WithMarks: true, MarkCache: cache})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gen, err := it.Read(context.Background(), []string{"id.mark", "payload.mark"}, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	chunks := readAll(t, gen)
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d", len(chunks))
	}
	if cache.Len() != 1 {
		t.Errorf("cache holds %d loaders, want 1 shared loader", cache.Len())
	}

	// Within one granule, each column has its own offset into the shared
	// stream; payload is written after id.
	idPair := chunks[0].ColumnAt(0).Value(0).([]interface{})
	payloadPair := chunks[0].ColumnAt(1).Value(0).([]interface{})
	if idPair[0].(uint64) != 0 {
		t.Errorf("id offset = %v, want 0", idPair[0])
	}
	if payloadPair[0].(uint64) <= idPair[0].(uint64) {
		t.Errorf("payload offset %v not past id offset %v", payloadPair[0], idPair[0])
	}
	if loads := gen.Stats().MarkLoads.Load(); loads != 4 {
		t.Errorf("mark loads = %d, want 4 (2 columns x 2 granules)", loads)
	}
}

func TestAbsentColumnYieldsDefaultPair(t *testing.T) {
	dir := t.TempDir()
	writeRealPart(t, dir, "c2", part.LayoutCompact, 6, 3)

	// The source table has grown an extra column the part predates.
	grown := append(types.Schema{}, testSchema...)
	grown = append(grown, types.ColumnDef{Name: "extra", Type: types.String()})
	src := setupSource(t, dir, grown, "c2")

	it, err := New(context.Background(), src, Options{WithMarks: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gen, err := it.Read(context.Background(), []string{"extra.mark"}, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	chunks := readAll(t, gen)
	if len(chunks) != 1 || chunks[0].Rows() != 2 {
		t.Fatalf("chunks = %d", len(chunks))
	}

	// Total absence yields the default non-null pair, never null entries,
	// and never touches the loader.
	want := []interface{}{uint64(0), uint64(0)}
	for i := 0; i < 2; i++ {
		if got := chunks[0].ColumnAt(0).Value(i); !reflect.DeepEqual(got, want) {
			t.Errorf("row %d = %v, want default pair %v", i, got, want)
		}
	}
	if loads := gen.Stats().MarkLoads.Load(); loads != 0 {
		t.Errorf("mark loads = %d, want 0 for absent column", loads)
	}
}

func TestAbsentColumnWidePart(t *testing.T) {
	dir := t.TempDir()
	writeRealPart(t, dir, "w2", part.LayoutWide, 4, 2)

	grown := append(types.Schema{}, testSchema...)
	grown = append(grown, types.ColumnDef{Name: "added_later", Type: types.UInt64()})
	src := setupSource(t, dir, grown, "w2")

	it, err := New(context.Background(), src, Options{WithMarks: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gen, err := it.Read(context.Background(), []string{"added_later.mark", "payload.mark"}, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	chunks := readAll(t, gen)
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d", len(chunks))
	}
	want := []interface{}{uint64(0), uint64(0)}
	for i := 0; i < chunks[0].Rows(); i++ {
		if got := chunks[0].ColumnAt(0).Value(i); !reflect.DeepEqual(got, want) {
			t.Errorf("absent column row %d = %v, want %v", i, got, want)
		}
		// The sibling present column still loads real marks.
		if chunks[0].ColumnAt(1).Value(i) == nil {
			t.Errorf("present column row %d is nil", i)
		}
	}
}

func TestResolverNestedNames(t *testing.T) {
	schema := types.Schema{
		{Name: "a.b", Type: types.String()},
	}
	r := NewResolver(types.Schema{{Name: "id", Type: types.UInt64()}}, schema, true)

	cols, err := r.Resolve([]string{"a.b.mark"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cols[0].target != "a.b" {
		t.Errorf("target = %q, want a.b", cols[0].target)
	}

	if _, err := r.Resolve([]string{"a.mark"}); err == nil {
		t.Error("a.mark should not resolve: no storage column named a")
	}
}
