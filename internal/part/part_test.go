package part

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/granitedb/granite/internal/marks"
	"github.com/granitedb/granite/pkg/types"
)

func testSchema() []types.ColumnDef {
	return []types.ColumnDef{
		{Name: "id", Type: types.Int64()},
		{Name: "event_time", Type: types.UInt64()},
		{Name: "payload", Type: types.String()},
	}
}

func testData(n int) map[string][]interface{} {
	data := map[string][]interface{}{
		"id":         make([]interface{}, n),
		"event_time": make([]interface{}, n),
		"payload":    make([]interface{}, n),
	}
	for i := 0; i < n; i++ {
		data["id"][i] = int64(i)
		data["event_time"][i] = uint64(1700000000 + i)
		data["payload"][i] = "row"
	}
	return data
}

func writeTestPart(t *testing.T, name string, layout Layout, rows, granuleSize int) *Part {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	err := Write(dir, name, testSchema(), []string{"id"}, testData(rows), WriterOptions{
		Layout:      layout,
		GranuleSize: granuleSize,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	p, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return p
}

func TestWriteOpenWide(t *testing.T) {
	p := writeTestPart(t, "all_1_1_0", LayoutWide, 10, 4)

	if p.Name() != "all_1_1_0" || p.Layout() != LayoutWide {
		t.Errorf("name/layout = %s/%s", p.Name(), p.Layout())
	}
	g := p.Granularity()
	if g.MarksCount() != 3 {
		t.Fatalf("marks count = %d, want 3", g.MarksCount())
	}
	if g.RowsInGranule(0) != 4 || g.RowsInGranule(2) != 2 {
		t.Errorf("row counts = %v", g.RowCounts())
	}
	if g.TotalRows() != 10 {
		t.Errorf("total rows = %d", g.TotalRows())
	}

	// Primary index holds the first id of each granule.
	idx := p.IndexBlock()
	if idx.Width() != 1 || idx.Rows() != 3 {
		t.Fatalf("index shape = %dx%d", idx.Width(), idx.Rows())
	}
	col := idx.ByName("id")
	if col.Value(0) != int64(0) || col.Value(1) != int64(4) || col.Value(2) != int64(8) {
		t.Errorf("index values = %v %v %v", col.Value(0), col.Value(1), col.Value(2))
	}

	// Every column has its own stream.
	for _, name := range []string{"id", "event_time", "payload"} {
		stream, ok := p.StreamNameOrHash(name)
		if !ok {
			t.Errorf("no stream for column %s", name)
			continue
		}
		if stream != EscapeForFileName(name) {
			t.Errorf("stream for %s = %q", name, stream)
		}
	}
	if _, ok := p.StreamNameOrHash("missing"); ok {
		t.Error("absent column should have no stream")
	}
}

func TestWriteOpenCompact(t *testing.T) {
	p := writeTestPart(t, "all_2_2_0", LayoutCompact, 6, 4)

	if p.Layout() != LayoutCompact {
		t.Fatalf("layout = %s", p.Layout())
	}
	if !p.Checksums().HasStream(DataFileName) {
		t.Error("compact part should have the shared data stream")
	}

	pos, ok := p.ColumnPosition("event_time")
	if !ok || pos != 1 {
		t.Errorf("ColumnPosition(event_time) = %d, %v", pos, ok)
	}
	if _, ok := p.ColumnPosition("missing"); ok {
		t.Error("absent column should have no position")
	}
}

func TestMarksPointAtRealBlocks(t *testing.T) {
	p := writeTestPart(t, "all_3_3_0", LayoutCompact, 6, 4)

	width := len(p.Columns())
	loader := marks.NewLoader(p.MarksFilePath(DataFileName), p.Granularity().MarksCount(), width)

	// Second granule, payload column (position 2): the block at the mark's
	// offset must decode to that granule's values.
	m, err := loader.Mark(1, 2)
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}
	raw, err := p.ReadBlockAt(DataFileName, m.OffsetInCompressedFile)
	if err != nil {
		t.Fatalf("ReadBlockAt: %v", err)
	}

	var values []interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		t.Fatalf("decode block: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("granule 1 has %d rows, want 2", len(values))
	}
	if values[0] != "row" {
		t.Errorf("value = %v", values[0])
	}
}

func TestWideMarksWidthOne(t *testing.T) {
	p := writeTestPart(t, "all_4_4_0", LayoutWide, 5, 2)

	stream, ok := p.StreamNameOrHash("id")
	if !ok {
		t.Fatal("no stream for id")
	}
	loader := marks.NewLoader(p.MarksFilePath(stream), p.Granularity().MarksCount(), 1)

	m, err := loader.Mark(2, 0)
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}
	raw, err := p.ReadBlockAt(stream, m.OffsetInCompressedFile)
	if err != nil {
		t.Fatalf("ReadBlockAt: %v", err)
	}
	var values []interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		t.Fatalf("decode block: %v", err)
	}
	if len(values) != 1 || values[0] != float64(4) {
		t.Errorf("granule 2 of id = %v, want [4]", values)
	}
}

func TestZeroRowPart(t *testing.T) {
	p := writeTestPart(t, "all_5_5_0", LayoutWide, 0, 4)
	if p.Granularity().MarksCount() != 0 {
		t.Errorf("marks count = %d, want 0", p.Granularity().MarksCount())
	}
	if p.Granularity().TotalRows() != 0 {
		t.Errorf("total rows = %d, want 0", p.Granularity().TotalRows())
	}
}

func TestOpenRejectsBadLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bad")
	if err := Write(dir, "bad", testSchema(), []string{"id"}, testData(2), WriterOptions{Layout: Layout("in_memory")}); err == nil {
		t.Error("unknown layout should be rejected at write time")
	}
}

func TestChecksumsRecorded(t *testing.T) {
	p := writeTestPart(t, "all_6_6_0", LayoutCompact, 4, 4)

	sums := p.Checksums()
	for _, file := range []string{DataFileName + DataFileExtension, DataFileName + marks.MarkFileExtension, PrimaryIndexName} {
		sum, ok := sums[file]
		if !ok {
			t.Errorf("no checksum for %s", file)
			continue
		}
		if sum.SizeBytes <= 0 || len(sum.Hash) != 32 {
			t.Errorf("checksum for %s = %+v", file, sum)
		}
	}
}
