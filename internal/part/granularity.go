package part

import "fmt"

// Granularity describes how a part's rows are grouped into index granules.
// Granule indices are dense and contiguous from 0 to MarksCount-1.
type Granularity struct {
	rowsPerGranule []uint64
	totalRows      uint64
}

// NewGranularity builds a granularity descriptor from per-granule row counts.
func NewGranularity(rowsPerGranule []uint64) *Granularity {
	var total uint64
	for _, n := range rowsPerGranule {
		total += n
	}
	return &Granularity{rowsPerGranule: rowsPerGranule, totalRows: total}
}

// MarksCount returns the number of granules.
func (g *Granularity) MarksCount() int {
	return len(g.rowsPerGranule)
}

// RowsInGranule returns the row count of granule i.
func (g *Granularity) RowsInGranule(i int) uint64 {
	return g.rowsPerGranule[i]
}

// TotalRows returns the sum of all granule row counts.
func (g *Granularity) TotalRows() uint64 {
	return g.totalRows
}

// RowCounts returns a copy of the per-granule row counts in granule order.
func (g *Granularity) RowCounts() []uint64 {
	out := make([]uint64, len(g.rowsPerGranule))
	copy(out, g.rowsPerGranule)
	return out
}

// Layout tags a part's physical column layout. The set is closed: anything
// else is rejected when the part is opened.
type Layout string

const (
	// LayoutWide stores each column in its own file stream.
	LayoutWide Layout = "wide"

	// LayoutCompact multiplexes all columns into one shared stream.
	LayoutCompact Layout = "compact"
)

// ParseLayout validates a layout tag read from part metadata.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case LayoutWide:
		return LayoutWide, nil
	case LayoutCompact:
		return LayoutCompact, nil
	default:
		return "", fmt.Errorf("part: unknown layout %q", s)
	}
}
