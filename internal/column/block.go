package column

import (
	"fmt"

	"github.com/granitedb/granite/pkg/types"
)

// Block is an ordered set of named, equal-length columns. It is the unit
// handed to the generic filter evaluator and the container for a part's
// primary index.
type Block struct {
	defs []types.ColumnDef
	cols []Column
}

// NewBlock creates an empty block.
func NewBlock() *Block {
	return &Block{}
}

// Add appends a named column. All columns in a block must have equal length.
func (b *Block) Add(name string, col Column) error {
	if len(b.cols) > 0 && col.Len() != b.cols[0].Len() {
		return fmt.Errorf("column: block has %d rows, column %q has %d", b.cols[0].Len(), name, col.Len())
	}
	b.defs = append(b.defs, types.ColumnDef{Name: name, Type: col.Type()})
	b.cols = append(b.cols, col)
	return nil
}

// Has reports whether the block contains a column with the given name.
func (b *Block) Has(name string) bool {
	_, ok := b.Position(name)
	return ok
}

// Position returns the ordinal position of the named column.
func (b *Block) Position(name string) (int, bool) {
	for i, d := range b.defs {
		if d.Name == name {
			return i, true
		}
	}
	return 0, false
}

// ColumnAt returns the column at position i.
func (b *Block) ColumnAt(i int) Column {
	return b.cols[i]
}

// ByName returns the named column, or nil if absent.
func (b *Block) ByName(name string) Column {
	if i, ok := b.Position(name); ok {
		return b.cols[i]
	}
	return nil
}

// Def returns the column definition at position i.
func (b *Block) Def(i int) types.ColumnDef {
	return b.defs[i]
}

// Width returns the number of columns.
func (b *Block) Width() int {
	return len(b.cols)
}

// Rows returns the number of rows, zero for an empty block.
func (b *Block) Rows() int {
	if len(b.cols) == 0 {
		return 0
	}
	return b.cols[0].Len()
}

// Chunk is a fixed-shape batch of materialized columns: one result unit of
// the index read path. Width and column order follow the requested schema;
// height is the owning part's granule count.
type Chunk struct {
	cols []Column
	rows int
}

// NewChunk assembles a chunk from materialized columns. Every column must
// have exactly rows entries.
func NewChunk(cols []Column, rows int) (*Chunk, error) {
	for i, c := range cols {
		if c.Len() != rows {
			return nil, fmt.Errorf("column: chunk column %d has %d rows, want %d", i, c.Len(), rows)
		}
	}
	return &Chunk{cols: cols, rows: rows}, nil
}

// Width returns the number of columns.
func (c *Chunk) Width() int {
	return len(c.cols)
}

// Rows returns the chunk height.
func (c *Chunk) Rows() int {
	return c.rows
}

// ColumnAt returns the column at position i.
func (c *Chunk) ColumnAt(i int) Column {
	return c.cols[i]
}

// Row returns the values of row i in column order.
func (c *Chunk) Row(i int) []interface{} {
	vals := make([]interface{}, len(c.cols))
	for j, col := range c.cols {
		vals[j] = col.Value(i)
	}
	return vals
}
