// Package part implements Granite's on-disk part format: immutable
// directories holding compressed column streams, mark files, the sparse
// primary index, and checksums.
package part

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"

	"github.com/granitedb/granite/internal/column"
	"github.com/granitedb/granite/internal/marks"
	"github.com/granitedb/granite/pkg/types"
)

// File names inside a part directory.
const (
	MetaFileName      = "meta.json"
	ChecksumsFileName = "checksums.json"
	PrimaryIndexName  = "primary.idx"

	// DataFileName is the shared stream name of compact parts.
	DataFileName = "data"

	// DataFileExtension is the suffix of column stream files.
	DataFileExtension = ".bin"
)

// Checksum records the size and murmur3-128 digest of one part file.
type Checksum struct {
	SizeBytes int64  `json:"size_bytes"`
	Hash      string `json:"hash"`
}

// Checksums maps part file names to their checksums. Stream presence is
// decided by this map, not by probing the filesystem.
type Checksums map[string]Checksum

// HasStream reports whether the map records a .bin file for a stream name.
func (c Checksums) HasStream(stream string) bool {
	_, ok := c[stream+DataFileExtension]
	return ok
}

// meta is the serialized form of meta.json.
type meta struct {
	Name           string            `json:"name"`
	Layout         string            `json:"layout"`
	Columns        []types.ColumnDef `json:"columns"`
	RowsPerGranule []uint64          `json:"rows_per_granule"`
	TotalRows      uint64            `json:"total_rows"`
}

// primaryIndex is the serialized form of primary.idx: one value per granule
// for each primary-key component.
type primaryIndex struct {
	Columns []primaryIndexColumn `json:"columns"`
}

type primaryIndexColumn struct {
	Name   string        `json:"name"`
	Type   types.Type    `json:"type"`
	Values []interface{} `json:"values"`
}

// Part is a read-only handle on one on-disk part. Column data streams stay
// closed; only metadata, checksums and the primary index are resident.
type Part struct {
	dir         string
	name        string
	layout      Layout
	columns     []types.ColumnDef
	granularity *Granularity
	checksums   Checksums
	index       *column.Block
}

// Open reads a part directory's metadata, checksums and primary index.
func Open(dir string) (*Part, error) {
	var m meta
	if err := readJSON(filepath.Join(dir, MetaFileName), &m); err != nil {
		return nil, fmt.Errorf("part: %w", err)
	}
	layout, err := ParseLayout(m.Layout)
	if err != nil {
		return nil, err
	}

	var sums Checksums
	if err := readJSON(filepath.Join(dir, ChecksumsFileName), &sums); err != nil {
		return nil, fmt.Errorf("part %s: %w", m.Name, err)
	}

	var idx primaryIndex
	if err := readJSON(filepath.Join(dir, PrimaryIndexName), &idx); err != nil {
		return nil, fmt.Errorf("part %s: %w", m.Name, err)
	}

	granularity := NewGranularity(m.RowsPerGranule)
	if granularity.TotalRows() != m.TotalRows {
		return nil, fmt.Errorf("part %s: granule row counts sum to %d, meta says %d",
			m.Name, granularity.TotalRows(), m.TotalRows)
	}

	indexBlock := column.NewBlock()
	for _, c := range idx.Columns {
		if len(c.Values) != granularity.MarksCount() {
			return nil, fmt.Errorf("part %s: index column %s has %d values, want %d",
				m.Name, c.Name, len(c.Values), granularity.MarksCount())
		}
		col, err := column.FromValues(c.Type, c.Values)
		if err != nil {
			return nil, fmt.Errorf("part %s: index column %s: %w", m.Name, c.Name, err)
		}
		if err := indexBlock.Add(c.Name, col); err != nil {
			return nil, fmt.Errorf("part %s: %w", m.Name, err)
		}
	}

	return &Part{
		dir:         dir,
		name:        m.Name,
		layout:      layout,
		columns:     m.Columns,
		granularity: granularity,
		checksums:   sums,
		index:       indexBlock,
	}, nil
}

// Name returns the part name.
func (p *Part) Name() string { return p.name }

// Layout returns the physical layout tag.
func (p *Part) Layout() Layout { return p.layout }

// Dir returns the part directory.
func (p *Part) Dir() string { return p.dir }

// Granularity returns the granule descriptor.
func (p *Part) Granularity() *Granularity { return p.granularity }

// Checksums returns the file checksum map.
func (p *Part) Checksums() Checksums { return p.checksums }

// Columns returns the part's ordered column definitions.
func (p *Part) Columns() []types.ColumnDef { return p.columns }

// ColumnPosition returns the ordinal index of a logical column in the
// part's column list.
func (p *Part) ColumnPosition(name string) (int, bool) {
	for i, c := range p.columns {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// IndexBlock returns the in-memory primary index: one column per
// primary-key component, one value per granule.
func (p *Part) IndexBlock() *column.Block { return p.index }

// StreamNameOrHash resolves a logical column to its stream name inside this
// part, consulting the checksums map for both the escaped and the hashed
// form. Returns false if the part has no stream for the column.
func (p *Part) StreamNameOrHash(columnName string) (string, bool) {
	escaped := EscapeForFileName(columnName)
	if len(escaped) <= MaxStreamNameLength && p.checksums.HasStream(escaped) {
		return escaped, true
	}
	hashed := HashedStreamName(columnName)
	if p.checksums.HasStream(hashed) {
		return hashed, true
	}
	return "", false
}

// MarksFilePath returns the path of a stream's mark file.
func (p *Part) MarksFilePath(stream string) string {
	return filepath.Join(p.dir, stream+marks.MarkFileExtension)
}

// DataFilePath returns the path of a stream's data file.
func (p *Part) DataFilePath(stream string) string {
	return filepath.Join(p.dir, stream+DataFileExtension)
}

// ReadBlockAt decompresses the snappy block starting at the given byte
// offset of a stream. Blocks are framed as a little-endian uint32 length
// followed by the compressed payload.
func (p *Part) ReadBlockAt(stream string, offset uint64) ([]byte, error) {
	f, err := os.Open(p.DataFilePath(stream))
	if err != nil {
		return nil, fmt.Errorf("part %s: %w", p.name, err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("part %s: seek %s@%d: %w", p.name, stream, offset, err)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("part %s: block header %s@%d: %w", p.name, stream, offset, err)
	}
	compressed := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(f, compressed); err != nil {
		return nil, fmt.Errorf("part %s: block body %s@%d: %w", p.name, stream, offset, err)
	}

	decoded, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("part %s: decompress %s@%d: %w", p.name, stream, offset, err)
	}
	return decoded, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
