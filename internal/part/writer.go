package part

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"

	"github.com/granitedb/granite/internal/marks"
	"github.com/granitedb/granite/pkg/types"
)

// WriterOptions controls how a part is laid out on disk.
type WriterOptions struct {
	// Layout selects wide or compact column storage.
	Layout Layout

	// GranuleSize is the number of rows per index granule; the final
	// granule may be shorter. Defaults to 8192.
	GranuleSize int
}

// Write builds a complete part directory from columnar data.
//
// schema gives the part's columns in order; data maps each column name to
// its values (all slices must have equal length); primaryKey names the
// columns recorded in the sparse index. The virtual index table never
// writes parts — this is the fixture and ingest-tooling path.
func Write(dir, name string, schema []types.ColumnDef, primaryKey []string, data map[string][]interface{}, opts WriterOptions) error {
	if opts.GranuleSize <= 0 {
		opts.GranuleSize = 8192
	}
	if opts.Layout != LayoutWide && opts.Layout != LayoutCompact {
		return fmt.Errorf("part: unknown layout %q", opts.Layout)
	}
	if len(schema) == 0 {
		return fmt.Errorf("part %s: empty schema", name)
	}

	totalRows := -1
	for _, c := range schema {
		values, ok := data[c.Name]
		if !ok {
			return fmt.Errorf("part %s: no data for column %s", name, c.Name)
		}
		if totalRows < 0 {
			totalRows = len(values)
		} else if len(values) != totalRows {
			return fmt.Errorf("part %s: column %s has %d rows, want %d", name, c.Name, len(values), totalRows)
		}
	}

	rowsPerGranule := splitGranules(totalRows, opts.GranuleSize)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("part %s: %w", name, err)
	}

	written := []string{}
	switch opts.Layout {
	case LayoutWide:
		for _, c := range schema {
			stream := StreamName(c.Name)
			files, err := writeStream(dir, stream, [][]interface{}{data[c.Name]}, rowsPerGranule)
			if err != nil {
				return fmt.Errorf("part %s: column %s: %w", name, c.Name, err)
			}
			written = append(written, files...)
		}
	case LayoutCompact:
		columnValues := make([][]interface{}, len(schema))
		for i, c := range schema {
			columnValues[i] = data[c.Name]
		}
		files, err := writeStream(dir, DataFileName, columnValues, rowsPerGranule)
		if err != nil {
			return fmt.Errorf("part %s: %w", name, err)
		}
		written = append(written, files...)
	}

	if err := writePrimaryIndex(dir, schema, primaryKey, data, rowsPerGranule); err != nil {
		return fmt.Errorf("part %s: %w", name, err)
	}
	written = append(written, PrimaryIndexName)

	sums := make(Checksums, len(written))
	for _, file := range written {
		sum, err := checksumFile(filepath.Join(dir, file))
		if err != nil {
			return fmt.Errorf("part %s: %w", name, err)
		}
		sums[file] = sum
	}
	if err := writeJSON(filepath.Join(dir, ChecksumsFileName), sums); err != nil {
		return fmt.Errorf("part %s: %w", name, err)
	}

	m := meta{
		Name:           name,
		Layout:         string(opts.Layout),
		Columns:        schema,
		RowsPerGranule: rowsPerGranule,
		TotalRows:      uint64(totalRows),
	}
	if err := writeJSON(filepath.Join(dir, MetaFileName), m); err != nil {
		return fmt.Errorf("part %s: %w", name, err)
	}
	return nil
}

// writeStream writes one .bin file and its .mrk file. columnValues holds one
// slice per column multiplexed into the stream: a single column for wide
// parts, every part column for the compact shared stream. Each (granule,
// column) pair becomes one snappy block; its mark records the block's byte
// offset in the stream and the row offset inside the decompressed block
// (always zero in this framing, since blocks start at granule boundaries).
func writeStream(dir, stream string, columnValues [][]interface{}, rowsPerGranule []uint64) ([]string, error) {
	binName := stream + DataFileExtension
	mrkName := stream + marks.MarkFileExtension

	f, err := os.Create(filepath.Join(dir, binName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	width := len(columnValues)
	markRows := make([][]marks.Mark, len(rowsPerGranule))
	var offset uint64
	rowStart := 0

	for g, rows := range rowsPerGranule {
		markRows[g] = make([]marks.Mark, width)
		for col, values := range columnValues {
			block, err := encodeBlock(values[rowStart : rowStart+int(rows)])
			if err != nil {
				return nil, err
			}
			markRows[g][col] = marks.Mark{OffsetInCompressedFile: offset, OffsetInDecompressedBlock: 0}
			n, err := f.Write(block)
			if err != nil {
				return nil, err
			}
			offset += uint64(n)
		}
		rowStart += int(rows)
	}
	if err := f.Sync(); err != nil {
		return nil, err
	}

	if err := marks.WriteFile(filepath.Join(dir, mrkName), markRows, width); err != nil {
		return nil, err
	}
	return []string{binName, mrkName}, nil
}

// encodeBlock frames one granule's values: uint32 length + snappy payload.
func encodeBlock(values []interface{}) ([]byte, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	compressed := snappy.Encode(nil, raw)
	block := make([]byte, 4+len(compressed))
	binary.LittleEndian.PutUint32(block[:4], uint32(len(compressed)))
	copy(block[4:], compressed)
	return block, nil
}

func writePrimaryIndex(dir string, schema []types.ColumnDef, primaryKey []string, data map[string][]interface{}, rowsPerGranule []uint64) error {
	idx := primaryIndex{}
	for _, pk := range primaryKey {
		var def *types.ColumnDef
		for i := range schema {
			if schema[i].Name == pk {
				def = &schema[i]
				break
			}
		}
		if def == nil {
			return fmt.Errorf("primary key column %s not in schema", pk)
		}

		values := make([]interface{}, 0, len(rowsPerGranule))
		rowStart := 0
		for _, rows := range rowsPerGranule {
			values = append(values, data[pk][rowStart])
			rowStart += int(rows)
		}
		idx.Columns = append(idx.Columns, primaryIndexColumn{Name: pk, Type: def.Type, Values: values})
	}
	return writeJSON(filepath.Join(dir, PrimaryIndexName), idx)
}

func splitGranules(totalRows, granuleSize int) []uint64 {
	var out []uint64
	for remaining := totalRows; remaining > 0; remaining -= granuleSize {
		n := granuleSize
		if remaining < n {
			n = remaining
		}
		out = append(out, uint64(n))
	}
	return out
}

func checksumFile(path string) (Checksum, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checksum{}, err
	}
	h1, h2 := murmur3.Sum128(data)
	return Checksum{
		SizeBytes: int64(len(data)),
		Hash:      fmt.Sprintf("%016x%016x", h1, h2),
	}, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
