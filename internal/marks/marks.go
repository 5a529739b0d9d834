// Package marks provides the mark (granule bookmark) format, the lazy
// per-stream loader, and the shared cross-reader cache.
//
// A mark records where a granule begins inside a physical column stream:
// the byte offset of its compressed block in the .bin file and the row
// offset inside the decompressed block.
package marks

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// MarkFileExtension is the suffix of mark files inside a part directory.
const MarkFileExtension = ".mrk"

// Mark is one (compressed offset, decompressed offset) bookmark.
type Mark struct {
	OffsetInCompressedFile    uint64
	OffsetInDecompressedBlock uint64
}

const markSize = 16 // two little-endian uint64s

// WriteFile writes a mark file. rows is indexed [granule][column]; every
// granule row must have width columns.
func WriteFile(path string, rows [][]Mark, width int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("marks: create %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, markSize)
	for g, row := range rows {
		if len(row) != width {
			return fmt.Errorf("marks: granule %d has %d columns, want %d", g, len(row), width)
		}
		for _, m := range row {
			binary.LittleEndian.PutUint64(buf[0:8], m.OffsetInCompressedFile)
			binary.LittleEndian.PutUint64(buf[8:16], m.OffsetInDecompressedBlock)
			if _, err := f.Write(buf); err != nil {
				return fmt.Errorf("marks: write %s: %w", path, err)
			}
		}
	}
	return f.Sync()
}

// ReadFile reads a whole mark file of marksCount granules and width columns.
func ReadFile(path string, marksCount, width int) ([]Mark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("marks: open %s: %w", path, err)
	}
	defer f.Close()

	want := marksCount * width
	data := make([]byte, want*markSize)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("marks: read %s (%d marks, width %d): %w", path, marksCount, width, err)
	}

	out := make([]Mark, want)
	for i := range out {
		off := i * markSize
		out[i] = Mark{
			OffsetInCompressedFile:    binary.LittleEndian.Uint64(data[off : off+8]),
			OffsetInDecompressedBlock: binary.LittleEndian.Uint64(data[off+8 : off+16]),
		}
	}
	return out, nil
}
