package marks

import (
	"fmt"
	"sync"
)

// Loader lazily reads one mark file. A loader serves one stream of one part:
// width 1 for a dedicated wide-layout stream, or the part's column count for
// the shared compact-layout stream.
//
// Loading happens on the first Mark call and the decoded slab is kept for
// the loader's lifetime. Loaders are safe for concurrent use.
type Loader struct {
	path       string
	marksCount int
	width      int

	once  sync.Once
	marks []Mark
	err   error
}

// NewLoader creates a loader for the mark file at path. No I/O happens until
// the first Mark call.
func NewLoader(path string, marksCount, width int) *Loader {
	return &Loader{path: path, marksCount: marksCount, width: width}
}

// MarksCount returns the number of granules the loader covers.
func (l *Loader) MarksCount() int {
	return l.marksCount
}

// Width returns the number of columns per granule row.
func (l *Loader) Width() int {
	return l.width
}

// SizeBytes returns the decoded size of the mark slab, used for cache
// accounting.
func (l *Loader) SizeBytes() int64 {
	return int64(l.marksCount) * int64(l.width) * markSize
}

// Mark returns the bookmark for the given granule and column position.
func (l *Loader) Mark(granule, col int) (Mark, error) {
	l.once.Do(func() {
		l.marks, l.err = ReadFile(l.path, l.marksCount, l.width)
	})
	if l.err != nil {
		return Mark{}, l.err
	}
	if granule < 0 || granule >= l.marksCount {
		return Mark{}, fmt.Errorf("marks: granule %d out of range [0, %d)", granule, l.marksCount)
	}
	if col < 0 || col >= l.width {
		return Mark{}, fmt.Errorf("marks: column %d out of range [0, %d)", col, l.width)
	}
	return l.marks[granule*l.width+col], nil
}
