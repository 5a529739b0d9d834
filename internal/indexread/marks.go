package indexread

import (
	"github.com/granitedb/granite/internal/marks"
	"github.com/granitedb/granite/internal/observability"
	"github.com/granitedb/granite/internal/part"

	gerrors "github.com/granitedb/granite/internal/errors"
)

// markSource addresses one column's bookmarks inside a loader: the loader
// handle plus the column's position within each mark row.
type markSource struct {
	loader *marks.Loader
	col    int
}

// partMarks resolves bookmark sources for one part. Compact parts share a
// single loader across all columns; it is created on first use and reused
// for the rest of the part.
type partMarks struct {
	part   *part.Part
	cache  *marks.Cache
	shared *marks.Loader // compact layout only, lazily created
}

// resolve decides whether the logical column has recorded bookmarks in this
// part and, if so, which loader and column offset serve them. Absence is not
// an error; an unrecognized layout is.
func (pm *partMarks) resolve(column string) (markSource, bool, error) {
	p := pm.part
	switch p.Layout() {
	case part.LayoutWide:
		// One stream per column; the loader sees a single-column mark file.
		stream, ok := p.StreamNameOrHash(column)
		if !ok {
			return markSource{}, false, nil
		}
		loader := pm.cache.GetOrCreate(marks.Key(p.Name(), stream, 1), func() *marks.Loader {
			return marks.NewLoader(p.MarksFilePath(stream), p.Granularity().MarksCount(), 1)
		})
		return markSource{loader: loader, col: 0}, true, nil

	case part.LayoutCompact:
		// All columns share one stream; a column is present iff it is in
		// the part's column list, at its ordinal position.
		pos, ok := p.ColumnPosition(part.UnescapeForFileName(column))
		if !ok {
			return markSource{}, false, nil
		}
		if pm.shared == nil {
			width := len(p.Columns())
			pm.shared = pm.cache.GetOrCreate(marks.Key(p.Name(), part.DataFileName, width), func() *marks.Loader {
				return marks.NewLoader(p.MarksFilePath(part.DataFileName), p.Granularity().MarksCount(), width)
			})
		}
		return markSource{loader: pm.shared, col: pos}, true, nil

	default:
		return markSource{}, false, gerrors.Newf(gerrors.ErrCategoryPart, gerrors.CodeUnsupportedLayout,
			"part %s has unsupported layout %s", p.Name(), p.Layout())
	}
}

// bookmarks loads the full per-granule bookmark sequence for a source,
// one loader query per granule.
func (pm *partMarks) bookmarks(src markSource, stats *observability.ReadStats) ([]uint64, []uint64, error) {
	count := pm.part.Granularity().MarksCount()
	compressed := make([]uint64, count)
	decompressed := make([]uint64, count)
	for i := 0; i < count; i++ {
		m, err := src.loader.Mark(i, src.col)
		if err != nil {
			return nil, nil, gerrors.Wrap(gerrors.ErrCategoryPart, gerrors.CodeMarksLoadFailed,
				"load marks for part "+pm.part.Name(), err)
		}
		if stats != nil {
			stats.MarkLoads.Add(1)
		}
		compressed[i] = m.OffsetInCompressedFile
		decompressed[i] = m.OffsetInDecompressedBlock
	}
	return compressed, decompressed, nil
}
