package indexread

import (
	"github.com/granitedb/granite/internal/column"
	"github.com/granitedb/granite/internal/observability"

	gerrors "github.com/granitedb/granite/internal/errors"
)

// materialize produces one output column of height equal to the part's
// granule count for a single resolved projection entry.
func materialize(pm *partMarks, req RequestedColumn, stats *observability.ReadStats) (column.Column, error) {
	p := pm.part
	granules := p.Granularity().MarksCount()

	switch req.kind {
	case kindIndexValue:
		// The stored index block already holds one value per granule.
		return p.IndexBlock().ColumnAt(req.indexPos), nil

	case kindPartName:
		return column.NewConstString(p.Name(), granules), nil

	case kindMarkNumber:
		return column.NewIota(granules), nil

	case kindRowsInGranule:
		return column.NewUInt64(p.Granularity().RowCounts()), nil

	case kindMarkBookmark:
		src, present, err := pm.resolve(req.target)
		if err != nil {
			return nil, err
		}
		if !present {
			// The column is absent from this part's layout: emit the
			// type's default pair for every granule, without touching
			// the loader.
			return column.NewDefault(req.Type, granules)
		}
		compressed, decompressed, err := pm.bookmarks(src, stats)
		if err != nil {
			return nil, err
		}
		return column.NewTuple(req.Type, []column.Column{
			column.NewNullableUInt64(compressed, nil),
			column.NewNullableUInt64(decompressed, nil),
		})

	default:
		// Resolution is all-or-nothing up front, so this is unreachable
		// in correct operation.
		return nil, gerrors.UnknownColumn(req.Name)
	}
}
