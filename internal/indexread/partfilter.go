package indexread

import (
	"github.com/granitedb/granite/internal/column"
	"github.com/granitedb/granite/internal/part"
	"github.com/granitedb/granite/internal/query/filter"
	"github.com/granitedb/granite/internal/query/parser"
)

// FilterParts narrows the part list to those whose name satisfies the
// expression. An expression that never mentions part_name returns the list
// unchanged without building anything; the unfiltered read is the common
// case and pays nothing here. Filtering to zero parts is not an error.
func FilterParts(parts []*part.Part, expr parser.Expression) ([]*part.Part, error) {
	if expr == nil || !referencesPartName(expr) {
		return parts, nil
	}

	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = p.Name()
	}
	block := column.NewBlock()
	if err := block.Add(PartNameColumn, column.NewString(names)); err != nil {
		return nil, err
	}

	rows, err := filter.Rows(block, expr)
	if err != nil {
		return nil, err
	}

	surviving := make(map[string]bool, len(rows))
	for _, row := range rows {
		surviving[names[row]] = true
	}

	out := make([]*part.Part, 0, len(rows))
	for _, p := range parts {
		if surviving[p.Name()] {
			out = append(out, p)
		}
	}
	return out, nil
}

func referencesPartName(expr parser.Expression) bool {
	for _, name := range parser.ReferencedColumns(expr) {
		if name == PartNameColumn {
			return true
		}
	}
	return false
}
