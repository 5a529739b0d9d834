package indexread

import (
	"github.com/granitedb/granite/internal/part"
	"github.com/granitedb/granite/pkg/types"

	gerrors "github.com/granitedb/granite/internal/errors"
)

// Names of the synthetic metadata columns.
const (
	PartNameColumn      = "part_name"
	MarkNumberColumn    = "mark_number"
	RowsInGranuleColumn = "rows_in_granule"

	// markSuffix is the dot-suffix that turns a storage column name into
	// its bookmark pseudo-column.
	markSuffix = "mark"
)

// MarkTupleType is the declared type of bookmark pseudo-columns. Both fields
// are structurally nullable but always populated when marks exist.
func MarkTupleType() types.Type {
	return types.Tuple(
		types.TupleField{Name: "offset_in_compressed_file", Type: types.Nullable(types.UInt64())},
		types.TupleField{Name: "offset_in_decompressed_block", Type: types.Nullable(types.UInt64())},
	)
}

// MarkColumnName returns the bookmark pseudo-column name for a storage
// column.
func MarkColumnName(column string) string {
	return column + "." + markSuffix
}

type columnKind uint8

const (
	kindIndexValue columnKind = iota
	kindPartName
	kindMarkNumber
	kindRowsInGranule
	kindMarkBookmark
)

// RequestedColumn is one resolved entry of a read's projection: an output
// name, its declared type, and which of the five sources fills it.
type RequestedColumn struct {
	Name string
	Type types.Type

	kind     columnKind
	indexPos int    // kindIndexValue: position in the stored index block
	target   string // kindMarkBookmark: underlying storage column
}

// Resolver maps requested column names onto the index table's logical
// schema: primary-key components, the three metadata columns, and, when mark
// exposure is enabled, one bookmark pseudo-column per storage column.
type Resolver struct {
	primaryKey types.Schema
	storage    types.Schema
	withMarks  bool
}

// NewResolver builds a resolver over the source table's primary key and full
// storage schema.
func NewResolver(primaryKey, storage types.Schema, withMarks bool) *Resolver {
	return &Resolver{primaryKey: primaryKey, storage: storage, withMarks: withMarks}
}

// Schema returns the full logical schema of the index table, in declaration
// order.
func (r *Resolver) Schema() types.Schema {
	out := make(types.Schema, 0, len(r.primaryKey)+len(r.storage)+3)
	out = append(out, r.primaryKey...)
	out = append(out,
		types.ColumnDef{Name: PartNameColumn, Type: types.String()},
		types.ColumnDef{Name: MarkNumberColumn, Type: types.UInt64()},
		types.ColumnDef{Name: RowsInGranuleColumn, Type: types.UInt64()},
	)
	if r.withMarks {
		for _, c := range r.storage {
			out = append(out, types.ColumnDef{Name: MarkColumnName(c.Name), Type: MarkTupleType()})
		}
	}
	return out
}

// Resolve maps every requested name to a RequestedColumn. Resolution is
// all-or-nothing: a single unknown name fails the whole call, before any
// part is touched.
func (r *Resolver) Resolve(names []string) ([]RequestedColumn, error) {
	out := make([]RequestedColumn, 0, len(names))
	for _, name := range names {
		col, err := r.resolveOne(name)
		if err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, nil
}

func (r *Resolver) resolveOne(name string) (RequestedColumn, error) {
	if pos, ok := r.primaryKey.Position(name); ok {
		return RequestedColumn{
			Name:     name,
			Type:     r.primaryKey[pos].Type,
			kind:     kindIndexValue,
			indexPos: pos,
		}, nil
	}

	switch name {
	case PartNameColumn:
		return RequestedColumn{Name: name, Type: types.String(), kind: kindPartName}, nil
	case MarkNumberColumn:
		return RequestedColumn{Name: name, Type: types.UInt64(), kind: kindMarkNumber}, nil
	case RowsInGranuleColumn:
		return RequestedColumn{Name: name, Type: types.UInt64(), kind: kindRowsInGranule}, nil
	}

	// Nested-name decomposition happens before suffix matching, so a
	// storage column whose own name contains dots still resolves.
	if r.withMarks {
		if target, suffix := part.SplitNested(name); suffix == markSuffix && r.storage.Has(target) {
			return RequestedColumn{
				Name:   name,
				Type:   MarkTupleType(),
				kind:   kindMarkBookmark,
				target: target,
			}, nil
		}
	}

	return RequestedColumn{}, gerrors.UnknownColumn(name)
}

// Underlying returns the names of the storage columns a resolved projection
// actually touches. Access control runs against these, not against the
// synthetic output names.
func (r *Resolver) Underlying(cols []RequestedColumn) []string {
	seen := make(map[string]bool, len(cols))
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, c := range cols {
		switch c.kind {
		case kindIndexValue:
			add(c.Name)
		case kindMarkBookmark:
			add(c.target)
		}
	}
	return out
}
