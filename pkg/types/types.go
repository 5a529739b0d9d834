// Package types defines the logical type system shared by the Granite
// storage and query layers.
package types

import (
	"fmt"
	"strings"
)

// Kind identifies a logical value kind.
type Kind uint8

const (
	KindString Kind = iota
	KindInt64
	KindUInt64
	KindFloat64
	KindTuple
)

// String returns the SQL-ish name of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindInt64:
		return "Int64"
	case KindUInt64:
		return "UInt64"
	case KindFloat64:
		return "Float64"
	case KindTuple:
		return "Tuple"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// TupleField is a named element of a tuple type.
type TupleField struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Type is a logical column type. Nullable is structural: a nullable column
// always carries a validity mask even when every entry is populated.
type Type struct {
	Kind     Kind         `json:"kind"`
	Nullable bool         `json:"nullable,omitempty"`
	Fields   []TupleField `json:"fields,omitempty"`
}

// Scalar type constructors.

func String() Type  { return Type{Kind: KindString} }
func Int64() Type   { return Type{Kind: KindInt64} }
func UInt64() Type  { return Type{Kind: KindUInt64} }
func Float64() Type { return Type{Kind: KindFloat64} }

// Nullable wraps a scalar type with a structural validity mask.
func Nullable(t Type) Type {
	t.Nullable = true
	return t
}

// Tuple builds a tuple type from named fields.
func Tuple(fields ...TupleField) Type {
	return Type{Kind: KindTuple, Fields: fields}
}

// Equal reports whether two types are identical, fields included.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind || t.Nullable != other.Nullable || len(t.Fields) != len(other.Fields) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i].Name != other.Fields[i].Name || !t.Fields[i].Type.Equal(other.Fields[i].Type) {
			return false
		}
	}
	return true
}

// String returns a readable representation, e.g.
// "Tuple(offset_in_compressed_file Nullable(UInt64), ...)".
func (t Type) String() string {
	var base string
	if t.Kind == KindTuple {
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Name + " " + f.Type.String()
		}
		base = "Tuple(" + strings.Join(parts, ", ") + ")"
	} else {
		base = t.Kind.String()
	}
	if t.Nullable {
		return "Nullable(" + base + ")"
	}
	return base
}

// Default returns the default value for the type. For nullable types the
// default is the populated zero value, not null. For tuples it is the tuple
// of field defaults.
func (t Type) Default() interface{} {
	switch t.Kind {
	case KindString:
		return ""
	case KindInt64:
		return int64(0)
	case KindUInt64:
		return uint64(0)
	case KindFloat64:
		return float64(0)
	case KindTuple:
		vals := make([]interface{}, len(t.Fields))
		for i, f := range t.Fields {
			vals[i] = f.Type.Default()
		}
		return vals
	default:
		return nil
	}
}

// ColumnDef defines a single column of a table schema.
type ColumnDef struct {
	// Name is the logical column name.
	Name string `json:"name"`

	// Type is the column's logical type.
	Type Type `json:"type"`
}

// Schema is an ordered list of column definitions.
type Schema []ColumnDef

// Has reports whether the schema contains a column with the given name.
func (s Schema) Has(name string) bool {
	_, ok := s.Position(name)
	return ok
}

// Position returns the ordinal position of the named column.
func (s Schema) Position(name string) (int, bool) {
	for i, c := range s {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of columns.
func (s Schema) Len() int {
	return len(s)
}
