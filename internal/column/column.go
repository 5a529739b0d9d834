// Package column provides the in-memory columnar representation used by the
// Granite read path: typed vectors, named blocks, and result chunks.
package column

import (
	"fmt"

	"github.com/granitedb/granite/pkg/types"
)

// Column is a fully materialized vector of values sharing one logical type.
type Column interface {
	// Type returns the logical type of the column.
	Type() types.Type

	// Len returns the number of rows.
	Len() int

	// Value returns the value at row i. Nullable columns return nil for
	// null entries; tuple columns return a []interface{} of field values.
	Value(i int) interface{}
}

// StringColumn is a vector of strings.
type StringColumn struct {
	Data []string
}

// NewString creates a string column from a value slice.
func NewString(data []string) *StringColumn {
	return &StringColumn{Data: data}
}

// NewConstString creates a string column of n rows all holding the same value.
func NewConstString(value string, n int) *StringColumn {
	data := make([]string, n)
	for i := range data {
		data[i] = value
	}
	return &StringColumn{Data: data}
}

func (c *StringColumn) Type() types.Type        { return types.String() }
func (c *StringColumn) Len() int                { return len(c.Data) }
func (c *StringColumn) Value(i int) interface{} { return c.Data[i] }

// Int64Column is a vector of signed 64-bit integers.
type Int64Column struct {
	Data []int64
}

// NewInt64 creates an int64 column from a value slice.
func NewInt64(data []int64) *Int64Column {
	return &Int64Column{Data: data}
}

func (c *Int64Column) Type() types.Type        { return types.Int64() }
func (c *Int64Column) Len() int                { return len(c.Data) }
func (c *Int64Column) Value(i int) interface{} { return c.Data[i] }

// UInt64Column is a vector of unsigned 64-bit integers.
type UInt64Column struct {
	Data []uint64
}

// NewUInt64 creates a uint64 column from a value slice.
func NewUInt64(data []uint64) *UInt64Column {
	return &UInt64Column{Data: data}
}

// NewIota creates a uint64 column holding the dense sequence 0..n-1.
func NewIota(n int) *UInt64Column {
	data := make([]uint64, n)
	for i := range data {
		data[i] = uint64(i)
	}
	return &UInt64Column{Data: data}
}

func (c *UInt64Column) Type() types.Type        { return types.UInt64() }
func (c *UInt64Column) Len() int                { return len(c.Data) }
func (c *UInt64Column) Value(i int) interface{} { return c.Data[i] }

// Float64Column is a vector of 64-bit floats.
type Float64Column struct {
	Data []float64
}

// NewFloat64 creates a float64 column from a value slice.
func NewFloat64(data []float64) *Float64Column {
	return &Float64Column{Data: data}
}

func (c *Float64Column) Type() types.Type        { return types.Float64() }
func (c *Float64Column) Len() int                { return len(c.Data) }
func (c *Float64Column) Value(i int) interface{} { return c.Data[i] }

// NullableUInt64Column is a uint64 vector with a validity mask. The mask is
// structural: a column may be fully populated and still nullable-typed.
type NullableUInt64Column struct {
	Data  []uint64
	Valid []bool
}

// NewNullableUInt64 creates a nullable uint64 column. A nil valid slice means
// every entry is populated.
func NewNullableUInt64(data []uint64, valid []bool) *NullableUInt64Column {
	if valid == nil {
		valid = make([]bool, len(data))
		for i := range valid {
			valid[i] = true
		}
	}
	return &NullableUInt64Column{Data: data, Valid: valid}
}

func (c *NullableUInt64Column) Type() types.Type { return types.Nullable(types.UInt64()) }
func (c *NullableUInt64Column) Len() int         { return len(c.Data) }

func (c *NullableUInt64Column) Value(i int) interface{} {
	if !c.Valid[i] {
		return nil
	}
	return c.Data[i]
}

// TupleColumn is a product of parallel field columns of equal length.
type TupleColumn struct {
	typ    types.Type
	fields []Column
}

// NewTuple creates a tuple column from its declared type and field columns.
// Field count and lengths must agree with the type.
func NewTuple(typ types.Type, fields []Column) (*TupleColumn, error) {
	if typ.Kind != types.KindTuple {
		return nil, fmt.Errorf("column: tuple column requires a tuple type, got %s", typ)
	}
	if len(fields) != len(typ.Fields) {
		return nil, fmt.Errorf("column: tuple type has %d fields, got %d columns", len(typ.Fields), len(fields))
	}
	for i := 1; i < len(fields); i++ {
		if fields[i].Len() != fields[0].Len() {
			return nil, fmt.Errorf("column: tuple field %d length %d != %d", i, fields[i].Len(), fields[0].Len())
		}
	}
	return &TupleColumn{typ: typ, fields: fields}, nil
}

func (c *TupleColumn) Type() types.Type { return c.typ }

func (c *TupleColumn) Len() int {
	if len(c.fields) == 0 {
		return 0
	}
	return c.fields[0].Len()
}

func (c *TupleColumn) Value(i int) interface{} {
	vals := make([]interface{}, len(c.fields))
	for j, f := range c.fields {
		vals[j] = f.Value(i)
	}
	return vals
}

// Field returns the j-th field column.
func (c *TupleColumn) Field(j int) Column {
	return c.fields[j]
}

// NewDefault creates a column of n rows all holding the type's default value.
// For nullable types the entries are populated zeros, not nulls.
func NewDefault(typ types.Type, n int) (Column, error) {
	if typ.Nullable {
		if typ.Kind != types.KindUInt64 {
			return nil, fmt.Errorf("column: unsupported nullable kind %s", typ.Kind)
		}
		return NewNullableUInt64(make([]uint64, n), nil), nil
	}
	switch typ.Kind {
	case types.KindString:
		return &StringColumn{Data: make([]string, n)}, nil
	case types.KindInt64:
		return &Int64Column{Data: make([]int64, n)}, nil
	case types.KindUInt64:
		return &UInt64Column{Data: make([]uint64, n)}, nil
	case types.KindFloat64:
		return &Float64Column{Data: make([]float64, n)}, nil
	case types.KindTuple:
		fields := make([]Column, len(typ.Fields))
		for i, f := range typ.Fields {
			col, err := NewDefault(f.Type, n)
			if err != nil {
				return nil, err
			}
			fields[i] = col
		}
		return NewTuple(typ, fields)
	default:
		return nil, fmt.Errorf("column: unsupported kind %s", typ.Kind)
	}
}

// FromValues builds a column of the given scalar type from untyped values.
// Used when decoding the JSON-encoded primary index of a part.
func FromValues(typ types.Type, values []interface{}) (Column, error) {
	switch typ.Kind {
	case types.KindString:
		data := make([]string, len(values))
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("column: row %d: expected string, got %T", i, v)
			}
			data[i] = s
		}
		return NewString(data), nil
	case types.KindInt64:
		data := make([]int64, len(values))
		for i, v := range values {
			n, err := toInt64(v)
			if err != nil {
				return nil, fmt.Errorf("column: row %d: %w", i, err)
			}
			data[i] = n
		}
		return NewInt64(data), nil
	case types.KindUInt64:
		data := make([]uint64, len(values))
		for i, v := range values {
			n, err := toInt64(v)
			if err != nil {
				return nil, fmt.Errorf("column: row %d: %w", i, err)
			}
			data[i] = uint64(n)
		}
		return NewUInt64(data), nil
	case types.KindFloat64:
		data := make([]float64, len(values))
		for i, v := range values {
			f, ok := toFloat64(v)
			if !ok {
				return nil, fmt.Errorf("column: row %d: expected number, got %T", i, v)
			}
			data[i] = f
		}
		return NewFloat64(data), nil
	default:
		return nil, fmt.Errorf("column: cannot build %s column from values", typ)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
