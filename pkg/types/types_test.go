package types

import "testing"

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{String(), "String"},
		{UInt64(), "UInt64"},
		{Nullable(UInt64()), "Nullable(UInt64)"},
		{
			Tuple(
				TupleField{Name: "offset_in_compressed_file", Type: Nullable(UInt64())},
				TupleField{Name: "offset_in_decompressed_block", Type: Nullable(UInt64())},
			),
			"Tuple(offset_in_compressed_file Nullable(UInt64), offset_in_decompressed_block Nullable(UInt64))",
		},
	}

	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestTypeEqual(t *testing.T) {
	a := Tuple(TupleField{Name: "x", Type: Nullable(UInt64())})
	b := Tuple(TupleField{Name: "x", Type: Nullable(UInt64())})
	c := Tuple(TupleField{Name: "y", Type: Nullable(UInt64())})

	if !a.Equal(b) {
		t.Error("identical tuple types should be equal")
	}
	if a.Equal(c) {
		t.Error("tuples with different field names should not be equal")
	}
	if UInt64().Equal(Nullable(UInt64())) {
		t.Error("nullable and plain types should not be equal")
	}
}

func TestTypeDefault(t *testing.T) {
	if d := String().Default(); d != "" {
		t.Errorf("String default = %v, want empty string", d)
	}
	if d := UInt64().Default(); d != uint64(0) {
		t.Errorf("UInt64 default = %v, want 0", d)
	}

	// Nullable default is the populated zero value, not null.
	if d := Nullable(UInt64()).Default(); d != uint64(0) {
		t.Errorf("Nullable(UInt64) default = %v, want 0", d)
	}

	tup := Tuple(
		TupleField{Name: "a", Type: Nullable(UInt64())},
		TupleField{Name: "b", Type: Nullable(UInt64())},
	)
	vals, ok := tup.Default().([]interface{})
	if !ok || len(vals) != 2 {
		t.Fatalf("tuple default = %v, want two-element slice", tup.Default())
	}
	if vals[0] != uint64(0) || vals[1] != uint64(0) {
		t.Errorf("tuple default = %v, want [0 0]", vals)
	}
}

func TestSchemaLookup(t *testing.T) {
	s := Schema{
		{Name: "id", Type: Int64()},
		{Name: "event_time", Type: UInt64()},
	}

	if !s.Has("id") || s.Has("missing") {
		t.Error("Has lookup mismatch")
	}
	pos, ok := s.Position("event_time")
	if !ok || pos != 1 {
		t.Errorf("Position(event_time) = %d, %v; want 1, true", pos, ok)
	}
	names := s.Names()
	if len(names) != 2 || names[0] != "id" || names[1] != "event_time" {
		t.Errorf("Names() = %v", names)
	}
}
