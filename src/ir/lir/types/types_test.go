package types

import "testing"

// TestSizes verifies the size rules of the type sum.
func TestSizes(t *testing.T) {
	tests := []struct {
		typ  *Type
		want int
	}{
		{VoidType, 0},
		{BoolType, 4},
		{IntType, 4},
		{PointerTo(IntType), 4},
		{ArrayOf(IntType, 6), 24},
		{ArrayOf(ArrayOf(IntType, 4), 3), 48},
		{ArrayOf(ArrayOf(IntType, 4), 0), 4}, // Array-pointer parameter.
	}
	for _, tc := range tests {
		if got := tc.typ.Size(); got != tc.want {
			t.Errorf("size of %s: expected %d, got %d", tc.typ.String(), tc.want, got)
		}
	}
}

// TestDims verifies dimension extraction of nested array types.
func TestDims(t *testing.T) {
	typ := ArrayOf(ArrayOf(ArrayOf(IntType, 5), 4), 3)
	dims := typ.Dims()
	if len(dims) != 3 || dims[0] != 3 || dims[1] != 4 || dims[2] != 5 {
		t.Errorf("expected dimensions [3 4 5], got %v", dims)
	}
	if typ.Base() != IntType {
		t.Errorf("expected base type i32, got %s", typ.Base().String())
	}
	if len(IntType.Dims()) != 0 {
		t.Error("scalar types must have no dimensions")
	}
}

// TestParamPointer verifies the decayed array parameter predicate.
func TestParamPointer(t *testing.T) {
	if !ArrayOf(IntType, 0).IsParamPointer() {
		t.Error("count 0 array must be a parameter pointer")
	}
	if ArrayOf(IntType, 3).IsParamPointer() {
		t.Error("sized array must not be a parameter pointer")
	}
	if IntType.IsParamPointer() || !IntType.IsScalar() {
		t.Error("i32 must be a plain scalar")
	}
}
