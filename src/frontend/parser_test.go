// Tests the recursive-descent parser: tree shapes of the core constructs,
// literal radix recovery and syntax error reporting.

package frontend

import (
	"testing"

	"minicc/src/ir"
)

// parse is a helper that fails the test on a syntax error.
func parse(t *testing.T, src string) *ir.Node {
	t.Helper()
	root, err := Parse(src)
	if err != nil {
		t.Fatalf("parse error: %s", err)
	}
	return root
}

// TestParseFunction verifies the shape of a function definition.
func TestParseFunction(t *testing.T) {
	root := parse(t, "int f(int x, int a[][4]) { return x; }")
	if root.Typ != ir.COMPILE_UNIT || len(root.Children) != 1 {
		t.Fatalf("bad compile unit: %s", root.String())
	}
	f := root.Children[0]
	if f.Typ != ir.FUNC_DEF || len(f.Children) != 4 {
		t.Fatalf("bad function node: %s with %d children", f.String(), len(f.Children))
	}
	if f.Children[0].Typ != ir.LEAF_TYPE || f.Children[0].Data != "int" {
		t.Errorf("bad return type leaf: %s", f.Children[0].String())
	}
	if f.Children[1].Name() != "f" {
		t.Errorf("bad name leaf: %s", f.Children[1].String())
	}

	params := f.Children[2]
	if params.Typ != ir.FUNC_FORMAL_PARAMS || len(params.Children) != 2 {
		t.Fatalf("bad formal parameters: %s", params.String())
	}
	if params.Children[0].Children[1].Typ != ir.LEAF_VAR_ID {
		t.Errorf("first parameter is not scalar: %s", params.Children[0].String())
	}
	arr := params.Children[1].Children[1]
	if arr.Typ != ir.ARRAY_DEF {
		t.Fatalf("second parameter is not an array: %s", arr.String())
	}
	if arr.Children[1].Int() != 0 || arr.Children[2].Int() != 4 {
		t.Errorf("expected elided dimension 0 and dimension 4, got %d and %d",
			arr.Children[1].Int(), arr.Children[2].Int())
	}
	if f.Children[3].Typ != ir.BLOCK {
		t.Errorf("function body is not a block: %s", f.Children[3].String())
	}
}

// TestParsePrototype verifies that a body-less function parses with three
// children and unnamed parameters.
func TestParsePrototype(t *testing.T) {
	root := parse(t, "int h(int, int);")
	h := root.Children[0]
	if h.Typ != ir.FUNC_DEF || len(h.Children) != 3 {
		t.Fatalf("bad prototype node: %s with %d children", h.String(), len(h.Children))
	}
	for _, e1 := range h.Children[2].Children {
		if e1.Children[1].Name() != "" {
			t.Errorf("prototype parameter unexpectedly named %q", e1.Children[1].Name())
		}
	}
}

// TestParsePrecedence verifies that 1 + 2 * 3 < 4 && 5 parses with && at the
// root and * below +.
func TestParsePrecedence(t *testing.T) {
	root := parse(t, "int f() { return 1 + 2 * 3 < 4 && 5; }")
	ret := root.Children[0].Children[3].Children[0]
	if ret.Typ != ir.RETURN {
		t.Fatalf("expected RETURN, got %s", ret.String())
	}
	and := ret.Children[0]
	if and.Typ != ir.LOGICAL_AND {
		t.Fatalf("expected LOGICAL_AND at root, got %s", and.String())
	}
	lt := and.Children[0]
	if lt.Typ != ir.LT {
		t.Fatalf("expected LT under &&, got %s", lt.String())
	}
	add := lt.Children[0]
	if add.Typ != ir.ADD {
		t.Fatalf("expected ADD under <, got %s", add.String())
	}
	if add.Children[1].Typ != ir.MUL {
		t.Errorf("expected MUL under +, got %s", add.Children[1].String())
	}
}

// TestParseRadix verifies literal values and radix recovery.
func TestParseRadix(t *testing.T) {
	root := parse(t, "int f() { return 42 + 052 + 0x2A; }")
	add := root.Children[0].Children[3].Children[0].Children[0]
	// Left-associative: ((42 + 052) + 0x2A).
	hex := add.Children[1]
	oct := add.Children[0].Children[1]
	dec := add.Children[0].Children[0]

	tests := []struct {
		n     *ir.Node
		val   int
		radix int
	}{
		{dec, 42, 10},
		{oct, 42, 8},
		{hex, 42, 16},
	}
	for _, tc := range tests {
		if tc.n.Typ != ir.LEAF_LITERAL_UINT || tc.n.Int() != tc.val || tc.n.Radix != tc.radix {
			t.Errorf("expected literal %d radix %d, got %s radix %d", tc.val, tc.radix, tc.n.String(), tc.n.Radix)
		}
	}
}

// TestParseDanglingElse verifies that else binds to the nearest if.
func TestParseDanglingElse(t *testing.T) {
	root := parse(t, "int f(int x) { if (x) if (x) x = 1; else x = 2; return x; }")
	outer := root.Children[0].Children[3].Children[0]
	if outer.Typ != ir.IF {
		t.Fatalf("outer if must have no else, got %s", outer.String())
	}
	inner := outer.Children[1]
	if inner.Typ != ir.IF_ELSE {
		t.Fatalf("inner if must carry the else, got %s", inner.String())
	}
}

// TestParseErrors verifies that malformed programs are rejected.
func TestParseErrors(t *testing.T) {
	tests := []string{
		"int f() { return 1 }",        // Missing semicolon.
		"int f( { return 1; }",        // Bad parameter list.
		"int f() { if x return 1; }",  // Missing parentheses.
		"int f() { 1 = x; }",          // Bad assignment target.
		"int x = 1;",                  // Global initialiser.
		"void x;",                     // Void variable.
		"int f() { return 0xZZ; }",    // Bad literal.
		"int f() { return 1; ",        // Unterminated block.
	}
	for _, src := range tests {
		if _, err := Parse(src); err == nil {
			t.Errorf("expected a syntax error for %q", src)
		}
	}
}
