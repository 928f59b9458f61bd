package util

import "testing"

// TestStack exercises push, pop, peek and indexed access.
func TestStack(t *testing.T) {
	s := Stack{}
	if s.Pop() != nil || s.Peek() != nil || s.Size() != 0 {
		t.Error("empty stack must yield nil")
	}

	s.Push(1)
	s.Push(2)
	s.Push(3)
	if s.Size() != 3 {
		t.Errorf("expected size 3, got %d", s.Size())
	}
	if s.Peek() != 3 || s.Get(1) != 3 || s.Get(3) != 1 {
		t.Error("top-down indexing is wrong")
	}
	if s.Get(0) != nil || s.Get(4) != nil {
		t.Error("out of range access must yield nil")
	}
	if s.Pop() != 3 || s.Pop() != 2 || s.Pop() != 1 || s.Pop() != nil {
		t.Error("pop order is wrong")
	}
}

// TestDiagnostics exercises the diagnostic collector and rendering.
func TestDiagnostics(t *testing.T) {
	errs := Errors{}
	errs.Append(nil)
	if errs.Len() != 0 {
		t.Error("nil diagnostics must be ignored")
	}
	errs.Append(Diag(Undefined, 3, "undefined variable %q", "x"))
	if errs.Len() != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", errs.Len())
	}
	want := `line 3: undefined: undefined variable "x"`
	if got := errs.All()[0].Error(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	errs.Flush()
	if errs.Len() != 0 {
		t.Error("flush must empty the collector")
	}
}
