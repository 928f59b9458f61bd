// End-to-end tests of the compiler driver: source file in, syntax tree,
// textual IR or assembly out.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"minicc/src/util"
)

// write puts src into a fresh temp file and returns its path.
func write(t *testing.T, src string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "prog.c")
	if err := os.WriteFile(p, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

// TestShowIR drives the compiler in IR mode.
func TestShowIR(t *testing.T) {
	sb := &strings.Builder{}
	opt := util.Options{Src: write(t, "int main() { return 0; }"), ShowIR: true}
	if err := run(opt, sb); err != nil {
		t.Fatalf("compiler error: %s", err)
	}
	if !strings.Contains(sb.String(), "define i32 @main() {") {
		t.Errorf("missing IR function header in:\n%s", sb.String())
	}
}

// TestShowASM drives the compiler in assembly mode.
func TestShowASM(t *testing.T) {
	sb := &strings.Builder{}
	opt := util.Options{Src: write(t, "int g; int main() { g = 1; return g; }"), ShowASM: true}
	if err := run(opt, sb); err != nil {
		t.Fatalf("compiler error: %s", err)
	}
	asm := sb.String()
	for _, want := range []string{".text", "main:", "bx\tlr", ".bss", "g:"} {
		if !strings.Contains(asm, want) {
			t.Errorf("missing %q in:\n%s", want, asm)
		}
	}
}

// TestShowAST drives the compiler in syntax tree mode.
func TestShowAST(t *testing.T) {
	sb := &strings.Builder{}
	opt := util.Options{Src: write(t, "int main() { return 0; }"), ShowAST: true}
	if err := run(opt, sb); err != nil {
		t.Fatalf("compiler error: %s", err)
	}
	for _, want := range []string{"COMPILE_UNIT", "FUNC_DEF", "RETURN"} {
		if !strings.Contains(sb.String(), want) {
			t.Errorf("missing %q in:\n%s", want, sb.String())
		}
	}
}

// TestDiagnosticsExitNonZero verifies that diagnostics surface as a driver
// error.
func TestDiagnosticsExitNonZero(t *testing.T) {
	sb := &strings.Builder{}
	opt := util.Options{Src: write(t, "int f() { return y; }"), ShowIR: true}
	if err := run(opt, sb); err == nil {
		t.Error("expected the driver to report the diagnostic")
	}
}
