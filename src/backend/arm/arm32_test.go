// Tests for the ARM32 backend: prologue/epilogue shapes, compare/branch
// fusion, the AAPCS call sequence and the large-offset macros.

package arm

import (
	"strings"
	"testing"

	"minicc/src/frontend"
	"minicc/src/ir/lir"
	"minicc/src/ir/lir/types"
	"minicc/src/util"
)

// compile parses, lowers and selects src into an assembly listing.
func compile(t *testing.T, src string) string {
	t.Helper()
	root, err := frontend.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %s", err)
	}
	m, errs := lir.GenLIR(util.Options{}, root)
	if errs.Len() > 0 {
		t.Fatalf("unexpected diagnostics: %v", errs.All())
	}
	wr := util.NewWriter(nil)
	if err := GenArm32(util.Options{}, m, wr); err != nil {
		t.Fatalf("selection error: %s", err)
	}
	return wr.String()
}

// TestMainReturnZero verifies the leaf-function epilogue of the smallest
// program: the constant lands in r0 and the function ends with
// mov sp, fp / bx lr without touching any callee-saved register.
func TestMainReturnZero(t *testing.T) {
	asm := compile(t, "int main() { return 0; }")

	if !strings.Contains(asm, "\tmov\tr0, #0\n") {
		t.Errorf("missing return value load in:\n%s", asm)
	}
	if !strings.HasSuffix(asm, "\tmov\tsp, fp\n\tbx\tlr\n") {
		t.Errorf("missing epilogue at end of:\n%s", asm)
	}
	if strings.Contains(asm, "push") {
		t.Errorf("leaf function with empty frame must not push:\n%s", asm)
	}
	if !strings.Contains(asm, "\t.global\tmain\n") {
		t.Errorf("missing .global directive in:\n%s", asm)
	}
}

// TestFusion verifies compare/branch fusion: exactly one cmp, a single
// conditional branch plus unconditional branch, and no materialised boolean.
func TestFusion(t *testing.T) {
	asm := compile(t, "int f(int x) { if (x < 0) return -x; else return x; }")

	if n := strings.Count(asm, "\tcmp\t"); n != 1 {
		t.Errorf("expected exactly 1 cmp, got %d:\n%s", n, asm)
	}
	if !strings.Contains(asm, "\tcmp\tr4, #0\n\tblt\t.L1_f\n\tb\t.L2_f\n") {
		t.Errorf("missing fused compare/branch pair in:\n%s", asm)
	}
	if strings.Contains(asm, "movlt") || strings.Contains(asm, "movge") {
		t.Errorf("fused compare must not materialise its result:\n%s", asm)
	}
}

// TestUnfusedCompare verifies boolean materialisation when the compare result
// is not consumed by a branch.
func TestUnfusedCompare(t *testing.T) {
	asm := compile(t, "int f(int x) { return x < 3; }")

	if !strings.Contains(asm, "\tcmp\tr4, #3\n") {
		t.Errorf("missing immediate compare in:\n%s", asm)
	}
	if !strings.Contains(asm, "\tmovlt\tr4, #1\n\tmovge\tr4, #0\n") {
		t.Errorf("missing boolean materialisation in:\n%s", asm)
	}
}

// TestUnfusedCondBranch verifies the fallback conditional branch when a label
// separates the compare from its consumer.
func TestUnfusedCondBranch(t *testing.T) {
	m := lir.CreateModule("")
	f, _ := m.CreateFunction(types.IntType, "t")
	f.CreateEntry()
	f.CreateLabel(lir.LabelEntry)
	c := f.CreateIntCmp(lir.Lt, m.CreateConstant(1), m.CreateConstant(2))
	f.CreateLabel("L1") // Breaks the single-instruction lookahead.
	f.CreateCondBranch(c.Result(), "L2", "L3")
	f.CreateLabel("L2")
	f.CreateLabel("L3")
	f.CreateLabel(lir.LabelExit)
	f.CreateExit(nil)

	wr := util.NewWriter(nil)
	if err := genFunction(f, wr); err != nil {
		t.Fatalf("selection error: %s", err)
	}
	asm := wr.String()
	if !strings.Contains(asm, "\tmovlt\t") {
		t.Errorf("unfused compare must materialise its result:\n%s", asm)
	}
	if !strings.Contains(asm, "\tbne\t.L2_t\n\tb\t.L3_t\n") {
		t.Errorf("missing zero test branch pair in:\n%s", asm)
	}
}

// TestCallSixArgs verifies the AAPCS call sequence: four register arguments,
// two stack arguments in the outgoing area, the frame sized to carry them
// and the result moved out of r0.
func TestCallSixArgs(t *testing.T) {
	src := `
int h(int a, int b, int c, int d, int e, int f);
int k() { return h(1, 2, 3, 4, 5, 6); }
`
	root, err := frontend.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %s", err)
	}
	m, errs := lir.GenLIR(util.Options{}, root)
	if errs.Len() > 0 {
		t.Fatalf("unexpected diagnostics: %v", errs.All())
	}
	wr := util.NewWriter(nil)
	if err := GenArm32(util.Options{}, m, wr); err != nil {
		t.Fatalf("selection error: %s", err)
	}
	asm := wr.String()

	for _, want := range []string{
		"\tmov\tr0, #1\n",
		"\tmov\tr1, #2\n",
		"\tmov\tr2, #3\n",
		"\tmov\tr3, #4\n",
		"\tstr\tr4, [sp, #0]\n",
		"\tstr\tr4, [sp, #4]\n",
		"\tbl\th\n",
		"\tmov\tr4, r0\n",
	} {
		if !strings.Contains(asm, want) {
			t.Errorf("missing %q in:\n%s", want, asm)
		}
	}
	// Outgoing area of 24 bytes plus the result temporary, aligned: 32.
	if !strings.Contains(asm, "\tsub\tsp, sp, #32\n") {
		t.Errorf("frame does not reserve the outgoing-argument area:\n%s", asm)
	}
	// The prototype must not emit a body.
	if strings.Contains(asm, "\nh:") {
		t.Errorf("prototype h must not be emitted:\n%s", asm)
	}
	if !strings.Contains(asm, "\tpush\t{r4, fp, lr}\n") {
		t.Errorf("caller must save lr and its scratch register:\n%s", asm)
	}
	// The two stack arguments were spilled through explicit memory slots.
	k := m.GetFunction("k")
	if len(k.TempMems()) != 2 {
		t.Errorf("expected 2 spill slots, got %d", len(k.TempMems()))
	}
	for i1, e1 := range k.TempMems() {
		if e1.Offset() != i1*4 {
			t.Errorf("spill slot %d at offset %d", i1, e1.Offset())
		}
	}
}

// TestParamSpill verifies the prologue: register parameters spill to their
// frame slots and the fifth parameter is copied down from the caller frame.
func TestParamSpill(t *testing.T) {
	asm := compile(t, "int f(int a, int b, int c, int d, int e) { return e; }")

	for _, want := range []string{
		"\tstr\tr0, [fp, #-4]\n",
		"\tstr\tr1, [fp, #-8]\n",
		"\tstr\tr2, [fp, #-12]\n",
		"\tstr\tr3, [fp, #-16]\n",
		"\tldr\tr0, [fp, #8]\n",
		"\tstr\tr0, [fp, #-20]\n",
		"\tldr\tr0, [fp, #-20]\n",
	} {
		if !strings.Contains(asm, want) {
			t.Errorf("missing %q in:\n%s", want, asm)
		}
	}
	if !strings.Contains(asm, "\tpush\t{fp, lr}\n") {
		t.Errorf("framed function must save fp and lr:\n%s", asm)
	}
}

// TestGlobalArray verifies global addressing and the bss record.
func TestGlobalArray(t *testing.T) {
	asm := compile(t, "int a[3][4]; int g(int i, int j) { return a[i][j]; }")

	if !strings.Contains(asm, "\tldr\tr4, =a\n") {
		t.Errorf("missing global address load in:\n%s", asm)
	}
	if !strings.Contains(asm, "\tldr\tr4, [r4, #0]\n") {
		t.Errorf("missing element load at computed address in:\n%s", asm)
	}
	if !strings.Contains(asm, "\t.bss\n") || !strings.Contains(asm, "a:\n\t.space\t48\n") {
		t.Errorf("missing bss record for the global array in:\n%s", asm)
	}
}

// TestLargeFrameOffsets verifies the r9 fallback of the load/store-variable
// macros and the frame allocation of a large frame.
func TestLargeFrameOffsets(t *testing.T) {
	asm := compile(t, "int f() { int buf[2000]; buf[0] = 1; return buf[1999]; }")

	if !strings.Contains(asm, "\tldr\tr9, =8024\n\tsub\tsp, sp, r9\n") {
		t.Errorf("large frame must allocate through r9:\n%s", asm)
	}
	if !strings.Contains(asm, "\tldr\tr9, =8000\n\tsub\tr4, fp, r9\n") {
		t.Errorf("large array base must materialise through r9:\n%s", asm)
	}
	if !strings.Contains(asm, "[fp, r9]") {
		t.Errorf("large frame offsets must use register offsets:\n%s", asm)
	}
}

// TestModuloExpansion verifies the sdiv/mul/sub expansion of the remainder.
func TestModuloExpansion(t *testing.T) {
	asm := compile(t, "int f(int a, int b) { return a % b; }")

	if !strings.Contains(asm, "\tsdiv\tr6, r4, r5\n\tmul\tr6, r6, r5\n\tsub\tr4, r4, r6\n") {
		t.Errorf("missing remainder expansion in:\n%s", asm)
	}
}

// TestDeadInstructionsSkipped verifies that retired instructions emit
// nothing.
func TestDeadInstructionsSkipped(t *testing.T) {
	root, err := frontend.Parse("int f() { int x = 7; return 0; }")
	if err != nil {
		t.Fatal(err)
	}
	m, _ := lir.GenLIR(util.Options{}, root)
	f := m.GetFunction("f")
	for _, e1 := range f.Instructions() {
		if e1.Op() == lir.OpMove && e1.Operand2().Kind() == lir.Constant && e1.Operand2().Int() == 7 {
			e1.Retire()
		}
	}
	wr := util.NewWriter(nil)
	if err := GenArm32(util.Options{}, m, wr); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(wr.String(), "#7") {
		t.Errorf("retired instruction still emitted:\n%s", wr.String())
	}
}

// TestRegisterFile exercises the allocator: pool order, exhaustion, freeing
// and occupant tracking.
func TestRegisterFile(t *testing.T) {
	rf := CreateRegisterFile()

	want := []int{r4, r5, r6, r7, r10}
	got := make([]int, 0, len(want))
	for {
		r := rf.Allocate()
		if r == nil {
			break
		}
		got = append(got, r.Id())
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d scratch registers, got %d", len(want), len(got))
	}
	for i1 := range want {
		if got[i1] != want[i1] {
			t.Errorf("allocation order: expected r%d, got r%d", want[i1], got[i1])
		}
	}

	rf.Free(rf.Get(r5))
	if r := rf.Allocate(); r == nil || r.Id() != r5 {
		t.Error("freed register was not handed out again")
	}

	m := lir.CreateModule("")
	f, _ := m.CreateFunction(types.IntType, "t")
	v := f.NewLocal(types.IntType, "v", 1)
	rf = CreateRegisterFile()
	r := rf.AllocateFor(v)
	if v.Reg() != r.Id() {
		t.Error("occupant binding not recorded")
	}
	rf.FreeValue(v)
	if v.Reg() != lir.NoReg {
		t.Error("occupant binding not cleared on free")
	}
	if len(rf.Used()) != 1 {
		t.Errorf("expected 1 used register, got %d", len(rf.Used()))
	}
}
