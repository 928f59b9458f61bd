// print.go renders the textual form of the IR. The output is deterministic
// and stable; it is the oracle the golden-file tests compare against.

package lir

import (
	"fmt"
	"minicc/src/ir/lir/types"
	"strings"
)

// ---------------------
// ----- Functions -----
// ---------------------

// FormatLabel returns the textual form of a label name, prepending a leading
// dot if the name does not already carry one.
func FormatLabel(name string) string {
	if strings.HasPrefix(name, ".") {
		return name
	}
	return "." + name
}

// String returns the textual IR representation of the module: global
// declarations first, then every function in definition order.
func (m *Module) String() string {
	sb := strings.Builder{}
	for _, e1 := range m.globals {
		sb.WriteString(globalString(e1))
		sb.WriteRune('\n')
	}
	if len(m.globals) > 0 {
		sb.WriteRune('\n')
	}
	for _, e1 := range m.order {
		sb.WriteString(e1.String())
		sb.WriteRune('\n')
	}
	return sb.String()
}

// globalString renders a global declaration. Arrays list their dimensions,
// scalars their zero initialiser.
func globalString(g *Value) string {
	if g.typ.Kind() == types.Array {
		sb := strings.Builder{}
		sb.WriteString(fmt.Sprintf("declare %s @%s", g.typ.Base().String(), g.name))
		for _, d := range g.typ.Dims() {
			sb.WriteString(fmt.Sprintf("[%d]", d))
		}
		return sb.String()
	}
	return fmt.Sprintf("declare %s @%s = 0", g.typ.String(), g.name)
}

// String returns the textual IR representation of Function f. Prototypes
// render as a single declare line.
func (f *Function) String() string {
	sb := strings.Builder{}
	ptypes := make([]string, len(f.params))
	if !f.defined {
		// External declaration: signature only, parameter names omitted.
		for i1, e1 := range f.params {
			ptypes[i1] = e1.typ.String()
		}
		return fmt.Sprintf("declare %s @%s(%s)\n", f.typ.String(), f.name, strings.Join(ptypes, ", "))
	}
	for i1, e1 := range f.params {
		ptypes[i1] = fmt.Sprintf("%s %s", e1.typ.String(), e1.Name())
	}
	sb.WriteString(fmt.Sprintf("define %s @%s(%s) {\n", f.typ.String(), f.name, strings.Join(ptypes, ", ")))
	for _, e1 := range f.instructions {
		s := e1.String()
		if len(s) == 0 || e1.dead {
			continue
		}
		if e1.op != OpLabel {
			sb.WriteRune('\t')
		}
		sb.WriteString(s)
		sb.WriteRune('\n')
	}
	sb.WriteString("}\n")
	return sb.String()
}

// String returns the textual IR representation of a single instruction.
// Rendering has no side effects; printing twice yields identical text.
func (inst *Instruction) String() string {
	switch inst.op {
	case OpLabel:
		return FormatLabel(inst.label) + ":"
	case OpEntry:
		// The entry marker carries no textual form; the label that follows
		// it locates the function head.
		return ""
	case OpExit:
		if inst.a != nil {
			return "ret " + inst.a.Name()
		}
		return "ret"
	case OpMove:
		switch inst.mode {
		case ArrayWrite:
			return fmt.Sprintf("*%s = %s", inst.a.Name(), inst.b.Name())
		case ArrayRead:
			return fmt.Sprintf("%s = *%s", inst.a.Name(), inst.b.Name())
		default:
			return fmt.Sprintf("%s = %s", inst.a.Name(), inst.b.Name())
		}
	case OpBinArith:
		if inst.aop == Neg {
			return fmt.Sprintf("%s = neg %s", inst.res.Name(), inst.a.Name())
		}
		return fmt.Sprintf("%s = %s %s, %s", inst.res.Name(), inst.aop.String(), inst.a.Name(), inst.b.Name())
	case OpIntCmp:
		return fmt.Sprintf("%s = icmp %s %s, %s", inst.res.Name(), inst.cond.String(), inst.a.Name(), inst.b.Name())
	case OpBranch:
		return fmt.Sprintf("br label %s", FormatLabel(inst.target))
	case OpBranchCond:
		return fmt.Sprintf("bc %s, label %s, label %s", inst.a.Name(), FormatLabel(inst.target), FormatLabel(inst.ftgt))
	case OpCall:
		args := make([]string, len(inst.args))
		for i1, e1 := range inst.args {
			args[i1] = e1.Name()
		}
		if inst.res != nil {
			return fmt.Sprintf("%s = call @%s(%s)", inst.res.Name(), inst.callee.name, strings.Join(args, ", "))
		}
		return fmt.Sprintf("call @%s(%s)", inst.callee.name, strings.Join(args, ", "))
	}
	return fmt.Sprintf("<bad opcode %d>", inst.op)
}
