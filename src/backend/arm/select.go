// select.go walks the linear IR of one function and translates every
// instruction to ARM32 assembly. The selector keeps a single instruction of
// lookahead so that an integer compare whose result feeds the following
// conditional branch fuses into one cmp and a conditional branch pair.

package arm

import (
	"fmt"

	"minicc/src/backend/regfile"
	"minicc/src/ir/lir"
	"minicc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// selector holds the per-function selection state.
type selector struct {
	e      *emitter
	rf     regfile.RegisterFile
	f      *lir.Function
	pushed []int // Registers saved by the prologue, fixed at the exit.
}

// ---------------------
// ----- Functions -----
// ---------------------

// genFunction selects assembly for one function into wr. The body is emitted
// into a scratch buffer first so that the prologue can name exactly the
// registers the allocator handed out.
func genFunction(f *lir.Function, wr *util.Writer) error {
	body := util.NewWriter(nil)
	s := &selector{
		e:  newEmitter(f, body),
		rf: CreateRegisterFile(),
		f:  f,
	}

	insts := f.Instructions()
	if len(insts) == 0 || insts[0].Op() != lir.OpEntry {
		return fmt.Errorf("function %s does not start with its entry marker", f.Name())
	}

	sawExit := false
	for i1 := 0; i1 < len(insts); i1++ {
		inst := insts[i1]
		if inst.Dead() {
			continue
		}
		switch inst.Op() {
		case lir.OpEntry:
			// The prologue is emitted after the body, once register use is known.
		case lir.OpLabel:
			body.Label(s.e.label(inst.LabelName()))
		case lir.OpBranch:
			// A branch to the label that immediately follows falls through.
			j := i1 + 1
			for j < len(insts) && insts[j].Dead() {
				j++
			}
			if j < len(insts) && insts[j].Op() == lir.OpLabel && insts[j].LabelName() == inst.Target() {
				continue
			}
			body.Ins1("b", s.e.label(inst.Target()))
		case lir.OpExit:
			if err := s.genExit(inst); err != nil {
				return err
			}
			sawExit = true
		case lir.OpMove:
			if err := s.genMove(inst); err != nil {
				return err
			}
		case lir.OpBinArith:
			if err := s.genBinArith(inst); err != nil {
				return err
			}
		case lir.OpIntCmp:
			if j := fusedBranch(insts, i1); j > 0 {
				if err := s.genFusedCompare(inst, insts[j]); err != nil {
					return err
				}
				i1 = j
			} else if err := s.genCompare(inst); err != nil {
				return err
			}
		case lir.OpBranchCond:
			if err := s.genCondBranch(inst); err != nil {
				return err
			}
		case lir.OpCall:
			if err := s.genCall(inst); err != nil {
				return err
			}
		default:
			return fmt.Errorf("function %s: unknown opcode %d", f.Name(), inst.Op())
		}
	}
	if !sawExit {
		return fmt.Errorf("function %s has no exit", f.Name())
	}

	// Function header and prologue, then the buffered body.
	wr.WriteString("\n")
	wr.Write("\t.global\t%s\n", f.Name())
	wr.Write("\t.type\t%s, %%function\n", f.Name())
	wr.Label(f.Name())
	s.e.wr = wr
	s.e.prologue(s.pushed)
	wr.WriteString(body.String())
	return nil
}

// alloc returns a free scratch register, falling back to the reserved
// temporary r9 for the duration of a single instruction when the pool is
// exhausted.
func (s *selector) alloc() int {
	if r := s.rf.Allocate(); r != nil {
		return r.Id()
	}
	return tmp
}

// allocFor is alloc recording the loaded value as the register's occupant.
func (s *selector) allocFor(v *lir.Value) int {
	if v.Kind() == lir.Temp {
		if r := s.rf.AllocateFor(v); r != nil {
			return r.Id()
		}
		return tmp
	}
	return s.alloc()
}

// free reclaims a register handed out by alloc.
func (s *selector) free(r int) {
	if r == tmp {
		return
	}
	s.rf.Free(s.rf.Get(r))
}

// loadOperand allocates a register and loads the operand value into it.
func (s *selector) loadOperand(v *lir.Value) (int, error) {
	r := s.allocFor(v)
	if err := s.e.loadVar(r, v); err != nil {
		return r, err
	}
	return r, nil
}

// scalarMove moves src into dst. Register-resident destinations load in
// place; memory destinations stage through a scratch register.
func (s *selector) scalarMove(dst, src *lir.Value) error {
	if dst.Kind() == lir.Register {
		return s.e.loadVar(dst.Reg(), src)
	}
	if _, ok := s.e.offsets[dst]; !ok && dst.Reg() != lir.NoReg {
		// Frameless destination, e.g. the return slot bound to r0.
		return s.e.loadVar(dst.Reg(), src)
	}
	r := s.alloc()
	defer s.free(r)
	if err := s.e.loadVar(r, src); err != nil {
		return err
	}
	return s.e.storeVar(r, dst)
}

// genMove selects a Move instruction per addressing mode.
func (s *selector) genMove(inst *lir.Instruction) error {
	dst, src := inst.Operand1(), inst.Operand2()
	switch inst.Mode() {
	case lir.Scalar:
		return s.scalarMove(dst, src)
	case lir.ArrayRead:
		r, err := s.loadOperand(src)
		if err != nil {
			return err
		}
		defer s.free(r)
		s.e.wr.LoadStore("ldr", s.e.reg(r), s.e.reg(r), 0)
		return s.e.storeVar(r, dst)
	case lir.ArrayWrite:
		ra, err := s.loadOperand(dst)
		if err != nil {
			return err
		}
		defer s.free(ra)
		rs, err := s.loadOperand(src)
		if err != nil {
			return err
		}
		defer s.free(rs)
		s.e.wr.LoadStore("str", s.e.reg(rs), s.e.reg(ra), 0)
		return nil
	}
	return fmt.Errorf("unknown move mode %d", inst.Mode())
}

// genBinArith selects a binary arithmetic instruction: load the operands,
// compute into the first register, store the result.
func (s *selector) genBinArith(inst *lir.Instruction) error {
	ra, err := s.loadOperand(inst.Operand1())
	if err != nil {
		return err
	}
	defer s.free(ra)

	if inst.Arith() == lir.Neg {
		s.e.wr.Ins3imm("rsb", s.e.reg(ra), s.e.reg(ra), 0)
		return s.e.storeVar(ra, inst.Result())
	}

	rb, err := s.loadOperand(inst.Operand2())
	if err != nil {
		return err
	}
	defer s.free(rb)

	switch inst.Arith() {
	case lir.Add:
		s.e.wr.Ins3("add", s.e.reg(ra), s.e.reg(ra), s.e.reg(rb))
	case lir.Sub:
		s.e.wr.Ins3("sub", s.e.reg(ra), s.e.reg(ra), s.e.reg(rb))
	case lir.Mul:
		s.e.wr.Ins3("mul", s.e.reg(ra), s.e.reg(ra), s.e.reg(rb))
	case lir.SDiv:
		s.e.wr.Ins3("sdiv", s.e.reg(ra), s.e.reg(ra), s.e.reg(rb))
	case lir.SMod:
		// a % b = a - (a / b) * b
		rt := s.alloc()
		s.e.wr.Ins3("sdiv", s.e.reg(rt), s.e.reg(ra), s.e.reg(rb))
		s.e.wr.Ins3("mul", s.e.reg(rt), s.e.reg(rt), s.e.reg(rb))
		s.e.wr.Ins3("sub", s.e.reg(ra), s.e.reg(ra), s.e.reg(rt))
		s.free(rt)
	default:
		return fmt.Errorf("unknown arithmetic operation %d", inst.Arith())
	}
	return s.e.storeVar(ra, inst.Result())
}

// fusedBranch returns the index of the conditional branch that consumes the
// compare at index i, or 0 when fusion does not apply. The lookahead is a
// single live instruction.
func fusedBranch(insts []*lir.Instruction, i int) int {
	for j := i + 1; j < len(insts); j++ {
		if insts[j].Dead() {
			continue
		}
		if insts[j].Op() == lir.OpBranchCond && insts[j].Operand1() == insts[i].Result() {
			return j
		}
		return 0
	}
	return 0
}

// emitCompare emits the cmp of an IntCmp, using an immediate second operand
// when it fits.
func (s *selector) emitCompare(inst *lir.Instruction) error {
	ra, err := s.loadOperand(inst.Operand1())
	if err != nil {
		return err
	}
	defer s.free(ra)
	b := inst.Operand2()
	if b.Kind() == lir.Constant && b.Int() >= 0 && b.Int() <= maxImm {
		s.e.wr.Ins2imm("cmp", s.e.reg(ra), b.Int())
		return nil
	}
	rb, err := s.loadOperand(b)
	if err != nil {
		return err
	}
	defer s.free(rb)
	s.e.wr.Ins2("cmp", s.e.reg(ra), s.e.reg(rb))
	return nil
}

// genFusedCompare fuses an IntCmp into the conditional branch that consumes
// it: one cmp, one conditional branch to the true label, one unconditional
// branch to the false label. The boolean result is never materialised.
func (s *selector) genFusedCompare(cmp, br *lir.Instruction) error {
	if err := s.emitCompare(cmp); err != nil {
		return err
	}
	s.e.wr.Ins1("b"+cmp.Cond().String(), s.e.label(br.Target()))
	s.e.wr.Ins1("b", s.e.label(br.FalseTarget()))
	return nil
}

// invCond maps every compare condition to its negation.
var invCond = map[lir.CondOp]lir.CondOp{
	lir.Lt: lir.Ge,
	lir.Le: lir.Gt,
	lir.Gt: lir.Le,
	lir.Ge: lir.Lt,
	lir.Eq: lir.Ne,
	lir.Ne: lir.Eq,
}

// genCompare materialises an unfused IntCmp result as 0 or 1 in a register
// and stores it to the result slot.
func (s *selector) genCompare(inst *lir.Instruction) error {
	if err := s.emitCompare(inst); err != nil {
		return err
	}
	rd := s.alloc()
	defer s.free(rd)
	s.e.wr.Ins2imm("mov"+inst.Cond().String(), s.e.reg(rd), 1)
	s.e.wr.Ins2imm("mov"+invCond[inst.Cond()].String(), s.e.reg(rd), 0)
	return s.e.storeVar(rd, inst.Result())
}

// genCondBranch selects an unfused conditional branch: test the condition
// value against zero.
func (s *selector) genCondBranch(inst *lir.Instruction) error {
	rc, err := s.loadOperand(inst.Operand1())
	if err != nil {
		return err
	}
	s.e.wr.Ins2imm("cmp", s.e.reg(rc), 0)
	s.free(rc)
	s.e.wr.Ins1("bne", s.e.label(inst.Target()))
	s.e.wr.Ins1("b", s.e.label(inst.FalseTarget()))
	return nil
}

// genCall selects a call: the first four arguments move into r0..r3, the
// rest store into the outgoing-argument area at the stack bottom, then bl.
func (s *selector) genCall(inst *lir.Instruction) error {
	for i1, e1 := range inst.Args() {
		if i1 < 4 {
			if err := s.scalarMove(lir.NewRegisterValue(i1, e1.Type()), e1); err != nil {
				return err
			}
			continue
		}
		slot := s.f.AddTempMem(e1.Type(), sp, (i1-4)*4)
		if err := s.scalarMove(slot, e1); err != nil {
			return err
		}
	}
	s.e.wr.Ins1("bl", inst.Callee().Name())
	if inst.Result() != nil {
		return s.scalarMove(inst.Result(), lir.NewRegisterValue(r0, inst.Result().Type()))
	}
	return nil
}

// genExit selects the function exit: the return value lands in r0, the frame
// unwinds and the saved registers pop. The push list is fixed here, once the
// whole body has run through the allocator.
func (s *selector) genExit(inst *lir.Instruction) error {
	used := make([]int, 0, len(scratch))
	for _, e1 := range s.rf.Used() {
		used = append(used, e1.Id())
	}
	s.pushed = s.e.pushList(used)

	if rv := inst.Operand1(); rv != nil && rv.Reg() != r0 {
		if err := s.e.loadVar(r0, rv); err != nil {
			return err
		}
	}
	s.e.epilogue(s.pushed)
	return nil
}
