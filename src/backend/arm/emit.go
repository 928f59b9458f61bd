// emit.go implements the assembly emitter for one function: frame layout,
// prologue/epilogue, and the load/store-variable macros. Frame offsets that
// do not fit the immediate field of ldr/str are routed through the reserved
// temporary r9.

package arm

import (
	"fmt"

	"minicc/src/ir/lir"
	"minicc/src/ir/lir/types"
	"minicc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// emitter carries the per-function emission state: the output writer, the
// frame layout and the register file.
type emitter struct {
	wr       *util.Writer
	f        *lir.Function
	offsets  map[*lir.Value]int // Positive byte offset below fp per frame value.
	frame    int                // Frame size in bytes below fp.
	outgoing int                // Outgoing-argument area size in bytes.
}

// ---------------------
// ----- Constants -----
// ---------------------

// maxOffset is the largest immediate ldr/str offset. Larger frame offsets
// are materialised in r9.
const maxOffset = 4095

// maxImm is the largest immediate the emitter encodes directly in mov, add
// and sub. Everything else goes through a literal-pool load.
const maxImm = 255

// stackAlign defines the AAPCS stack alignment at function boundaries.
const stackAlign = 8

// ---------------------
// ----- Functions -----
// ---------------------

// newEmitter lays out the frame of Function f and returns an emitter for it.
// The frame, low to high: outgoing-argument area, locals and temporaries,
// then the registers saved by the prologue above fp.
func newEmitter(f *lir.Function, wr *util.Writer) *emitter {
	e := &emitter{
		wr:      wr,
		f:       f,
		offsets: map[*lir.Value]int{},
	}
	if f.HasCall() {
		e.outgoing = f.MaxCallArgs() * 4
	}
	off := 0
	place := func(v *lir.Value) {
		sz := v.Type().Size()
		if v.Type().Kind() != types.Array || v.Type().Count() == 0 {
			sz = 4
		}
		off += sz
		e.offsets[v] = off
	}
	for _, e1 := range f.Params() {
		place(e1)
	}
	for _, e1 := range f.Locals() {
		place(e1)
	}
	e.frame = off + e.outgoing
	if res := e.frame % stackAlign; res != 0 {
		e.frame += stackAlign - res
	}
	return e
}

// label returns the function-scoped assembler name of an IR label.
func (e *emitter) label(name string) string {
	return fmt.Sprintf(".%s_%s", name, e.f.Name())
}

// reg returns the assembler name of register index r.
func (e *emitter) reg(r int) string {
	return regNames[r]
}

// loadImm loads the immediate v into register rd, through mvn for small
// negative values and the literal pool for everything else.
func (e *emitter) loadImm(rd, v int) {
	switch {
	case v >= 0 && v <= maxImm:
		e.wr.Ins2imm("mov", e.reg(rd), v)
	case v < 0 && -v-1 <= maxImm:
		e.wr.Ins2imm("mvn", e.reg(rd), -v-1)
	default:
		e.wr.Write("\tldr\t%s, =%d\n", e.reg(rd), v)
	}
}

// frameAccess emits op (ldr or str) of register r at [fp, #-off], routing
// offsets beyond the immediate range through r9.
func (e *emitter) frameAccess(op string, r, off int) {
	if off <= maxOffset {
		e.wr.LoadStore(op, e.reg(r), e.reg(fp), -off)
		return
	}
	e.wr.Write("\tldr\t%s, =%d\n", e.reg(tmp), -off)
	e.wr.LoadStoreReg(op, e.reg(r), e.reg(fp), e.reg(tmp))
}

// frameAddr materialises the address fp - off in register rd.
func (e *emitter) frameAddr(rd, off int) {
	if off <= maxImm {
		e.wr.Ins3imm("sub", e.reg(rd), e.reg(fp), off)
		return
	}
	e.wr.Write("\tldr\t%s, =%d\n", e.reg(tmp), off)
	e.wr.Ins3("sub", e.reg(rd), e.reg(fp), e.reg(tmp))
}

// loadVar loads the Value v into register rd.
func (e *emitter) loadVar(rd int, v *lir.Value) error {
	switch v.Kind() {
	case lir.Constant:
		e.loadImm(rd, v.Int())
	case lir.Register:
		if rd != v.Reg() {
			e.wr.Ins2("mov", e.reg(rd), e.reg(v.Reg()))
		}
	case lir.Global:
		e.wr.Write("\tldr\t%s, =%s\n", e.reg(rd), v.RawName())
		if v.Type().Kind() != types.Array {
			e.wr.LoadStore("ldr", e.reg(rd), e.reg(rd), 0)
		}
	case lir.FormalParam:
		e.frameAccess("ldr", rd, e.offsets[v])
	case lir.TempMem:
		e.wr.LoadStore("ldr", e.reg(rd), regNames[v.Base()], v.Offset())
	case lir.Local, lir.Temp:
		off, ok := e.offsets[v]
		if !ok {
			// Register-resident value, e.g. the return slot bound to r0.
			if v.Reg() == lir.NoReg {
				return fmt.Errorf("value %s has neither a frame slot nor a register", v.Name())
			}
			if rd != v.Reg() {
				e.wr.Ins2("mov", e.reg(rd), e.reg(v.Reg()))
			}
			return nil
		}
		if v.Type().Kind() == types.Array && v.Type().Count() != 0 {
			// Whole array: its base address.
			e.frameAddr(rd, off)
			return nil
		}
		e.frameAccess("ldr", rd, off)
	default:
		return fmt.Errorf("cannot load operand %s", v.String())
	}
	return nil
}

// storeVar stores register rs into the location of Value v.
func (e *emitter) storeVar(rs int, v *lir.Value) error {
	switch v.Kind() {
	case lir.Register:
		if rs != v.Reg() {
			e.wr.Ins2("mov", e.reg(v.Reg()), e.reg(rs))
		}
	case lir.Global:
		if v.Type().Kind() == types.Array {
			return fmt.Errorf("cannot store to whole array @%s", v.RawName())
		}
		e.wr.Write("\tldr\t%s, =%s\n", e.reg(tmp), v.RawName())
		e.wr.LoadStore("str", e.reg(rs), e.reg(tmp), 0)
	case lir.TempMem:
		e.wr.LoadStore("str", e.reg(rs), regNames[v.Base()], v.Offset())
	case lir.Local, lir.Temp, lir.FormalParam:
		off, ok := e.offsets[v]
		if !ok {
			if v.Reg() == lir.NoReg {
				return fmt.Errorf("value %s has neither a frame slot nor a register", v.Name())
			}
			if rs != v.Reg() {
				e.wr.Ins2("mov", e.reg(v.Reg()), e.reg(rs))
			}
			return nil
		}
		e.frameAccess("str", rs, off)
	default:
		return fmt.Errorf("cannot store to %s", v.String())
	}
	return nil
}

// needFrame reports whether the function needs a prologue beyond setting the
// frame pointer: any saved register, any call or a non-empty frame.
func (e *emitter) needFrame(saved []int) bool {
	return len(saved) > 0 || e.frame > 0 || e.f.HasCall()
}

// pushList returns the registers the prologue saves: the scratch registers
// the allocator handed out, then fp and lr.
func (e *emitter) pushList(used []int) []int {
	if !e.needFrame(used) {
		return nil
	}
	return append(append([]int{}, used...), fp, lr)
}

// regList renders a push/pop register list.
func (e *emitter) regList(regs []int) string {
	s := "{"
	for i1, e1 := range regs {
		if i1 > 0 {
			s += ", "
		}
		s += e.reg(e1)
	}
	return s + "}"
}

// prologue emits the function entry: save registers, set the frame pointer,
// allocate the frame and spill the incoming parameters to their slots.
func (e *emitter) prologue(pushed []int) {
	if len(pushed) > 0 {
		e.wr.Ins1("push", e.regList(pushed))
	}
	e.wr.Ins2("mov", e.reg(fp), e.reg(sp))
	if e.frame > 0 {
		if e.frame <= maxImm {
			e.wr.Ins3imm("sub", e.reg(sp), e.reg(sp), e.frame)
		} else {
			e.wr.Write("\tldr\t%s, =%d\n", e.reg(tmp), e.frame)
			e.wr.Ins3("sub", e.reg(sp), e.reg(sp), e.reg(tmp))
		}
	}
	// Spill register parameters, then copy the stack-passed ones below fp so
	// that every parameter has a uniform frame slot.
	for _, e1 := range e.f.Params() {
		if p := e1.Position(); p < 4 {
			e.frameAccess("str", p, e.offsets[e1])
		} else {
			in := len(pushed)*4 + (p-4)*4
			e.wr.LoadStore("ldr", e.reg(r0), e.reg(fp), in)
			e.frameAccess("str", r0, e.offsets[e1])
		}
	}
}

// epilogue emits the function exit: restore sp, pop the saved registers and
// return.
func (e *emitter) epilogue(pushed []int) {
	e.wr.Ins2("mov", e.reg(sp), e.reg(fp))
	if len(pushed) > 0 {
		e.wr.Ins1("pop", e.regList(pushed))
	}
	e.wr.Ins1("bx", e.reg(lr))
}
