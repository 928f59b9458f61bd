// regalloc.go implements the per-instruction register allocator over the
// ARM32 scratch pool. There is no liveness analysis: the selector allocates
// registers while it emits one IR instruction and frees them immediately
// after. A free bitset and a register-to-value side map are all the state.

package arm

import (
	"minicc/src/backend/regfile"
	"minicc/src/ir/lir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// register defines a physical ARM32 register.
type register struct {
	idx int // Index of register (0 = r0, 11 = fp etc.).
}

// registerFile implements regfile.RegisterFile for ARM32. The scratch pool is
// r4-r7 and r10; r0-r3 are argument registers, r9 is the reserved temporary
// and r11/r13/r14/r15 are fp, sp, lr and pc.
type registerFile struct {
	regs     [numRegs]*register
	free     uint32                 // Bitset of free scratch registers.
	occupant map[int]*lir.Value     // Value currently held per allocated register.
	used     uint32                 // Bitset of scratch registers allocated at least once.
}

// ---------------------
// ----- Constants -----
// ---------------------

// Integer general purpose registers.
const (
	r0 = iota
	r1
	r2
	r3
	r4
	r5
	r6
	r7
	r8
	r9
	r10
	r11
	r12
	r13
	r14
	r15
	numRegs
)

const (
	fp  = r11 // Frame pointer.
	sp  = r13 // Stack pointer.
	lr  = r14 // Link register.
	tmp = r9  // Reserved single-instruction temporary for large offsets.
)

// scratch is the allocator pool, ascending.
var scratch = [...]int{r4, r5, r6, r7, r10}

// regNames defines print friendly assembler names of the registers.
var regNames = [numRegs]string{
	"r0",
	"r1",
	"r2",
	"r3",
	"r4",
	"r5",
	"r6",
	"r7",
	"r8",
	"r9",
	"r10",
	"fp",
	"r12",
	"sp",
	"lr",
	"pc",
}

// ---------------------
// ----- Functions -----
// ---------------------

// CreateRegisterFile returns a fresh ARM32 register file with the whole
// scratch pool free.
func CreateRegisterFile() regfile.RegisterFile {
	rf := &registerFile{occupant: map[int]*lir.Value{}}
	for i1 := range rf.regs {
		rf.regs[i1] = &register{idx: i1}
	}
	for _, e1 := range scratch {
		rf.free |= 1 << uint(e1)
	}
	return rf
}

// String returns the assembler name of the register.
func (r *register) String() string {
	return regNames[r.idx]
}

// Id returns the index of the register r.
func (r *register) Id() int {
	return r.idx
}

// SP returns the stack pointer register.
func (rf *registerFile) SP() regfile.Register {
	return rf.regs[sp]
}

// FP returns the frame pointer register.
func (rf *registerFile) FP() regfile.Register {
	return rf.regs[fp]
}

// LR returns the link register.
func (rf *registerFile) LR() regfile.Register {
	return rf.regs[lr]
}

// Tmp returns the reserved large-offset temporary.
func (rf *registerFile) Tmp() regfile.Register {
	return rf.regs[tmp]
}

// Get returns the register with index i.
func (rf *registerFile) Get(i int) regfile.Register {
	if i < 0 || i >= numRegs {
		return nil
	}
	return rf.regs[i]
}

// Allocate returns the lowest free scratch register, or <nil> when the pool
// is exhausted.
func (rf *registerFile) Allocate() regfile.Register {
	for _, e1 := range scratch {
		if rf.free&(1<<uint(e1)) != 0 {
			rf.free &^= 1 << uint(e1)
			rf.used |= 1 << uint(e1)
			return rf.regs[e1]
		}
	}
	return nil
}

// AllocateFor allocates a scratch register and records v as its occupant.
func (rf *registerFile) AllocateFor(v *lir.Value) regfile.Register {
	r := rf.Allocate()
	if r != nil {
		rf.occupant[r.Id()] = v
		v.BindReg(r.Id())
	}
	return r
}

// Free returns register r to the pool.
func (rf *registerFile) Free(r regfile.Register) {
	if r == nil {
		return
	}
	if v, ok := rf.occupant[r.Id()]; ok {
		v.BindReg(lir.NoReg)
		delete(rf.occupant, r.Id())
	}
	for _, e1 := range scratch {
		if e1 == r.Id() {
			rf.free |= 1 << uint(e1)
			return
		}
	}
}

// FreeValue frees the register currently occupied by v, if any.
func (rf *registerFile) FreeValue(v *lir.Value) {
	for r, e1 := range rf.occupant {
		if e1 == v {
			rf.Free(rf.regs[r])
			return
		}
	}
}

// Used returns the scratch registers that were allocated at least once,
// ascending. The prologue pushes exactly these.
func (rf *registerFile) Used() []regfile.Register {
	res := make([]regfile.Register, 0, len(scratch))
	for _, e1 := range scratch {
		if rf.used&(1<<uint(e1)) != 0 {
			res = append(res, rf.regs[e1])
		}
	}
	return res
}
