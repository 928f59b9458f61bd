// Package regfile provides type definitions for virtual register files.
package regfile

import "minicc/src/ir/lir"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Register defines a physical register interface. A register has an index and
// an assembler name.
type Register interface {
	Id() int        // The unique index of the register.
	String() string // String returns the assembler name for the register.
}

// RegisterFile defines an interface for a virtual register file with a simple
// per-instruction allocator over its scratch pool. The allocator has no
// lookahead: the selector frees every register as soon as the instruction
// that used it has been emitted. When the pool is exhausted the caller falls
// back to the reserved single-instruction temporary.
type RegisterFile interface {
	SP() Register                          // Returns the stack pointer register.
	FP() Register                          // Returns the frame pointer register.
	LR() Register                          // Returns the link register.
	Tmp() Register                         // Returns the reserved large-offset/spill temporary.
	Get(i int) Register                    // Returns the i'th register.
	Allocate() Register                    // Returns the next free scratch register, or <nil>.
	AllocateFor(v *lir.Value) Register     // Like Allocate, recording v as the occupant.
	Free(r Register)                       // Returns register r to the pool.
	FreeValue(v *lir.Value)                // Frees the register currently occupied by v.
	Used() []Register                      // Scratch registers allocated at least once, ascending.
}
