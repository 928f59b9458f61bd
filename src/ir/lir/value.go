package lir

import (
	"fmt"
	"minicc/src/ir/lir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ValueKind discriminates the operand identities of the IR.
type ValueKind int

// Value defines a three-address code operand. Every Value has an identity, a
// type, a textual IR name and an optional physical register binding that the
// instruction selector uses for values pinned to hardware registers.
type Value struct {
	kind   ValueKind
	typ    *types.Type
	name   string // Textual IR name without sigil, e.g. "t3", "a" or "ret".
	cval   int    // Constant payload.
	pos    int    // FormalParam position, zero based.
	depth  int    // Local scope depth at creation time.
	base   int    // TempMem base register number.
	offset int    // TempMem byte offset from the base register.
	reg    int    // Bound physical register, or NoReg.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Constant    ValueKind = iota // Constant identifies an immutable integer constant, interned per module.
	Global                       // Global identifies a process-lifetime variable, printed @name.
	Local                        // Local identifies a function-frame variable, printed %name.
	Temp                         // Temp identifies an instruction result, printed %tN.
	FormalParam                  // FormalParam identifies the value delivered by the caller.
	TempMem                      // TempMem identifies an explicit memory slot addressed base+offset.
	Register                     // Register identifies a value pre-bound to a physical register.
)

// NoReg marks a Value without a physical register binding.
const NoReg = -1

// vk provides string literals for ValueKind constants.
var vk = [...]string{
	"Constant",
	"Global",
	"Local",
	"Temp",
	"FormalParam",
	"TempMem",
	"Register",
}

// ---------------------
// ----- Functions -----
// ---------------------

// Kind returns the kind discriminator of Value v.
func (v *Value) Kind() ValueKind {
	return v.kind
}

// Type returns the data type of Value v.
func (v *Value) Type() *types.Type {
	return v.typ
}

// RawName returns the sigil-free name of Value v.
func (v *Value) RawName() string {
	return v.name
}

// Name returns the textual IR name of Value v, including its sigil. Constants
// print as their decimal value, globals as @name, register values as rN,
// memory slots as [rB, #off] and everything else as %name.
func (v *Value) Name() string {
	switch v.kind {
	case Constant:
		return fmt.Sprintf("%d", v.cval)
	case Global:
		return "@" + v.name
	case Register:
		return fmt.Sprintf("r%d", v.reg)
	case TempMem:
		return fmt.Sprintf("[r%d, #%d]", v.base, v.offset)
	default:
		return "%" + v.name
	}
}

// Int returns the payload of a Constant value.
func (v *Value) Int() int {
	return v.cval
}

// Position returns the zero-based position of a FormalParam value.
func (v *Value) Position() int {
	return v.pos
}

// Base returns the base register number of a TempMem value.
func (v *Value) Base() int {
	return v.base
}

// Offset returns the byte offset of a TempMem value.
func (v *Value) Offset() int {
	return v.offset
}

// Reg returns the bound physical register of Value v, or NoReg.
func (v *Value) Reg() int {
	return v.reg
}

// BindReg pins Value v to the physical register r.
func (v *Value) BindReg(r int) {
	v.reg = r
}

// String provides a debug friendly representation of Value v.
func (v *Value) String() string {
	return fmt.Sprintf("%s %s %s", vk[v.kind], v.typ.String(), v.Name())
}

// NewRegisterValue returns a Value pre-bound to physical register r. It is
// used to model the argument registers r0..r3 at call sites.
func NewRegisterValue(r int, typ *types.Type) *Value {
	return &Value{kind: Register, typ: typ, reg: r}
}

// NewTempMem returns an explicit memory slot value at [base, #offset].
func NewTempMem(typ *types.Type, base, offset int) *Value {
	return &Value{kind: TempMem, typ: typ, base: base, offset: offset, reg: NoReg}
}
