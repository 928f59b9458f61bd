package lir

import (
	"fmt"
	"minicc/src/ir/lir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Opcode identifies an instruction variant. The set is closed; the selector
// treats any other value as an internal error.
type Opcode int

// ArithOp defines a binary or unary arithmetic operation.
type ArithOp int

// CondOp defines an integer compare condition.
type CondOp int

// MoveMode defines the addressing flavour of a Move instruction.
type MoveMode int

// Instruction is one linear IR instruction. It belongs to exactly one
// Function, references zero or more operand Values, and optionally defines a
// result Value. Per-variant fields are only meaningful for their opcode.
type Instruction struct {
	op     Opcode
	res    *Value // Result defined by the instruction, if any.
	a, b   *Value // Operands.
	aop    ArithOp
	cond   CondOp
	mode   MoveMode
	label  string   // Label name for Label instructions.
	target string   // Branch target, true target for BranchCond.
	ftgt   string   // False target for BranchCond.
	callee *Function
	args   []*Value // Call arguments in source order.
	dead   bool     // Set when a pass retires the instruction; the selector skips it.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	OpLabel Opcode = iota
	OpEntry
	OpExit
	OpMove
	OpBinArith
	OpIntCmp
	OpBranch
	OpBranchCond
	OpCall
)

const (
	Add ArithOp = iota // Add identifies the operation a = b + c.
	Sub                // Sub identifies the operation a = b - c.
	Mul                // Mul identifies the operation a = b * c.
	SDiv               // SDiv identifies the signed division a = b / c.
	SMod               // SMod identifies the signed remainder a = b % c.
	Neg                // Neg identifies the unary operation a = -b.
)

const (
	Lt CondOp = iota // Lt defines <.
	Le               // Le defines <=.
	Gt               // Gt defines >.
	Ge               // Ge defines >=.
	Eq               // Eq defines ==.
	Ne               // Ne defines !=.
)

const (
	Scalar     MoveMode = iota // Scalar identifies a plain dst = src move.
	ArrayWrite                 // ArrayWrite identifies *dst = src.
	ArrayRead                  // ArrayRead identifies dst = *src.
)

// aTyp provides textual IR literals for ArithOp constants.
var aTyp = [...]string{
	"add",
	"sub",
	"mul",
	"div",
	"mod",
	"neg",
}

// cTyp provides textual IR literals for CondOp constants.
var cTyp = [...]string{
	"lt",
	"le",
	"gt",
	"ge",
	"eq",
	"ne",
}

// ---------------------
// ----- Functions -----
// ---------------------

// String provides the textual IR literal of the ArithOp.
func (op ArithOp) String() string {
	return aTyp[op]
}

// String provides the textual IR literal of the CondOp.
func (op CondOp) String() string {
	return cTyp[op]
}

// Op returns the opcode tag of Instruction inst.
func (inst *Instruction) Op() Opcode {
	return inst.op
}

// Result returns the Value defined by Instruction inst, or <nil>.
func (inst *Instruction) Result() *Value {
	return inst.res
}

// Operand1 returns the first operand of Instruction inst, or <nil>.
func (inst *Instruction) Operand1() *Value {
	return inst.a
}

// Operand2 returns the second operand of Instruction inst, or <nil>.
func (inst *Instruction) Operand2() *Value {
	return inst.b
}

// Arith returns the arithmetic operation of a BinArith instruction.
func (inst *Instruction) Arith() ArithOp {
	return inst.aop
}

// Cond returns the compare condition of an IntCmp instruction.
func (inst *Instruction) Cond() CondOp {
	return inst.cond
}

// Mode returns the addressing flavour of a Move instruction.
func (inst *Instruction) Mode() MoveMode {
	return inst.mode
}

// LabelName returns the name of a Label instruction.
func (inst *Instruction) LabelName() string {
	return inst.label
}

// Target returns the branch target of a BranchUncond, or the true target of a
// BranchCond.
func (inst *Instruction) Target() string {
	return inst.target
}

// FalseTarget returns the false target of a BranchCond.
func (inst *Instruction) FalseTarget() string {
	return inst.ftgt
}

// Callee returns the target Function of a Call instruction.
func (inst *Instruction) Callee() *Function {
	return inst.callee
}

// Args returns the call arguments of a Call instruction in source order.
func (inst *Instruction) Args() []*Value {
	return inst.args
}

// Retire marks Instruction inst dead. The selector and printer skip retired
// instructions.
func (inst *Instruction) Retire() {
	inst.dead = true
}

// Dead returns true if Instruction inst has been retired.
func (inst *Instruction) Dead() bool {
	return inst.dead
}

// -----------------------------------
// ----- Instruction factories -------
// -----------------------------------

// The factories below are the only way instructions are created. They append
// to the owning Function's instruction list in program order, mirroring the
// append-only discipline of the lowering pass.

// CreateLabel appends a label with the given name.
func (f *Function) CreateLabel(name string) *Instruction {
	inst := &Instruction{op: OpLabel, label: name}
	f.instructions = append(f.instructions, inst)
	return inst
}

// CreateEntry appends the function entry marker.
func (f *Function) CreateEntry() *Instruction {
	inst := &Instruction{op: OpEntry}
	f.instructions = append(f.instructions, inst)
	return inst
}

// CreateExit appends the function exit. ret may be <nil> for void functions.
func (f *Function) CreateExit(ret *Value) *Instruction {
	inst := &Instruction{op: OpExit, a: ret}
	f.instructions = append(f.instructions, inst)
	return inst
}

// CreateMove appends a move of src into dst with the given addressing mode.
func (f *Function) CreateMove(dst, src *Value, mode MoveMode) *Instruction {
	if dst == nil || src == nil {
		panic("move requires both a destination and a source value")
	}
	inst := &Instruction{op: OpMove, res: dst, a: dst, b: src, mode: mode}
	f.instructions = append(f.instructions, inst)
	return inst
}

// CreateBinArith appends a binary arithmetic instruction and returns it. The
// result is a fresh i32 temporary, or a pointer temporary for address
// arithmetic when ptr is non-nil.
func (f *Function) CreateBinArith(op ArithOp, a, b *Value, ptr *types.Type) *Instruction {
	if a == nil || (b == nil && op != Neg) {
		panic(fmt.Sprintf("arithmetic %s requires operands", op.String()))
	}
	typ := types.IntType
	if ptr != nil {
		typ = ptr
	}
	inst := &Instruction{op: OpBinArith, aop: op, a: a, b: b, res: f.newTemp(typ)}
	f.instructions = append(f.instructions, inst)
	return inst
}

// CreateIntCmp appends an integer compare instruction. The result is a fresh
// i1 temporary.
func (f *Function) CreateIntCmp(cond CondOp, a, b *Value) *Instruction {
	if a == nil || b == nil {
		panic(fmt.Sprintf("compare %s requires two operands", cond.String()))
	}
	inst := &Instruction{op: OpIntCmp, cond: cond, a: a, b: b, res: f.newTemp(types.BoolType)}
	f.instructions = append(f.instructions, inst)
	return inst
}

// CreateBranch appends an unconditional branch to the named label.
func (f *Function) CreateBranch(target string) *Instruction {
	inst := &Instruction{op: OpBranch, target: target}
	f.instructions = append(f.instructions, inst)
	return inst
}

// CreateCondBranch appends a conditional branch on cond to the true and false
// labels.
func (f *Function) CreateCondBranch(cond *Value, target, ftgt string) *Instruction {
	if cond == nil {
		panic("conditional branch requires a condition value")
	}
	inst := &Instruction{op: OpBranchCond, a: cond, target: target, ftgt: ftgt}
	f.instructions = append(f.instructions, inst)
	return inst
}

// CreateCall appends a call of callee with the given arguments. A result
// temporary is defined for non-void callees.
func (f *Function) CreateCall(callee *Function, args []*Value) *Instruction {
	inst := &Instruction{op: OpCall, callee: callee, args: args}
	if callee.typ.Kind() != types.Void {
		inst.res = f.newTemp(callee.typ)
	}
	f.instructions = append(f.instructions, inst)
	f.hasCall = true
	if len(args) > f.maxCallArgs {
		f.maxCallArgs = len(args)
	}
	return inst
}
