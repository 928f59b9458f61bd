package lir

import (
	"fmt"
	"minicc/src/ir/lir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Function defines an IR function: its signature, its linear instruction list
// and the frame-resident values the backend materialises.
type Function struct {
	m            *Module            // m is the Module that owns this Function.
	name         string             // name defines the unique string name of function.
	typ          *types.Type        // typ defines the return type of the function.
	params       []*Value           // params defines the function's formal parameters in order.
	instructions []*Instruction     // instructions is the function body in program order.
	locals       []*Value           // locals holds all frame variables, including compiler temporaries.
	tempMems     []*Value           // tempMems holds explicit memory slots for spilled call arguments.
	retval       *Value             // retval is the return-value slot. <nil> for void functions.
	overrides    map[string]*Value  // overrides maps parameter names to their shadow locals.
	names        map[string]int     // names counts taken local names for collision mangling.
	labelSeq     int                // labelSeq numbers the lowered labels L1, L2, ...
	tempSeq      int                // tempSeq numbers the temporaries t1, t2, ...
	hasCall      bool               // Set if the body contains at least one call.
	maxCallArgs  int                // Largest argument count observed at any call site.
	defined      bool               // Set once a body has been lowered; false for prototypes.
}

// ---------------------
// ----- Constants -----
// ---------------------

// Entry and exit label names. Labels are function scoped, so the fixed names
// never collide with the numbered labels of the body.
const (
	LabelEntry = "Lentry"
	LabelExit  = "Lexit"
)

// retName is the name of the return-value slot of non-void functions.
const retName = "ret"

// ---------------------
// ----- Functions -----
// ---------------------

// Name returns the name of Function f.
func (f *Function) Name() string {
	return f.name
}

// ReturnType returns the return type of Function f.
func (f *Function) ReturnType() *types.Type {
	return f.typ
}

// Params returns Function f's formal parameters in order.
func (f *Function) Params() []*Value {
	return f.params
}

// Instructions returns the function body in program order.
func (f *Function) Instructions() []*Instruction {
	return f.instructions
}

// Locals returns all frame variables of Function f, compiler temporaries
// included.
func (f *Function) Locals() []*Value {
	return f.locals
}

// TempMems returns the explicit memory slots recorded for Function f.
func (f *Function) TempMems() []*Value {
	return f.tempMems
}

// ReturnValue returns the return-value slot, or <nil> for void functions.
func (f *Function) ReturnValue() *Value {
	return f.retval
}

// HasCall returns true if the body contains at least one call.
func (f *Function) HasCall() bool {
	return f.hasCall
}

// MaxCallArgs returns the largest argument count observed at any call site in
// the body. The backend sizes the outgoing-argument area from it.
func (f *Function) MaxCallArgs() int {
	return f.maxCallArgs
}

// Defined returns true once a body has been lowered for Function f. A
// prototype that was never defined stays false.
func (f *Function) Defined() bool {
	return f.defined
}

// CreateParam appends a formal parameter to Function f. Array types decay to
// array-pointer types at this point.
func (f *Function) CreateParam(name string, typ *types.Type) *Value {
	if typ.Kind() == types.Array && typ.Count() != 0 {
		typ = types.ArrayOf(typ.Elem(), 0)
	}
	p := &Value{kind: FormalParam, typ: typ, name: name, pos: len(f.params), reg: NoReg}
	if p.pos < 4 {
		p.reg = p.pos
	}
	f.params = append(f.params, p)
	return p
}

// GetParam returns the named parameter of Function f, or <nil>.
func (f *Function) GetParam(name string) *Value {
	for _, e1 := range f.params {
		if e1.name == name {
			return e1
		}
	}
	return nil
}

// NewLocal creates a frame variable in Function f. The requested name is
// mangled with a numeric suffix if it was already taken, keeping local names
// unique within the function across all scopes.
func (f *Function) NewLocal(typ *types.Type, name string, depth int) *Value {
	if len(name) == 0 {
		name = fmt.Sprintf("v%d", len(f.locals))
	}
	if n, ok := f.names[name]; ok {
		f.names[name] = n + 1
		name = fmt.Sprintf("%s.%d", name, n)
	} else {
		f.names[name] = 1
	}
	l := &Value{kind: Local, typ: typ, name: name, depth: depth, reg: NoReg}
	f.locals = append(f.locals, l)
	return l
}

// newTemp creates a compiler temporary of the given type. Temporaries are
// named by a counter that is monotonic within the function, so lowering the
// same tree twice yields identical names.
func (f *Function) newTemp(typ *types.Type) *Value {
	f.tempSeq++
	t := &Value{kind: Temp, typ: typ, name: fmt.Sprintf("t%d", f.tempSeq), reg: NoReg}
	f.locals = append(f.locals, t)
	return t
}

// NewLabel returns a fresh label name from the function's monotonic counter.
func (f *Function) NewLabel() string {
	f.labelSeq++
	return fmt.Sprintf("L%d", f.labelSeq)
}

// AddTempMem records an explicit memory slot for Function f and returns it.
func (f *Function) AddTempMem(typ *types.Type, base, offset int) *Value {
	v := NewTempMem(typ, base, offset)
	f.tempMems = append(f.tempMems, v)
	return v
}

// Override returns the shadow local that overrides the named parameter, or
// <nil> if the parameter has not been assigned to.
func (f *Function) Override(name string) *Value {
	return f.overrides[name]
}

// SetOverride records local shadow as the override of the named parameter.
func (f *Function) SetOverride(name string, shadow *Value) {
	f.overrides[name] = shadow
}

// discardBody resets the body of Function f. The lowering calls it when a
// diagnostic voids the function so that later passes never see partial IR.
func (f *Function) discardBody() {
	f.instructions = nil
	f.locals = nil
	f.tempMems = nil
	f.overrides = map[string]*Value{}
	f.names = map[string]int{}
	f.labelSeq = 0
	f.tempSeq = 0
	f.hasCall = false
	f.maxCallArgs = 0
	f.defined = false
	f.retval = nil
}
