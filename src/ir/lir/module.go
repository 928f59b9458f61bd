// Package lir provides the linear three-address intermediate representation
// and the pass that lowers the syntax tree into it.
package lir

import (
	"fmt"
	"minicc/src/ir/lir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Module defines a translation unit that owns globals, functions and the
// interned constant pool. The scope stack is used only during lowering.
type Module struct {
	Name      string               // Name of module. Not important.
	globals   []*Value             // Global variables in declaration order.
	functions map[string]*Function // All functions of the module by name.
	order     []*Function          // Functions in definition order, for deterministic output.
	consts    map[int]*Value       // Interned integer constants.
	scopes    []map[string]*Value  // Scope stack, innermost last. Lowering only.
}

// ---------------------
// ----- functions -----
// ---------------------

// CreateModule creates a new empty module with the given optional name.
func CreateModule(name string) *Module {
	m := &Module{
		functions: make(map[string]*Function, 16),
		consts:    make(map[int]*Value, 16),
	}
	if len(name) > 0 {
		m.Name = name
	} else {
		m.Name = "minic module"
	}
	return m
}

// CreateFunction creates a new empty function with the given return type and
// name. Creating a function that already has a body is a redefinition error;
// completing a prototype is not.
func (m *Module) CreateFunction(rtyp *types.Type, name string) (*Function, error) {
	if f, ok := m.functions[name]; ok {
		if f.defined {
			return nil, fmt.Errorf("function %q is already defined", name)
		}
		return f, nil
	}
	f := &Function{
		m:         m,
		name:      name,
		typ:       rtyp,
		overrides: map[string]*Value{},
		names:     map[string]int{},
	}
	m.functions[name] = f
	m.order = append(m.order, f)
	return f, nil
}

// GetFunction returns the named function of Module m, or <nil>.
func (m *Module) GetFunction(name string) *Function {
	return m.functions[name]
}

// Functions returns the module's functions in definition order.
func (m *Module) Functions() []*Function {
	return m.order
}

// CreateGlobal creates a zero-initialised global variable of the given type.
func (m *Module) CreateGlobal(typ *types.Type, name string) (*Value, error) {
	for _, e1 := range m.globals {
		if e1.name == name {
			return nil, fmt.Errorf("global %q is already declared", name)
		}
	}
	g := &Value{kind: Global, typ: typ, name: name, reg: NoReg}
	m.globals = append(m.globals, g)
	return g, nil
}

// GetGlobal returns the named global variable of Module m, or <nil>.
func (m *Module) GetGlobal(name string) *Value {
	for _, e1 := range m.globals {
		if e1.name == name {
			return e1
		}
	}
	return nil
}

// Globals returns the module's global variables in declaration order.
func (m *Module) Globals() []*Value {
	return m.globals
}

// CreateConstant returns the interned constant Value for i. Constants are
// deduplicated by value within the module.
func (m *Module) CreateConstant(i int) *Value {
	if c, ok := m.consts[i]; ok {
		return c
	}
	c := &Value{kind: Constant, typ: types.IntType, cval: i, reg: NoReg}
	m.consts[i] = c
	return c
}

// ----------------------
// ----- Scope stack ----
// ----------------------

// EnterScope pushes a fresh lexical scope on the stack.
func (m *Module) EnterScope() {
	m.scopes = append(m.scopes, map[string]*Value{})
}

// LeaveScope pops and discards the innermost scope.
func (m *Module) LeaveScope() {
	if len(m.scopes) == 0 {
		panic("scope stack underflow")
	}
	m.scopes = m.scopes[:len(m.scopes)-1]
}

// ScopeDepth returns the current nesting depth of the scope stack.
func (m *Module) ScopeDepth() int {
	return len(m.scopes)
}

// Bind records name in the innermost scope.
func (m *Module) Bind(name string, v *Value) {
	if len(m.scopes) == 0 {
		panic("binding outside any scope")
	}
	m.scopes[len(m.scopes)-1][name] = v
}

// FindValue resolves name by walking the scope stack innermost first, then
// the globals. It returns <nil> if the name is unbound.
func (m *Module) FindValue(name string) *Value {
	for i1 := len(m.scopes) - 1; i1 >= 0; i1-- {
		if v, ok := m.scopes[i1][name]; ok {
			return v
		}
	}
	return m.GetGlobal(name)
}
