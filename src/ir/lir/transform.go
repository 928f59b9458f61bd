// transform.go lowers the syntax tree into the linear IR. Lowering walks the
// tree twice: a first pass registers global variables and function signatures,
// a second pass lowers function bodies. A diagnostic voids the IR of its
// enclosing function but lets the remaining functions lower, so that one bad
// function does not hide diagnostics in the others.

package lir

import (
	"path/filepath"

	"minicc/src/ir"
	"minicc/src/ir/lir/types"
	"minicc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// loopLabels is one entry of the loop stack consulted by break and continue.
type loopLabels struct {
	start string // Branch target of continue.
	end   string // Branch target of break.
}

// lowering carries the explicit pass-through state of the lowering walk.
type lowering struct {
	m        *Module
	f        *Function           // Function currently being lowered.
	errs     *util.Errors        // Collected diagnostics.
	loops    util.Stack          // Stack of loopLabels for break/continue.
	bodySeen map[string]bool     // Function names whose definition was seen.
	skip     map[*ir.Node]bool   // Definitions voided by a pass-one diagnostic.
}

// ---------------------
// ----- Functions -----
// ---------------------

// GenLIR lowers the syntax tree rooted at root into a new Module. Diagnostics
// are collected in the returned Errors; a function that produced a diagnostic
// has its IR discarded.
func GenLIR(opt util.Options, root *ir.Node) (*Module, *util.Errors) {
	errs := &util.Errors{}
	l := &lowering{
		m:        CreateModule(filepath.Base(opt.Src)),
		errs:     errs,
		bodySeen: map[string]bool{},
		skip:     map[*ir.Node]bool{},
	}

	if root == nil || root.Typ != ir.COMPILE_UNIT {
		errs.Append(util.Diag(util.Internal, 0, "expected COMPILE_UNIT at tree root"))
		return l.m, errs
	}

	// Pass one: global declarations and function signatures.
	for _, e1 := range root.Children {
		switch e1.Typ {
		case ir.FUNC_DEF:
			l.declareFunction(e1)
		case ir.DECL_STMT:
			l.declareGlobals(e1)
		default:
			errs.Append(util.Diag(util.Internal, e1.Line, "unexpected %s at compile unit level", e1.Type()))
		}
	}

	// Pass two: function bodies.
	for _, e1 := range root.Children {
		if e1.Typ == ir.FUNC_DEF && len(e1.Children) > 3 && !l.skip[e1] {
			l.lowerFunction(e1)
		}
	}
	return l.m, errs
}

// typeFromLeaf maps a LEAF_TYPE node to its IR type.
func typeFromLeaf(n *ir.Node) *types.Type {
	if n.Data == "void" {
		return types.VoidType
	}
	return types.IntType
}

// declareFunction registers the signature of a function definition or
// prototype. Duplicate definitions are reported and the later body skipped.
func (l *lowering) declareFunction(n *ir.Node) {
	name := n.Children[1].Name()
	ret := typeFromLeaf(n.Children[0])
	hasBody := len(n.Children) > 3

	if hasBody && l.bodySeen[name] {
		l.errs.Append(util.Diag(util.Redefinition, n.Line, "function %q is already defined", name))
		l.skip[n] = true
		return
	}
	f, _ := l.m.CreateFunction(ret, name)
	if f.typ != ret {
		l.errs.Append(util.Diag(util.Redefinition, n.Line, "function %q redeclared with a different return type", name))
		l.skip[n] = true
		return
	}
	if hasBody {
		l.bodySeen[name] = true
	}
	if len(f.params) > 0 && !hasBody {
		// Prototype after the signature is already known adds nothing.
		return
	}
	f.params = nil
	for _, e1 := range n.Children[2].Children {
		pname, ptyp, err := l.formalParam(e1)
		if err != nil {
			l.errs.Append(err)
			l.skip[n] = true
			return
		}
		f.CreateParam(pname, ptyp)
	}
}

// formalParam extracts the name and type of one FUNC_FORMAL_PARAM node.
func (l *lowering) formalParam(n *ir.Node) (string, *types.Type, *util.Diagnostic) {
	c1 := n.Children[1]
	if c1.Typ == ir.LEAF_VAR_ID {
		return c1.Name(), types.IntType, nil
	}
	// Array parameter: the first dimension is elided and recorded as 0.
	name := c1.Children[0].Name()
	typ, err := l.arrayType(c1, true)
	if err != nil {
		return "", nil, err
	}
	return name, typ, nil
}

// arrayType builds the right-nested array type of an ARRAY_DEF node. With
// param set, the outermost dimension may be 0.
func (l *lowering) arrayType(n *ir.Node, param bool) (*types.Type, *util.Diagnostic) {
	dims := make([]int, 0, len(n.Children)-1)
	for i1, e1 := range n.Children[1:] {
		if e1.Typ != ir.LEAF_LITERAL_UINT {
			return nil, util.Diag(util.ArrayShape, n.Line, "array %q has a non-constant dimension", n.Children[0].Name())
		}
		d := e1.Int()
		if d < 1 && !(param && i1 == 0 && d == 0) {
			return nil, util.Diag(util.ArrayShape, n.Line, "array %q has illegal dimension %d", n.Children[0].Name(), d)
		}
		dims = append(dims, d)
	}
	typ := types.IntType
	for i1 := len(dims) - 1; i1 >= 0; i1-- {
		typ = types.ArrayOf(typ, dims[i1])
	}
	return typ, nil
}

// declareGlobals lowers a compile-unit level DECL_STMT into global variables.
func (l *lowering) declareGlobals(n *ir.Node) {
	for _, e1 := range n.Children[1:] {
		var name string
		var typ *types.Type
		switch e1.Typ {
		case ir.VAR_DECL:
			name = e1.Children[0].Name()
			typ = types.IntType
		case ir.ARRAY_DEF:
			name = e1.Children[0].Name()
			t, err := l.arrayType(e1, false)
			if err != nil {
				l.errs.Append(err)
				continue
			}
			typ = t
		default:
			l.errs.Append(util.Diag(util.Internal, e1.Line, "unexpected %s in declaration", e1.Type()))
			continue
		}
		if _, err := l.m.CreateGlobal(typ, name); err != nil {
			l.errs.Append(util.Diag(util.Redefinition, e1.Line, "%s", err))
		}
	}
}

// lowerFunction lowers one function body. On a diagnostic the body is
// discarded and the function left undefined.
func (l *lowering) lowerFunction(n *ir.Node) {
	name := n.Children[1].Name()
	f := l.m.GetFunction(name)
	l.f = f
	l.loops = util.Stack{}

	if f.typ.Kind() != types.Void {
		f.names[retName] = 1
		f.retval = &Value{kind: Local, typ: f.typ, name: retName, reg: 0}
	}

	l.m.EnterScope()
	for _, e1 := range f.params {
		if len(e1.name) > 0 {
			l.m.Bind(e1.name, e1)
		}
	}

	f.CreateEntry()
	f.CreateLabel(LabelEntry)
	if err := l.lowerBlock(n.Children[3]); err != nil {
		l.errs.Append(err)
		f.discardBody()
		l.m.LeaveScope()
		return
	}
	f.CreateLabel(LabelExit)
	f.CreateExit(f.retval)
	f.defined = true
	l.m.LeaveScope()
}

// lowerBlock lowers a BLOCK node inside a fresh lexical scope.
func (l *lowering) lowerBlock(n *ir.Node) *util.Diagnostic {
	l.m.EnterScope()
	defer l.m.LeaveScope()
	for _, e1 := range n.Children {
		if err := l.lowerStmt(e1); err != nil {
			return err
		}
	}
	return nil
}

// lowerStmt lowers a single statement node.
func (l *lowering) lowerStmt(n *ir.Node) *util.Diagnostic {
	switch n.Typ {
	case ir.BLOCK:
		return l.lowerBlock(n)
	case ir.DECL_STMT:
		return l.lowerDecl(n)
	case ir.ASSIGN:
		return l.lowerAssign(n)
	case ir.IF:
		return l.lowerIf(n)
	case ir.IF_ELSE:
		return l.lowerIfElse(n)
	case ir.WHILE:
		return l.lowerWhile(n)
	case ir.BREAK:
		e := l.loops.Peek()
		if e == nil {
			return util.Diag(util.MisplacedControl, n.Line, "break outside of any loop")
		}
		l.f.CreateBranch(e.(loopLabels).end)
		return nil
	case ir.CONTINUE:
		e := l.loops.Peek()
		if e == nil {
			return util.Diag(util.MisplacedControl, n.Line, "continue outside of any loop")
		}
		l.f.CreateBranch(e.(loopLabels).start)
		return nil
	case ir.RETURN:
		return l.lowerReturn(n)
	case ir.FUNC_CALL:
		_, err := l.lowerExpr(n)
		return err
	default:
		// Expression statement: evaluate for effect.
		_, err := l.lowerExpr(n)
		return err
	}
}

// lowerDecl lowers a local DECL_STMT: scalar and array declarations, with
// optional scalar initialisers.
func (l *lowering) lowerDecl(n *ir.Node) *util.Diagnostic {
	for _, e1 := range n.Children[1:] {
		switch e1.Typ {
		case ir.VAR_DECL:
			name := e1.Children[0].Name()
			local := l.f.NewLocal(types.IntType, name, l.m.ScopeDepth())
			l.m.Bind(name, local)
			if len(e1.Children) > 1 {
				v, err := l.lowerExpr(e1.Children[1])
				if err != nil {
					return err
				}
				if err := requireScalar(v, e1.Line); err != nil {
					return err
				}
				l.f.CreateMove(local, v, Scalar)
			}
		case ir.ARRAY_DEF:
			name := e1.Children[0].Name()
			typ, err := l.arrayType(e1, false)
			if err != nil {
				return err
			}
			local := l.f.NewLocal(typ, name, l.m.ScopeDepth())
			l.m.Bind(name, local)
		default:
			return util.Diag(util.Internal, e1.Line, "unexpected %s in declaration", e1.Type())
		}
	}
	return nil
}

// lowerAssign lowers an assignment. The right-hand side is evaluated before
// the left-hand side is resolved, so a parameter override created by the
// left-hand side never hides the parameter value the right-hand side reads.
func (l *lowering) lowerAssign(n *ir.Node) *util.Diagnostic {
	rhs, err := l.lowerExpr(n.Children[1])
	if err != nil {
		return err
	}
	if err := requireScalar(rhs, n.Line); err != nil {
		return err
	}

	lhs := n.Children[0]
	switch lhs.Typ {
	case ir.LEAF_VAR_ID:
		dst, err := l.scalarLHS(lhs)
		if err != nil {
			return err
		}
		l.f.CreateMove(dst, rhs, Scalar)
		return nil
	case ir.ARRAY_ACCESS:
		addr, rem, err := l.lowerArrayAddr(lhs)
		if err != nil {
			return err
		}
		if rem.Kind() != types.Int32 {
			return util.Diag(util.TypeMismatch, lhs.Line, "cannot assign to a whole array slice")
		}
		l.f.CreateMove(addr, rhs, ArrayWrite)
		return nil
	}
	return util.Diag(util.Internal, lhs.Line, "unexpected %s on left-hand side of assignment", lhs.Type())
}

// scalarLHS resolves the scalar assignment target named by a LEAF_VAR_ID.
// The first assignment to a formal parameter creates the shadow local that
// overrides the parameter from here on.
func (l *lowering) scalarLHS(n *ir.Node) (*Value, *util.Diagnostic) {
	name := n.Name()
	if v := l.f.Override(name); v != nil {
		return v, nil
	}
	v := l.m.FindValue(name)
	if v == nil {
		return nil, util.Diag(util.Undefined, n.Line, "undefined variable %q", name)
	}
	if !v.Type().IsScalar() {
		return nil, util.Diag(util.TypeMismatch, n.Line, "%q is not a scalar variable", name)
	}
	if v.Kind() == FormalParam {
		// Lazy parameter override: copy the formal into a shadow local at the
		// point of first assignment.
		shadow := l.f.NewLocal(v.Type(), name, l.m.ScopeDepth())
		l.f.CreateMove(shadow, v, Scalar)
		l.f.SetOverride(name, shadow)
		return shadow, nil
	}
	return v, nil
}

// lowerReturn lowers a return statement: the value, if any, moves into the
// function's return slot before the jump to the exit label.
func (l *lowering) lowerReturn(n *ir.Node) *util.Diagnostic {
	if l.f.typ.Kind() == types.Void {
		if len(n.Children) > 0 {
			return util.Diag(util.MisplacedControl, n.Line, "return with a value in void function %q", l.f.name)
		}
		l.f.CreateBranch(LabelExit)
		return nil
	}
	if len(n.Children) == 0 {
		return util.Diag(util.MisplacedControl, n.Line, "return without a value in function %q", l.f.name)
	}
	v, err := l.lowerExpr(n.Children[0])
	if err != nil {
		return err
	}
	if err := requireScalar(v, n.Line); err != nil {
		return err
	}
	l.f.CreateMove(l.f.retval, v, Scalar)
	l.f.CreateBranch(LabelExit)
	return nil
}

// lowerIf flattens if (C) S into a conditional branch over S.
func (l *lowering) lowerIf(n *ir.Node) *util.Diagnostic {
	cond, err := l.lowerCond(n.Children[0])
	if err != nil {
		return err
	}
	lthen := l.f.NewLabel()
	lend := l.f.NewLabel()
	l.f.CreateCondBranch(cond, lthen, lend)
	l.f.CreateLabel(lthen)
	if err := l.lowerStmt(n.Children[1]); err != nil {
		return err
	}
	l.f.CreateLabel(lend)
	return nil
}

// lowerIfElse flattens if (C) S1 else S2.
func (l *lowering) lowerIfElse(n *ir.Node) *util.Diagnostic {
	cond, err := l.lowerCond(n.Children[0])
	if err != nil {
		return err
	}
	lthen := l.f.NewLabel()
	lelse := l.f.NewLabel()
	lend := l.f.NewLabel()
	l.f.CreateCondBranch(cond, lthen, lelse)
	l.f.CreateLabel(lthen)
	if err := l.lowerStmt(n.Children[1]); err != nil {
		return err
	}
	l.f.CreateBranch(lend)
	l.f.CreateLabel(lelse)
	if err := l.lowerStmt(n.Children[2]); err != nil {
		return err
	}
	l.f.CreateLabel(lend)
	return nil
}

// lowerWhile flattens while (C) B with the loop start and end labels pushed
// for break and continue.
func (l *lowering) lowerWhile(n *ir.Node) *util.Diagnostic {
	lstart := l.f.NewLabel()
	l.f.CreateLabel(lstart)
	cond, err := l.lowerCond(n.Children[0])
	if err != nil {
		return err
	}
	lbody := l.f.NewLabel()
	lend := l.f.NewLabel()
	l.f.CreateCondBranch(cond, lbody, lend)
	l.f.CreateLabel(lbody)

	l.loops.Push(loopLabels{start: lstart, end: lend})
	err = l.lowerStmt(n.Children[1])
	l.loops.Pop()
	if err != nil {
		return err
	}

	l.f.CreateBranch(lstart)
	l.f.CreateLabel(lend)
	return nil
}

// lowerCond lowers a condition expression and normalises the result to i1.
func (l *lowering) lowerCond(n *ir.Node) (*Value, *util.Diagnostic) {
	v, err := l.lowerExpr(n)
	if err != nil {
		return nil, err
	}
	if err := requireScalar(v, n.Line); err != nil {
		return nil, err
	}
	return l.toBool(v), nil
}

// toBool returns v unchanged when it is already a compare result, else emits
// the v != 0 compare.
func (l *lowering) toBool(v *Value) *Value {
	if v.Type().Kind() == types.Bool {
		return v
	}
	return l.f.CreateIntCmp(Ne, v, l.m.CreateConstant(0)).Result()
}

// requireScalar reports a type mismatch when v is not usable as a scalar
// operand. A <nil> v marks the result of a void call.
func requireScalar(v *Value, line int) *util.Diagnostic {
	if v == nil {
		return util.Diag(util.TypeMismatch, line, "void value used in expression")
	}
	if !v.Type().IsScalar() {
		return util.Diag(util.TypeMismatch, line, "array %s used as a scalar", v.Name())
	}
	return nil
}
