// expression.go lowers expression sub-trees. Binary operators evaluate left
// then right; the logical operators && and || flatten to branches so that the
// right operand is never evaluated when the left operand decides the result.

package lir

import (
	"minicc/src/ir"
	"minicc/src/ir/lir/types"
	"minicc/src/util"
)

// ---------------------
// ----- Functions -----
// ---------------------

// lowerExpr lowers an expression sub-tree and returns the Value holding its
// result. Void calls return a <nil> Value.
func (l *lowering) lowerExpr(n *ir.Node) (*Value, *util.Diagnostic) {
	switch n.Typ {
	case ir.LEAF_LITERAL_UINT:
		return l.m.CreateConstant(n.Int()), nil
	case ir.LEAF_VAR_ID:
		return l.resolve(n)
	case ir.ARRAY_ACCESS:
		return l.lowerArrayRead(n)
	case ir.FUNC_CALL:
		return l.lowerCall(n)
	case ir.ADD, ir.SUB, ir.MUL, ir.DIV, ir.MOD:
		return l.lowerBinArith(n)
	case ir.NEG:
		v, err := l.lowerExpr(n.Children[0])
		if err != nil {
			return nil, err
		}
		if err := requireScalar(v, n.Line); err != nil {
			return nil, err
		}
		return l.f.CreateBinArith(Neg, v, nil, nil).Result(), nil
	case ir.LT, ir.LE, ir.GT, ir.GE, ir.EQ, ir.NE:
		return l.lowerIntCmp(n)
	case ir.LOGICAL_AND:
		return l.lowerLogicalAnd(n)
	case ir.LOGICAL_OR:
		return l.lowerLogicalOr(n)
	case ir.LOGICAL_NOT:
		return l.lowerLogicalNot(n)
	}
	return nil, util.Diag(util.Internal, n.Line, "unexpected %s in expression", n.Type())
}

// resolve looks up an identifier: the parameter override table first, then
// the scope stack innermost-first, then the globals.
func (l *lowering) resolve(n *ir.Node) (*Value, *util.Diagnostic) {
	name := n.Name()
	if v := l.f.Override(name); v != nil {
		return v, nil
	}
	if v := l.m.FindValue(name); v != nil {
		return v, nil
	}
	return nil, util.Diag(util.Undefined, n.Line, "undefined variable %q", name)
}

// arithOps maps arithmetic node types to IR operations.
var arithOps = map[ir.NodeType]ArithOp{
	ir.ADD: Add,
	ir.SUB: Sub,
	ir.MUL: Mul,
	ir.DIV: SDiv,
	ir.MOD: SMod,
}

// condOps maps relational node types to IR compare conditions.
var condOps = map[ir.NodeType]CondOp{
	ir.LT: Lt,
	ir.LE: Le,
	ir.GT: Gt,
	ir.GE: Ge,
	ir.EQ: Eq,
	ir.NE: Ne,
}

// lowerBinArith lowers a binary arithmetic operator, left operand first.
func (l *lowering) lowerBinArith(n *ir.Node) (*Value, *util.Diagnostic) {
	a, err := l.lowerExpr(n.Children[0])
	if err != nil {
		return nil, err
	}
	if err := requireScalar(a, n.Line); err != nil {
		return nil, err
	}
	b, err := l.lowerExpr(n.Children[1])
	if err != nil {
		return nil, err
	}
	if err := requireScalar(b, n.Line); err != nil {
		return nil, err
	}
	return l.f.CreateBinArith(arithOps[n.Typ], a, b, nil).Result(), nil
}

// lowerIntCmp lowers a relational operator into an integer compare.
func (l *lowering) lowerIntCmp(n *ir.Node) (*Value, *util.Diagnostic) {
	a, err := l.lowerExpr(n.Children[0])
	if err != nil {
		return nil, err
	}
	if err := requireScalar(a, n.Line); err != nil {
		return nil, err
	}
	b, err := l.lowerExpr(n.Children[1])
	if err != nil {
		return nil, err
	}
	if err := requireScalar(b, n.Line); err != nil {
		return nil, err
	}
	return l.f.CreateIntCmp(condOps[n.Typ], a, b).Result(), nil
}

// lowerLogicalAnd lowers A && B with short-circuit evaluation. The right
// operand only evaluates when the left operand is non-zero; the i32 result
// holds 1 or 0.
func (l *lowering) lowerLogicalAnd(n *ir.Node) (*Value, *util.Diagnostic) {
	r := l.f.newTemp(types.IntType)

	c1, err := l.lowerCond(n.Children[0])
	if err != nil {
		return nil, err
	}
	lnext := l.f.NewLabel()
	lfalse := l.f.NewLabel()
	l.f.CreateCondBranch(c1, lnext, lfalse)
	l.f.CreateLabel(lnext)

	c2, err := l.lowerCond(n.Children[1])
	if err != nil {
		return nil, err
	}
	ltrue := l.f.NewLabel()
	lend := l.f.NewLabel()
	l.f.CreateCondBranch(c2, ltrue, lfalse)

	l.f.CreateLabel(ltrue)
	l.f.CreateMove(r, l.m.CreateConstant(1), Scalar)
	l.f.CreateBranch(lend)
	l.f.CreateLabel(lfalse)
	l.f.CreateMove(r, l.m.CreateConstant(0), Scalar)
	l.f.CreateLabel(lend)
	return r, nil
}

// lowerLogicalOr lowers A || B with short-circuit evaluation, symmetric to
// lowerLogicalAnd.
func (l *lowering) lowerLogicalOr(n *ir.Node) (*Value, *util.Diagnostic) {
	r := l.f.newTemp(types.IntType)

	c1, err := l.lowerCond(n.Children[0])
	if err != nil {
		return nil, err
	}
	ltrue := l.f.NewLabel()
	lnext := l.f.NewLabel()
	l.f.CreateCondBranch(c1, ltrue, lnext)
	l.f.CreateLabel(lnext)

	c2, err := l.lowerCond(n.Children[1])
	if err != nil {
		return nil, err
	}
	lfalse := l.f.NewLabel()
	lend := l.f.NewLabel()
	l.f.CreateCondBranch(c2, ltrue, lfalse)

	l.f.CreateLabel(ltrue)
	l.f.CreateMove(r, l.m.CreateConstant(1), Scalar)
	l.f.CreateBranch(lend)
	l.f.CreateLabel(lfalse)
	l.f.CreateMove(r, l.m.CreateConstant(0), Scalar)
	l.f.CreateLabel(lend)
	return r, nil
}

// lowerLogicalNot lowers !x into x == 0 followed by a widening move to i32.
func (l *lowering) lowerLogicalNot(n *ir.Node) (*Value, *util.Diagnostic) {
	v, err := l.lowerExpr(n.Children[0])
	if err != nil {
		return nil, err
	}
	if err := requireScalar(v, n.Line); err != nil {
		return nil, err
	}
	c := l.f.CreateIntCmp(Eq, v, l.m.CreateConstant(0)).Result()
	t := l.f.newTemp(types.IntType)
	l.f.CreateMove(t, c, Scalar)
	return t, nil
}

// lowerCall lowers a function call. Arguments evaluate in source order; the
// single Call instruction carries the gathered argument values.
func (l *lowering) lowerCall(n *ir.Node) (*Value, *util.Diagnostic) {
	name := n.Children[0].Name()
	callee := l.m.GetFunction(name)
	if callee == nil {
		return nil, util.Diag(util.Undefined, n.Line, "call to undefined function %q", name)
	}
	actuals := n.Children[1].Children
	if len(actuals) != len(callee.params) {
		return nil, util.Diag(util.ArityMismatch, n.Line, "function %q expects %d arguments, got %d",
			name, len(callee.params), len(actuals))
	}

	args := make([]*Value, len(actuals))
	for i1, e1 := range actuals {
		v, err := l.lowerArg(e1)
		if err != nil {
			return nil, err
		}
		formal := callee.params[i1]
		if formal.Type().IsScalar() != v.Type().IsScalar() {
			return nil, util.Diag(util.TypeMismatch, e1.Line, "argument %d of %q: array and scalar do not mix",
				i1+1, name)
		}
		args[i1] = v
	}
	return l.f.CreateCall(callee, args).Result(), nil
}

// lowerArg lowers one call argument. Whole arrays and partial array accesses
// pass their base address; everything else is an ordinary expression.
func (l *lowering) lowerArg(n *ir.Node) (*Value, *util.Diagnostic) {
	switch n.Typ {
	case ir.LEAF_VAR_ID:
		v, err := l.resolve(n)
		if err != nil {
			return nil, err
		}
		return v, nil
	case ir.ARRAY_ACCESS:
		// A partial access passes the address of the remaining slice.
		base := l.m.FindValue(n.Children[0].Name())
		if base != nil && base.Type().Kind() == types.Array && len(n.Children)-1 < len(base.Type().Dims()) {
			addr, _, err := l.lowerArrayAddr(n)
			return addr, err
		}
		return l.lowerExpr(n)
	default:
		return l.lowerExpr(n)
	}
}
