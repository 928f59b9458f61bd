// array.go lowers array accesses. An access a[i1]...[ik] of an N-dimensional
// array computes a linear element index, scales it to a byte offset and adds
// it to the array base. The address computation is re-emitted at every
// evaluation, so index variables updated inside a loop body are always
// re-read.

package lir

import (
	"minicc/src/ir"
	"minicc/src/ir/lir/types"
	"minicc/src/util"
)

// ---------------------
// ----- Functions -----
// ---------------------

// lowerArrayAddr lowers the address computation of an ARRAY_ACCESS node. It
// returns the element address value, typed pointer-to-remaining, and the
// remaining type after the given indices (i32 for a full access).
func (l *lowering) lowerArrayAddr(n *ir.Node) (*Value, *types.Type, *util.Diagnostic) {
	base, err := l.resolve(n.Children[0])
	if err != nil {
		return nil, nil, err
	}
	if base.Type().Kind() != types.Array {
		return nil, nil, util.Diag(util.TypeMismatch, n.Line, "%q is not an array", n.Children[0].Name())
	}

	dims := base.Type().Dims()
	indices := n.Children[1:]
	if len(indices) > len(dims) {
		return nil, nil, util.Diag(util.TypeMismatch, n.Line, "%q has %d dimensions, got %d indices",
			n.Children[0].Name(), len(dims), len(indices))
	}

	// Linear index: sum of every index scaled by the product of the
	// dimensions to its right. Coefficients materialise as constants.
	var idx *Value
	for i1, e1 := range indices {
		v, err := l.lowerExpr(e1)
		if err != nil {
			return nil, nil, err
		}
		if derr := requireScalar(v, e1.Line); derr != nil {
			return nil, nil, derr
		}
		coef := 1
		for _, d := range dims[i1+1:] {
			coef *= d
		}
		term := v
		if coef != 1 {
			term = l.f.CreateBinArith(Mul, v, l.m.CreateConstant(coef), nil).Result()
		}
		if idx == nil {
			idx = term
		} else {
			idx = l.f.CreateBinArith(Add, idx, term, nil).Result()
		}
	}

	// Remaining element type after the given indices.
	rem := base.Type()
	for range indices {
		rem = rem.Elem()
	}

	// Byte offset and element address. The only element size is 4.
	off := l.f.CreateBinArith(Mul, idx, l.m.CreateConstant(4), nil).Result()
	addr := l.f.CreateBinArith(Add, base, off, types.PointerTo(rem)).Result()
	return addr, rem, nil
}

// lowerArrayRead lowers an array access in expression position: the element
// address is computed and dereferenced into a fresh temporary.
func (l *lowering) lowerArrayRead(n *ir.Node) (*Value, *util.Diagnostic) {
	addr, rem, err := l.lowerArrayAddr(n)
	if err != nil {
		return nil, err
	}
	if rem.Kind() != types.Int32 {
		return nil, util.Diag(util.TypeMismatch, n.Line, "partial access of %q used as a scalar", n.Children[0].Name())
	}
	t := l.f.newTemp(types.IntType)
	l.f.CreateMove(t, addr, ArrayRead)
	return t, nil
}
