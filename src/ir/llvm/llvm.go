// Package llvm provides the alternative code generation path through the
// system installed LLVM runtime. The syntax tree is lowered straight to LLVM
// IR and compiled to an ARM object file; the built-in linear IR and ARM32
// selector are bypassed entirely.
package llvm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

import (
	"tinygo.org/x/go-llvm"
)

import (
	ast "minicc/src/ir"
	"minicc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// binding records the address of a named variable and, for arrays, its
// dimensions (outermost first, 0 for an elided parameter dimension).
type binding struct {
	addr llvm.Value
	dims []int
}

// generator carries the state of one translation.
type generator struct {
	ctx    llvm.Context
	b      llvm.Builder
	m      llvm.Module
	fun    llvm.Value
	funcs  map[string]llvm.Value
	protos map[string]*ast.Node
	scopes util.Stack // Stack of map[string]binding.
	loops  util.Stack // Stack of loopBlocks for break/continue.
}

// loopBlocks holds the branch targets of break and continue.
type loopBlocks struct {
	head llvm.BasicBlock
	end  llvm.BasicBlock
}

// ---------------------
// ----- Constants -----
// ---------------------

// triple is the fixed output target. The built-in backend is ARM32 only, and
// the LLVM path mirrors it.
const triple = "armv7-unknown-linux-gnueabihf"

// -------------------
// ----- globals -----
// -------------------

// i is the integer type of the language.
var i llvm.Type

// ---------------------
// ----- functions -----
// ---------------------

// GenLLVM generates an object file from the root ast.Node of the syntax tree.
func GenLLVM(opt util.Options, root *ast.Node) error {
	if root == nil {
		return errors.New("syntax tree node is <nil>")
	}
	if len(root.Children) < 1 {
		return errors.New("syntax tree node has no children")
	}

	ctx := llvm.NewContext()
	defer ctx.Dispose()
	b := ctx.NewBuilder()
	defer b.Dispose()
	m := ctx.NewModule(filepath.Base(opt.Src))
	defer m.Dispose()
	i = ctx.Int32Type()

	g := &generator{
		ctx:    ctx,
		b:      b,
		m:      m,
		funcs:  map[string]llvm.Value{},
		protos: map[string]*ast.Node{},
	}
	g.scopes.Push(map[string]binding{}) // Global scope.

	// Globals and function headers first, so that calls resolve forward.
	for _, e1 := range root.Children {
		switch e1.Typ {
		case ast.FUNC_DEF:
			if err := g.genFuncHeader(e1); err != nil {
				return err
			}
		case ast.DECL_STMT:
			if err := g.genGlobalDecl(e1); err != nil {
				return err
			}
		default:
			return fmt.Errorf("line %d: expected FUNC_DEF or DECL_STMT, got %s", e1.Line, e1.Type())
		}
	}
	for _, e1 := range root.Children {
		if e1.Typ == ast.FUNC_DEF && len(e1.Children) > 3 {
			if err := g.genFuncBody(e1); err != nil {
				return err
			}
		}
	}

	return emitObject(opt, m)
}

// emitObject compiles module m for the ARM target and writes the object file.
func emitObject(opt util.Options, m llvm.Module) error {
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargets()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	t, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return err
	}
	tm := t.CreateTargetMachine(triple, "generic", "",
		llvm.CodeGenLevelNone,
		llvm.RelocDefault,
		llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()
	m.SetDataLayout(td.String())
	m.SetTarget(tm.Triple())

	buf, err := tm.EmitToMemoryBuffer(m, llvm.ObjectFile)
	if err != nil {
		return err
	}
	if buf.IsNil() {
		return errors.New("could not emit compiled code to memory")
	}

	out := opt.Out
	if len(out) == 0 {
		out = fmt.Sprintf("./%s.o", strings.TrimSuffix(filepath.Base(opt.Src), filepath.Ext(opt.Src)))
	}
	fd, err := os.OpenFile(out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if err := fd.Close(); err != nil {
			fmt.Println(err)
		}
	}()
	_, err = fd.Write(buf.Bytes())
	return err
}

// bind records a variable binding in the innermost scope.
func (g *generator) bind(name string, bd binding) {
	g.scopes.Peek().(map[string]binding)[name] = bd
}

// lookup resolves a variable binding innermost-first.
func (g *generator) lookup(name string) (binding, bool) {
	for i1 := 1; i1 <= g.scopes.Size(); i1++ {
		if bd, ok := g.scopes.Get(i1).(map[string]binding)[name]; ok {
			return bd, true
		}
	}
	return binding{}, false
}

// arrayDims extracts the declared dimensions of an ARRAY_DEF node.
func arrayDims(n *ast.Node) []int {
	dims := make([]int, 0, len(n.Children)-1)
	for _, e1 := range n.Children[1:] {
		dims = append(dims, e1.Int())
	}
	return dims
}

// arrayType builds the right-nested LLVM array type for dims.
func arrayType(dims []int) llvm.Type {
	typ := i
	for i1 := len(dims) - 1; i1 >= 0; i1-- {
		typ = llvm.ArrayType(typ, dims[i1])
	}
	return typ
}

// genGlobalDecl creates the module globals of one DECL_STMT with zero
// initialisers.
func (g *generator) genGlobalDecl(n *ast.Node) error {
	for _, e1 := range n.Children[1:] {
		name := e1.Children[0].Name()
		switch e1.Typ {
		case ast.VAR_DECL:
			gv := llvm.AddGlobal(g.m, i, name)
			gv.SetInitializer(llvm.ConstInt(i, 0, false))
			g.bind(name, binding{addr: gv})
		case ast.ARRAY_DEF:
			dims := arrayDims(e1)
			typ := arrayType(dims)
			gv := llvm.AddGlobal(g.m, typ, name)
			gv.SetInitializer(llvm.ConstNull(typ))
			g.bind(name, binding{addr: gv, dims: dims})
		}
	}
	return nil
}

// paramInfo describes one formal parameter of a function header.
type paramInfo struct {
	name string
	dims []int
}

// funcParams extracts the parameter types and names of a FUNC_DEF node.
// Array parameters become i32 pointers.
func funcParams(n *ast.Node) ([]llvm.Type, []paramInfo) {
	formals := n.Children[2].Children
	atyp := make([]llvm.Type, len(formals))
	info := make([]paramInfo, len(formals))
	for i1, e1 := range formals {
		c1 := e1.Children[1]
		if c1.Typ == ast.ARRAY_DEF {
			atyp[i1] = llvm.PointerType(i, 0)
			info[i1] = paramInfo{name: c1.Children[0].Name(), dims: arrayDims(c1)}
		} else {
			atyp[i1] = i
			info[i1] = paramInfo{name: c1.Name()}
		}
	}
	return atyp, info
}

// genFuncHeader declares a function in the module.
func (g *generator) genFuncHeader(n *ast.Node) error {
	name := n.Children[1].Name()
	if _, ok := g.funcs[name]; ok {
		if _, dup := g.protos[name]; dup && len(n.Children) > 3 {
			return nil // Definition completing a prototype.
		}
		if len(n.Children) < 4 {
			return nil
		}
		return fmt.Errorf("line %d: function %q is already defined", n.Line, name)
	}
	ret := i
	if n.Children[0].Data == "void" {
		ret = g.ctx.VoidType()
	}
	atyp, _ := funcParams(n)
	ftyp := llvm.FunctionType(ret, atyp, false)
	g.funcs[name] = llvm.AddFunction(g.m, name, ftyp)
	if len(n.Children) < 4 {
		g.protos[name] = n
	}
	return nil
}

// genFuncBody generates the body of a defined function. Parameters are
// stored in allocas so that assignments to them behave like locals.
func (g *generator) genFuncBody(n *ast.Node) error {
	name := n.Children[1].Name()
	fun := g.funcs[name]
	delete(g.protos, name)
	g.fun = fun

	bb := llvm.AddBasicBlock(fun, "entry")
	g.b.SetInsertPointAtEnd(bb)

	g.scopes.Push(map[string]binding{})
	_, info := funcParams(n)
	for i1, e1 := range info {
		p := fun.Param(i1)
		if len(e1.name) == 0 {
			continue
		}
		p.SetName(e1.name)
		if e1.dims != nil {
			// Array pointers pass through unchanged.
			g.bind(e1.name, binding{addr: p, dims: e1.dims})
			continue
		}
		addr := g.b.CreateAlloca(i, e1.name)
		g.b.CreateStore(p, addr)
		g.bind(e1.name, binding{addr: addr})
	}

	terminated, err := g.genBlock(n.Children[3])
	if err != nil {
		return err
	}
	if !terminated {
		// Fall off the end: void returns, value functions return zero.
		if n.Children[0].Data == "void" {
			g.b.CreateRetVoid()
		} else {
			g.b.CreateRet(llvm.ConstInt(i, 0, false))
		}
	}
	g.scopes.Pop()
	return nil
}

// genBlock generates a statement block in a fresh scope. It reports whether
// the block ended in a terminator.
func (g *generator) genBlock(n *ast.Node) (bool, error) {
	g.scopes.Push(map[string]binding{})
	defer g.scopes.Pop()
	for _, e1 := range n.Children {
		term, err := g.genStmt(e1)
		if err != nil {
			return false, err
		}
		if term {
			// Anything after a terminator in the same block is unreachable.
			return true, nil
		}
	}
	return false, nil
}

// genStmt generates one statement and reports whether it terminated the
// current basic block.
func (g *generator) genStmt(n *ast.Node) (bool, error) {
	switch n.Typ {
	case ast.BLOCK:
		return g.genBlock(n)
	case ast.DECL_STMT:
		return false, g.genLocalDecl(n)
	case ast.ASSIGN:
		return false, g.genAssign(n)
	case ast.IF, ast.IF_ELSE:
		return g.genIf(n)
	case ast.WHILE:
		return g.genWhile(n)
	case ast.BREAK:
		l := g.loops.Peek()
		if l == nil {
			return false, fmt.Errorf("line %d: break outside of any loop", n.Line)
		}
		g.b.CreateBr(l.(loopBlocks).end)
		return true, nil
	case ast.CONTINUE:
		l := g.loops.Peek()
		if l == nil {
			return false, fmt.Errorf("line %d: continue outside of any loop", n.Line)
		}
		g.b.CreateBr(l.(loopBlocks).head)
		return true, nil
	case ast.RETURN:
		if len(n.Children) == 0 {
			g.b.CreateRetVoid()
			return true, nil
		}
		v, err := g.genExpr(n.Children[0])
		if err != nil {
			return false, err
		}
		g.b.CreateRet(v)
		return true, nil
	default:
		_, err := g.genExpr(n)
		return false, err
	}
}

// genLocalDecl generates local allocas for one DECL_STMT.
func (g *generator) genLocalDecl(n *ast.Node) error {
	for _, e1 := range n.Children[1:] {
		name := e1.Children[0].Name()
		switch e1.Typ {
		case ast.VAR_DECL:
			addr := g.b.CreateAlloca(i, name)
			g.bind(name, binding{addr: addr})
			if len(e1.Children) > 1 {
				v, err := g.genExpr(e1.Children[1])
				if err != nil {
					return err
				}
				g.b.CreateStore(v, addr)
			}
		case ast.ARRAY_DEF:
			dims := arrayDims(e1)
			addr := g.b.CreateAlloca(arrayType(dims), name)
			g.bind(name, binding{addr: addr, dims: dims})
		}
	}
	return nil
}

// genAssign generates a store into a scalar variable or array element.
func (g *generator) genAssign(n *ast.Node) error {
	v, err := g.genExpr(n.Children[1])
	if err != nil {
		return err
	}
	addr, err := g.genAddr(n.Children[0])
	if err != nil {
		return err
	}
	g.b.CreateStore(v, addr)
	return nil
}

// genAddr resolves the address of an assignable location.
func (g *generator) genAddr(n *ast.Node) (llvm.Value, error) {
	switch n.Typ {
	case ast.LEAF_VAR_ID:
		bd, ok := g.lookup(n.Name())
		if !ok {
			return llvm.Value{}, fmt.Errorf("line %d: undefined variable %q", n.Line, n.Name())
		}
		return bd.addr, nil
	case ast.ARRAY_ACCESS:
		return g.genElementAddr(n)
	}
	return llvm.Value{}, fmt.Errorf("line %d: %s is not assignable", n.Line, n.Type())
}

// genElementAddr computes an element pointer of an array access. The array
// base decays to an i32 pointer and the linear element index is computed
// explicitly, exactly like the built-in backend does.
func (g *generator) genElementAddr(n *ast.Node) (llvm.Value, error) {
	name := n.Children[0].Name()
	bd, ok := g.lookup(name)
	if !ok {
		return llvm.Value{}, fmt.Errorf("line %d: undefined variable %q", n.Line, name)
	}
	if bd.dims == nil {
		return llvm.Value{}, fmt.Errorf("line %d: %q is not an array", n.Line, name)
	}
	base := bd.addr
	if base.Type().ElementType().TypeKind() == llvm.ArrayTypeKind {
		base = g.b.CreateBitCast(base, llvm.PointerType(i, 0), "")
	}

	var idx llvm.Value
	for i1, e1 := range n.Children[1:] {
		v, err := g.genExpr(e1)
		if err != nil {
			return llvm.Value{}, err
		}
		coef := 1
		for _, d := range bd.dims[i1+1:] {
			coef *= d
		}
		if coef != 1 {
			v = g.b.CreateMul(v, llvm.ConstInt(i, uint64(coef), false), "")
		}
		if idx.IsNil() {
			idx = v
		} else {
			idx = g.b.CreateAdd(idx, v, "")
		}
	}
	return g.b.CreateGEP(base, []llvm.Value{idx}, ""), nil
}

// genExpr generates one expression and returns its llvm.Value.
func (g *generator) genExpr(n *ast.Node) (llvm.Value, error) {
	switch n.Typ {
	case ast.LEAF_LITERAL_UINT:
		return llvm.ConstInt(i, uint64(uint32(int32(n.Int()))), false), nil
	case ast.LEAF_VAR_ID:
		bd, ok := g.lookup(n.Name())
		if !ok {
			return llvm.Value{}, fmt.Errorf("line %d: undefined variable %q", n.Line, n.Name())
		}
		if bd.dims != nil {
			// Whole array decays to its base pointer, e.g. as call argument.
			if bd.addr.Type().ElementType().TypeKind() == llvm.ArrayTypeKind {
				return g.b.CreateBitCast(bd.addr, llvm.PointerType(i, 0), ""), nil
			}
			return bd.addr, nil
		}
		return g.b.CreateLoad(bd.addr, ""), nil
	case ast.ARRAY_ACCESS:
		addr, err := g.genElementAddr(n)
		if err != nil {
			return llvm.Value{}, err
		}
		bd, _ := g.lookup(n.Children[0].Name())
		if len(n.Children)-1 < len(bd.dims) {
			// Partial access passes the slice address.
			return addr, nil
		}
		return g.b.CreateLoad(addr, ""), nil
	case ast.FUNC_CALL:
		return g.genCall(n)
	case ast.ADD, ast.SUB, ast.MUL, ast.DIV, ast.MOD:
		return g.genArith(n)
	case ast.NEG:
		v, err := g.genExpr(n.Children[0])
		if err != nil {
			return llvm.Value{}, err
		}
		return g.b.CreateSub(llvm.ConstInt(i, 0, false), v, ""), nil
	case ast.LT, ast.LE, ast.GT, ast.GE, ast.EQ, ast.NE:
		c, err := g.genRelation(n)
		if err != nil {
			return llvm.Value{}, err
		}
		return g.b.CreateZExt(c, i, ""), nil
	case ast.LOGICAL_AND, ast.LOGICAL_OR:
		return g.genShortCircuit(n)
	case ast.LOGICAL_NOT:
		v, err := g.genExpr(n.Children[0])
		if err != nil {
			return llvm.Value{}, err
		}
		c := g.b.CreateICmp(llvm.IntEQ, v, llvm.ConstInt(i, 0, false), "")
		return g.b.CreateZExt(c, i, ""), nil
	}
	return llvm.Value{}, fmt.Errorf("line %d: unexpected %s in expression", n.Line, n.Type())
}

// genArith generates a binary arithmetic expression.
func (g *generator) genArith(n *ast.Node) (llvm.Value, error) {
	op1, err := g.genExpr(n.Children[0])
	if err != nil {
		return llvm.Value{}, err
	}
	op2, err := g.genExpr(n.Children[1])
	if err != nil {
		return llvm.Value{}, err
	}
	switch n.Typ {
	case ast.ADD:
		return g.b.CreateAdd(op1, op2, ""), nil
	case ast.SUB:
		return g.b.CreateSub(op1, op2, ""), nil
	case ast.MUL:
		return g.b.CreateMul(op1, op2, ""), nil
	case ast.DIV:
		return g.b.CreateSDiv(op1, op2, ""), nil
	default:
		return g.b.CreateSRem(op1, op2, ""), nil
	}
}

// relPredicates maps relational node types to integer predicates.
var relPredicates = map[ast.NodeType]llvm.IntPredicate{
	ast.LT: llvm.IntSLT,
	ast.LE: llvm.IntSLE,
	ast.GT: llvm.IntSGT,
	ast.GE: llvm.IntSGE,
	ast.EQ: llvm.IntEQ,
	ast.NE: llvm.IntNE,
}

// genRelation generates a relational expression as an i1 value.
func (g *generator) genRelation(n *ast.Node) (llvm.Value, error) {
	op1, err := g.genExpr(n.Children[0])
	if err != nil {
		return llvm.Value{}, err
	}
	op2, err := g.genExpr(n.Children[1])
	if err != nil {
		return llvm.Value{}, err
	}
	return g.b.CreateICmp(relPredicates[n.Typ], op1, op2, ""), nil
}

// genCond generates a condition as an i1 value, comparing non-boolean
// results against zero.
func (g *generator) genCond(n *ast.Node) (llvm.Value, error) {
	switch n.Typ {
	case ast.LT, ast.LE, ast.GT, ast.GE, ast.EQ, ast.NE:
		return g.genRelation(n)
	}
	v, err := g.genExpr(n)
	if err != nil {
		return llvm.Value{}, err
	}
	return g.b.CreateICmp(llvm.IntNE, v, llvm.ConstInt(i, 0, false), ""), nil
}

// genShortCircuit generates && and || with basic blocks so that the right
// operand only evaluates when the left does not decide the result.
func (g *generator) genShortCircuit(n *ast.Node) (llvm.Value, error) {
	res := g.b.CreateAlloca(i, "")
	next := llvm.AddBasicBlock(g.fun, "")
	yes := llvm.AddBasicBlock(g.fun, "")
	no := llvm.AddBasicBlock(g.fun, "")
	conv := llvm.AddBasicBlock(g.fun, "")

	c1, err := g.genCond(n.Children[0])
	if err != nil {
		return llvm.Value{}, err
	}
	if n.Typ == ast.LOGICAL_AND {
		g.b.CreateCondBr(c1, next, no)
	} else {
		g.b.CreateCondBr(c1, yes, next)
	}

	g.b.SetInsertPointAtEnd(next)
	c2, err := g.genCond(n.Children[1])
	if err != nil {
		return llvm.Value{}, err
	}
	g.b.CreateCondBr(c2, yes, no)

	g.b.SetInsertPointAtEnd(yes)
	g.b.CreateStore(llvm.ConstInt(i, 1, false), res)
	g.b.CreateBr(conv)
	g.b.SetInsertPointAtEnd(no)
	g.b.CreateStore(llvm.ConstInt(i, 0, false), res)
	g.b.CreateBr(conv)

	g.b.SetInsertPointAtEnd(conv)
	return g.b.CreateLoad(res, ""), nil
}

// genCall generates a function call.
func (g *generator) genCall(n *ast.Node) (llvm.Value, error) {
	name := n.Children[0].Name()
	target, ok := g.funcs[name]
	if !ok {
		return llvm.Value{}, fmt.Errorf("line %d: call to undefined function %q", n.Line, name)
	}
	actuals := n.Children[1].Children
	if target.ParamsCount() != len(actuals) {
		return llvm.Value{}, fmt.Errorf("line %d: function %q expects %d arguments, got %d",
			n.Line, name, target.ParamsCount(), len(actuals))
	}
	args := make([]llvm.Value, len(actuals))
	for i1, e1 := range actuals {
		v, err := g.genExpr(e1)
		if err != nil {
			return llvm.Value{}, err
		}
		args[i1] = v
	}
	return g.b.CreateCall(target, args, ""), nil
}

// genIf generates IF and IF_ELSE statements.
func (g *generator) genIf(n *ast.Node) (bool, error) {
	cond, err := g.genCond(n.Children[0])
	if err != nil {
		return false, err
	}
	thn := llvm.AddBasicBlock(g.fun, "")
	conv := llvm.AddBasicBlock(g.fun, "")

	if n.Typ == ast.IF {
		g.b.CreateCondBr(cond, thn, conv)
		g.b.SetInsertPointAtEnd(thn)
		term, err := g.genStmt(n.Children[1])
		if err != nil {
			return false, err
		}
		if !term {
			g.b.CreateBr(conv)
		}
		g.b.SetInsertPointAtEnd(conv)
		return false, nil
	}

	els := llvm.AddBasicBlock(g.fun, "")
	g.b.CreateCondBr(cond, thn, els)
	g.b.SetInsertPointAtEnd(thn)
	term1, err := g.genStmt(n.Children[1])
	if err != nil {
		return false, err
	}
	if !term1 {
		g.b.CreateBr(conv)
	}
	g.b.SetInsertPointAtEnd(els)
	term2, err := g.genStmt(n.Children[2])
	if err != nil {
		return false, err
	}
	if !term2 {
		g.b.CreateBr(conv)
	}
	g.b.SetInsertPointAtEnd(conv)
	return false, nil
}

// genWhile generates a while loop with its head and end blocks pushed for
// break and continue.
func (g *generator) genWhile(n *ast.Node) (bool, error) {
	head := llvm.AddBasicBlock(g.fun, "")
	body := llvm.AddBasicBlock(g.fun, "")
	conv := llvm.AddBasicBlock(g.fun, "")

	g.b.CreateBr(head)
	g.b.SetInsertPointAtEnd(head)
	cond, err := g.genCond(n.Children[0])
	if err != nil {
		return false, err
	}
	g.b.CreateCondBr(cond, body, conv)

	g.b.SetInsertPointAtEnd(body)
	g.loops.Push(loopBlocks{head: head, end: conv})
	term, err := g.genStmt(n.Children[1])
	g.loops.Pop()
	if err != nil {
		return false, err
	}
	if !term {
		g.b.CreateBr(head)
	}
	g.b.SetInsertPointAtEnd(conv)
	return false, nil
}
