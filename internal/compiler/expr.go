package compiler

import (
	"lkr/internal/ast"
	"lkr/internal/bytecode"
	"lkr/internal/value"
)

var binOps = map[string]bytecode.Op{
	"+": bytecode.OpAdd, "-": bytecode.OpSub, "*": bytecode.OpMul,
	"/": bytecode.OpDiv, "%": bytecode.OpMod,
}

var cmpOps = map[string]bytecode.Op{
	"==": bytecode.OpCmpEq, "!=": bytecode.OpCmpNe,
	"<": bytecode.OpCmpLt, "<=": bytecode.OpCmpLe,
	">": bytecode.OpCmpGt, ">=": bytecode.OpCmpGe,
}

// compileExpr evaluates e and returns the register holding its result.
func (c *Compiler) compileExpr(e ast.Expr) uint16 {
	switch n := e.(type) {
	case *ast.Const:
		dst := c.allocReg()
		kidx := c.addConst(n.Value)
		c.emit(bytecode.Instr{Op: bytecode.OpLoadK, A: dst, B: bytecode.RKConst(kidx)})
		return dst

	case *ast.Ident:
		return c.compileIdent(n)

	case *ast.Binary:
		return c.compileBinary(n)

	case *ast.Unary:
		src := c.compileExpr(n.Operand)
		dst := c.allocReg()
		op := bytecode.OpNeg
		if n.Op == "!" {
			op = bytecode.OpNot
		}
		c.emit(bytecode.Instr{Op: op, A: dst, B: bytecode.RKRegister(uint16(src))})
		return dst

	case *ast.Logical:
		return c.compileLogical(n)

	case *ast.Nullish:
		left := c.compileExpr(n.Left)
		dst := c.allocReg()
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: dst, B: bytecode.RKRegister(left)})
		skip := c.emit(bytecode.Instr{Op: bytecode.OpNullishPick, A: dst})
		right := c.compileExpr(n.Right)
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: dst, B: bytecode.RKRegister(right)})
		c.patchJump(skip, c.pc())
		return dst

	case *ast.Conditional:
		return c.compileConditional(n)

	case *ast.Access:
		obj := c.compileExpr(n.Object)
		dst := c.allocReg()
		kidx := c.addConst(value.Str(n.Field))
		c.emit(bytecode.Instr{Op: bytecode.OpAccessK, A: dst, B: bytecode.RKRegister(obj), C: bytecode.RKConst(kidx)})
		return dst

	case *ast.Index:
		obj := c.compileExpr(n.Object)
		key := c.compileExpr(n.Key)
		dst := c.allocReg()
		c.emit(bytecode.Instr{Op: bytecode.OpIndex, A: dst, B: bytecode.RKRegister(obj), C: bytecode.RKRegister(key)})
		return dst

	case *ast.ListLit:
		return c.compileListLit(n)

	case *ast.MapLit:
		return c.compileMapLit(n)

	case *ast.StructLit:
		return c.compileStructLit(n)

	case *ast.Call:
		return c.compileCall(n)

	case *ast.Template:
		return c.compileTemplate(n)

	case *ast.Closure:
		return c.compileClosureLit(n)

	case *ast.Match:
		return c.compileMatch(n)

	case *ast.Select:
		return c.compileSelect(n)

	case *ast.RangeExpr:
		// A bare range used outside a `for` loop head has no runtime
		// representation in Val (spec §3.1 lists no Range variant). The
		// checker does not reject it (it types a bare range as a List),
		// so it is raised at runtime rather than silently producing Nil.
		dst := c.allocReg()
		kidx := c.addConst(value.Str("range expression used outside a for-loop"))
		c.emit(bytecode.Instr{Op: bytecode.OpRaise, A: dst, B: bytecode.RKConst(kidx)})
		return dst

	default:
		c.fail("compiler: unsupported expression %T", e)
		return 0
	}
}

func (c *Compiler) compileIdent(n *ast.Ident) uint16 {
	if reg, ok := c.resolveLocal(c.cur, n.Name); ok {
		return reg
	}
	if idx, ok := c.resolveCapture(n.Name); ok {
		dst := c.allocReg()
		c.emit(bytecode.Instr{Op: bytecode.OpLoadCapture, A: dst, Aux: []uint16{uint16(idx)}})
		return dst
	}
	dst := c.allocReg()
	kidx := c.addConst(value.Str(n.Name))
	c.emit(bytecode.Instr{Op: bytecode.OpLoadGlobal, A: dst, B: bytecode.RKConst(kidx)})
	return dst
}

func (c *Compiler) compileBinary(n *ast.Binary) uint16 {
	left := c.compileExpr(n.Left)
	right := c.compileExpr(n.Right)
	dst := c.allocReg()
	if op, ok := binOps[n.Op]; ok {
		c.emit(bytecode.Instr{Op: op, A: dst, B: bytecode.RKRegister(left), C: bytecode.RKRegister(right)})
		return dst
	}
	if op, ok := cmpOps[n.Op]; ok {
		c.emit(bytecode.Instr{Op: op, A: dst, B: bytecode.RKRegister(left), C: bytecode.RKRegister(right)})
		return dst
	}
	if n.Op == "in" {
		c.emit(bytecode.Instr{Op: bytecode.OpIn, A: dst, B: bytecode.RKRegister(left), C: bytecode.RKRegister(right)})
		return dst
	}
	c.fail("compiler: unknown binary operator %q", n.Op)
	return 0
}

// compileLogical lowers `&&`/`||` via JmpFalseSet/JmpTrueSet (spec §4.3.3):
// evaluate left into dst, then conditionally skip right.
func (c *Compiler) compileLogical(n *ast.Logical) uint16 {
	left := c.compileExpr(n.Left)
	dst := c.allocReg()
	c.emit(bytecode.Instr{Op: bytecode.OpMove, A: dst, B: bytecode.RKRegister(left)})
	op := bytecode.OpJmpFalseSet
	if n.Op == "||" {
		op = bytecode.OpJmpTrueSet
	}
	skip := c.emit(bytecode.Instr{Op: op, A: dst, B: bytecode.RKRegister(dst)})
	right := c.compileExpr(n.Right)
	c.emit(bytecode.Instr{Op: bytecode.OpMove, A: dst, B: bytecode.RKRegister(right)})
	c.patchJump(skip, c.pc())
	return dst
}

func (c *Compiler) compileConditional(n *ast.Conditional) uint16 {
	cond := c.compileExpr(n.Cond)
	dst := c.allocReg()
	jf := c.emit(bytecode.Instr{Op: bytecode.OpJmpFalse, A: cond})
	then := c.compileExpr(n.Then)
	c.emit(bytecode.Instr{Op: bytecode.OpMove, A: dst, B: bytecode.RKRegister(then)})
	jEnd := c.emit(bytecode.Instr{Op: bytecode.OpJmp})
	c.patchJump(jf, c.pc())
	els := c.compileExpr(n.Else)
	c.emit(bytecode.Instr{Op: bytecode.OpMove, A: dst, B: bytecode.RKRegister(els)})
	c.patchJump(jEnd, c.pc())
	return dst
}

func (c *Compiler) compileListLit(n *ast.ListLit) uint16 {
	mark := c.mark()
	base := c.allocRegs(len(n.Elems))
	for i, el := range n.Elems {
		r := c.compileExpr(el)
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: base + uint16(i), B: bytecode.RKRegister(r)})
	}
	c.freeTo(base + uint16(len(n.Elems)))
	dst := c.allocReg()
	c.emit(bytecode.Instr{Op: bytecode.OpBuildList, A: dst, B: bytecode.RKRegister(base), Aux: []uint16{uint16(len(n.Elems))}})
	c.freeTo(mark)
	return c.reAlloc(dst, mark)
}

// reAlloc re-stakes dst after a freeTo rolled the register counter back
// past it, so the caller's result register remains valid.
func (c *Compiler) reAlloc(dst, mark uint16) uint16 {
	if dst < c.cur.nextReg {
		return dst
	}
	nr := c.allocReg()
	if nr != dst {
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: nr, B: bytecode.RKRegister(dst)})
	}
	return nr
}

func (c *Compiler) compileMapLit(n *ast.MapLit) uint16 {
	mark := c.mark()
	base := c.allocRegs(len(n.Entries) * 2)
	for i, e := range n.Entries {
		kr := c.compileExpr(e.Key)
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: base + uint16(i*2), B: bytecode.RKRegister(kr)})
		vr := c.compileExpr(e.Value)
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: base + uint16(i*2+1), B: bytecode.RKRegister(vr)})
	}
	c.freeTo(base + uint16(len(n.Entries)*2))
	dst := c.allocReg()
	c.emit(bytecode.Instr{Op: bytecode.OpBuildMap, A: dst, B: bytecode.RKRegister(base), Aux: []uint16{uint16(len(n.Entries))}})
	c.freeTo(mark)
	return c.reAlloc(dst, mark)
}

func (c *Compiler) compileStructLit(n *ast.StructLit) uint16 {
	mark := c.mark()
	base := c.allocRegs(len(n.Fields) * 2)
	for i, f := range n.Fields {
		kidx := c.addConst(value.Str(f.Name))
		kr := c.allocReg()
		c.emit(bytecode.Instr{Op: bytecode.OpLoadK, A: kr, B: bytecode.RKConst(kidx)})
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: base + uint16(i*2), B: bytecode.RKRegister(kr)})
		c.freeTo(base + uint16(i*2) + 1)
		vr := c.compileExpr(f.Value)
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: base + uint16(i*2+1), B: bytecode.RKRegister(vr)})
	}
	c.freeTo(base + uint16(len(n.Fields)*2))
	dst := c.allocReg()
	nameIdx := c.addConst(value.Str(n.Name))
	c.emit(bytecode.Instr{Op: bytecode.OpBuildMap, A: dst, B: bytecode.RKRegister(base), C: bytecode.RKConst(nameIdx), Aux: []uint16{uint16(len(n.Fields)), 1}})
	c.freeTo(mark)
	return c.reAlloc(dst, mark)
}

// compileCall lowers both positional-only calls (Call) and calls carrying
// named arguments (CallNamed); the NamedCallPlan itself is computed at
// runtime on every call (vm.buildNamedCallPlan, no cache), so the
// compiler only needs to emit the provided names as a constant-pool list.
func (c *Compiler) compileCall(n *ast.Call) uint16 {
	callee := c.compileExpr(n.Callee)
	mark := c.mark()

	var positional []ast.Arg
	var named []ast.Arg
	for _, a := range n.Args {
		if a.Name == "" {
			positional = append(positional, a)
		} else {
			named = append(named, a)
		}
	}

	posBase := c.allocRegs(len(positional))
	for i, a := range positional {
		r := c.compileExpr(a.Value)
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: posBase + uint16(i), B: bytecode.RKRegister(r)})
	}

	dst := c.allocReg()

	if len(named) == 0 {
		c.freeTo(posBase + uint16(len(positional)))
		c.emit(bytecode.Instr{
			Op: bytecode.OpCall,
			A:  dst, B: bytecode.RKRegister(callee), C: bytecode.RKRegister(posBase),
			Aux: []uint16{uint16(len(positional)), 1},
		})
		c.freeTo(mark)
		return c.reAlloc(dst, mark)
	}

	namedBase := c.allocRegs(len(named))
	names := make([]value.Val, len(named))
	for i, a := range named {
		r := c.compileExpr(a.Value)
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: namedBase + uint16(i), B: bytecode.RKRegister(r)})
		names[i] = value.Str(a.Name)
	}
	namesIdx := c.addConst(value.List(names))
	c.freeTo(namedBase + uint16(len(named)))
	c.emit(bytecode.Instr{
		Op: bytecode.OpCallNamed,
		A:  dst, B: bytecode.RKRegister(callee), C: bytecode.RKConst(namesIdx),
		Aux: []uint16{posBase, uint16(len(positional)), namedBase, uint16(len(named)), 1},
	})
	c.freeTo(mark)
	return c.reAlloc(dst, mark)
}

func (c *Compiler) compileTemplate(n *ast.Template) uint16 {
	mark := c.mark()
	base := c.allocRegs(len(n.Parts))
	for i, p := range n.Parts {
		var r uint16
		if p.Expr == nil {
			kidx := c.addConst(value.Str(p.Literal))
			r = c.allocReg()
			c.emit(bytecode.Instr{Op: bytecode.OpLoadK, A: r, B: bytecode.RKConst(kidx)})
		} else {
			v := c.compileExpr(p.Expr)
			r = c.allocReg()
			c.emit(bytecode.Instr{Op: bytecode.OpToStr, A: r, B: bytecode.RKRegister(v)})
		}
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: base + uint16(i), B: bytecode.RKRegister(r)})
	}
	c.freeTo(base + uint16(len(n.Parts)))
	dst := c.allocReg()
	c.emit(bytecode.Instr{Op: bytecode.OpBuildList, A: dst, B: bytecode.RKRegister(base), Aux: []uint16{uint16(len(n.Parts)), 1 /* concat-mode flag */}})
	c.freeTo(mark)
	return c.reAlloc(dst, mark)
}
