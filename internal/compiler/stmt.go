package compiler

import (
	"lkr/internal/ast"
	"lkr/internal/bytecode"
	"lkr/internal/value"
)

func (c *Compiler) compileStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		mark := c.mark()
		c.compileExpr(n.X)
		c.freeTo(mark)

	case *ast.LetStmt:
		c.compileLet(n)

	case *ast.AssignStmt:
		c.compileAssign(n)

	case *ast.Block:
		c.pushScope()
		mark := c.mark()
		for _, st := range n.Stmts {
			c.compileStmt(st)
		}
		c.freeTo(mark)
		c.popScope()

	case *ast.IfStmt:
		c.compileIf(n)

	case *ast.ForRange:
		c.compileForRange(n)

	case *ast.BreakStmt:
		if len(c.loops) == 0 {
			c.fail("compiler: 'break' outside a loop")
		}
		idx := len(c.loops) - 1
		pc := c.emit(bytecode.Instr{Op: bytecode.OpBreak})
		c.loops[idx].breakJumps = append(c.loops[idx].breakJumps, pc)

	case *ast.ContinueStmt:
		if len(c.loops) == 0 {
			c.fail("compiler: 'continue' outside a loop")
		}
		idx := len(c.loops) - 1
		pc := c.emit(bytecode.Instr{Op: bytecode.OpContinue})
		c.loops[idx].continueJumps = append(c.loops[idx].continueJumps, pc)

	case *ast.ReturnStmt:
		mark := c.mark()
		if n.Value == nil {
			c.emit(bytecode.Instr{Op: bytecode.OpRet, A: 0, Aux: []uint16{0, 0}})
			return
		}
		r := c.compileExpr(n.Value)
		c.emit(bytecode.Instr{Op: bytecode.OpRet, A: r, Aux: []uint16{1, 1}})
		c.freeTo(mark)

	case *ast.FnDecl:
		c.compileFnDecl(n)

	case *ast.StructDecl:
		// Struct shape is a checker-time concern (spec §4.2); the compiler
		// itself never needs the declaration, since StructLit construction
		// builds the field map directly.

	case *ast.TraitDecl:
		// The compiler emits nothing for a trait declaration, and no
		// trait method table is built, either here or by internal/runtime.

	case *ast.ImportStmt:
		// Module resolution is an external collaborator (spec §6.2); the
		// compiler emits nothing here.

	default:
		c.fail("compiler: unsupported statement %T", s)
	}
}

func (c *Compiler) compileLet(n *ast.LetStmt) {
	valReg := c.compileExpr(n.Value)
	if vp, ok := n.Pattern.(ast.VariablePattern); ok {
		var reg uint16
		if n.Const {
			reg = c.declareConstLocal(vp.Name)
		} else {
			reg = c.declareLocal(vp.Name)
		}
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: reg, B: bytecode.RKRegister(valReg)})
		return
	}
	if _, ok := n.Pattern.(ast.WildcardPattern); ok {
		return
	}
	// Structural destructuring: PatternMatchOrFail writes bindings or
	// raises (spec §4.3.4).
	plan, bindings := c.buildPatternPlan(n.Pattern)
	planIdx := len(c.cur.patterns)
	c.cur.patterns = append(c.cur.patterns, plan)
	for _, b := range bindings {
		var reg uint16
		if n.Const {
			reg = c.declareConstLocal(b.Name)
		} else {
			reg = c.declareLocal(b.Name)
		}
		plan.Bindings = append(plan.Bindings, bytecode.PatternBinding{Name: b.Name, Reg: reg})
	}
	c.cur.patterns[planIdx] = plan
	kidx := c.addConst(value.Str("pattern match failed in let binding"))
	c.emit(bytecode.Instr{Op: bytecode.OpPatternMatchOrFail, A: valReg, B: bytecode.RKConst(kidx), Aux: []uint16{uint16(planIdx)}})
}

// buildPatternPlan walks a Pattern and returns the plan shell plus the
// binding names it introduces, in left-to-right order.
func (c *Compiler) buildPatternPlan(p ast.Pattern) (bytecode.PatternPlan, []ast.Binding) {
	var names []ast.Binding
	collectPatternNames(p, &names)
	return bytecode.PatternPlan{Pattern: p}, names
}

func collectPatternNames(p ast.Pattern, out *[]ast.Binding) {
	switch n := p.(type) {
	case ast.VariablePattern:
		*out = append(*out, ast.Binding{Name: n.Name})
	case ast.ListPattern:
		for _, e := range n.Elems {
			collectPatternNames(e, out)
		}
		if n.Rest != "" {
			*out = append(*out, ast.Binding{Name: n.Rest})
		}
	case ast.MapPattern:
		for _, e := range n.Entries {
			collectPatternNames(e.Pattern, out)
		}
		if n.Rest != "" {
			*out = append(*out, ast.Binding{Name: n.Rest})
		}
	case ast.GuardPattern:
		collectPatternNames(n.Inner, out)
	case ast.OrPattern:
		if len(n.Alts) > 0 {
			collectPatternNames(n.Alts[0], out)
		}
	}
}

func (c *Compiler) compileAssign(n *ast.AssignStmt) {
	val := c.compileExpr(n.Value)
	switch t := n.Target.(type) {
	case *ast.Ident:
		if reg, ok := c.resolveLocal(c.cur, t.Name); ok {
			c.emit(bytecode.Instr{Op: bytecode.OpMove, A: reg, B: bytecode.RKRegister(val)})
			return
		}
		kidx := c.addConst(value.Str(t.Name))
		c.emit(bytecode.Instr{Op: bytecode.OpDefineGlobal, A: val, B: bytecode.RKConst(kidx)})
	case *ast.Access:
		obj := c.compileExpr(t.Object)
		kidx := c.addConst(value.Str(t.Field))
		c.emit(bytecode.Instr{Op: bytecode.OpAccessK, A: val, B: bytecode.RKRegister(obj), C: bytecode.RKConst(kidx), Aux: []uint16{1 /* store mode */}})
	case *ast.Index:
		obj := c.compileExpr(t.Object)
		key := c.compileExpr(t.Key)
		c.emit(bytecode.Instr{Op: bytecode.OpIndex, A: val, B: bytecode.RKRegister(obj), C: bytecode.RKRegister(key), Aux: []uint16{1 /* store mode */}})
	default:
		c.fail("compiler: invalid assignment target %T", n.Target)
	}
}

func (c *Compiler) compileIf(n *ast.IfStmt) {
	cond := c.compileExpr(n.Cond)
	jf := c.emit(bytecode.Instr{Op: bytecode.OpJmpFalse, A: cond})
	c.compileStmt(n.Then)
	if n.Else == nil {
		c.patchJump(jf, c.pc())
		return
	}
	jEnd := c.emit(bytecode.Instr{Op: bytecode.OpJmp})
	c.patchJump(jf, c.pc())
	c.compileStmt(n.Else)
	c.patchJump(jEnd, c.pc())
}

// compileForRange lowers the range-loop construct via ForRangePrep/Loop/Step
// (spec §4.5.5) when Iterable is set, or via ToIter+general iteration when
// ranging over an arbitrary Source value.
func (c *Compiler) compileForRange(n *ast.ForRange) {
	c.pushScope()
	indReg := c.declareLocal(n.Induction)

	if n.Iterable != nil {
		c.compileRangeLoop(n, indReg)
		c.popScope()
		return
	}

	src := c.compileExpr(n.Source)
	iter := c.allocReg()
	c.emit(bytecode.Instr{Op: bytecode.OpToIter, A: iter, B: bytecode.RKRegister(src)})

	guard := c.pc()
	c.loops = append(c.loops, loopCtx{})
	jEnd := c.emit(bytecode.Instr{Op: bytecode.OpForRangeLoop, A: indReg, B: bytecode.RKRegister(iter)})
	c.compileStmt(n.Body)
	contTarget := c.pc()
	c.emit(bytecode.Instr{Op: bytecode.OpForRangeStep, A: iter, ImmOfs: int32(guard - c.pc())})
	loopIdx := len(c.loops) - 1
	for _, bj := range c.loops[loopIdx].breakJumps {
		c.patchJump(bj, c.pc())
	}
	for _, cj := range c.loops[loopIdx].continueJumps {
		c.patchJump(cj, contTarget)
	}
	c.patchJump(jEnd, c.pc())
	c.loops = c.loops[:loopIdx]
	c.popScope()
}

func (c *Compiler) compileRangeLoop(n *ast.ForRange, indReg uint16) {
	rng := n.Iterable
	startReg := c.allocReg()
	if rng.Start != nil {
		s := c.compileExpr(rng.Start)
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: startReg, B: bytecode.RKRegister(s)})
	} else {
		kidx := c.addConst(value.Int(0))
		c.emit(bytecode.Instr{Op: bytecode.OpLoadK, A: startReg, B: bytecode.RKConst(kidx)})
	}
	limitReg := c.allocReg()
	hasLimit := uint16(0)
	if rng.End != nil {
		e := c.compileExpr(rng.End)
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: limitReg, B: bytecode.RKRegister(e)})
		hasLimit = 1
	}
	stepReg := c.allocReg()
	hasStep := uint16(0)
	if rng.Step != nil {
		s := c.compileExpr(rng.Step)
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: stepReg, B: bytecode.RKRegister(s)})
		hasStep = 1
	}
	inclusive := uint16(0)
	if rng.Inclusive {
		inclusive = 1
	}
	c.emit(bytecode.Instr{
		Op: bytecode.OpForRangePrep,
		A:  indReg, B: bytecode.RKRegister(startReg), C: bytecode.RKRegister(limitReg),
		Aux: []uint16{stepReg, inclusive, hasLimit, hasStep},
	})

	guard := c.pc()
	c.loops = append(c.loops, loopCtx{})
	jEnd := c.emit(bytecode.Instr{Op: bytecode.OpForRangeLoop, A: indReg})
	c.compileStmt(n.Body)
	contTarget := c.pc()
	c.emit(bytecode.Instr{Op: bytecode.OpForRangeStep, A: indReg, ImmOfs: int32(guard - c.pc())})
	loopIdx := len(c.loops) - 1
	for _, bj := range c.loops[loopIdx].breakJumps {
		c.patchJump(bj, c.pc())
	}
	for _, cj := range c.loops[loopIdx].continueJumps {
		c.patchJump(cj, contTarget)
	}
	c.patchJump(jEnd, c.pc())
	c.loops = c.loops[:loopIdx]
}

func (c *Compiler) compileFnDecl(n *ast.FnDecl) {
	reg := c.declareLocal(n.Name)
	closureReg := c.compileClosureLit(n.Closure)
	c.emit(bytecode.Instr{Op: bytecode.OpMove, A: reg, B: bytecode.RKRegister(closureReg)})
}
