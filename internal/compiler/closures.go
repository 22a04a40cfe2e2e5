package compiler

import (
	"lkr/internal/ast"
	"lkr/internal/bytecode"
	"lkr/internal/value"
)

// compileClosureLit compiles a closure literal's body into its own
// Function eagerly (so ClosureProto.Precompiled is always set — the
// once-init cell's lazy path in value.ClosureVal then simply publishes an
// already-available Function, per spec §4.5.6's "if available ...
// published immediately"), resolves its captures against the enclosing
// frame, and emits MakeClosure.
func (c *Compiler) compileClosureLit(n *ast.Closure) uint16 {
	proto := &bytecode.ClosureProto{
		PosParams: n.PosParams,
		Body:      n.Body,
	}
	for _, np := range n.NamedParams {
		decl := value.NamedParamDecl{Name: np.Name, TypeName: np.TypeName, Optional: np.Optional, HasDefault: np.Default != nil}
		if np.Default != nil {
			saved := c.cur
			defFn, _ := c.CompileProgram([]ast.Stmt{&ast.ReturnStmt{Value: np.Default}})
			c.cur = saved
			decl.Default = defFn
		}
		proto.NamedParams = append(proto.NamedParams, decl)
	}

	parentFrame := c.cur
	protoIdx := len(parentFrame.protos)
	parentFrame.protos = append(parentFrame.protos, proto)

	fn := c.compileClosureBody(proto, parentFrame)
	proto.Precompiled = fn
	// compileClosureBody ran in a child frame linked to parentFrame; its
	// accumulated captures (resolved outward via resolveCapture) are the
	// ones this closure actually needs snapshotted at MakeClosure time.
	proto.Captures = c.lastClosureCaptures
	proto.CaptureRegs = c.lastClosureCaptureRegs

	dst := c.allocReg()
	c.emit(bytecode.Instr{Op: bytecode.OpMakeClosure, A: dst, Aux: []uint16{uint16(protoIdx)}})
	return dst
}

// compileMatch lowers a `match` expression into a PatternMatch/JmpFalse
// chain, arms tried top-to-bottom with the first success winning (spec
// §4.3.4, SPEC_FULL §12.3).
func (c *Compiler) compileMatch(n *ast.Match) uint16 {
	disc := c.compileExpr(n.Discriminant)
	dst := c.allocReg()
	var endJumps []int

	for _, arm := range n.Arms {
		c.pushScope()
		plan, bindings := c.buildPatternPlan(arm.Pattern)
		planIdx := len(c.cur.patterns)
		c.cur.patterns = append(c.cur.patterns, plan)
		for _, b := range bindings {
			reg := c.declareLocal(b.Name)
			plan.Bindings = append(plan.Bindings, bytecode.PatternBinding{Name: b.Name, Reg: reg})
		}
		c.cur.patterns[planIdx] = plan

		matched := c.allocReg()
		c.emit(bytecode.Instr{Op: bytecode.OpPatternMatch, A: matched, B: bytecode.RKRegister(disc), Aux: []uint16{uint16(planIdx)}})
		if arm.Guard != nil {
			// The guard runs only after a successful pattern match (its
			// bindings are then in place); its truthiness decides the arm.
			skip := c.emit(bytecode.Instr{Op: bytecode.OpJmpFalse, A: matched})
			g := c.compileExpr(arm.Guard)
			c.emit(bytecode.Instr{Op: bytecode.OpToBool, A: matched, B: bytecode.RKRegister(g)})
			c.patchJump(skip, c.pc())
		}
		jf := c.emit(bytecode.Instr{Op: bytecode.OpJmpFalse, A: matched})
		body := c.compileExpr(arm.Body)
		c.emit(bytecode.Instr{Op: bytecode.OpMove, A: dst, B: bytecode.RKRegister(body)})
		endJumps = append(endJumps, c.emit(bytecode.Instr{Op: bytecode.OpJmp}))
		c.patchJump(jf, c.pc())
		c.popScope()
	}

	// No arm matched: a valid typed program always has an exhaustive
	// match (spec §4.2 "match requires at least one arm"); at runtime an
	// unmatched value raises rather than silently returning Nil.
	kidx := c.addConst(value.Str("no match arm matched"))
	c.emit(bytecode.Instr{Op: bytecode.OpRaise, A: dst, B: bytecode.RKConst(kidx)})

	for _, j := range endJumps {
		c.patchJump(j, c.pc())
	}
	return dst
}

// compileSelect lowers `select { case ch <- v => body, case x = <-ch =>
// body, default => body }` into a Select op carrying one (channel register,
// send-value register, kind 0=recv/1=send/2=default, body-entry offset)
// tuple per case; the runtime collaborator
// performs the actual blocking choice (spec §5, §6).
func (c *Compiler) compileSelect(n *ast.Select) uint16 {
	dst := c.allocReg()
	// Evaluate each case's channel (and send value, if any) up front so
	// the runtime collaborator can poll all of them before committing to
	// one case body (spec §5 "yields to the task runtime only inside
	// select").
	chanRegs := make([]uint16, len(n.Cases))
	sendValRegs := make([]uint16, len(n.Cases))
	kindFlags := make([]uint16, len(n.Cases))
	for i, cs := range n.Cases {
		if cs.IsDefault {
			kindFlags[i] = 2
			continue
		}
		chanRegs[i] = c.compileExpr(cs.Channel)
		if cs.IsSend {
			kindFlags[i] = 1
			sendValRegs[i] = c.compileExpr(cs.Value)
		}
	}

	selIdx := c.emit(bytecode.Instr{Op: bytecode.OpSelect, A: dst})

	// The Select op itself acts as a computed jump: the runtime
	// collaborator picks a ready case (or the default), and the VM sets
	// pc directly to that case's entry, skipping every other case's
	// prologue and body as if dispatching through a jump table.
	entries := make([]uint16, len(n.Cases))
	var endJumps []int
	for i, cs := range n.Cases {
		entries[i] = uint16(c.pc() - selIdx)
		c.pushScope()
		if kindFlags[i] == 0 && cs.Bind != "" {
			reg := c.declareLocal(cs.Bind)
			c.emit(bytecode.Instr{Op: bytecode.OpRecv, A: reg, B: bytecode.RKRegister(chanRegs[i])})
		} else if kindFlags[i] == 1 {
			c.emit(bytecode.Instr{Op: bytecode.OpSend, A: chanRegs[i], B: bytecode.RKRegister(sendValRegs[i])})
		}
		c.compileStmt(cs.Body)
		endJumps = append(endJumps, c.emit(bytecode.Instr{Op: bytecode.OpJmp}))
		c.popScope()
	}

	aux := make([]uint16, 0, len(n.Cases)*4+1)
	aux = append(aux, uint16(len(n.Cases)))
	for i := range n.Cases {
		aux = append(aux, chanRegs[i], sendValRegs[i], kindFlags[i], entries[i])
	}
	c.cur.code[selIdx].Aux = aux

	end := c.pc()
	for _, j := range endJumps {
		c.patchJump(j, end)
	}
	return dst
}
