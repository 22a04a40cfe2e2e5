// Package compiler lowers the AST into a register-based bytecode.Function
// (spec §4.3). Register allocation, scope chaining and loop break/continue
// bookkeeping are grounded on the teacher's internal/compregister/compiler.go
// (RegisterAllocator, Scope, LoopInfo), generalized to the ast package's
// richer node set (ranges, templates, match/select, named parameters).
package compiler

import (
	"fmt"

	"lkr/internal/ast"
	"lkr/internal/bytecode"
	"lkr/internal/value"
)

// CompileError is a compiler-internal failure; the caller wraps it as a
// lkrerr RuntimeError/TypeError as appropriate.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string { return e.Message }

type localVar struct {
	name    string
	reg     uint16
	isConst bool
}

type scope struct {
	parent *scope
	locals []localVar
}

type loopCtx struct {
	breakJumps    []int
	continueJumps []int
}

// frame is the compilation state for one Function unit (top-level program
// or one closure body). Nested closures get a child frame linked via
// parent, which is how captures are resolved outward (spec §4.3.1).
type frame struct {
	parent *frame

	consts   []value.Val
	code     []bytecode.Instr
	nextReg  uint16
	maxReg   uint16
	sc       *scope
	protos   []*bytecode.ClosureProto
	patterns []bytecode.PatternPlan

	captures     []value.CaptureSpec
	captureRegs  []uint16
	captureIndex map[string]int
}

func newFrame(parent *frame) *frame {
	return &frame{parent: parent, sc: &scope{}, captureIndex: map[string]int{}}
}

// Compiler drives a single top-level compilation; CompileProgram is re-entrant
// per call (spec §2: "the compiler runs once per top-level unit and per
// closure").
type Compiler struct {
	cur   *frame
	loops []loopCtx

	// lastClosureCaptures/lastClosureCaptureRegs are set by
	// compileClosureBody right before it restores the parent frame, so
	// compileClosureLit can attach them to the ClosureProto it's
	// building (a frame's captures only exist while it's c.cur).
	lastClosureCaptures    []value.CaptureSpec
	lastClosureCaptureRegs []uint16
}

func New() *Compiler { return &Compiler{} }

// CompileProgram lowers a whole parsed source file into the implicit
// top-level Function (its "body" is a sequence of statements executed for
// side effect, ending in an implicit Ret of Nil).
func (c *Compiler) CompileProgram(stmts []ast.Stmt) (fn *bytecode.Function, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()
	c.cur = newFrame(nil)
	for _, s := range stmts {
		c.compileStmt(s)
	}
	c.emit(bytecode.Instr{Op: bytecode.OpRet, A: 0, Aux: []uint16{0, 0}})
	return c.finishFrame("main"), nil
}

// compileClosureBody compiles one closure's body into its own Function,
// given the prototype that names its parameters and captures, linked to
// parent for outward capture resolution (spec §3.7, §4.5.6).
func (c *Compiler) compileClosureBody(proto *bytecode.ClosureProto, parent *frame) *bytecode.Function {
	saved := c.cur
	c.cur = newFrame(parent)
	for _, p := range proto.PosParams {
		c.declareLocal(p)
	}
	for _, np := range proto.NamedParams {
		c.declareLocal(np.Name)
	}
	if proto.Body != nil {
		c.compileStmt(proto.Body)
	}
	c.emit(bytecode.Instr{Op: bytecode.OpRet, A: 0, Aux: []uint16{0, 0}})
	fn := c.finishFrame(proto.Name)
	c.lastClosureCaptures = c.cur.captures
	c.lastClosureCaptureRegs = c.cur.captureRegs
	c.cur = saved
	return fn
}

func (c *Compiler) finishFrame(name string) *bytecode.Function {
	f := c.cur
	layout := map[string]int{}
	return &bytecode.Function{
		Name:             name,
		Consts:           f.consts,
		Code:             f.code,
		NRegs:            f.maxReg,
		Protos:           f.protos,
		NamedParamLayout: layout,
		PatternPlans:     f.patterns,
	}
}

func (c *Compiler) fail(format string, args ...interface{}) {
	panic(&CompileError{Message: fmt.Sprintf(format, args...)})
}

// ---- emission helpers ----

func (c *Compiler) emit(i bytecode.Instr) int {
	c.cur.code = append(c.cur.code, i)
	return len(c.cur.code) - 1
}

func (c *Compiler) pc() int { return len(c.cur.code) }

func (c *Compiler) patchJump(at int, target int) {
	c.cur.code[at].ImmOfs = int32(target - at)
}

func (c *Compiler) addConst(v value.Val) uint16 {
	for i, ex := range c.cur.consts {
		if ex.Kind == v.Kind && value.Equal(ex, v) {
			return uint16(i)
		}
	}
	c.cur.consts = append(c.cur.consts, v)
	return uint16(len(c.cur.consts) - 1)
}

// ---- register allocation ----

func (c *Compiler) allocReg() uint16 {
	r := c.cur.nextReg
	c.cur.nextReg++
	if c.cur.nextReg > c.cur.maxReg {
		c.cur.maxReg = c.cur.nextReg
	}
	return r
}

// allocRegs allocates n consecutive registers, used for call argument
// windows and aggregate-literal element lists.
func (c *Compiler) allocRegs(n int) uint16 {
	base := c.cur.nextReg
	c.cur.nextReg += uint16(n)
	if c.cur.nextReg > c.cur.maxReg {
		c.cur.maxReg = c.cur.nextReg
	}
	return base
}

func (c *Compiler) freeTo(mark uint16) {
	if mark < c.cur.nextReg {
		c.cur.nextReg = mark
	}
}

func (c *Compiler) mark() uint16 { return c.cur.nextReg }

// ---- scopes & locals ----

func (c *Compiler) pushScope() { c.cur.sc = &scope{parent: c.cur.sc} }
func (c *Compiler) popScope()  { c.cur.sc = c.cur.sc.parent }

func (c *Compiler) declareLocal(name string) uint16 {
	reg := c.allocReg()
	c.cur.sc.locals = append(c.cur.sc.locals, localVar{name: name, reg: reg})
	return reg
}

func (c *Compiler) declareConstLocal(name string) uint16 {
	reg := c.declareLocal(name)
	c.cur.sc.locals[len(c.cur.sc.locals)-1].isConst = true
	return reg
}

func (c *Compiler) resolveLocal(f *frame, name string) (uint16, bool) {
	for s := f.sc; s != nil; s = s.parent {
		for i := len(s.locals) - 1; i >= 0; i-- {
			if s.locals[i].name == name {
				return s.locals[i].reg, true
			}
		}
	}
	return 0, false
}

// resolveCapture resolves name against enclosing frames, producing a
// Register or Global CaptureSpec (it never produces a Const capture) and
// the index into c.cur.captures it was (or already was) installed at
// (spec §4.3.1).
func (c *Compiler) resolveCapture(name string) (int, bool) {
	if idx, ok := c.cur.captureIndex[name]; ok {
		return idx, true
	}
	if c.cur.parent == nil {
		return 0, false
	}
	if reg, ok := c.resolveLocal(c.cur.parent, name); ok {
		idx := len(c.cur.captures)
		c.cur.captures = append(c.cur.captures, value.CaptureSpec{Name: name, Kind: value.CaptureRegister})
		c.cur.captureRegs = append(c.cur.captureRegs, reg)
		c.cur.captureIndex[name] = idx
		return idx, true
	}
	// Not a local in the immediate parent: recurse outward. If the outer
	// frame itself captures it, we inherit a Global-style re-read; actual
	// constant captures are installed when MakeClosure runs (the compiler
	// only records that a capture slot exists).
	if pidx, ok := c.resolveCaptureIn(c.cur.parent, name); ok {
		idx := len(c.cur.captures)
		c.cur.captures = append(c.cur.captures, value.CaptureSpec{Name: name, Kind: value.CaptureGlobal})
		c.cur.captureRegs = append(c.cur.captureRegs, 0)
		_ = pidx
		c.cur.captureIndex[name] = idx
		return idx, true
	}
	return 0, false
}

func (c *Compiler) resolveCaptureIn(f *frame, name string) (int, bool) {
	if idx, ok := f.captureIndex[name]; ok {
		return idx, true
	}
	return 0, false
}
