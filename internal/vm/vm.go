// Package vm implements the register virtual machine of spec §4.5:
// frame model, dispatch loop, inline caches and calling conventions.
// Field naming (registers, frame stack, globals, inline caches) is
// grounded on the teacher's internal/vmregister/vm.go (RegisterVM,
// CallFrame, InlineCache), generalized to the tagged-sum value.Val model
// and the richer instruction set emitted by internal/compiler. The
// teacher's JIT/hot-loop machinery has no counterpart here: spec.md
// names no JIT, so that surface is dropped rather than adapted (see
// DESIGN.md).
package vm

import (
	"fmt"

	"lkr/internal/bytecode"
	"lkr/internal/observability"
	"lkr/internal/packed"
	"lkr/internal/value"
)

// TaskRuntime is the external collaborator spec §5/§6 delegates
// spawn/channel/select semantics to. internal/runtime implements this
// against golang.org/x/sync/errgroup and a uuid-identified channel
// table; the VM itself holds no concurrency state beyond this handle.
type TaskRuntime interface {
	Spawn(fn func() (value.Val, error)) value.Val
	NewChannel(capacity int) value.Val
	Send(ch value.Val, v value.Val) error
	Recv(ch value.Val) (value.Val, bool, error)
	// Select polls cases until one is ready and returns its index, without
	// performing the transfer itself — the VM follows up with the case's
	// own Recv/Send instruction to actually move the value, so Select only
	// ever needs to answer "which case first became ready". defaultIdx, if
	// >= 0, fires immediately when no case is ready.
	Select(cases []SelectCase, defaultIdx int) (int, error)
}

// SelectCase mirrors the compiler's per-case Aux tuple (kind 0=recv,
// 1=send) for handoff to the TaskRuntime.
type SelectCase struct {
	Chan   value.Val
	IsSend bool
	Send   value.Val
}

// RuntimeError is raised by Raise and by any op that fails at runtime
// (spec §7 "RuntimeError"); the VM itself doesn't unwind host panics for
// these, only for internal invariant violations.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string { return e.Message }

// globalEnv holds top-level bindings plus the generation counter that
// invalidates the global-load inline cache on redefinition (spec
// §4.5.3).
type globalEnv struct {
	vals       map[string]value.Val
	generation uint64
}

func newGlobalEnv() *globalEnv {
	return &globalEnv{vals: map[string]value.Val{}}
}

func (g *globalEnv) get(name string) (value.Val, bool) {
	v, ok := g.vals[name]
	return v, ok
}

func (g *globalEnv) set(name string, v value.Val) {
	g.vals[name] = v
	g.generation++
}

// frame is one active invocation's register window plus resume
// bookkeeping, matching spec §4.5.1's { base, return_info, captures? }.
type frame struct {
	fn       *bytecode.Function
	base     int
	pc       int
	retBase  int // destination register in the caller for the return value
	retCount int
	captures []value.CaptureSpec

	forRangeStates map[int]*forRangeState
}

type forRangeState struct {
	current    int64
	limit      int64
	hasLimit   bool
	step       int64
	inclusive  bool
	isIterable bool // true: current indexes into the source list/string rather than being the value itself
}

// callICEntry is the entry type of VM.callIC (argument count plus a
// named-call plan); no op handler populates callIC.
type callICEntry struct {
	argc int
	plan *bytecode.NamedCallPlan
}

// VM executes compiled Functions against a shared register vector and
// global environment. A VM is single-goroutine; concurrent lkr tasks
// are separate VM instances sharing Runtime (spec §5 "isolated VM
// instances communicating only through channels").
type VM struct {
	regs    []value.Val
	frames  []*frame
	globals *globalEnv
	Runtime TaskRuntime

	// globalIC caches global loads keyed by name (spec §4.5.3). callIC is
	// keyed per (function pointer, pc), but no op handler reads or writes
	// it. There is no access or index cache: Access and Index are
	// evaluated directly each time.
	globalIC map[string]globalICEntry
	callIC   map[callSite]*callICEntry
}

type globalICEntry struct {
	generation uint64
	val        value.Val
}

type callSite struct {
	fn *bytecode.Function
	pc int
}

// New creates a VM with a fresh global environment. Runtime may be nil
// for programs that never spawn/send/recv/select; any concurrency op
// on a nil Runtime raises a RuntimeError rather than panicking.
func New(rt TaskRuntime) *VM {
	return &VM{
		globals:  newGlobalEnv(),
		Runtime:  rt,
		globalIC: map[string]globalICEntry{},
		callIC:   map[callSite]*callICEntry{},
	}
}

// SetGlobal/GetGlobal let the host (CLI, native stdlib bootstrap)
// seed/read top-level bindings before and after a run.
func (vm *VM) SetGlobal(name string, v value.Val) { vm.globals.set(name, v) }
func (vm *VM) GetGlobal(name string) (value.Val, bool) {
	return vm.globals.get(name)
}

// Run executes fn as the outermost frame and returns its Ret value
// (spec §4.5.2 "both loops return when Ret is executed at the outermost
// frame").
func (vm *VM) Run(fn *bytecode.Function) (value.Val, error) {
	packed.EnsurePacked(fn) // populates fn.PackedWords/fn.Decoded; dispatch picks the packed fetch path off their presence
	observability.Global.RecordFrame(fn.PackedWords != nil)

	base := len(vm.regs)
	vm.growRegs(base + int(fn.NRegs))
	fr := &frame{fn: fn, base: base, forRangeStates: map[int]*forRangeState{}}
	vm.frames = append(vm.frames, fr)

	result, err := vm.dispatch()
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.regs = vm.regs[:base]
	return result, err
}

func (vm *VM) growRegs(n int) {
	for len(vm.regs) < n {
		vm.regs = append(vm.regs, value.Nil())
	}
}

func (vm *VM) cur() *frame { return vm.frames[len(vm.frames)-1] }

func (vm *VM) reg(i uint16) value.Val {
	return vm.regs[vm.cur().base+int(i)]
}

func (vm *VM) setReg(i uint16, v value.Val) {
	vm.regs[vm.cur().base+int(i)] = v
}

// rk resolves an RK operand against the current frame's constants or
// register window.
func (vm *VM) rk(r bytecode.RK) value.Val {
	if r.IsConst() {
		return vm.cur().fn.Consts[r.Index()]
	}
	return vm.reg(r.Index())
}

// NativeContext lets a native function call back into the VM without
// value importing vm (spec §6.4).
type nativeCtx struct{ vm *VM }

func (n nativeCtx) GetGlobal(name string) (value.Val, bool) { return n.vm.GetGlobal(name) }
func (n nativeCtx) SetGlobal(name string, v value.Val)       { n.vm.SetGlobal(name, v) }
func (n nativeCtx) Call(callee value.Val, args []value.Val) (value.Val, error) {
	return n.vm.callValue(callee, args, nil)
}

func (vm *VM) fail(format string, args ...interface{}) (value.Val, error) {
	return value.Nil(), &RuntimeError{Message: fmt.Sprintf(format, args...)}
}
