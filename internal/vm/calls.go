package vm

import (
	"fmt"

	"lkr/internal/bytecode"
	"lkr/internal/observability"
	"lkr/internal/packed"
	"lkr/internal/value"
)

// execMakeClosure snapshots Register/Const captures and records Global
// captures by name, builds the ClosureVal (publishing Precompiled
// immediately if present), and writes it to A (spec §4.5.6).
func (vm *VM) execMakeClosure(ins bytecode.Instr) {
	fr := vm.cur()
	protoIdx := int(ins.Aux[0])
	proto := fr.fn.Protos[protoIdx]

	captures := make([]value.CaptureSpec, len(proto.Captures))
	for i, spec := range proto.Captures {
		switch spec.Kind {
		case value.CaptureRegister:
			var reg uint16
			if i < len(proto.CaptureRegs) {
				reg = proto.CaptureRegs[i]
			}
			captures[i] = value.CaptureSpec{Name: spec.Name, Kind: value.CaptureRegister, Snapshot: vm.reg(reg)}
		case value.CaptureConst:
			captures[i] = spec // already carries its constant Snapshot from compile time
		default:
			captures[i] = value.CaptureSpec{Name: spec.Name, Kind: value.CaptureGlobal}
		}
	}

	cv := &value.ClosureVal{
		Name:        proto.Name,
		PosParams:   proto.PosParams,
		NamedParams: proto.NamedParams,
		Body:        proto.Body,
		Captures:    captures,
	}
	if proto.Precompiled != nil {
		cv.Precompile(proto.Precompiled)
	}
	vm.setReg(ins.A, value.Closure(cv))
}

// execCall implements both the positional (Call) and named (CallNamed)
// calling conventions of spec §4.5.4. argNames is the constant-pool list
// of argument names for CallNamed, nil for plain Call.
func (vm *VM) execCall(ins bytecode.Instr, pc int, argNames []value.Val) error {
	fr := vm.cur()
	callee := vm.rk(ins.B)

	var posBase, posCount, namedBase, namedCount, retCount int
	if argNames == nil {
		// Plain Call: C is the positional-argument window base register;
		// Aux is [posCount, retCount] (spec §4.3.2, compiler's compileCall).
		posBase = int(ins.C.Index())
		posCount = int(ins.Aux[0])
		retCount = int(ins.Aux[1])
	} else {
		// CallNamed: Aux is [posBase, posCount, namedBase, namedCount, retCount].
		posBase = int(ins.Aux[0])
		posCount = int(ins.Aux[1])
		namedBase = int(ins.Aux[2])
		namedCount = int(ins.Aux[3])
		retCount = int(ins.Aux[4])
	}

	posArgs := make([]value.Val, posCount)
	for i := 0; i < posCount; i++ {
		posArgs[i] = vm.regAt(fr, posBase+i)
	}

	var namedArgs []value.NamedArg
	for i := 0; i < namedCount; i++ {
		namedArgs = append(namedArgs, value.NamedArg{
			Name:  argNames[i].S,
			Value: vm.regAt(fr, namedBase+i),
		})
	}

	result, err := vm.callValue(callee, posArgs, namedArgs)
	if err != nil {
		return err
	}
	if retCount > 0 {
		vm.setReg(ins.A, result)
	}
	return nil
}

func (vm *VM) regAt(fr *frame, i int) value.Val {
	return vm.regs[fr.base+i]
}

// callValue dispatches to a native function or a compiled closure,
// pushing a new frame for the latter and running it to completion
// before returning to the caller's dispatch loop (spec §4.5.4: "enter
// the callee via the general interpreter loop").
func (vm *VM) callValue(callee value.Val, positional []value.Val, named []value.NamedArg) (value.Val, error) {
	switch callee.Kind {
	case value.KRustFunction, value.KRustFunctionNamed:
		return callee.Native.Fn(nativeCtx{vm}, positional, named)
	case value.KClosure:
		return vm.callClosure(callee.Closure, positional, named)
	default:
		return value.Nil(), fmt.Errorf("value of kind %s is not callable", callee.Kind)
	}
}

func (vm *VM) callClosure(cv *value.ClosureVal, positional []value.Val, named []value.NamedArg) (value.Val, error) {
	compiled, err := cv.Compile()
	if err != nil {
		return value.Nil(), err
	}
	fn, ok := compiled.(*bytecode.Function)
	if !ok {
		return value.Nil(), fmt.Errorf("closure body did not compile to a bytecode.Function")
	}

	base := len(vm.regs)
	vm.growRegs(base + int(fn.NRegs))

	for i, v := range positional {
		if i < len(cv.PosParams) {
			vm.regs[base+i] = v
		}
	}

	plan, err := vm.buildNamedCallPlan(cv, named)
	if err != nil {
		return value.Nil(), err
	}
	offset := len(cv.PosParams)
	for _, na := range named {
		for pi, decl := range cv.NamedParams {
			if decl.Name == na.Name {
				vm.regs[base+offset+pi] = na.Value
			}
		}
	}
	for _, pi := range plan.OptionalNil {
		vm.regs[base+offset+pi] = value.Nil()
	}
	for _, pi := range plan.DefaultsToEval {
		decl := cv.NamedParams[pi]
		if decl.Default == nil {
			return value.Nil(), fmt.Errorf("missing required named parameter %q", decl.Name)
		}
		defFn, ok := decl.Default.(*bytecode.Function)
		if !ok {
			return value.Nil(), fmt.Errorf("named parameter default did not compile")
		}
		v, err := vm.runNested(defFn)
		if err != nil {
			return value.Nil(), err
		}
		vm.regs[base+offset+pi] = v
	}

	packed.EnsurePacked(fn)
	observability.Global.RecordFrame(fn.PackedWords != nil)
	fr := &frame{fn: fn, base: base, captures: cv.Captures, forRangeStates: map[int]*forRangeState{}}
	vm.frames = append(vm.frames, fr)
	result, err := vm.dispatch()
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.regs = vm.regs[:base]
	return result, err
}

// runNested executes fn as a nested frame that shares the caller's
// register arena growth but not its frame identity — used for named-
// parameter default thunks (spec §4.3.5/§4.5.4).
func (vm *VM) runNested(fn *bytecode.Function) (value.Val, error) {
	base := len(vm.regs)
	vm.growRegs(base + int(fn.NRegs))
	packed.EnsurePacked(fn)
	observability.Global.RecordFrame(fn.PackedWords != nil)
	fr := &frame{fn: fn, base: base, forRangeStates: map[int]*forRangeState{}}
	vm.frames = append(vm.frames, fr)
	result, err := vm.dispatch()
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.regs = vm.regs[:base]
	return result, err
}

// buildNamedCallPlan computes the per-parameter resolution plan for a
// named call: which parameters got a provided value, which need their
// default thunk run, and which are Optional(T) parameters that silently
// receive Nil. The plan is rebuilt on every call; it is not cached
// anywhere. Per spec §8.3 it also
// raises "Duplicate named argument" and "Unknown named argument" errors,
// since neither can be caught any earlier than the concrete callee being
// known (a call site may invoke different closures through a variable).
func (vm *VM) buildNamedCallPlan(cv *value.ClosureVal, named []value.NamedArg) (*bytecode.NamedCallPlan, error) {
	plan := &bytecode.NamedCallPlan{}
	provided := map[string]bool{}
	for _, na := range named {
		if provided[na.Name] {
			return nil, fmt.Errorf("duplicate named argument %q", na.Name)
		}
		provided[na.Name] = true

		known := false
		for _, decl := range cv.NamedParams {
			if decl.Name == na.Name {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown named argument %q", na.Name)
		}
	}
	for pi, decl := range cv.NamedParams {
		switch {
		case provided[decl.Name]:
			plan.ProvidedIndices = append(plan.ProvidedIndices, pi)
		case decl.Optional && !decl.HasDefault:
			plan.OptionalNil = append(plan.OptionalNil, pi)
		default:
			plan.DefaultsToEval = append(plan.DefaultsToEval, pi)
		}
	}
	return plan, nil
}
