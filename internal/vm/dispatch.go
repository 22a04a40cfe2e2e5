package vm

import (
	"strings"

	"lkr/internal/bytecode"
	"lkr/internal/value"
)

// dispatch runs the per-frame instruction loop of spec §4.5.2. When
// packed.EnsurePacked succeeded for fr.fn (fn.PackedWords != nil), the
// fetch step walks fn.Decoded — the side table packed.Encode built
// alongside the word stream — instead of fn.Code directly; every op
// handler below is shared unchanged between the two, since a
// DecodedEntry carries the exact same Instr Encode packed, one entry per
// instruction, so fr.pc and jump offsets count instructions on both
// paths (spec §4.4.3
// "packing never changes observable semantics"). Packing failure (an
// unsupported op, an operand or branch target out of range) leaves
// PackedWords nil forever for that Function, and the loop below falls
// straight back to fn.Code with no cost beyond the one failed attempt.
func (vm *VM) dispatch() (value.Val, error) {
	fr := vm.cur()
	packedRun := fr.fn.PackedWords != nil
	for {
		var ins bytecode.Instr
		pc := fr.pc
		if packedRun {
			if fr.pc >= len(fr.fn.Decoded) {
				return value.Nil(), nil
			}
			entry := fr.fn.Decoded[fr.pc]
			ins = entry.Instr
			fr.pc = entry.NextPC
		} else {
			if fr.pc >= len(fr.fn.Code) {
				return value.Nil(), nil
			}
			ins = fr.fn.Code[fr.pc]
			fr.pc++
		}

		switch ins.Op {
		case bytecode.OpMove:
			vm.setReg(ins.A, vm.rk(ins.B))

		case bytecode.OpLoadK:
			vm.setReg(ins.A, vm.rk(ins.B))

		case bytecode.OpLoadLocal, bytecode.OpStoreLocal:
			// Locals live directly in the register window; these ops are
			// reserved for a future stack-spill path and are no-ops today.

		case bytecode.OpLoadGlobal:
			name := vm.rk(ins.B).S
			v, ok := vm.loadGlobalCached(name)
			if !ok {
				return vm.fail("undefined global %q", name)
			}
			vm.setReg(ins.A, v)

		case bytecode.OpDefineGlobal:
			name := vm.rk(ins.B).S
			vm.globals.set(name, vm.reg(ins.A))

		case bytecode.OpLoadCapture:
			idx := int(ins.Aux[0])
			if idx >= len(fr.captures) {
				return vm.fail("capture index %d out of range", idx)
			}
			cap := fr.captures[idx]
			if cap.Kind == value.CaptureGlobal {
				v, ok := vm.globals.get(cap.Name)
				if !ok {
					return vm.fail("undefined global capture %q", cap.Name)
				}
				vm.setReg(ins.A, v)
			} else {
				vm.setReg(ins.A, cap.Snapshot)
			}

		case bytecode.OpAdd, bytecode.OpAddInt, bytecode.OpAddFloat:
			if v, err := arith(vm.rk(ins.B), vm.rk(ins.C), '+'); err != nil {
				return vm.fail("%s", err)
			} else {
				vm.setReg(ins.A, v)
			}
		case bytecode.OpSub, bytecode.OpSubInt, bytecode.OpSubFloat:
			if v, err := arith(vm.rk(ins.B), vm.rk(ins.C), '-'); err != nil {
				return vm.fail("%s", err)
			} else {
				vm.setReg(ins.A, v)
			}
		case bytecode.OpMul, bytecode.OpMulInt, bytecode.OpMulFloat:
			if v, err := arith(vm.rk(ins.B), vm.rk(ins.C), '*'); err != nil {
				return vm.fail("%s", err)
			} else {
				vm.setReg(ins.A, v)
			}
		case bytecode.OpDiv, bytecode.OpDivInt, bytecode.OpDivFloat:
			if v, err := arith(vm.rk(ins.B), vm.rk(ins.C), '/'); err != nil {
				return vm.fail("%s", err)
			} else {
				vm.setReg(ins.A, v)
			}
		case bytecode.OpMod, bytecode.OpModInt, bytecode.OpModFloat:
			if v, err := arith(vm.rk(ins.B), vm.rk(ins.C), '%'); err != nil {
				return vm.fail("%s", err)
			} else {
				vm.setReg(ins.A, v)
			}
		case bytecode.OpAddIntImm:
			b := vm.rk(ins.B)
			vm.setReg(ins.A, value.Int(b.I+int64(ins.ImmOfs)))

		case bytecode.OpCmpEq:
			vm.setReg(ins.A, value.Bool(value.Equal(vm.rk(ins.B), vm.rk(ins.C))))
		case bytecode.OpCmpNe:
			vm.setReg(ins.A, value.Bool(!value.Equal(vm.rk(ins.B), vm.rk(ins.C))))
		case bytecode.OpCmpLt, bytecode.OpCmpLe, bytecode.OpCmpGt, bytecode.OpCmpGe:
			r, err := compareOrdered(vm.rk(ins.B), vm.rk(ins.C), ins.Op)
			if err != nil {
				return vm.fail("%s", err)
			}
			vm.setReg(ins.A, value.Bool(r))
		case bytecode.OpCmpEqImm:
			vm.setReg(ins.A, value.Bool(vm.rk(ins.B).I == int64(ins.ImmOfs)))
		case bytecode.OpCmpLtImm:
			vm.setReg(ins.A, value.Bool(vm.rk(ins.B).I < int64(ins.ImmOfs)))
		case bytecode.OpIn:
			vm.setReg(ins.A, value.Bool(contains(vm.rk(ins.C), vm.rk(ins.B))))

		case bytecode.OpNot:
			vm.setReg(ins.A, value.Bool(!vm.rk(ins.B).Truth()))
		case bytecode.OpNeg:
			b := vm.rk(ins.B)
			if b.Kind == value.KFloat {
				vm.setReg(ins.A, value.Float(-b.F))
			} else {
				vm.setReg(ins.A, value.Int(-b.I))
			}

		case bytecode.OpJmp:
			fr.pc = pc + int(ins.ImmOfs)
		case bytecode.OpJmpFalse:
			if !vm.reg(ins.A).Truth() {
				fr.pc = pc + int(ins.ImmOfs)
			}
		case bytecode.OpJmpIfNil:
			if vm.reg(ins.A).IsNil() {
				fr.pc = pc + int(ins.ImmOfs)
			}
		case bytecode.OpJmpIfNotNil:
			if !vm.reg(ins.A).IsNil() {
				fr.pc = pc + int(ins.ImmOfs)
			}
		case bytecode.OpJmpFalseSet:
			// short-circuit &&: if A is false, it already holds the
			// short-circuit result; else fall through to evaluate the RHS.
			if !vm.reg(ins.A).Truth() {
				fr.pc = pc + int(ins.ImmOfs)
			}
		case bytecode.OpJmpTrueSet:
			if vm.reg(ins.A).Truth() {
				fr.pc = pc + int(ins.ImmOfs)
			}
		case bytecode.OpNullishPick:
			if !vm.reg(ins.A).IsNil() {
				fr.pc = pc + int(ins.ImmOfs)
			}
		case bytecode.OpBreak, bytecode.OpContinue:
			fr.pc = pc + int(ins.ImmOfs)

		case bytecode.OpForRangePrep:
			if err := vm.forRangePrep(pc, ins); err != nil {
				return value.Nil(), err
			}
		case bytecode.OpForRangeLoop:
			// On "continue" fr.pc already advanced past this instruction
			// (into the loop body) from the fetch at the top of the loop.
			// On "end" the compiler patched ImmOfs to land just after the
			// matching ForRangeStep, exactly like a plain Jmp.
			if vm.forRangeLoop(pc, ins) {
				fr.pc = pc + int(ins.ImmOfs)
			}
		case bytecode.OpForRangeStep:
			vm.forRangeStep(pc, ins)
			fr.pc = pc + int(ins.ImmOfs)

		case bytecode.OpBuildList:
			n := 0
			if len(ins.Aux) > 0 {
				n = int(ins.Aux[0])
			}
			concatMode := len(ins.Aux) > 1 && ins.Aux[1] == 1
			base := ins.B.Index()
			if concatMode {
				var sb strings.Builder
				for i := 0; i < n; i++ {
					sb.WriteString(vm.reg(base + uint16(i)).S)
				}
				vm.setReg(ins.A, value.Str(sb.String()))
				break
			}
			items := make([]value.Val, n)
			for i := 0; i < n; i++ {
				items[i] = vm.reg(base + uint16(i))
			}
			vm.setReg(ins.A, value.List(items))
		case bytecode.OpBuildMap:
			n := 0
			objectMode := false
			if len(ins.Aux) > 0 {
				n = int(ins.Aux[0])
			}
			if len(ins.Aux) > 1 && ins.Aux[1] == 1 {
				objectMode = true
			}
			entries := map[string]value.Val{}
			base := ins.B.Index()
			for i := 0; i < n; i++ {
				key := vm.reg(base + uint16(i*2)).S
				val := vm.reg(base + uint16(i*2+1))
				entries[key] = val
			}
			if objectMode {
				name := vm.rk(ins.C).S
				vm.setReg(ins.A, value.Object(name, entries))
			} else {
				vm.setReg(ins.A, value.Map(entries))
			}
		case bytecode.OpListSlice:
			lst := vm.rk(ins.B)
			lo, hi := 0, len(lst.List)
			if len(ins.Aux) > 0 {
				lo = int(ins.Aux[0])
			}
			if len(ins.Aux) > 1 {
				hi = int(ins.Aux[1])
			}
			if lo < 0 {
				lo = 0
			}
			if hi > len(lst.List) {
				hi = len(lst.List)
			}
			if lo > hi {
				lo = hi
			}
			out := make([]value.Val, hi-lo)
			copy(out, lst.List[lo:hi])
			vm.setReg(ins.A, value.List(out))
		case bytecode.OpLen:
			n, _ := vm.rk(ins.B).Len()
			vm.setReg(ins.A, value.Int(int64(n)))

		case bytecode.OpIndex:
			obj := vm.rk(ins.B)
			key := vm.rk(ins.C)
			if len(ins.Aux) > 0 && ins.Aux[0] == 1 {
				vm.storeIndex(obj, key, vm.reg(ins.A))
			} else {
				vm.setReg(ins.A, indexVal(obj, key))
			}
		case bytecode.OpIndexK:
			obj := vm.rk(ins.B)
			vm.setReg(ins.A, indexVal(obj, vm.rk(ins.C)))

		case bytecode.OpAccess:
			obj := vm.rk(ins.B)
			key := vm.rk(ins.C).S
			vm.setReg(ins.A, vm.accessCached(obj, key, pc))
		case bytecode.OpAccessK:
			obj := vm.rk(ins.B)
			key := vm.rk(ins.C).S
			if len(ins.Aux) > 0 && ins.Aux[0] == 1 {
				vm.storeAccess(obj, key, vm.reg(ins.A))
			} else {
				vm.setReg(ins.A, vm.accessCached(obj, key, pc))
			}

		case bytecode.OpToIter:
			vm.setReg(ins.A, vm.rk(ins.B))
		case bytecode.OpToBool:
			vm.setReg(ins.A, value.Bool(vm.rk(ins.B).Truth()))
		case bytecode.OpToStr:
			vm.setReg(ins.A, value.Str(vm.rk(ins.B).String()))

		case bytecode.OpCall:
			if err := vm.execCall(ins, pc, nil); err != nil {
				return value.Nil(), err
			}
		case bytecode.OpCallNamed:
			if err := vm.execCall(ins, pc, vm.rk(ins.C).List); err != nil {
				return value.Nil(), err
			}

		case bytecode.OpMakeClosure:
			vm.execMakeClosure(ins)

		case bytecode.OpPatternMatch:
			planIdx := int(ins.Aux[0])
			plan := fr.fn.PatternPlans[planIdx]
			ok := vm.matchPattern(plan.Pattern, vm.rk(ins.B), plan.Bindings)
			vm.setReg(ins.A, value.Bool(ok))
		case bytecode.OpPatternMatchOrFail:
			planIdx := int(ins.Aux[0])
			plan := fr.fn.PatternPlans[planIdx]
			if !vm.matchPattern(plan.Pattern, vm.rk(ins.A), plan.Bindings) {
				return vm.fail("%s", vm.rk(ins.B).S)
			}
		case bytecode.OpRaise:
			return vm.fail("%s", vm.rk(ins.B).S)

		case bytecode.OpSend:
			if vm.Runtime == nil {
				return vm.fail("channel send with no task runtime attached")
			}
			if err := vm.Runtime.Send(vm.reg(ins.A), vm.rk(ins.B)); err != nil {
				return value.Nil(), err
			}
		case bytecode.OpRecv:
			if vm.Runtime == nil {
				return vm.fail("channel recv with no task runtime attached")
			}
			v, _, err := vm.Runtime.Recv(vm.rk(ins.B))
			if err != nil {
				return value.Nil(), err
			}
			vm.setReg(ins.A, v)
		case bytecode.OpSpawn:
			if vm.Runtime == nil {
				return vm.fail("spawn with no task runtime attached")
			}
			callee := vm.rk(ins.B)
			vm.setReg(ins.A, vm.Runtime.Spawn(func() (value.Val, error) {
				return vm.callValue(callee, nil, nil)
			}))
		case bytecode.OpSelect:
			if err := vm.execSelect(ins, pc); err != nil {
				return value.Nil(), err
			}

		case bytecode.OpRet:
			if len(ins.Aux) > 0 && ins.Aux[0] == 1 {
				return vm.reg(ins.A), nil
			}
			return value.Nil(), nil

		default:
			return vm.fail("unimplemented opcode %s", ins.Op)
		}
	}
}

func (vm *VM) loadGlobalCached(name string) (value.Val, bool) {
	if e, ok := vm.globalIC[name]; ok && e.generation == vm.globals.generation {
		return e.val, true
	}
	v, ok := vm.globals.get(name)
	if ok {
		vm.globalIC[name] = globalICEntry{generation: vm.globals.generation, val: v}
	}
	return v, ok
}

// accessCached evaluates the access directly on every execution: it
// keeps no access inline cache, and pc is unused.
func (vm *VM) accessCached(obj value.Val, key string, pc int) value.Val {
	return obj.Access(key)
}

func (vm *VM) storeAccess(obj value.Val, key string, v value.Val) {
	switch obj.Kind {
	case value.KObject:
		obj.Obj.Fields[key] = v
	case value.KMap:
		obj.Map.Entries[key] = v
	}
}

// indexVal extends value.Val.Index with map support: list/string indexing
// uses an integer key, map indexing a string key (spec §3.1/§8.3).
func indexVal(obj, key value.Val) value.Val {
	if obj.Kind == value.KMap {
		if v, ok := obj.Map.Entries[key.S]; ok {
			return v
		}
		return value.Nil()
	}
	return obj.Index(key.I)
}

func (vm *VM) storeIndex(obj value.Val, key value.Val, v value.Val) {
	switch obj.Kind {
	case value.KList:
		i := key.I
		if i >= 0 && i < int64(len(obj.List)) {
			obj.List[i] = v
		}
	case value.KMap:
		obj.Map.Entries[key.S] = v
	}
}

func contains(container, v value.Val) bool {
	switch container.Kind {
	case value.KList:
		for _, e := range container.List {
			if value.Equal(e, v) {
				return true
			}
		}
		return false
	case value.KMap:
		_, ok := container.Map.Entries[v.S]
		return ok
	case value.KStr:
		return strings.Contains(container.S, v.S)
	default:
		return false
	}
}
