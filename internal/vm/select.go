package vm

import "lkr/internal/bytecode"

// execSelect decodes the compiler's per-case Aux tuples
// (chanReg, sendValReg, kindFlag, entryOffset) × N, delegates the actual
// blocking choice to the TaskRuntime collaborator (spec §5 "yields to
// the task runtime only inside select"), then jumps pc directly to the
// winning case's entry — every other case's prologue and body is never
// executed, matching a computed jump-table dispatch.
func (vm *VM) execSelect(ins bytecode.Instr, pc int) error {
	if vm.Runtime == nil {
		return &RuntimeError{Message: "select with no task runtime attached"}
	}
	if len(ins.Aux) == 0 {
		return &RuntimeError{Message: "select with no cases"}
	}
	n := int(ins.Aux[0])
	cases := make([]SelectCase, n)
	entries := make([]int, n)
	defaultIdx := -1

	for i := 0; i < n; i++ {
		base := 1 + i*4
		chanReg := ins.Aux[base]
		sendValReg := ins.Aux[base+1]
		kind := ins.Aux[base+2]
		entries[i] = int(ins.Aux[base+3])

		switch kind {
		case 0:
			cases[i] = SelectCase{Chan: vm.reg(chanReg)}
		case 1:
			cases[i] = SelectCase{Chan: vm.reg(chanReg), IsSend: true, Send: vm.reg(sendValReg)}
		case 2:
			defaultIdx = i
		}
	}

	winner, err := vm.Runtime.Select(cases, defaultIdx)
	if err != nil {
		return err
	}
	if winner < 0 || winner >= n {
		return &RuntimeError{Message: "select: runtime returned an out-of-range case index"}
	}

	vm.cur().pc = pc + entries[winner]
	return nil
}
