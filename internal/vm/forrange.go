package vm

import (
	"lkr/internal/bytecode"
	"lkr/internal/value"
)

// forRangePrep validates (start, limit, step), defaults step to ±1 and
// rejects 0, then stores the loop's ForRangeState keyed by the pc of
// the guard instruction that immediately follows it — the ForRangeLoop
// this prep always precedes (spec §4.5.5). ForRangeStep, at the loop
// tail, jumps back to that same guard pc, so all three ops agree on one
// key without needing a side channel.
func (vm *VM) forRangePrep(pc int, ins bytecode.Instr) error {
	fr := vm.cur()
	start := vm.rk(ins.B).I
	hasLimit := len(ins.Aux) > 2 && ins.Aux[2] == 1
	hasStep := len(ins.Aux) > 3 && ins.Aux[3] == 1
	inclusive := len(ins.Aux) > 1 && ins.Aux[1] == 1

	var limit int64
	if hasLimit {
		limit = vm.rk(ins.C).I
	}
	step := int64(1)
	if hasStep {
		step = vm.reg(ins.Aux[0]).I
		if step == 0 {
			return &RuntimeError{Message: "range step must not be zero"}
		}
	} else if hasLimit && limit < start {
		step = -1
	}

	fr.forRangeStates[pc+1] = &forRangeState{
		current: start, limit: limit, hasLimit: hasLimit,
		step: step, inclusive: inclusive,
	}
	return nil
}

// forRangeLoop consults the state at its own pc (installed by the
// preceding ForRangePrep, or synthesized lazily for an arbitrary-value
// iterable loop that has no ForRangePrep): on continue it writes the
// current value into the induction register and returns false; on end
// it clears the state and returns true so the caller jumps past the
// loop body.
func (vm *VM) forRangeLoop(pc int, ins bytecode.Instr) bool {
	fr := vm.cur()
	st := fr.forRangeStates[pc]
	if st == nil {
		// Arbitrary-iterable for-loop: B holds the iterator list, A the
		// induction register; state is synthesized lazily on first visit.
		iterVal := vm.reg(ins.B.Index())
		st = &forRangeState{current: 0, limit: int64(len(iterVal.List)), hasLimit: true, step: 1, isIterable: true}
		fr.forRangeStates[pc] = st
	}

	if st.hasLimit {
		if st.inclusive {
			if (st.step > 0 && st.current > st.limit) || (st.step < 0 && st.current < st.limit) {
				delete(fr.forRangeStates, pc)
				return true
			}
		} else {
			if (st.step > 0 && st.current >= st.limit) || (st.step < 0 && st.current <= st.limit) {
				delete(fr.forRangeStates, pc)
				return true
			}
		}
	}

	if st.isIterable {
		iterVal := vm.reg(ins.B.Index())
		vm.setReg(ins.A, iterVal.Index(st.current))
	} else {
		vm.setReg(ins.A, value.Int(st.current))
	}
	return false
}

func (vm *VM) forRangeStep(pc int, ins bytecode.Instr) {
	fr := vm.cur()
	guardPC := pc + int(ins.ImmOfs)
	st := fr.forRangeStates[guardPC]
	if st == nil {
		return
	}
	st.current += st.step
}
