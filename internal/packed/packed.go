// Package packed implements the 32-bit packed encoding of a
// bytecode.Function (spec §4.4), grounded on the teacher's
// internal/vmregister/bytecode.go word-layout documentation (iABC/iABx/
// iAsBx/iAx), adapted to the A/B/C-plus-Aux unpacked Instr shape produced
// by internal/compiler.
//
// Each packed word is [tag:8 | A:8 | B:8 | C:8]. The low two bits of the
// tag are reserved as RK flags (bit0: B is constant, bit1: C is constant)
// so the VM can tell register from constant-pool operands without a
// second lookup. Two tags are reserved as sentinels rather than real
// opcodes:
//
//   - tagRegExt:  a register-extension word immediately following an
//     instruction whose A/B/C exceeded 255; carries the high byte of
//     each operand packed the same way ([0 | Ahi | Bhi | Chi]).
//   - tagGenExt:  a generic extension word carrying a 16-bit immediate
//     (jump offset, arg count, ...) in its low 16 bits.
//
// Packing can fail (operand or branch target out of range for the
// chosen encoding); callers fall back to the unpacked Op[] loop in that
// case, per spec §4.4.3 — packing is purely an optimization and never
// changes observable semantics.
package packed

import (
	"fmt"

	"lkr/internal/bytecode"
)

const (
	tagRegExt = 0xFE
	tagGenExt = 0xFF
)

const (
	rkFlagB = 1 << 0
	rkFlagC = 1 << 1
)

// FailReason classifies why packing gave up on a Function, for the
// per-reason/per-opcode observability counters (spec §4.4.3).
type FailReason string

const (
	ReasonOpcodeRange   FailReason = "opcode_out_of_range"
	ReasonOperandRange  FailReason = "operand_out_of_range"
	ReasonImmRange      FailReason = "immediate_out_of_range"
	ReasonBranchRange   FailReason = "branch_target_out_of_range"
	ReasonUnsupportedOp FailReason = "unsupported_opcode"
)

// FailError reports a structured packing failure (spec §4.4.3); the
// caller is expected to fall back to unpacked execution, not treat this
// as a hard error.
type FailError struct {
	Reason FailReason
	Op     bytecode.Op
	PC     int
}

func (e *FailError) Error() string {
	return fmt.Sprintf("packed: %s at pc=%d op=%s", e.Reason, e.PC, e.Op)
}

// word is the tentative per-instruction encoding before offsets are
// finalized: how many packed words it occupies, and whether it currently
// needs the two-word "set" form (JmpFalseSet/JmpTrueSet/NullishPick).
type word struct {
	pc        int
	size      int
	extended  bool // jump-set op promoted to extended (2-word) form
	needsGen  bool // this op always carries a generic-extension word
	needsRegX bool // this op's A/B/C needs the register-extension word
}

// Result is the outcome of a successful Encode.
type Result struct {
	Words   []uint32
	Decoded []bytecode.DecodedEntry
}

// jumpSetOps are the ops whose encoded width depends on whether their
// offset still fits in a signed 8-bit immediate after fixpoint iteration
// (spec §4.4.2 "jump-set ops ... start optimistically at one word").
var jumpSetOps = map[bytecode.Op]bool{
	bytecode.OpJmpFalseSet: true,
	bytecode.OpJmpTrueSet:  true,
	bytecode.OpNullishPick: true,
}

// branchOps carry a PC-relative jump target in ImmOfs.
var branchOps = map[bytecode.Op]bool{
	bytecode.OpJmp:           true,
	bytecode.OpJmpFalse:      true,
	bytecode.OpJmpIfNil:      true,
	bytecode.OpJmpIfNotNil:   true,
	bytecode.OpJmpFalseSet:   true,
	bytecode.OpJmpTrueSet:    true,
	bytecode.OpNullishPick:   true,
	bytecode.OpForRangeLoop:  true,
	bytecode.OpForRangeStep:  true,
}

// Encode runs the two-pass branch resolution of spec §4.4.2 and produces
// the packed word stream plus an optional decoded side table. On failure
// it returns a *FailError and a nil Result; the caller executes from
// fn.Code directly.
func Encode(fn *bytecode.Function) (*Result, error) {
	n := len(fn.Code)
	words := make([]word, n)

	// Pass 1a: tentative word size per op.
	for i, ins := range fn.Code {
		w := &words[i]
		w.pc = i
		w.size = 1
		if needsOperandExtension(ins) {
			w.needsRegX = true
			w.size++
		}
		if jumpSetOps[ins.Op] {
			// optimistic one-word start; may be promoted below
		} else if needsGenericExtension(ins) {
			w.needsGen = true
			w.size++
		}
	}

	// Pass 1b: iterate until fixpoint, promoting jump-set ops whose
	// resolved word-distance no longer fits a signed 8-bit offset.
	for {
		changed := false
		offsets := wordOffsets(words)
		for i, ins := range fn.Code {
			if !jumpSetOps[ins.Op] || words[i].extended {
				continue
			}
			target := i + int(ins.ImmOfs)
			if target < 0 || target > n {
				return nil, &FailError{Reason: ReasonBranchRange, Op: ins.Op, PC: i}
			}
			wordDist := offsets[clampIndex(target, n)] - offsets[i]
			if wordDist < -128 || wordDist > 127 {
				words[i].extended = true
				words[i].size++
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	offsets := wordOffsets(words)
	total := offsets[n]

	out := make([]uint32, 0, total)
	decoded := make([]bytecode.DecodedEntry, 0, total)

	for i, ins := range fn.Code {
		w := words[i]
		tag, flags, err := encodeTag(ins)
		if err != nil {
			return nil, &FailError{Reason: ReasonUnsupportedOp, Op: ins.Op, PC: i}
		}

		a, bLo, cLo, bHi, cHi, err := splitOperands(ins)
		if err != nil {
			return nil, &FailError{Reason: ReasonOperandRange, Op: ins.Op, PC: i}
		}

		head := packWord(tag|flags, a, bLo, cLo)
		out = append(out, head)
		decoded = append(decoded, bytecode.DecodedEntry{Instr: ins, NextPC: i + 1})

		if w.needsRegX {
			out = append(out, packWord(tagRegExt, 0, bHi, cHi))
		}

		switch {
		case jumpSetOps[ins.Op] && w.extended:
			dist := offsets[clampIndex(i+int(ins.ImmOfs), n)] - offsets[i]
			imm, ierr := toImm16(dist)
			if ierr != nil {
				return nil, &FailError{Reason: ReasonImmRange, Op: ins.Op, PC: i}
			}
			out = append(out, packWord(tagGenExt, 0, byte(imm>>8), byte(imm)))
		case w.needsGen:
			imm, ierr := genExtValue(ins, i, offsets, n)
			if ierr != nil {
				return nil, ierr
			}
			out = append(out, packWord(tagGenExt, 0, byte(imm>>8), byte(imm)))
		}
	}

	return &Result{Words: out, Decoded: decoded}, nil
}

func wordOffsets(words []word) []int {
	offs := make([]int, len(words)+1)
	acc := 0
	for i, w := range words {
		offs[i] = acc
		acc += w.size
	}
	offs[len(words)] = acc
	return offs
}

func clampIndex(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx > n {
		return n
	}
	return idx
}

// needsOperandExtension reports whether A, B's index, or C's index
// exceeds a byte and so needs a following register-extension word.
func needsOperandExtension(ins bytecode.Instr) bool {
	return ins.A > 0xFF || ins.B.Index() > 0xFF || ins.C.Index() > 0xFF
}

// needsGenericExtension reports whether this op's ImmOfs or Aux payload
// needs a following 16-bit extension word: every branch op, plus
// AddIntImm/CmpEqImm/CmpLtImm. Ops whose Aux carries more than one value
// are not handled here; encodeTag rejects them, and the caller retains
// the unpacked Op[].
func needsGenericExtension(ins bytecode.Instr) bool {
	if branchOps[ins.Op] {
		return true
	}
	switch ins.Op {
	case bytecode.OpAddIntImm, bytecode.OpCmpEqImm, bytecode.OpCmpLtImm:
		return true
	}
	return false
}

func genExtValue(ins bytecode.Instr, i int, offsets []int, n int) (int32, error) {
	if branchOps[ins.Op] {
		target := i + int(ins.ImmOfs)
		if target < 0 || target > n {
			return 0, &FailError{Reason: ReasonBranchRange, Op: ins.Op, PC: i}
		}
		dist := offsets[clampIndex(target, n)] - offsets[i]
		v, err := toImm16(dist)
		if err != nil {
			return 0, &FailError{Reason: ReasonImmRange, Op: ins.Op, PC: i}
		}
		return v, nil
	}
	return ins.ImmOfs, nil
}

func toImm16(v int) (int32, error) {
	if v < -32768 || v > 32767 {
		return 0, fmt.Errorf("immediate %d out of 16-bit range", v)
	}
	return int32(v), nil
}

// encodeTag resolves the op to its packed tag byte plus RK flag bits.
// Any op whose Aux carries more than one value (the Call family, Select,
// ForRangePrep, Ret, struct-literal BuildMap, template BuildList) is not
// packable in this fixed-width format and returns an error so Encode
// fails cleanly and the caller falls back to unpacked execution (spec
// §4.4.3). Ops with a single Aux value, such as PatternMatch, pass.
func encodeTag(ins bytecode.Instr) (byte, byte, error) {
	if ins.Op >= tagRegExt {
		return 0, 0, fmt.Errorf("opcode %d collides with sentinel tag range", ins.Op)
	}
	if len(ins.Aux) > 1 {
		return 0, 0, fmt.Errorf("op %s carries multi-value Aux, not packable", ins.Op)
	}
	var flags byte
	if ins.B.IsConst() {
		flags |= rkFlagB
	}
	if ins.C.IsConst() {
		flags |= rkFlagC
	}
	return byte(ins.Op), flags, nil
}

func splitOperands(ins bytecode.Instr) (a, bLo, cLo, bHi, cHi byte, err error) {
	if ins.A > 0xFFFF || ins.B.Index() > 0xFFFF || ins.C.Index() > 0xFFFF {
		return 0, 0, 0, 0, 0, fmt.Errorf("operand exceeds 16 bits")
	}
	a = byte(ins.A)
	bLo = byte(ins.B.Index())
	cLo = byte(ins.C.Index())
	bHi = byte(ins.B.Index() >> 8)
	cHi = byte(ins.C.Index() >> 8)
	return
}

func packWord(tag byte, a, b, c byte) uint32 {
	return uint32(tag)<<24 | uint32(a)<<16 | uint32(b)<<8 | uint32(c)
}

// EnsurePacked populates fn.PackedWords/fn.Decoded on first use, guarded
// by fn's own lock so concurrent first calls into the same Function
// don't race (spec §4.4.3 "semantics never differ between packed and
// unpacked execution" — a failed attempt is remembered and simply
// leaves PackedWords nil forever, which the VM reads as "use the
// unpacked loop"). Safe to call on every frame entry.
func EnsurePacked(fn *bytecode.Function) {
	fn.Lock()
	defer fn.Unlock()
	if fn.PackAttempted {
		return
	}
	fn.PackAttempted = true
	res, err := Encode(fn)
	if err != nil {
		if fe, ok := err.(*FailError); ok && OnFail != nil {
			OnFail(fe.Reason)
		}
		return
	}
	fn.PackedWords = res.Words
	fn.Decoded = res.Decoded
}

// OnFail, if set, is notified with the FailReason of every failed pack
// attempt. internal/observability installs itself here in its init()
// rather than this package importing observability directly, since the
// dependency only runs one way: observability needs FailReason's type,
// packed must not need observability's counters to function standalone.
var OnFail func(reason FailReason)
