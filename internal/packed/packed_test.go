package packed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lkr/internal/bytecode"
)

func TestEncode_RoundTripsSimpleArithmeticProgram(t *testing.T) {
	fn := &bytecode.Function{
		Name:  "add",
		NRegs: 3,
		Code: []bytecode.Instr{
			{Op: bytecode.OpLoadK, A: 0, B: bytecode.RKConst(0)},
			{Op: bytecode.OpLoadK, A: 1, B: bytecode.RKConst(1)},
			{Op: bytecode.OpAddInt, A: 2, B: bytecode.RKRegister(0), C: bytecode.RKRegister(1)},
			{Op: bytecode.OpRet, A: 2},
		},
	}

	res, err := Encode(fn)
	require.NoError(t, err)
	require.Len(t, res.Words, len(fn.Code))
	require.Len(t, res.Decoded, len(fn.Code))

	for i, ins := range fn.Code {
		assert.Equal(t, ins, res.Decoded[i].Instr, "decoded instruction %d must be identical to the original", i)
		assert.Equal(t, i+1, res.Decoded[i].NextPC)
	}
}

func TestEncode_ShortBranchFitsOneWord(t *testing.T) {
	fn := &bytecode.Function{
		NRegs: 1,
		Code: []bytecode.Instr{
			{Op: bytecode.OpJmpFalse, A: 0, ImmOfs: 2},
			{Op: bytecode.OpMove, A: 0, B: bytecode.RKRegister(0)},
			{Op: bytecode.OpRet, A: 0},
		},
	}
	res, err := Encode(fn)
	require.NoError(t, err)
	assert.Equal(t, bytecode.OpJmpFalse, res.Decoded[0].Instr.Op)
	assert.Equal(t, int32(2), res.Decoded[0].Instr.ImmOfs)
}

func TestEncode_RegisterOperandExceedingByteNeedsExtensionWord(t *testing.T) {
	fn := &bytecode.Function{
		NRegs: 300,
		Code: []bytecode.Instr{
			{Op: bytecode.OpMove, A: 0, B: bytecode.RKRegister(299)},
			{Op: bytecode.OpRet, A: 0},
		},
	}
	res, err := Encode(fn)
	require.NoError(t, err)
	// The extension word pushes total word count above instruction count.
	assert.Greater(t, len(res.Words), len(fn.Code))
	assert.Equal(t, bytecode.RK(299), res.Decoded[0].Instr.B)
}

func TestEncode_MultiValueAuxFallsBackToUnpacked(t *testing.T) {
	fn := &bytecode.Function{
		NRegs: 2,
		Code: []bytecode.Instr{
			{Op: bytecode.OpCall, A: 0, Aux: []uint16{1, 2}},
			{Op: bytecode.OpRet, A: 0},
		},
	}
	_, err := Encode(fn)
	require.Error(t, err)
	fe, ok := err.(*FailError)
	require.True(t, ok)
	assert.Equal(t, ReasonUnsupportedOp, fe.Reason)
}

func TestEnsurePacked_FailureLeavesPackedWordsNilAndRemembersAttempt(t *testing.T) {
	fn := &bytecode.Function{
		NRegs: 2,
		Code: []bytecode.Instr{
			{Op: bytecode.OpCall, A: 0, Aux: []uint16{1, 2}},
			{Op: bytecode.OpRet, A: 0},
		},
	}
	EnsurePacked(fn)
	assert.Nil(t, fn.PackedWords)
	assert.True(t, fn.PackAttempted)

	// Calling again must not re-attempt (and must not panic).
	EnsurePacked(fn)
	assert.Nil(t, fn.PackedWords)
}

func TestEnsurePacked_SuccessPopulatesPackedWordsAndDecoded(t *testing.T) {
	fn := &bytecode.Function{
		NRegs: 1,
		Code: []bytecode.Instr{
			{Op: bytecode.OpLoadK, A: 0, B: bytecode.RKConst(0)},
			{Op: bytecode.OpRet, A: 0},
		},
	}
	EnsurePacked(fn)
	require.NotNil(t, fn.PackedWords)
	require.Len(t, fn.Decoded, len(fn.Code))
	for i, ins := range fn.Code {
		assert.Equal(t, ins, fn.Decoded[i].Instr)
	}
}

func TestOnFail_InvokedWithFailureReason(t *testing.T) {
	prev := OnFail
	defer func() { OnFail = prev }()

	var got FailReason
	OnFail = func(reason FailReason) { got = reason }

	fn := &bytecode.Function{
		NRegs: 1,
		Code: []bytecode.Instr{
			{Op: bytecode.OpCall, A: 0, Aux: []uint16{1, 2}},
		},
	}
	EnsurePacked(fn)
	assert.Equal(t, ReasonUnsupportedOp, got)
}
