package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lkr/internal/packed"
)

func TestCounters_RecordFrameTalliesPackedAndUnpackedSeparately(t *testing.T) {
	c := &Counters{failReasons: map[packed.FailReason]uint64{}}
	c.RecordFrame(true)
	c.RecordFrame(true)
	c.RecordFrame(false)

	assert.Equal(t, uint64(2), c.PackedFrames)
	assert.Equal(t, uint64(1), c.UnpackedFrames)
}

func TestCounters_RecordPackFailureTalliesByReason(t *testing.T) {
	c := &Counters{failReasons: map[packed.FailReason]uint64{}}
	c.RecordPackFailure(packed.ReasonUnsupportedOp)
	c.RecordPackFailure(packed.ReasonUnsupportedOp)
	c.RecordPackFailure(packed.ReasonBranchRange)

	summary := c.Summary()
	assert.Contains(t, summary, "frames: 0 packed, 0 unpacked")
	assert.Contains(t, summary, "unsupported_opcode: 2")
	assert.Contains(t, summary, "branch_target_out_of_range: 1")
}

func TestGlobal_WiredToPackedOnFailHook(t *testing.T) {
	// init() installs Global.RecordPackFailure as packed.OnFail; verify
	// the hook is actually Global's method, not left nil or a no-op.
	assert.NotNil(t, packed.OnFail)

	before := Global.Summary()
	packed.OnFail(packed.ReasonOpcodeRange)
	after := Global.Summary()
	assert.NotEqual(t, before, after)
}
