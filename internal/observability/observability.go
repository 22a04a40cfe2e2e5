// Package observability holds the packed/hot-slot counters spec §6.6
// asks for: how often a Function's packed fetch path actually ran vs.
// fell back to unpacked, and per-FailReason counts from internal/packed
// so a maintainer can see which opcodes are keeping programs off the
// packed path. Kept as a package of its own (rather than fields on
// vm.VM) so the CLI's `run` subcommand can print a summary after a
// program exits without internal/vm needing to know about reporting.
package observability

import (
	"fmt"
	"sync"
	"sync/atomic"

	"lkr/internal/packed"
)

// Counters is process-global: every VM and every packed.Encode attempt
// in a single CLI invocation reports into the same set, mirroring how
// the teacher's hot-loop counters were process-wide rather than
// per-VM-instance.
type Counters struct {
	PackedFrames   uint64
	UnpackedFrames uint64

	mu          sync.Mutex
	failReasons map[packed.FailReason]uint64
}

var Global = &Counters{failReasons: map[packed.FailReason]uint64{}}

func init() {
	packed.OnFail = Global.RecordPackFailure
}

// RecordFrame is called once per pushed VM frame with whether that
// frame's Function is executing via the packed fetch path.
func (c *Counters) RecordFrame(packedPath bool) {
	if packedPath {
		atomic.AddUint64(&c.PackedFrames, 1)
	} else {
		atomic.AddUint64(&c.UnpackedFrames, 1)
	}
}

// RecordPackFailure tallies a packed.FailError's Reason, letting a
// maintainer see e.g. "ReasonUnsupportedOp fired 40 times, all on
// OpSelect" across a run.
func (c *Counters) RecordPackFailure(reason packed.FailReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failReasons[reason]++
}

// Summary renders a one-block report for the CLI's `run` subcommand
// (spec §10.2/§6.6), e.g. after an `lkr run` invocation finishes.
func (c *Counters) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := fmt.Sprintf("frames: %d packed, %d unpacked", c.PackedFrames, c.UnpackedFrames)
	for reason, n := range c.failReasons {
		out += fmt.Sprintf("\n  pack failure %s: %d", reason, n)
	}
	return out
}
