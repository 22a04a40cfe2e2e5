package bytecode

import (
	"sync"

	"lkr/internal/ast"
	"lkr/internal/value"
)

// ClosureProto is a compiled closure's static template, referenced by
// MakeClosure via its index in the enclosing Function's Protos table
// (spec §3.7, §4.5.6).
type ClosureProto struct {
	Name        string
	PosParams   []string
	NamedParams []value.NamedParamDecl
	Body        ast.Stmt
	Captures    []value.CaptureSpec
	// CaptureRegs holds, parallel to Captures, the register index in the
	// enclosing frame that a Register-kind capture snapshots from
	// (meaningless for Const/Global entries). Recorded by the compiler
	// since value.CaptureSpec itself carries no register — by the time a
	// closure's captured Val is read back, only the name and the
	// snapshot matter, never the register it came from.
	CaptureRegs []uint16
	// Precompiled, if non-nil, is published into the closure's once-init
	// cell immediately on MakeClosure rather than waiting for first call
	// (spec §4.5.6 "Precompiled body code ... published immediately").
	Precompiled *Function
}

// PatternPlan pairs a Pattern with the registers its bindings are written
// into, in the order spec.md's Pattern.Binding list is produced (spec
// §4.3.4).
type PatternPlan struct {
	Pattern  ast.Pattern
	Bindings []PatternBinding
}

type PatternBinding struct {
	Name string
	Reg  uint16
}

// NamedCallPlan is computed once per (closure identity, named-arg-count)
// call site and cached in the call inline cache (spec §4.3.5, §4.5.3).
type NamedCallPlan struct {
	ProvidedIndices []int // parameter index receiving argument slot i
	DefaultsToEval  []int // parameter indices whose defaults run, dependency-ordered
	OptionalNil     []int // parameter indices that receive Nil
}

// RegionPlan labels each register as scratch (may be borrowed from a
// pooled region allocator) or shared (must be a fresh heap value), per
// spec §4.5.7. A nil RegionPlan disables the optimization entirely.
type RegionPlan struct {
	ThreadLocalScratch map[uint16]bool
}

func (r *RegionPlan) IsScratch(reg uint16) bool {
	return r != nil && r.ThreadLocalScratch[reg]
}

// Function is the unpacked compiled record of spec §3.5. PackedWords and
// Decoded are computed lazily by internal/packed and cached here; their
// absence never changes observable semantics (spec §4.4.3).
type Function struct {
	Name            string
	Consts          []value.Val
	Code            []Instr
	NRegs           uint16
	Protos          []*ClosureProto
	ParamRegs       []uint16
	NamedParamRegs  []uint16
	NamedParamLayout map[string]int
	PatternPlans    []PatternPlan
	Analysis        *RegionPlan

	packMu        sync.Mutex
	PackAttempted bool
	PackedWords   []uint32
	Decoded       []DecodedEntry
}

// DecodedEntry is the VM's optional pre-decoded side table: for packed
// word index i, the already-decoded instruction and the pc to resume at
// (spec §4.5.2 "packed loop ... optionally consulting a precomputed
// (Op, next_pc) table").
type DecodedEntry struct {
	Instr  Instr
	NextPC int
}

// RegisterCount implements value.Compiled, letting value.ClosureVal's
// once-init cell hold a *Function without the value package importing
// bytecode.
func (f *Function) RegisterCount() int { return int(f.NRegs) }

// Lock/Unlock guard lazy PackedWords/Decoded population against concurrent
// first-call races (spec §2 "compiler runs once ... via an initialize-once
// cell"); the packing result itself is immutable once set.
func (f *Function) Lock()   { f.packMu.Lock() }
func (f *Function) Unlock() { f.packMu.Unlock() }
