// Package bytecode defines the register-based instruction set (spec §4.3.2)
// and the unpacked Function record (spec §3.5) it compiles into. The
// instruction categories and naming are grounded on the teacher's
// internal/vmregister/bytecode.go (register iABC/iABx layout, inline-cache
// bearing ops); operands here carry the operational semantics spec.md §4.3.2
// names rather than the teacher's stdlib-method-heavy superset.
package bytecode

// Op identifies an instruction's operation. Operand usage (A/B/C, RK flags)
// is documented per-group below rather than per-op, matching spec.md's
// "semantics are what matter" framing.
type Op uint8

const (
	// Move / load
	OpMove Op = iota
	OpLoadK
	OpLoadLocal
	OpStoreLocal
	OpLoadGlobal
	OpDefineGlobal
	OpLoadCapture

	// Arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAddInt
	OpSubInt
	OpMulInt
	OpDivInt
	OpModInt
	OpAddFloat
	OpSubFloat
	OpMulFloat
	OpDivFloat
	OpModFloat
	OpAddIntImm

	// Compare
	OpCmpEq
	OpCmpNe
	OpCmpLt
	OpCmpLe
	OpCmpGt
	OpCmpGe
	OpCmpEqImm
	OpCmpLtImm
	OpIn

	// Unary
	OpNot
	OpNeg

	// Control
	OpJmp
	OpJmpFalse
	OpJmpIfNil
	OpJmpIfNotNil
	OpJmpFalseSet
	OpJmpTrueSet
	OpNullishPick
	OpBreak
	OpContinue

	// Loops
	OpForRangePrep
	OpForRangeLoop
	OpForRangeStep

	// Aggregates
	OpBuildList
	OpBuildMap
	OpListSlice
	OpLen
	OpIndex
	OpIndexK
	OpAccess
	OpAccessK
	OpToIter
	OpToBool
	OpToStr

	// Calls
	OpCall
	OpCallNamed

	// Closures
	OpMakeClosure

	// Pattern
	OpPatternMatch
	OpPatternMatchOrFail
	OpRaise

	// Concurrency
	OpSend
	OpRecv
	OpSpawn
	OpSelect

	// Return
	OpRet
)

var opNames = map[Op]string{
	OpMove: "Move", OpLoadK: "LoadK", OpLoadLocal: "LoadLocal", OpStoreLocal: "StoreLocal",
	OpLoadGlobal: "LoadGlobal", OpDefineGlobal: "DefineGlobal", OpLoadCapture: "LoadCapture",
	OpAdd: "Add", OpSub: "Sub", OpMul: "Mul", OpDiv: "Div", OpMod: "Mod",
	OpAddInt: "AddInt", OpSubInt: "SubInt", OpMulInt: "MulInt", OpDivInt: "DivInt", OpModInt: "ModInt",
	OpAddFloat: "AddFloat", OpSubFloat: "SubFloat", OpMulFloat: "MulFloat", OpDivFloat: "DivFloat", OpModFloat: "ModFloat",
	OpAddIntImm: "AddIntImm",
	OpCmpEq: "CmpEq", OpCmpNe: "CmpNe", OpCmpLt: "CmpLt", OpCmpLe: "CmpLe", OpCmpGt: "CmpGt", OpCmpGe: "CmpGe",
	OpCmpEqImm: "CmpEqImm", OpCmpLtImm: "CmpLtImm", OpIn: "In",
	OpNot: "Not", OpNeg: "Neg",
	OpJmp: "Jmp", OpJmpFalse: "JmpFalse", OpJmpIfNil: "JmpIfNil", OpJmpIfNotNil: "JmpIfNotNil",
	OpJmpFalseSet: "JmpFalseSet", OpJmpTrueSet: "JmpTrueSet", OpNullishPick: "NullishPick",
	OpBreak: "Break", OpContinue: "Continue",
	OpForRangePrep: "ForRangePrep", OpForRangeLoop: "ForRangeLoop", OpForRangeStep: "ForRangeStep",
	OpBuildList: "BuildList", OpBuildMap: "BuildMap", OpListSlice: "ListSlice", OpLen: "Len",
	OpIndex: "Index", OpIndexK: "IndexK", OpAccess: "Access", OpAccessK: "AccessK",
	OpToIter: "ToIter", OpToBool: "ToBool", OpToStr: "ToStr",
	OpCall: "Call", OpCallNamed: "CallNamed", OpMakeClosure: "MakeClosure",
	OpPatternMatch: "PatternMatch", OpPatternMatchOrFail: "PatternMatchOrFail", OpRaise: "Raise",
	OpSend: "Send", OpRecv: "Recv", OpSpawn: "Spawn", OpSelect: "Select",
	OpRet: "Ret",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return "Unknown"
}

// RK marks an operand that may address either a register or the constant
// pool. The high bit distinguishes the two (spec §4.3.2): set means
// constant-table index, clear means register index.
type RK uint16

const rkConstFlag RK = 1 << 15

func RKRegister(reg uint16) RK { return RK(reg) }
func RKConst(kidx uint16) RK   { return RK(kidx) | rkConstFlag }

func (r RK) IsConst() bool { return r&rkConstFlag != 0 }
func (r RK) Index() uint16 { return uint16(r &^ rkConstFlag) }

// Instr is one unpacked instruction: an Op plus up to three operands. Not
// every op uses every field; unused fields are zero. ImmOfs carries signed
// jump offsets / 8-bit immediates for the ops that need one (spec §4.3.2
// Jmp*, AddIntImm, Cmp*Imm). Aux carries the extra operands of
// variable-arity ops (Call argc/retc, BuildList/BuildMap length,
// PatternMatch binding-register list) that don't fit the three-address
// A/B/C shape; the packed encoder (internal/packed) is what actually
// squeezes these into fixed-width words, so the unpacked form is free to
// stay a plain Go slice.
type Instr struct {
	Op     Op
	A      uint16
	B      RK
	C      RK
	ImmOfs int32
	Aux    []uint16
}
