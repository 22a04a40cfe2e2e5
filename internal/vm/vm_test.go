package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lkr/internal/compiler"
	"lkr/internal/lexer"
	"lkr/internal/parser"
	"lkr/internal/value"
)

// evalProgram runs the full lexer/parser/compiler/vm pipeline over src,
// returning the top-level return value. The checker is deliberately not
// run here — these tests exercise the VM's runtime semantics in
// isolation from static checking.
func evalProgram(t *testing.T, src string) (value.Val, error) {
	t.Helper()
	lex := lexer.New(src)
	stmts, perr := parser.ParseProgram(lex.Scan(), src)
	require.NoError(t, perr)
	fn, cerr := compiler.New().CompileProgram(stmts)
	require.NoError(t, cerr)
	m := New(nil)
	return m.Run(fn)
}

func TestRun_BasicArithmeticWithOperatorPrecedence(t *testing.T) {
	v, err := evalProgram(t, `return 1 + 2 * 3;`)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.I)
}

func TestRun_IntFloatWideningOnMixedOperands(t *testing.T) {
	v, err := evalProgram(t, `return 1 + 2.5;`)
	require.NoError(t, err)
	assert.Equal(t, value.KFloat, v.Kind)
	assert.Equal(t, 3.5, v.F)
}

func TestRun_IfElseBranch(t *testing.T) {
	v, err := evalProgram(t, `
let x = 10;
if x > 5 {
  return "big";
} else {
  return "small";
}
`)
	require.NoError(t, err)
	assert.Equal(t, "big", v.S)
}

func TestRun_ForRangeAccumulates(t *testing.T) {
	v, err := evalProgram(t, `
let total = 0;
for i in 1..=5 {
  total = total + i;
}
return total;
`)
	require.NoError(t, err)
	assert.Equal(t, int64(15), v.I)
}

func TestRun_FunctionCallWithNamedArgumentDefault(t *testing.T) {
	v, err := evalProgram(t, `
fn greet(name: String = "world") {
  return "hi " + name;
}
return greet();
`)
	require.NoError(t, err)
	assert.Equal(t, "hi world", v.S)
}

func TestRun_FunctionCallWithNamedArgumentOverride(t *testing.T) {
	v, err := evalProgram(t, `
fn greet(name: String = "world") {
  return "hi " + name;
}
return greet(name: "lkr");
`)
	require.NoError(t, err)
	assert.Equal(t, "hi lkr", v.S)
}

func TestRun_DuplicateNamedArgumentIsRuntimeError(t *testing.T) {
	_, err := evalProgram(t, `
fn greet(name: String = "world") {
  return name;
}
return greet(name: "a", name: "b");
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate named argument")
}

func TestRun_UnknownNamedArgumentIsRuntimeError(t *testing.T) {
	_, err := evalProgram(t, `
fn greet(name: String = "world") {
  return name;
}
return greet(bogus: "a");
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown named argument")
}

func TestRun_ClosureCaptureOfEnclosingLocal(t *testing.T) {
	v, err := evalProgram(t, `
fn makeAdder(n: Int = 0) {
  return fn(x) { return x + n; };
}
let addFive = makeAdder(n: 5);
return addFive(10);
`)
	require.NoError(t, err)
	assert.Equal(t, int64(15), v.I)
}

func TestRun_MatchExpressionSelectsArm(t *testing.T) {
	v, err := evalProgram(t, `
let x = 2;
return match x {
  1 => "one",
  2 => "two",
  _ => "other",
};
`)
	require.NoError(t, err)
	assert.Equal(t, "two", v.S)
}

func TestRun_StructFieldAccess(t *testing.T) {
	v, err := evalProgram(t, `
struct Point { x: Int, y: Int }
let p = Point{x: 3, y: 4};
return p.x + p.y;
`)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.I)
}

// TestRun_PackedAndUnpackedDispatchAgree forces one frame through the
// packed fetch path and another through the unpacked Op[] loop for the
// exact same program, and asserts both produce the same result — the
// packed/unpacked equivalence property of spec §4.4.3/§4.5.2.
func TestRun_PackedAndUnpackedDispatchAgree(t *testing.T) {
	src := `
let total = 0;
for i in 1..=20 {
  if i % 2 == 0 {
    total = total + i;
  } else {
    total = total - 1;
  }
}
return total;
`
	lex := lexer.New(src)
	stmts, perr := parser.ParseProgram(lex.Scan(), src)
	require.NoError(t, perr)

	fnPacked, cerr := compiler.New().CompileProgram(stmts)
	require.NoError(t, cerr)
	packedResult, err := New(nil).Run(fnPacked)
	require.NoError(t, err)
	require.NotNil(t, fnPacked.PackedWords, "program should be simple enough to pack")

	fnUnpacked, cerr := compiler.New().CompileProgram(stmts)
	require.NoError(t, cerr)
	fnUnpacked.PackAttempted = true // force the unpacked fetch loop
	unpackedResult, err := New(nil).Run(fnUnpacked)
	require.NoError(t, err)

	assert.True(t, value.Equal(packedResult, unpackedResult))
}
