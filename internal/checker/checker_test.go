package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lkr/internal/lexer"
	"lkr/internal/parser"
	"lkr/internal/types"
)

func checkSrc(t *testing.T, src string) error {
	t.Helper()
	lex := lexer.New(src)
	stmts, perr := parser.ParseProgram(lex.Scan(), src)
	require.NoError(t, perr)
	return New().CheckProgram(stmts)
}

func TestCheckProgram_ValidArithmeticWidensIntToFloat(t *testing.T) {
	err := checkSrc(t, `let x = 1 + 2.0;`)
	assert.NoError(t, err)
}

func TestCheckProgram_StringConcatRejectsNonString(t *testing.T) {
	err := checkSrc(t, `let x = "a" + 1;`)
	require.Error(t, err)
	te, ok := err.(*TypeError)
	require.True(t, ok)
	assert.Contains(t, te.Message, "is not defined")
}

func TestCheckProgram_ComparisonRejectsMismatchedOperands(t *testing.T) {
	err := checkSrc(t, `let x = "a" < 1;`)
	require.Error(t, err)
	_, ok := err.(*TypeError)
	assert.True(t, ok)
}

func TestCheckProgram_StructFieldLookupForward(t *testing.T) {
	src := `
struct Point { x: Int, y: Int }
fn origin() { return Point{x: 0, y: 0}; }
let p = origin();
let total = p.x + p.y;
`
	err := checkSrc(t, src)
	assert.NoError(t, err)
}

func TestCheckProgram_StructLiteralUnknownFieldFails(t *testing.T) {
	src := `
struct Point { x: Int, y: Int }
let p = Point{x: 0, z: 1};
`
	err := checkSrc(t, src)
	require.Error(t, err)
	te, ok := err.(*TypeError)
	require.True(t, ok)
	assert.Contains(t, te.Message, "no field")
}

func TestCheckProgram_DuplicateNamedArgumentFails(t *testing.T) {
	src := `
fn greet(name: String = "x") { return name; }
let r = greet(name: "a", name: "b");
`
	err := checkSrc(t, src)
	require.Error(t, err)
	te, ok := err.(*TypeError)
	require.True(t, ok)
	assert.Contains(t, te.Message, "duplicate named argument")
}

func TestCheckProgram_UnknownNamedArgumentFails(t *testing.T) {
	src := `
fn greet(name: String = "x") { return name; }
let r = greet(bogus: "a");
`
	err := checkSrc(t, src)
	require.Error(t, err)
	te, ok := err.(*TypeError)
	require.True(t, ok)
	assert.Contains(t, te.Message, "unknown named argument")
}

func TestCheckProgram_MatchArmsUnifyToOptional(t *testing.T) {
	src := `
let x = 1;
let r = match x {
  1 => "one",
  _ => nil,
};
`
	err := checkSrc(t, src)
	assert.NoError(t, err)
}

func TestUnify_AnyAbsorbsOtherOperand(t *testing.T) {
	got := unify(types.Any(), types.Int())
	assert.Equal(t, "Any", got.String())
}
