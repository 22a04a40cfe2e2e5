package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lkr/internal/bytecode"
	"lkr/internal/lexer"
	"lkr/internal/parser"
)

func compileSrc(t *testing.T, src string) (*bytecode.Function, error) {
	t.Helper()
	lex := lexer.New(src)
	stmts, perr := parser.ParseProgram(lex.Scan(), src)
	require.NoError(t, perr)
	return New().CompileProgram(stmts)
}

func TestCompileProgram_EmitsImplicitNilReturn(t *testing.T) {
	fn, err := compileSrc(t, `let x = 1;`)
	require.NoError(t, err)
	require.NotEmpty(t, fn.Code)
	last := fn.Code[len(fn.Code)-1]
	assert.Equal(t, bytecode.OpRet, last.Op)
}

func TestCompileProgram_ExplicitReturnPrecedesImplicitOne(t *testing.T) {
	fn, err := compileSrc(t, `return 1 + 1;`)
	require.NoError(t, err)
	var retCount int
	for _, ins := range fn.Code {
		if ins.Op == bytecode.OpRet {
			retCount++
		}
	}
	assert.Equal(t, 2, retCount, "explicit return plus the program's trailing implicit return")
}

func TestCompileProgram_FunctionDeclarationProducesClosureProto(t *testing.T) {
	fn, err := compileSrc(t, `fn add(a, b) { return a + b; }`)
	require.NoError(t, err)
	assert.NotEmpty(t, fn.Protos, "fn declaration should register a closure prototype")
}

func TestCompileProgram_UndefinedBehaviorNeverPanicsOutward(t *testing.T) {
	// A well-formed but semantically nonsensical program (checker would
	// reject it) should still compile without panicking — the compiler
	// itself does no type checking (spec §4.3's "checking happens before
	// compilation, not during it").
	_, err := compileSrc(t, `let x = 1 + "two";`)
	assert.NoError(t, err)
}
