package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lkr/internal/token"
)

func scanTypes(src string) []token.Type {
	s := New(src)
	stream := s.Scan()
	types := make([]token.Type, stream.Len())
	for i := 0; i < stream.Len(); i++ {
		tok, _ := stream.At(i)
		types[i] = tok.Type
	}
	return types
}

func TestScan_KeywordsAndIdentifiersAreDistinguished(t *testing.T) {
	types := scanTypes(`let fn x`)
	require.Len(t, types, 4) // let, fn, x, EOF
	assert.Equal(t, token.KwLet, types[0])
	assert.Equal(t, token.KwFn, types[1])
	assert.Equal(t, token.Ident, types[2])
	assert.Equal(t, token.EOF, types[3])
}

func TestScan_BooleanAndNilLiteralsAreKeywordTokens(t *testing.T) {
	types := scanTypes(`true false nil`)
	assert.Equal(t, token.Bool, types[0])
	assert.Equal(t, token.Bool, types[1])
	assert.Equal(t, token.Nil, types[2])
}

func TestScan_RangeOperatorsAreDistinctFromDot(t *testing.T) {
	types := scanTypes(`1..5`)
	assert.Contains(t, types, token.Range)

	typesIncl := scanTypes(`1..=5`)
	assert.Contains(t, typesIncl, token.RangeInclusive)
}

func TestScan_ShebangLineIsSkipped(t *testing.T) {
	types := scanTypes("#!/usr/bin/env lkr\nlet x = 1;")
	assert.Equal(t, token.KwLet, types[0])
}

func TestScan_StringLiteralUnescapesContent(t *testing.T) {
	s := New(`"hi\nthere"`)
	stream := s.Scan()
	tok, _ := stream.At(0)
	assert.Equal(t, token.Str, tok.Type)
	assert.Contains(t, tok.Lexeme, "\n")
}
