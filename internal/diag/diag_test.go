package diag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"lkr/internal/lkrerr"
	"lkr/internal/token"
)

func TestNewRenderer_NonTerminalFdIsBatchMode(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, 0)
	assert.False(t, r.Interactive)
}

func TestReport_BatchModeOmitsAnsiCodes(t *testing.T) {
	var buf bytes.Buffer
	r := &Renderer{w: &buf, Interactive: false}
	sp := token.Span{Start: token.Pos{Line: 3, Column: 1}, End: token.Pos{Line: 3, Column: 4}}
	r.Report(lkrerr.New(lkrerr.TypeError, "main.lkr", sp, "bad type"))

	out := buf.String()
	assert.Contains(t, out, "TypeError: bad type")
	assert.Contains(t, out, "main.lkr")
	assert.NotContains(t, out, "\x1b[")
}

func TestReport_InteractiveModeColorsKindPrefix(t *testing.T) {
	var buf bytes.Buffer
	r := &Renderer{w: &buf, Interactive: true}
	r.Report(lkrerr.New(lkrerr.RuntimeError, "", token.Span{}, "boom"))

	assert.Contains(t, buf.String(), "\x1b[31m")
}

func TestReport_NilErrorIsANoOp(t *testing.T) {
	var buf bytes.Buffer
	r := &Renderer{w: &buf}
	r.Report(nil)
	assert.Empty(t, buf.String())
}

func TestReport_StackFramesAreListed(t *testing.T) {
	var buf bytes.Buffer
	r := &Renderer{w: &buf, Interactive: false}
	e := lkrerr.New(lkrerr.RuntimeError, "main.lkr", token.Span{}, "boom")
	e.AddFrame("doStuff", token.Span{})
	r.Report(e)
	assert.Contains(t, buf.String(), "at doStuff")
}
