package lkrerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/pkg/errors"

	"lkr/internal/token"
)

func TestError_FormatsKindMessageAndLocation(t *testing.T) {
	sp := token.Span{Start: token.Pos{Line: 2, Column: 5}, End: token.Pos{Line: 2, Column: 9}}
	e := New(TypeError, "main.lkr", sp, "expected %s, got %s", "Int", "String")
	assert.Contains(t, e.Error(), "TypeError")
	assert.Contains(t, e.Error(), "main.lkr")
	assert.Contains(t, e.Error(), "expected Int, got String")
}

func TestError_AddFrameAppendsStackTraceLines(t *testing.T) {
	sp := token.Span{}
	e := New(RuntimeError, "main.lkr", sp, "boom")
	e.AddFrame("doStuff", sp)
	e.AddFrame("main", sp)
	assert.Len(t, e.Stack, 2)
	assert.Contains(t, e.Error(), "doStuff")
}

func TestWrap_PreservesCauseForUnwrap(t *testing.T) {
	original := errors.New("disk read failed")
	e := Wrap(ImportError, "mod.lkr", token.Span{}, original, "could not load module")
	assert.Equal(t, original.Error(), pkgerrors.Cause(e).Error())

	var target *Error
	assert.True(t, errors.As(e, &target))
}
