package bcstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lkr/internal/bytecode"
	"lkr/internal/value"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modules.lkrc")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCacheable_ScalarConstsOnly(t *testing.T) {
	scalar := &bytecode.Function{Consts: []value.Val{value.Int(1), value.Str("x"), value.Bool(true)}}
	assert.True(t, Cacheable(scalar))

	aggregate := &bytecode.Function{Consts: []value.Val{value.List([]value.Val{value.Int(1)})}}
	assert.False(t, Cacheable(aggregate))
}

func TestStore_PutThenGetRoundTripsCacheableFunction(t *testing.T) {
	s := openTestStore(t)

	fn := &bytecode.Function{
		Name:  "main",
		NRegs: 2,
		Code: []bytecode.Instr{
			{Op: bytecode.OpLoadK, A: 0, B: bytecode.RKConst(0)},
			{Op: bytecode.OpRet, A: 0},
		},
		Consts: []value.Val{value.Int(42)},
	}

	require.NoError(t, s.Put("mod/a.lkr", "hash1", fn))

	got, ok, err := s.Get("mod/a.lkr", "hash1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fn.Name, got.Name)
	assert.Equal(t, fn.Code, got.Code)
	require.Len(t, got.Consts, 1)
	assert.Equal(t, int64(42), got.Consts[0].I)
}

func TestStore_GetMissReturnsFalseNotError(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get("mod/missing.lkr", "hash1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutSkipsNonCacheableFunctionSilently(t *testing.T) {
	s := openTestStore(t)
	fn := &bytecode.Function{
		Name:   "withClosureConst",
		Consts: []value.Val{value.List([]value.Val{value.Int(1)})},
	}
	require.NoError(t, s.Put("mod/b.lkr", "hash1", fn))

	_, ok, err := s.Get("mod/b.lkr", "hash1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DifferentContentHashIsAMiss(t *testing.T) {
	s := openTestStore(t)
	fn := &bytecode.Function{Name: "main", Consts: []value.Val{value.Int(1)}}
	require.NoError(t, s.Put("mod/a.lkr", "hash1", fn))

	_, ok, err := s.Get("mod/a.lkr", "hash2")
	require.NoError(t, err)
	assert.False(t, ok)
}
