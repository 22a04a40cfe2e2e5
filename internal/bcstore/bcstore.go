// Package bcstore is the persisted bytecode cache of spec §6.2/§6.5:
// "embedded precompiled modules may be pre-registered" implies some
// modules skip recompilation entirely across CLI invocations. Backed by
// modernc.org/sqlite the way the teacher's internal/database package
// backs its own caches, keyed by module path + content hash so an
// unchanged file never gets re-parsed/re-compiled.
//
// Scope: only a Function with exclusively scalar constants (Nil/Bool/
// Int/Float/String — no List/Map/Closure) is cacheable, since Consts
// entries of aggregate kind may alias runtime-only state (a closure's
// captured environment) that has no stable on-disk representation.
// Store silently skips caching anything wider; the caller always falls
// back to a normal compile on a cache miss, so this is a pure
// optimization, never a correctness dependency.
package bcstore

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"

	_ "modernc.org/sqlite"

	"lkr/internal/bytecode"
	"lkr/internal/value"
)

// Store wraps one SQLite database file holding compiled-module entries.
type Store struct {
	db *sql.DB
}

// Open creates/attaches the cache database at path (spec §10.3's
// config.RunConfig.BytecodeCacheDir names the containing directory; the
// caller joins a fixed filename, e.g. "modules.lkrc").
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("bcstore: open %s: %w", path, err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS modules (
		path TEXT NOT NULL,
		hash TEXT NOT NULL,
		code BLOB NOT NULL,
		PRIMARY KEY (path, hash)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bcstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// entry is the on-disk gob shape: plain scalar consts plus the
// instruction stream, everything else about a Function (Protos,
// PatternPlans, closures) recompiled fresh on load since those carry
// AST/runtime references bcstore doesn't attempt to persist.
type entry struct {
	Name     string
	Code     []bytecode.Instr
	NRegs    uint16
	ConstKind []value.Kind
	ConstI   []int64
	ConstF   []float64
	ConstS   []string
	ConstB   []bool
}

// Cacheable reports whether fn's constant pool is scalar-only and so
// safe to persist under this store's scope.
func Cacheable(fn *bytecode.Function) bool {
	for _, c := range fn.Consts {
		switch c.Kind {
		case value.KNil, value.KBool, value.KInt, value.KFloat, value.KStr:
		default:
			return false
		}
	}
	return true
}

// Put persists fn under (modulePath, contentHash) if it is Cacheable;
// a non-cacheable Function is silently skipped (Cacheable should be
// checked by the caller first if it wants to know why).
func (s *Store) Put(modulePath, contentHash string, fn *bytecode.Function) error {
	if !Cacheable(fn) {
		return nil
	}
	e := entry{Name: fn.Name, Code: fn.Code, NRegs: fn.NRegs}
	for _, c := range fn.Consts {
		e.ConstKind = append(e.ConstKind, c.Kind)
		e.ConstI = append(e.ConstI, c.I)
		e.ConstF = append(e.ConstF, c.F)
		e.ConstS = append(e.ConstS, c.S)
		e.ConstB = append(e.ConstB, c.B)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return fmt.Errorf("bcstore: encode %s: %w", modulePath, err)
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO modules (path, hash, code) VALUES (?, ?, ?)`,
		modulePath, contentHash, buf.Bytes())
	return err
}

// Get looks up modulePath at contentHash; ok is false on a miss (either
// never cached, or cached under a different content hash because the
// source changed).
func (s *Store) Get(modulePath, contentHash string) (fn *bytecode.Function, ok bool, err error) {
	var blob []byte
	row := s.db.QueryRow(`SELECT code FROM modules WHERE path = ? AND hash = ?`, modulePath, contentHash)
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	var e entry
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&e); err != nil {
		return nil, false, fmt.Errorf("bcstore: decode %s: %w", modulePath, err)
	}
	consts := make([]value.Val, len(e.ConstKind))
	for i, k := range e.ConstKind {
		switch k {
		case value.KNil:
			consts[i] = value.Nil()
		case value.KBool:
			consts[i] = value.Bool(e.ConstB[i])
		case value.KInt:
			consts[i] = value.Int(e.ConstI[i])
		case value.KFloat:
			consts[i] = value.Float(e.ConstF[i])
		case value.KStr:
			consts[i] = value.Str(e.ConstS[i])
		}
	}
	return &bytecode.Function{Name: e.Name, Code: e.Code, NRegs: e.NRegs, Consts: consts}, true, nil
}
