// Package checker implements the structural type checker of spec §4.2:
// it walks the (already constant-folded) AST once, assigning every
// expression a types.Type and failing on the first mismatch it finds.
// Scope chaining and the panic/recover single-error-exit shape are
// grounded on internal/compiler/compiler.go's frame/scope/CompileError
// pattern, generalized from register slots to inferred types.
package checker

import (
	"fmt"

	"lkr/internal/ast"
	"lkr/internal/token"
	"lkr/internal/types"
)

// TypeError is the checker's single failure mode (spec §4.2: "one
// TypeError halts checking"); there is no error-recovery/continue path.
type TypeError struct {
	Message string
	Span    token.Span
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Span, e.Message)
}

type structInfo struct {
	name   string
	fields map[string]types.Type
	order  []string
}

type traitInfo struct {
	name    string
	methods map[string]types.Type // Function types, by method name
}

type scope struct {
	parent *scope
	vars   map[string]types.Type
}

func newScope(parent *scope) *scope { return &scope{parent: parent, vars: map[string]types.Type{}} }

func (s *scope) lookup(name string) (types.Type, bool) {
	for c := s; c != nil; c = c.parent {
		if t, ok := c.vars[name]; ok {
			return t, true
		}
	}
	return types.Type{}, false
}

func (s *scope) declare(name string, t types.Type) { s.vars[name] = t }

// Checker holds the whole-program symbol tables (structs, traits,
// top-level functions) plus the scope stack active during a single
// CheckProgram walk.
type Checker struct {
	structs map[string]*structInfo
	traits  map[string]*traitInfo
	globals *scope

	// returnStack tracks the expected return type of the function body
	// currently being checked, so a bare/valued `return` can be checked
	// against its enclosing fn's declared or inferred return type.
	returnStack []types.Type
	sc          *scope
}

func New() *Checker {
	return &Checker{
		structs: map[string]*structInfo{},
		traits:  map[string]*traitInfo{},
		globals: newScope(nil),
	}
}

func (c *Checker) fail(sp token.Span, format string, args ...interface{}) {
	panic(&TypeError{Message: fmt.Sprintf(format, args...), Span: sp})
}

// CheckProgram type-checks a whole parsed, folded source file (spec
// §4.2); struct/trait declarations are hoisted in a first pass so a
// function may reference a struct declared later in the file.
func (c *Checker) CheckProgram(stmts []ast.Stmt) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if te, ok := r.(*TypeError); ok {
				err = te
				return
			}
			panic(r)
		}
	}()

	c.sc = c.globals
	c.hoistDecls(stmts)
	for _, s := range stmts {
		c.checkStmt(s)
	}
	return nil
}

func (c *Checker) hoistDecls(stmts []ast.Stmt) {
	for _, s := range stmts {
		switch d := s.(type) {
		case *ast.StructDecl:
			si := &structInfo{name: d.Name, fields: map[string]types.Type{}}
			for _, f := range d.Fields {
				ft := namedType(f.TypeName)
				if f.Optional {
					ft = types.Optional(ft)
				}
				si.fields[f.Name] = ft
				si.order = append(si.order, f.Name)
			}
			c.structs[d.Name] = si
		case *ast.TraitDecl:
			ti := &traitInfo{name: d.Name, methods: map[string]types.Type{}}
			for _, m := range d.Methods {
				ti.methods[m.Name] = closureType(m.Closure)
			}
			c.traits[d.Name] = ti
		case *ast.FnDecl:
			c.globals.declare(d.Name, closureType(d.Closure))
		}
	}
}

// namedType resolves a parsed type-name string to a types.Type. Builtin
// names map directly; anything else is a forward/struct reference
// resolved structurally at use (DispatchType), so it is kept as Named.
func namedType(name string) types.Type {
	switch name {
	case "", "Any":
		return types.Any()
	case "Nil":
		return types.Nil()
	case "Bool":
		return types.Bool()
	case "Int":
		return types.Int()
	case "Float":
		return types.Float()
	case "String":
		return types.String()
	default:
		return types.Named(name)
	}
}

func closureType(cl *ast.Closure) types.Type {
	if cl == nil {
		return types.Function(nil, nil, types.Any())
	}
	params := make([]types.Type, len(cl.PosParams))
	for i := range params {
		params[i] = types.Any() // positional params carry no declared type in this surface
	}
	named := map[string]types.Type{}
	for _, np := range cl.NamedParams {
		nt := namedType(np.TypeName)
		if np.Optional {
			nt = types.Optional(nt)
		}
		named[np.Name] = nt
	}
	return types.Function(params, named, types.Any())
}

// unify merges two branch/arm types into the type that describes "one of
// these flows through" (spec §4.2's match/select/conditional unification),
// reusing types.Union's dedup + Optional-collapsing normalization. Any
// absorbs the other operand rather than joining it into a union, matching
// Any's role everywhere else as "checking opts out here".
func unify(a, b types.Type) types.Type {
	if a.Tag == types.TAny || b.Tag == types.TAny {
		return types.Any()
	}
	return types.Union(a, b)
}

func (c *Checker) pushScope()       { c.sc = newScope(c.sc) }
func (c *Checker) popScope()        { c.sc = c.sc.parent }
func (c *Checker) declare(n string, t types.Type) { c.sc.declare(n, t) }
