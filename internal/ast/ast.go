// Package ast defines Expr, Stmt and Pattern (spec §3.3-3.4) and the
// constant-folding pass (spec §4.1 "Constant folding"). It is grounded on
// the teacher's parser/ast.go visitor shape, generalized to the language
// surface named in spec.md (ranges, templates, match/select, struct
// literals, optional access).
package ast

import (
	"lkr/internal/token"
	"lkr/internal/value"
)

// Expr is any expression node. Folded constant expressions replace their
// subtree with a *Const node (spec §4.1).
type Expr interface {
	Span() token.Span
	isExpr()
}

// Base is embedded by every node to carry its source span. It is exported
// so other packages (parser, compiler) can set it in keyed composite
// literals: ast.Binary{Base: ast.Base{Sp: sp}, ...}.
type Base struct{ Sp token.Span }

func (b Base) Span() token.Span { return b.Sp }

// ---- literals & references ----

type Const struct {
	Base
	Value value.Val
}

type Ident struct {
	Base
	Name string
}

// ---- operators ----

type Binary struct {
	Base
	Op    string
	Left  Expr
	Right Expr
}

type Unary struct {
	Base
	Op      string
	Operand Expr
}

type Logical struct {
	Base
	Op    string // "&&" | "||"
	Left  Expr
	Right Expr
}

type Nullish struct {
	Base
	Left  Expr
	Right Expr
}

type Conditional struct {
	Base
	Cond Expr
	Then Expr
	Else Expr
}

// ---- access ----

type Access struct {
	Base
	Object   Expr
	Field    string
	Optional bool
}

type Index struct {
	Base
	Object   Expr
	Key      Expr
	Optional bool
}

// ---- aggregates ----

type ListLit struct {
	Base
	Elems []Expr
}

type MapEntry struct {
	Key   Expr
	Value Expr
}

type MapLit struct {
	Base
	Entries []MapEntry
}

type StructField struct {
	Name  string
	Value Expr
}

type StructLit struct {
	Base
	Name   string
	Fields []StructField
}

// ---- calls ----

type Arg struct {
	Name  string // "" for positional
	Value Expr
}

type Call struct {
	Base
	Callee Expr
	Args   []Arg
}

// ---- range ----

type RangeExpr struct {
	Base
	Start     Expr // nil if open
	End       Expr // nil if open
	Step      Expr // nil if default
	Inclusive bool
}

// ---- template string ----

type TemplatePart struct {
	Literal string
	Expr    Expr // nil for a pure literal part
}

type Template struct {
	Base
	Parts []TemplatePart
}

// ---- closures ----

type NamedParam struct {
	Name     string
	TypeName string
	Optional bool
	Default  Expr
}

type Closure struct {
	Base
	PosParams   []string
	NamedParams []NamedParam
	Body        Stmt
	IsExprBody  bool
}

// ---- select ----

type SelectCase struct {
	IsDefault bool
	IsSend    bool // true: send(ch, v); false: recv(ch)
	Channel   Expr
	Value     Expr // send value, or recv binding name carried as Ident via Bind
	Bind      string
	Guard     Expr
	Body      Stmt
}

type Select struct {
	Base
	Cases []SelectCase
}

// ---- match ----

type MatchArm struct {
	Pattern Pattern
	Guard   Expr
	Body    Expr
}

type Match struct {
	Base
	Discriminant Expr
	Arms         []MatchArm
}

func (*Const) isExpr()       {}
func (*Ident) isExpr()       {}
func (*Binary) isExpr()      {}
func (*Unary) isExpr()       {}
func (*Logical) isExpr()     {}
func (*Nullish) isExpr()     {}
func (*Conditional) isExpr() {}
func (*Access) isExpr()      {}
func (*Index) isExpr()       {}
func (*ListLit) isExpr()     {}
func (*MapLit) isExpr()      {}
func (*StructLit) isExpr()   {}
func (*Call) isExpr()        {}
func (*RangeExpr) isExpr()   {}
func (*Template) isExpr()    {}
func (*Closure) isExpr()     {}
func (*Select) isExpr()      {}
func (*Match) isExpr()       {}

func NewConst(v value.Val, sp token.Span) *Const { return &Const{Base{sp}, v} }
