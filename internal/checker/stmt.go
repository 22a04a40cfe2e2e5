package checker

import (
	"lkr/internal/ast"
	"lkr/internal/types"
)

func (c *Checker) checkStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.ExprStmt:
		c.checkExpr(st.X)

	case *ast.LetStmt:
		vt := c.checkExpr(st.Value)
		c.bindPatternAt(st.Pattern, vt)

	case *ast.AssignStmt:
		vt := c.checkExpr(st.Value)
		tt := c.checkExpr(st.Target)
		if !types.AssignableTo(vt, tt) && tt.Tag != types.TAny {
			c.fail(st.Span(), "cannot assign %s to target of type %s", vt, tt)
		}

	case *ast.Block:
		c.pushScope()
		for _, inner := range st.Stmts {
			c.checkStmt(inner)
		}
		c.popScope()

	case *ast.IfStmt:
		ct := c.checkExpr(st.Cond)
		_ = ct
		c.checkStmt(st.Then)
		if st.Else != nil {
			c.checkStmt(st.Else)
		}

	case *ast.ForRange:
		var elem types.Type
		if st.Iterable != nil {
			elem = c.checkRangeExpr(st.Iterable)
		} else {
			srcT := c.checkExpr(st.Source)
			elem = elementType(srcT)
		}
		c.pushScope()
		c.declare(st.Induction, elem)
		c.checkStmt(st.Body)
		c.popScope()

	case *ast.BreakStmt, *ast.ContinueStmt:
		// no type obligations

	case *ast.ReturnStmt:
		var rt types.Type
		if st.Value != nil {
			rt = c.checkExpr(st.Value)
		} else {
			rt = types.Nil()
		}
		if len(c.returnStack) > 0 {
			top := len(c.returnStack) - 1
			c.returnStack[top] = unify(c.returnStack[top], rt)
		}

	case *ast.FnDecl:
		c.checkClosureBody(st.Closure)

	case *ast.StructDecl:
		// registered during hoistDecls; nothing further to check here.

	case *ast.TraitDecl:
		for _, m := range st.Methods {
			c.checkClosureBody(m.Closure)
		}

	case *ast.ImportStmt:
		// module resolution is out of the checker's scope (spec §4.2
		// Non-goals: "cross-module type resolution").

	default:
		c.fail(s.Span(), "checker: unhandled statement %T", s)
	}
}

// bindPatternAt assigns types to every name a pattern introduces against
// a scrutinee of type vt (spec §3.4/§4.2: pattern bindings are typed from
// the value they destructure).
func (c *Checker) bindPatternAt(p ast.Pattern, vt types.Type) {
	switch pat := p.(type) {
	case ast.WildcardPattern:
	case ast.VariablePattern:
		c.declare(pat.Name, vt)
	case ast.LiteralPattern:
	case ast.RangePattern:
	case ast.ListPattern:
		elem := elementType(vt)
		for _, ep := range pat.Elems {
			c.bindPatternAt(ep, elem)
		}
		if pat.Rest != "" {
			c.declare(pat.Rest, types.ListOf(elem))
		}
	case ast.MapPattern:
		for _, me := range pat.Entries {
			c.bindPatternAt(me.Pattern, types.Any())
		}
		if pat.Rest != "" {
			c.declare(pat.Rest, types.MapOf(types.String(), types.Any()))
		}
	case ast.GuardPattern:
		c.bindPatternAt(pat.Inner, vt)
	case ast.OrPattern:
		for _, alt := range pat.Alts {
			c.bindPatternAt(alt, vt)
		}
	}
}

// elementType is the structural element type of a List(T)/Map(K,V)/
// String/Any container, used for `for x in xs` and list-pattern rest
// bindings.
func elementType(t types.Type) types.Type {
	switch t.Tag {
	case types.TList:
		return t.Elem
	case types.TMap:
		return t.Val
	case types.TString:
		return types.String()
	case types.TChannel, types.TTask:
		return t.Elem
	default:
		return types.Any()
	}
}
