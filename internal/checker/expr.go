package checker

import (
	"lkr/internal/ast"
	"lkr/internal/types"
)

// checkExpr assigns e a structural type, failing with a TypeError on the
// first mismatch (spec §4.2's check_expr).
func (c *Checker) checkExpr(e ast.Expr) types.Type {
	switch ex := e.(type) {
	case *ast.Const:
		return constType(ex)

	case *ast.Ident:
		if t, ok := c.sc.lookup(ex.Name); ok {
			return t
		}
		if t, ok := c.globals.lookup(ex.Name); ok {
			return t
		}
		// Undeclared identifiers are left to resolve at runtime against
		// natives/module-level bindings the checker doesn't see (spec §4.2
		// Non-goals: "cross-module type resolution").
		return types.Any()

	case *ast.Binary:
		return c.checkBinary(ex)

	case *ast.Unary:
		t := c.checkExpr(ex.Operand)
		switch ex.Op {
		case "!":
			return types.Bool()
		case "-":
			if t.Tag != types.TInt && t.Tag != types.TFloat && t.Tag != types.TAny {
				c.fail(ex.Span(), "unary - requires Int or Float, got %s", t)
			}
			return t
		default:
			return types.Any()
		}

	case *ast.Logical:
		l := c.checkExpr(ex.Left)
		r := c.checkExpr(ex.Right)
		if l.Tag != types.TBool && l.Tag != types.TAny {
			c.fail(ex.Left.Span(), "%s operand must be Bool, got %s", ex.Op, l)
		}
		return unify(l, r)

	case *ast.Nullish:
		l := c.checkExpr(ex.Left)
		r := c.checkExpr(ex.Right)
		return unify(l.Unwrap(), r)

	case *ast.Conditional:
		c.checkExpr(ex.Cond)
		t := c.checkExpr(ex.Then)
		e2 := c.checkExpr(ex.Else)
		return unify(t, e2)

	case *ast.Access:
		return c.checkAccess(ex)

	case *ast.Index:
		return c.checkIndex(ex)

	case *ast.ListLit:
		if len(ex.Elems) == 0 {
			return types.ListOf(types.Any())
		}
		elem := c.checkExpr(ex.Elems[0])
		for _, el := range ex.Elems[1:] {
			elem = unify(elem, c.checkExpr(el))
		}
		return types.ListOf(elem)

	case *ast.MapLit:
		val := types.Any()
		for i, me := range ex.Entries {
			c.checkExpr(me.Key)
			vt := c.checkExpr(me.Value)
			if i == 0 {
				val = vt
			} else {
				val = unify(val, vt)
			}
		}
		return types.MapOf(types.String(), val)

	case *ast.StructLit:
		return c.checkStructLit(ex)

	case *ast.Call:
		return c.checkCall(ex)

	case *ast.RangeExpr:
		return types.ListOf(c.checkRangeExpr(ex))

	case *ast.Template:
		for _, p := range ex.Parts {
			if p.Expr != nil {
				c.checkExpr(p.Expr)
			}
		}
		return types.String()

	case *ast.Closure:
		return c.checkClosureBody(ex)

	case *ast.Select:
		return c.checkSelect(ex)

	case *ast.Match:
		return c.checkMatch(ex)

	default:
		c.fail(e.Span(), "checker: unhandled expression %T", e)
		return types.Any()
	}
}

func constType(ex *ast.Const) types.Type {
	switch ex.Value.Kind.String() {
	case "Nil":
		return types.Nil()
	case "Bool":
		return types.Bool()
	case "Int":
		return types.Int()
	case "Float":
		return types.Float()
	case "Str":
		return types.String()
	default:
		return types.Any()
	}
}

// checkBinary implements the numeric hierarchy (Int widens to Float on a
// mixed Int/Float operand pair) plus the String `+` concatenation special
// case, mirroring internal/vm/arith.go's runtime behavior (spec §4.2/§8.1),
// except that `%` is rejected here unless both operands are Int (or Any).
func (c *Checker) checkBinary(ex *ast.Binary) types.Type {
	l := c.checkExpr(ex.Left)
	r := c.checkExpr(ex.Right)

	switch ex.Op {
	case "==", "!=":
		return types.Bool()
	case "<", "<=", ">", ">=":
		if !numericOrAny(l) || !numericOrAny(r) {
			if !(l.Tag == types.TString && r.Tag == types.TString) {
				c.fail(ex.Span(), "comparison requires matching numeric or String operands, got %s and %s", l, r)
			}
		}
		return types.Bool()
	case "+":
		if l.Tag == types.TString || r.Tag == types.TString {
			if (l.Tag == types.TString || l.Tag == types.TAny) && (r.Tag == types.TString || r.Tag == types.TAny) {
				return types.String()
			}
			c.fail(ex.Span(), "+ between String and %s is not defined", otherOf(l, r))
		}
		return numericResult(c, ex, l, r)
	case "-", "*", "/":
		return numericResult(c, ex, l, r)
	case "%":
		if (l.Tag != types.TInt && l.Tag != types.TAny) || (r.Tag != types.TInt && r.Tag != types.TAny) {
			c.fail(ex.Span(), "%% requires Int operands, got %s and %s", l, r)
		}
		return numericResult(c, ex, l, r)
	case "in":
		return types.Bool()
	default:
		return types.Any()
	}
}

func otherOf(l, r types.Type) types.Type {
	if l.Tag == types.TString {
		return r
	}
	return l
}

func numericOrAny(t types.Type) bool {
	return t.Tag == types.TInt || t.Tag == types.TFloat || t.Tag == types.TAny
}

func numericResult(c *Checker, ex *ast.Binary, l, r types.Type) types.Type {
	if !numericOrAny(l) || !numericOrAny(r) {
		c.fail(ex.Span(), "%s requires Int or Float operands, got %s and %s", ex.Op, l, r)
	}
	if l.Tag == types.TAny || r.Tag == types.TAny {
		return types.Any()
	}
	if l.Tag == types.TFloat || r.Tag == types.TFloat {
		return types.Float()
	}
	return types.Int()
}

// checkAccess implements field/property lookup in the priority order of
// spec §12 item 1 ("object field map first, then the trait method
// registry"): a Named struct's declared field wins; failing that, any
// trait that struct implements is searched for a matching method. The
// VM's Access op reads only the object's own fields.
func (c *Checker) checkAccess(ex *ast.Access) types.Type {
	obj := c.checkExpr(ex.Object)
	t := c.fieldOrMethodType(obj, ex.Field)
	if ex.Optional || obj.IsOptional() {
		return types.Optional(t)
	}
	return t
}

func (c *Checker) fieldOrMethodType(obj types.Type, field string) types.Type {
	base := obj.Unwrap()
	if base.Tag == types.TNamed {
		if si, ok := c.structs[base.Name]; ok {
			if ft, ok := si.fields[field]; ok {
				return ft
			}
		}
		for _, ti := range c.traits {
			if mt, ok := ti.methods[field]; ok {
				return mt
			}
		}
	}
	return types.Any()
}

func (c *Checker) checkIndex(ex *ast.Index) types.Type {
	obj := c.checkExpr(ex.Object)
	keyT := c.checkExpr(ex.Key)
	base := obj.Unwrap()
	var t types.Type
	switch base.Tag {
	case types.TList:
		if keyT.Tag != types.TInt && keyT.Tag != types.TAny {
			c.fail(ex.Key.Span(), "list index must be Int, got %s", keyT)
		}
		t = base.Elem
	case types.TMap:
		if keyT.Tag != types.TString && keyT.Tag != types.TAny {
			c.fail(ex.Key.Span(), "map index must be String, got %s", keyT)
		}
		t = base.Val
	case types.TString:
		t = types.String()
	default:
		t = types.Any()
	}
	if ex.Optional {
		return types.Optional(t)
	}
	return t
}

func (c *Checker) checkStructLit(ex *ast.StructLit) types.Type {
	si, known := c.structs[ex.Name]
	for _, f := range ex.Fields {
		ft := c.checkExpr(f.Value)
		if known {
			want, ok := si.fields[f.Name]
			if !ok {
				c.fail(ex.Span(), "struct %s has no field %q", ex.Name, f.Name)
			}
			if !types.AssignableTo(ft, want) {
				c.fail(ex.Span(), "field %s.%s expects %s, got %s", ex.Name, f.Name, want, ft)
			}
		}
	}
	return types.Named(ex.Name)
}

// checkCall type-checks both positional and named-arg calls, enforcing
// the same duplicate/unknown-named-argument rules as internal/vm/calls.go
// does at runtime (spec §8.3) so a caller gets the error at compile time
// when the callee's shape is statically known.
func (c *Checker) checkCall(ex *ast.Call) types.Type {
	calleeT := c.checkExpr(ex.Callee)
	seen := map[string]bool{}
	for _, a := range ex.Args {
		at := c.checkExpr(a.Value)
		if a.Name == "" {
			continue
		}
		if seen[a.Name] {
			c.fail(ex.Span(), "duplicate named argument %q", a.Name)
		}
		seen[a.Name] = true
		if calleeT.Tag == types.TFunction {
			want, ok := calleeT.NamedParams[a.Name]
			if !ok {
				c.fail(ex.Span(), "unknown named argument %q", a.Name)
			}
			if ok && !types.AssignableTo(at, want) {
				c.fail(ex.Span(), "named argument %q expects %s, got %s", a.Name, want, at)
			}
		}
	}
	if calleeT.Tag == types.TFunction && calleeT.Return != nil {
		return *calleeT.Return
	}
	return types.Any()
}

// checkRangeExpr returns the element type a `start..end` / `start..=end`
// range iterates over: Float if either bound (or the step) is Float,
// Int otherwise (spec §3.3/§4.2).
func (c *Checker) checkRangeExpr(ex *ast.RangeExpr) types.Type {
	elem := types.Int()
	for _, sub := range []ast.Expr{ex.Start, ex.End, ex.Step} {
		if sub == nil {
			continue
		}
		t := c.checkExpr(sub)
		if t.Tag == types.TFloat {
			elem = types.Float()
		} else if t.Tag != types.TInt && t.Tag != types.TAny {
			c.fail(sub.Span(), "range bound must be Int or Float, got %s", t)
		}
	}
	return elem
}

// checkClosureBody checks a closure literal or `fn` declaration body,
// inferring its return type from `return` statements (statement-bodied)
// or the trailing expression (expr-bodied, `|params| expr`).
func (c *Checker) checkClosureBody(cl *ast.Closure) types.Type {
	c.pushScope()
	for _, p := range cl.PosParams {
		c.declare(p, types.Any())
	}
	namedTypes := map[string]types.Type{}
	for _, np := range cl.NamedParams {
		nt := namedType(np.TypeName)
		if np.Optional {
			nt = types.Optional(nt)
		}
		namedTypes[np.Name] = nt
		c.declare(np.Name, nt)
		if np.Default != nil {
			c.checkExpr(np.Default)
		}
	}

	var ret types.Type
	if cl.IsExprBody {
		if es, ok := cl.Body.(*ast.ExprStmt); ok {
			ret = c.checkExpr(es.X)
		} else if cl.Body != nil {
			c.checkStmt(cl.Body)
			ret = types.Any()
		} else {
			ret = types.Nil()
		}
	} else {
		c.returnStack = append(c.returnStack, types.Nil())
		if cl.Body != nil {
			c.checkStmt(cl.Body)
		}
		top := len(c.returnStack) - 1
		ret = c.returnStack[top]
		c.returnStack = c.returnStack[:top]
	}
	c.popScope()

	params := make([]types.Type, len(cl.PosParams))
	for i := range params {
		params[i] = types.Any()
	}
	return types.Function(params, namedTypes, ret)
}

// checkSelect unifies every case body's type (spec §4.2: "guard, case
// bodies, and default body unify") and requires each case's channel
// operand to actually be a Channel.
func (c *Checker) checkSelect(ex *ast.Select) types.Type {
	var result types.Type
	first := true
	for _, cs := range ex.Cases {
		c.pushScope()
		if !cs.IsDefault {
			chT := c.checkExpr(cs.Channel)
			if chT.Unwrap().Tag != types.TChannel && chT.Tag != types.TAny {
				c.fail(cs.Channel.Span(), "select case requires a Channel operand, got %s", chT)
			}
			if cs.IsSend {
				c.checkExpr(cs.Value)
			} else if cs.Bind != "" {
				c.declare(cs.Bind, elementType(chT.Unwrap()))
			}
		}
		if cs.Guard != nil {
			c.checkExpr(cs.Guard)
		}
		var bt types.Type
		if cs.Body != nil {
			bt = c.checkBlockValue(cs.Body)
		} else {
			bt = types.Nil()
		}
		c.popScope()
		if first {
			result, first = bt, false
		} else {
			result = unify(result, bt)
		}
	}
	if first {
		return types.Nil()
	}
	return result
}

// checkMatch unifies every arm's body type (spec §4.2 match unification),
// type-binding each arm's pattern against the discriminant's type first.
func (c *Checker) checkMatch(ex *ast.Match) types.Type {
	dt := c.checkExpr(ex.Discriminant)
	var result types.Type
	first := true
	for _, arm := range ex.Arms {
		c.pushScope()
		c.bindPatternAt(arm.Pattern, dt)
		if arm.Guard != nil {
			gt := c.checkExpr(arm.Guard)
			if gt.Tag != types.TBool && gt.Tag != types.TAny {
				c.fail(arm.Guard.Span(), "match guard must be Bool, got %s", gt)
			}
		}
		bt := c.checkExpr(arm.Body)
		c.popScope()
		if first {
			result, first = bt, false
		} else {
			result = unify(result, bt)
		}
	}
	if first {
		return types.Nil()
	}
	return result
}

// checkBlockValue checks a select-case body statement and reports the
// type of its last expression statement, since a select case's body can
// be a value-producing block (spec §3.3 select-as-expression).
func (c *Checker) checkBlockValue(s ast.Stmt) types.Type {
	blk, ok := s.(*ast.Block)
	if !ok {
		if es, ok := s.(*ast.ExprStmt); ok {
			return c.checkExpr(es.X)
		}
		c.checkStmt(s)
		return types.Nil()
	}
	c.pushScope()
	defer c.popScope()
	var last types.Type = types.Nil()
	for i, inner := range blk.Stmts {
		if i == len(blk.Stmts)-1 {
			if es, ok := inner.(*ast.ExprStmt); ok {
				last = c.checkExpr(es.X)
				continue
			}
		}
		c.checkStmt(inner)
	}
	return last
}
