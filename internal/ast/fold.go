package ast

import "lkr/internal/value"

// Fold performs the constant-folding pass of spec §4.1. It is idempotent
// (spec §8.2: fold(fold(e)) == fold(e)) because a folded *Const node has no
// children left to re-visit.
func Fold(e Expr) Expr {
	switch n := e.(type) {
	case *Const, *Ident:
		return n

	case *Binary:
		n.Left = Fold(n.Left)
		n.Right = Fold(n.Right)
		return foldBinary(n)

	case *Unary:
		n.Operand = Fold(n.Operand)
		return foldUnary(n)

	case *Logical:
		n.Left = Fold(n.Left)
		n.Right = Fold(n.Right)
		return foldLogical(n)

	case *Nullish:
		n.Left = Fold(n.Left)
		n.Right = Fold(n.Right)
		if lc, ok := n.Left.(*Const); ok {
			if !lc.Value.IsNil() {
				return lc
			}
			return n.Right
		}
		return n

	case *Conditional:
		n.Cond = Fold(n.Cond)
		n.Then = Fold(n.Then)
		n.Else = Fold(n.Else)
		if cc, ok := n.Cond.(*Const); ok {
			if cc.Value.Truth() {
				return n.Then
			}
			return n.Else
		}
		return n

	case *Access:
		n.Object = Fold(n.Object)
		return foldAccess(n)

	case *Index:
		n.Object = Fold(n.Object)
		n.Key = Fold(n.Key)
		return foldIndex(n)

	case *ListLit:
		allConst := true
		for i, el := range n.Elems {
			n.Elems[i] = Fold(el)
			if _, ok := n.Elems[i].(*Const); !ok {
				allConst = false
			}
		}
		if allConst {
			items := make([]value.Val, len(n.Elems))
			for i, el := range n.Elems {
				items[i] = el.(*Const).Value
			}
			return NewConst(value.List(items), n.Span())
		}
		return n

	case *MapLit:
		allConst := true
		for i := range n.Entries {
			n.Entries[i].Key = Fold(n.Entries[i].Key)
			n.Entries[i].Value = Fold(n.Entries[i].Value)
			_, kok := n.Entries[i].Key.(*Const)
			_, vok := n.Entries[i].Value.(*Const)
			if !kok || !vok {
				allConst = false
			}
		}
		if allConst {
			entries := map[string]value.Val{}
			for _, e := range n.Entries {
				kc := e.Key.(*Const).Value
				if kc.Kind != value.KStr && kc.Kind != value.KInt {
					return n // non-primitive key: don't fold
				}
				entries[kc.String()] = e.Value.(*Const).Value
			}
			return NewConst(value.Map(entries), n.Span())
		}
		return n

	case *StructLit:
		for i := range n.Fields {
			n.Fields[i].Value = Fold(n.Fields[i].Value)
		}
		return n

	case *Call:
		n.Callee = Fold(n.Callee)
		for i := range n.Args {
			n.Args[i].Value = Fold(n.Args[i].Value)
		}
		return n

	case *RangeExpr:
		if n.Start != nil {
			n.Start = Fold(n.Start)
		}
		if n.End != nil {
			n.End = Fold(n.End)
		}
		if n.Step != nil {
			n.Step = Fold(n.Step)
		}
		return n

	case *Template:
		return foldTemplate(n)

	case *Closure:
		// The closure body is folded lazily at compile time (its own
		// Function unit), not eagerly here, matching the once-per-unit
		// compilation model of spec §2.
		return n

	case *Select:
		for i := range n.Cases {
			if n.Cases[i].Channel != nil {
				n.Cases[i].Channel = Fold(n.Cases[i].Channel)
			}
			if n.Cases[i].Value != nil {
				n.Cases[i].Value = Fold(n.Cases[i].Value)
			}
			if n.Cases[i].Guard != nil {
				n.Cases[i].Guard = Fold(n.Cases[i].Guard)
			}
		}
		return n

	case *Match:
		n.Discriminant = Fold(n.Discriminant)
		for i := range n.Arms {
			if n.Arms[i].Guard != nil {
				n.Arms[i].Guard = Fold(n.Arms[i].Guard)
			}
			n.Arms[i].Body = Fold(n.Arms[i].Body)
		}
		return n

	default:
		return e
	}
}

func asConst(e Expr) (value.Val, bool) {
	c, ok := e.(*Const)
	if !ok {
		return value.Val{}, false
	}
	return c.Value, true
}

func foldBinary(n *Binary) Expr {
	l, lok := asConst(n.Left)
	r, rok := asConst(n.Right)
	if !lok || !rok {
		return n
	}
	switch n.Op {
	case "+", "-", "*", "/", "%":
		return foldArith(n, l, r)
	case "==", "!=", "<", ">", "<=", ">=":
		return foldCompare(n, l, r)
	case "in":
		// Defensive per spec §9 open question 3: only fold when RHS is a
		// literal container; skip (preserve the node) otherwise.
		if r.Kind != value.KList && r.Kind != value.KMap {
			return n
		}
		return NewConst(value.Bool(containsConst(l, r)), n.Span())
	default:
		return n
	}
}

func containsConst(l, r value.Val) bool {
	switch r.Kind {
	case value.KList:
		for _, e := range r.List {
			if value.Equal(l, e) {
				return true
			}
		}
		return false
	case value.KMap:
		if l.Kind != value.KStr {
			return false
		}
		_, ok := r.Map.Entries[l.S]
		return ok
	default:
		return false
	}
}

// foldArith folds arithmetic on two numeric constants. Division by zero and
// non-Int modulo skip folding (spec §4.1): the node is preserved so the
// error surfaces at runtime instead of at parse time.
func foldArith(n *Binary, l, r value.Val) Expr {
	li, liok := asInt(l)
	ri, riok := asInt(r)
	if liok && riok && n.Op != "/" {
		switch n.Op {
		case "+":
			return NewConst(value.Int(li+ri), n.Span())
		case "-":
			return NewConst(value.Int(li-ri), n.Span())
		case "*":
			return NewConst(value.Int(li*ri), n.Span())
		case "%":
			if ri == 0 {
				return n
			}
			return NewConst(value.Int(li%ri), n.Span())
		}
	}
	lf, lfok := asFloat(l)
	rf, rfok := asFloat(r)
	if !lfok || !rfok {
		return n
	}
	switch n.Op {
	case "+":
		return NewConst(value.Float(lf+rf), n.Span())
	case "-":
		return NewConst(value.Float(lf-rf), n.Span())
	case "*":
		return NewConst(value.Float(lf*rf), n.Span())
	case "/":
		if rf == 0 {
			return n
		}
		return NewConst(value.Float(lf/rf), n.Span())
	case "%":
		return n // modulo requires Int operands; type checker raises this
	}
	return n
}

func foldCompare(n *Binary, l, r value.Val) Expr {
	lf, lfok := asFloat(l)
	rf, rfok := asFloat(r)
	if lfok && rfok {
		var b bool
		switch n.Op {
		case "==":
			b = lf == rf
		case "!=":
			b = lf != rf
		case "<":
			b = lf < rf
		case ">":
			b = lf > rf
		case "<=":
			b = lf <= rf
		case ">=":
			b = lf >= rf
		}
		return NewConst(value.Bool(b), n.Span())
	}
	if n.Op == "==" {
		return NewConst(value.Bool(value.Equal(l, r)), n.Span())
	}
	if n.Op == "!=" {
		return NewConst(value.Bool(!value.Equal(l, r)), n.Span())
	}
	return n
}

func asInt(v value.Val) (int64, bool) {
	if v.Kind == value.KInt {
		return v.I, true
	}
	return 0, false
}

func asFloat(v value.Val) (float64, bool) {
	switch v.Kind {
	case value.KInt:
		return float64(v.I), true
	case value.KFloat:
		return v.F, true
	default:
		return 0, false
	}
}

func foldUnary(n *Unary) Expr {
	c, ok := asConst(n.Operand)
	if !ok {
		return n
	}
	switch n.Op {
	case "!":
		return NewConst(value.Bool(!c.Truth()), n.Span())
	case "-":
		if c.Kind == value.KInt {
			return NewConst(value.Int(-c.I), n.Span())
		}
		if c.Kind == value.KFloat {
			return NewConst(value.Float(-c.F), n.Span())
		}
	}
	return n
}

func foldLogical(n *Logical) Expr {
	lc, ok := asConst(n.Left)
	if !ok {
		return n
	}
	switch n.Op {
	case "&&":
		if !lc.Truth() {
			return n.Left
		}
		return n.Right
	case "||":
		if lc.Truth() {
			return n.Left
		}
		return n.Right
	}
	return n
}

// foldAccess never folds: Access uses string field names, and leaving it
// unfolded keeps method-call sugar (foo.bar(...)) at its dispatch site
// (spec §9 open question 2). Integer-keyed indexing of constant lists is
// folded by foldIndex.
func foldAccess(n *Access) Expr {
	c, ok := asConst(n.Object)
	if !ok {
		return n
	}
	_ = c
	return n // Access uses string field names; never folds per §9.
}

func foldIndex(n *Index) Expr {
	oc, ook := asConst(n.Object)
	kc, kok := asConst(n.Key)
	if !ook || !kok {
		return n
	}
	if oc.Kind != value.KList || kc.Kind != value.KInt {
		return n
	}
	return NewConst(oc.Index(kc.I), n.Span())
}

func foldTemplate(n *Template) Expr {
	allLiteral := true
	var sb []byte
	for i, p := range n.Parts {
		if p.Expr == nil {
			sb = append(sb, p.Literal...)
			continue
		}
		n.Parts[i].Expr = Fold(p.Expr)
		c, ok := asConst(n.Parts[i].Expr)
		if !ok {
			allLiteral = false
			continue
		}
		sb = append(sb, c.String()...)
	}
	if allLiteral {
		return NewConst(value.Str(string(sb)), n.Span())
	}
	return n
}
