package vm

import (
	"lkr/internal/ast"
	"lkr/internal/bytecode"
	"lkr/internal/value"
)

// matchPattern tries p against v, writing any bindings it introduces
// into the registers recorded in bindings (in the same left-to-right
// order buildPatternPlan collected them), and reports whether the match
// succeeded (spec §4.3.4).
func (vm *VM) matchPattern(p ast.Pattern, v value.Val, bindings []bytecode.PatternBinding) bool {
	next := 0
	ok := vm.match(p, v, bindings, &next)
	return ok
}

func (vm *VM) match(p ast.Pattern, v value.Val, bindings []bytecode.PatternBinding, next *int) bool {
	switch pat := p.(type) {
	case ast.WildcardPattern:
		return true

	case ast.VariablePattern:
		vm.bindNext(bindings, next, v)
		return true

	case ast.LiteralPattern:
		return value.Equal(pat.Value, v)

	case ast.RangePattern:
		if v.Kind != value.KInt && v.Kind != value.KFloat {
			return false
		}
		lo, loOK := constBound(pat.Start)
		hi, hiOK := constBound(pat.End)
		f := toFloat(v)
		if loOK && f < toFloat(lo) {
			return false
		}
		if !hiOK {
			return true
		}
		if pat.Inclusive {
			return f <= toFloat(hi)
		}
		return f < toFloat(hi)

	case ast.ListPattern:
		if v.Kind != value.KList {
			return false
		}
		if pat.Rest == "" {
			if len(v.List) != len(pat.Elems) {
				return false
			}
		} else if len(v.List) < len(pat.Elems) {
			return false
		}
		for i, ep := range pat.Elems {
			if !vm.match(ep, v.List[i], bindings, next) {
				return false
			}
		}
		if pat.Rest != "" {
			vm.bindNext(bindings, next, value.List(append([]value.Val{}, v.List[len(pat.Elems):]...)))
		}
		return true

	case ast.MapPattern:
		if v.Kind != value.KMap && v.Kind != value.KObject {
			return false
		}
		entries := v.Map
		var fields map[string]value.Val
		if v.Kind == value.KMap {
			fields = entries.Entries
		} else {
			fields = v.Obj.Fields
		}
		matchedKeys := map[string]bool{}
		for _, me := range pat.Entries {
			fv, ok := fields[me.Key]
			if !ok {
				return false
			}
			matchedKeys[me.Key] = true
			if !vm.match(me.Pattern, fv, bindings, next) {
				return false
			}
		}
		if pat.Rest != "" {
			rest := map[string]value.Val{}
			for k, fv := range fields {
				if !matchedKeys[k] {
					rest[k] = fv
				}
			}
			vm.bindNext(bindings, next, value.Map(rest))
		}
		return true

	case ast.GuardPattern:
		// The boolean guard itself is compiled and checked by the
		// caller (compileMatch evaluates it after a
		// successful PatternMatch and stores its truthiness in the match
		// flag); structurally this just delegates to Inner.
		return vm.match(pat.Inner, v, bindings, next)

	case ast.OrPattern:
		for _, alt := range pat.Alts {
			save := *next
			if vm.match(alt, v, bindings, next) {
				return true
			}
			*next = save
		}
		return false

	default:
		return false
	}
}

// constBound extracts a literal numeric bound from a range pattern's
// Start/End expression. Range patterns always fold to *ast.Const by the
// time they reach the VM (spec §4.1 constant folding runs before the
// compiler sees the AST); a non-constant bound here means the fold pass
// left an unresolved expression, which the VM treats as "no bound".
func constBound(e ast.Expr) (value.Val, bool) {
	if e == nil {
		return value.Nil(), false
	}
	if c, ok := e.(*ast.Const); ok {
		return c.Value, true
	}
	return value.Nil(), false
}

func (vm *VM) bindNext(bindings []bytecode.PatternBinding, next *int, v value.Val) {
	if *next >= len(bindings) {
		*next++
		return
	}
	vm.setReg(bindings[*next].Reg, v)
	*next++
}
