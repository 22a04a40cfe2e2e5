package ast

import "lkr/internal/value"

// MatchPattern evaluates p against v, returning the ordered bindings a
// successful match produces. The guard clause of GuardPattern is not
// evaluated here — a caller must evaluate Guard itself once bindings are
// in scope, since guard evaluation can call into user code. (The VM's
// PatternMatch op does not call this; it uses its own matcher, vm.match.)
func MatchPattern(p Pattern, v value.Val) ([]Binding, bool) {
	switch pt := p.(type) {
	case LiteralPattern:
		if value.Equal(pt.Value, v) {
			return nil, true
		}
		return nil, false

	case WildcardPattern:
		return nil, true

	case VariablePattern:
		return []Binding{{Name: pt.Name, Value: v}}, true

	case ListPattern:
		return matchList(pt, v)

	case MapPattern:
		return matchMap(pt, v)

	case OrPattern:
		for _, alt := range pt.Alts {
			if b, ok := MatchPattern(alt, v); ok {
				return b, true
			}
		}
		return nil, false

	case GuardPattern:
		return MatchPattern(pt.Inner, v)

	case RangePattern:
		// Range patterns bind no names; numeric membership is checked by
		// the caller once Start/End are evaluated (they are arbitrary
		// exprs, not pattern literals).
		return nil, true

	default:
		return nil, false
	}
}

func matchList(pt ListPattern, v value.Val) ([]Binding, bool) {
	if v.Kind != value.KList {
		return nil, false
	}
	if pt.Rest == "" {
		if len(v.List) != len(pt.Elems) {
			return nil, false
		}
	} else if len(v.List) < len(pt.Elems) {
		return nil, false
	}
	var bindings []Binding
	for i, ep := range pt.Elems {
		b, ok := MatchPattern(ep, v.List[i])
		if !ok {
			return nil, false
		}
		bindings = append(bindings, b...)
	}
	if pt.Rest != "" {
		rest := append([]value.Val{}, v.List[len(pt.Elems):]...)
		bindings = append(bindings, Binding{Name: pt.Rest, Value: value.List(rest)})
	}
	return bindings, true
}

func matchMap(pt MapPattern, v value.Val) ([]Binding, bool) {
	if v.Kind != value.KMap {
		return nil, false
	}
	var bindings []Binding
	matched := map[string]bool{}
	for _, e := range pt.Entries {
		fv, ok := v.Map.Entries[e.Key]
		if !ok {
			return nil, false
		}
		b, ok := MatchPattern(e.Pattern, fv)
		if !ok {
			return nil, false
		}
		bindings = append(bindings, b...)
		matched[e.Key] = true
	}
	if pt.Rest != "" {
		rest := map[string]value.Val{}
		for k, fv := range v.Map.Entries {
			if !matched[k] {
				rest[k] = fv
			}
		}
		bindings = append(bindings, Binding{Name: pt.Rest, Value: value.Map(rest)})
	}
	return bindings, true
}
