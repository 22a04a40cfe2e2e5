package vm

import (
	"fmt"

	"lkr/internal/bytecode"
	"lkr/internal/value"
)

// arith implements the Int/Float numeric tower: Int op Int stays Int,
// any Float operand promotes the result to Float (spec §4.2 numeric
// hierarchy collapses at runtime to this widening rule).
func arith(a, b value.Val, op byte) (value.Val, error) {
	if a.Kind == value.KStr && b.Kind == value.KStr && op == '+' {
		return value.Str(a.S + b.S), nil
	}
	if a.Kind != value.KInt && a.Kind != value.KFloat {
		return value.Nil(), fmt.Errorf("arithmetic on non-numeric value %s", a.Kind)
	}
	if b.Kind != value.KInt && b.Kind != value.KFloat {
		return value.Nil(), fmt.Errorf("arithmetic on non-numeric value %s", b.Kind)
	}
	if a.Kind == value.KFloat || b.Kind == value.KFloat {
		af, bf := toFloat(a), toFloat(b)
		switch op {
		case '+':
			return value.Float(af + bf), nil
		case '-':
			return value.Float(af - bf), nil
		case '*':
			return value.Float(af * bf), nil
		case '/':
			if bf == 0 {
				return value.Nil(), fmt.Errorf("division by zero")
			}
			return value.Float(af / bf), nil
		case '%':
			if bf == 0 {
				return value.Nil(), fmt.Errorf("modulo by zero")
			}
			return value.Float(floatMod(af, bf)), nil
		}
	}
	ai, bi := a.I, b.I
	switch op {
	case '+':
		return value.Int(ai + bi), nil
	case '-':
		return value.Int(ai - bi), nil
	case '*':
		return value.Int(ai * bi), nil
	case '/':
		if bi == 0 {
			return value.Nil(), fmt.Errorf("division by zero")
		}
		return value.Int(ai / bi), nil
	case '%':
		if bi == 0 {
			return value.Nil(), fmt.Errorf("modulo by zero")
		}
		return value.Int(ai % bi), nil
	}
	return value.Nil(), fmt.Errorf("unknown arithmetic op %c", op)
}

func toFloat(v value.Val) float64 {
	if v.Kind == value.KFloat {
		return v.F
	}
	return float64(v.I)
}

func floatMod(a, b float64) float64 {
	m := a
	for m >= b {
		m -= b
	}
	for m < 0 {
		m += b
	}
	return m
}

// compareOrdered implements <,<=,>,>= over Int/Float (cross-widened) and
// Str (lexicographic), matching spec §4.2's comparable types.
func compareOrdered(a, b value.Val, op bytecode.Op) (bool, error) {
	if a.Kind == value.KStr && b.Kind == value.KStr {
		switch op {
		case bytecode.OpCmpLt:
			return a.S < b.S, nil
		case bytecode.OpCmpLe:
			return a.S <= b.S, nil
		case bytecode.OpCmpGt:
			return a.S > b.S, nil
		case bytecode.OpCmpGe:
			return a.S >= b.S, nil
		}
	}
	if (a.Kind != value.KInt && a.Kind != value.KFloat) || (b.Kind != value.KInt && b.Kind != value.KFloat) {
		return false, fmt.Errorf("comparison on non-orderable values %s/%s", a.Kind, b.Kind)
	}
	af, bf := toFloat(a), toFloat(b)
	switch op {
	case bytecode.OpCmpLt:
		return af < bf, nil
	case bytecode.OpCmpLe:
		return af <= bf, nil
	case bytecode.OpCmpGt:
		return af > bf, nil
	case bytecode.OpCmpGe:
		return af >= bf, nil
	}
	return false, fmt.Errorf("unknown comparison op %s", op)
}
