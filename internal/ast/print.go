package ast

import (
	"fmt"
	"strconv"
	"strings"

	"lkr/internal/value"
)

// Print renders e back into source text. It exists to support the
// parse-fold stability property of spec §8.1: parse(Print(parse(e))) must
// equal parse(e) up to re-folding.
func Print(e Expr) string {
	var sb strings.Builder
	printExpr(&sb, e)
	return sb.String()
}

func printExpr(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *Const:
		sb.WriteString(printVal(n.Value))
	case *Ident:
		sb.WriteString(n.Name)
	case *Binary:
		sb.WriteByte('(')
		printExpr(sb, n.Left)
		sb.WriteString(" " + n.Op + " ")
		printExpr(sb, n.Right)
		sb.WriteByte(')')
	case *Unary:
		sb.WriteString(n.Op)
		printExpr(sb, n.Operand)
	case *Logical:
		sb.WriteByte('(')
		printExpr(sb, n.Left)
		sb.WriteString(" " + n.Op + " ")
		printExpr(sb, n.Right)
		sb.WriteByte(')')
	case *Nullish:
		sb.WriteByte('(')
		printExpr(sb, n.Left)
		sb.WriteString(" ?? ")
		printExpr(sb, n.Right)
		sb.WriteByte(')')
	case *Conditional:
		printExpr(sb, n.Cond)
		sb.WriteString(" ? ")
		printExpr(sb, n.Then)
		sb.WriteString(" : ")
		printExpr(sb, n.Else)
	case *Access:
		printExpr(sb, n.Object)
		if n.Optional {
			sb.WriteString("?.")
		} else {
			sb.WriteByte('.')
		}
		sb.WriteString(n.Field)
	case *Index:
		printExpr(sb, n.Object)
		if n.Optional {
			sb.WriteString("?[")
		} else {
			sb.WriteByte('[')
		}
		printExpr(sb, n.Key)
		sb.WriteByte(']')
	case *ListLit:
		sb.WriteByte('[')
		for i, el := range n.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			printExpr(sb, el)
		}
		sb.WriteByte(']')
	case *MapLit:
		sb.WriteByte('{')
		for i, en := range n.Entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			printExpr(sb, en.Key)
			sb.WriteString(": ")
			printExpr(sb, en.Value)
		}
		sb.WriteByte('}')
	case *StructLit:
		sb.WriteString(n.Name + " { ")
		for i, f := range n.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name + ": ")
			printExpr(sb, f.Value)
		}
		sb.WriteString(" }")
	case *Call:
		printExpr(sb, n.Callee)
		sb.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			if a.Name != "" {
				sb.WriteString(a.Name + ": ")
			}
			printExpr(sb, a.Value)
		}
		sb.WriteByte(')')
	case *RangeExpr:
		if n.Start != nil {
			printExpr(sb, n.Start)
		}
		if n.Inclusive {
			sb.WriteString("..=")
		} else {
			sb.WriteString("..")
		}
		if n.End != nil {
			printExpr(sb, n.End)
		}
		if n.Step != nil {
			sb.WriteString("..")
			printExpr(sb, n.Step)
		}
	case *Template:
		sb.WriteByte('`')
		for _, p := range n.Parts {
			if p.Expr == nil {
				sb.WriteString(p.Literal)
			} else {
				sb.WriteString("${")
				printExpr(sb, p.Expr)
				sb.WriteByte('}')
			}
		}
		sb.WriteByte('`')
	case *Closure:
		sb.WriteString("fn(")
		for i, p := range n.PosParams {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p)
		}
		sb.WriteString(") => ")
		sb.WriteString("{...}")
	case *Select:
		sb.WriteString("select { ... }")
	case *Match:
		sb.WriteString("match ")
		printExpr(sb, n.Discriminant)
		sb.WriteString(" { ... }")
	default:
		sb.WriteString(fmt.Sprintf("<%T>", e))
	}
}

func printVal(v value.Val) string {
	switch v.Kind {
	case value.KNil:
		return "nil"
	case value.KBool:
		if v.B {
			return "true"
		}
		return "false"
	case value.KInt:
		return strconv.FormatInt(v.I, 10)
	case value.KFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case value.KStr:
		return strconv.Quote(v.S)
	default:
		return v.String()
	}
}
