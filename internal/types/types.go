// Package types implements the structural Type model of spec §3.2.
package types

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

type Tag uint8

const (
	TNil Tag = iota
	TBool
	TInt
	TFloat
	TString
	TAny
	TOptional
	TList
	TMap
	TTuple
	TNamed
	TUnion
	TFunction
	TChannel
	TTask
	TVariable
)

// Type is a structural type. Only the fields relevant to Tag are populated.
type Type struct {
	Tag Tag

	Elem Type   // Optional(T), List(T), Channel(T), Task(T)
	Key  Type   // Map(K,V)
	Val  Type   // Map(K,V)
	Elems []Type // Tuple(T...), Union(T...)
	Name string // Named(name)

	Params      []Type
	NamedParams map[string]Type
	Return      *Type

	VarID uint64 // Variable(id)
}

func Nil() Type     { return Type{Tag: TNil} }
func Bool() Type    { return Type{Tag: TBool} }
func Int() Type     { return Type{Tag: TInt} }
func Float() Type   { return Type{Tag: TFloat} }
func String() Type  { return Type{Tag: TString} }
func Any() Type     { return Type{Tag: TAny} }
func Named(name string) Type { return Type{Tag: TNamed, Name: name} }

func Optional(t Type) Type { return Type{Tag: TOptional, Elem: t} }
func ListOf(t Type) Type   { return Type{Tag: TList, Elem: t} }
func MapOf(k, v Type) Type { return Type{Tag: TMap, Key: k, Val: v} }
func TupleOf(ts ...Type) Type { return Type{Tag: TTuple, Elems: ts} }
func ChannelOf(t Type) Type { return Type{Tag: TChannel, Elem: t} }
func TaskOf(t Type) Type    { return Type{Tag: TTask, Elem: t} }

func Function(params []Type, named map[string]Type, ret Type) Type {
	return Type{Tag: TFunction, Params: params, NamedParams: named, Return: &ret}
}

var varCounter uint64

// NewVariable allocates a fresh inference variable id (spec §3.2 invariant:
// "Variable ids are fresh per allocation").
func NewVariable() Type {
	return Type{Tag: TVariable, VarID: atomic.AddUint64(&varCounter, 1)}
}

// Union builds a deduplicated union, normalizing Optional(T) <-> Union(T,Nil)
// per spec §3.2. A single-member union collapses to that member.
func Union(members ...Type) Type {
	seen := map[string]Type{}
	var keys []string
	for _, m := range flattenUnion(members) {
		k := m.DisplayKey()
		if _, ok := seen[k]; !ok {
			seen[k] = m
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]Type, len(keys))
	for i, k := range keys {
		out[i] = seen[k]
	}
	if len(out) == 1 {
		return out[0]
	}
	// Canonical isomorphism: Union(T, Nil) with exactly one non-Nil member
	// displays and assigns identically to Optional(T).
	if len(out) == 2 {
		if out[0].Tag == TNil {
			return Optional(out[1])
		}
		if out[1].Tag == TNil {
			return Optional(out[0])
		}
	}
	return Type{Tag: TUnion, Elems: out}
}

func flattenUnion(ts []Type) []Type {
	var out []Type
	for _, t := range ts {
		switch t.Tag {
		case TUnion:
			out = append(out, flattenUnion(t.Elems)...)
		case TOptional:
			out = append(out, t.Elem, Nil())
		default:
			out = append(out, t)
		}
	}
	return out
}

// DisplayKey is the canonical string used to deduplicate union members and
// compare named types (spec §3.2).
func (t Type) DisplayKey() string {
	switch t.Tag {
	case TNil:
		return "Nil"
	case TBool:
		return "Bool"
	case TInt:
		return "Int"
	case TFloat:
		return "Float"
	case TString:
		return "String"
	case TAny:
		return "Any"
	case TOptional:
		return "Optional(" + t.Elem.DisplayKey() + ")"
	case TList:
		return "List(" + t.Elem.DisplayKey() + ")"
	case TMap:
		return "Map(" + t.Key.DisplayKey() + "," + t.Val.DisplayKey() + ")"
	case TTuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = e.DisplayKey()
		}
		return "Tuple(" + strings.Join(parts, ",") + ")"
	case TNamed:
		return t.Name
	case TUnion:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = e.DisplayKey()
		}
		return "Union(" + strings.Join(parts, "|") + ")"
	case TFunction:
		return fmt.Sprintf("Function(%d args)", len(t.Params))
	case TChannel:
		return "Channel(" + t.Elem.DisplayKey() + ")"
	case TTask:
		return "Task(" + t.Elem.DisplayKey() + ")"
	case TVariable:
		return fmt.Sprintf("?%d", t.VarID)
	default:
		return "?"
	}
}

func (t Type) String() string { return t.DisplayKey() }

// IsOptional reports whether t is Optional(_) or its Union(_, Nil) form.
func (t Type) IsOptional() bool { return t.Tag == TOptional }

// Unwrap returns the payload type of Optional(T), or t itself otherwise.
func (t Type) Unwrap() Type {
	if t.Tag == TOptional {
		return t.Elem
	}
	return t
}

// AssignableTo reports whether a value of type t may be used where want is
// expected, per the structural rules implied by spec §4.2 (numeric escape
// via Any/Variable, union membership, optional widening).
func AssignableTo(t, want Type) bool {
	if want.Tag == TAny || t.Tag == TAny || want.Tag == TVariable || t.Tag == TVariable {
		return true
	}
	if want.Tag == TUnion {
		for _, m := range want.Elems {
			if AssignableTo(t, m) {
				return true
			}
		}
		return false
	}
	if want.Tag == TOptional {
		if t.Tag == TNil {
			return true
		}
		return AssignableTo(t, want.Elem)
	}
	if t.Tag != want.Tag {
		return false
	}
	switch t.Tag {
	case TList:
		return AssignableTo(t.Elem, want.Elem)
	case TMap:
		return AssignableTo(t.Key, want.Key) && AssignableTo(t.Val, want.Val)
	case TNamed:
		return t.Name == want.Name
	case TChannel, TTask:
		return AssignableTo(t.Elem, want.Elem)
	default:
		return true
	}
}
