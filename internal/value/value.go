// Package value implements Val, the tagged sum of runtime values described
// in spec §3.1. Aggregates use Go's garbage collector for shared ownership
// (copy-on-assignment-of-reference is free once a Val holds a pointer/slice
// header), which gives the "no transitively-owning cycle" invariant without
// resorting to the teacher's NaN-boxed, manually-refcounted object heap.
package value

import (
	"fmt"
	"sort"
	"strings"
)

// Kind tags a Val's active variant.
type Kind uint8

const (
	KNil Kind = iota
	KBool
	KInt
	KFloat
	KStr
	KList
	KMap
	KObject
	KClosure
	KRustFunction
	KRustFunctionNamed
	KTask
	KChannel
	KStream
	KIterator
	KMutationGuard
)

func (k Kind) String() string {
	switch k {
	case KNil:
		return "Nil"
	case KBool:
		return "Bool"
	case KInt:
		return "Int"
	case KFloat:
		return "Float"
	case KStr:
		return "Str"
	case KList:
		return "List"
	case KMap:
		return "Map"
	case KObject:
		return "Object"
	case KClosure:
		return "Closure"
	case KRustFunction, KRustFunctionNamed:
		return "NativeFunction"
	case KTask:
		return "Task"
	case KChannel:
		return "Channel"
	case KStream:
		return "Stream"
	case KIterator:
		return "Iterator"
	case KMutationGuard:
		return "MutationGuard"
	default:
		return "Unknown"
	}
}

// Val is the single runtime value type threaded through the checker,
// compiler and VM. Only the field matching Kind is meaningful.
type Val struct {
	Kind Kind

	B bool
	I int64
	F float64
	S string

	List []Val
	Map  *MapVal

	Obj *ObjectVal

	Closure *ClosureVal
	Native  *NativeFn

	Handle *HandleVal // Task, Channel, Stream, Iterator, MutationGuard
}

// MapVal is the shared, immutable backing of a Map value. Insertion order
// is not guaranteed (spec §3.1); keys are plain strings.
type MapVal struct {
	Entries map[string]Val
}

// ObjectVal is a named struct instance with an immutable field map.
type ObjectVal struct {
	Name   string
	Fields map[string]Val
}

// NativeFn is a native callable identified by pointer, with an optional
// name for RustFunctionNamed (spec §3.1, §6.4).
type NativeFn struct {
	Name string
	Fn   func(ctx NativeContext, positional []Val, named []NamedArg) (Val, error)
}

// NamedArg is one (name, value) pair passed to a named-ABI native call.
type NamedArg struct {
	Name  string
	Value Val
}

// NativeContext is the subset of VM services exposed to native functions
// (spec §6.4): global read/write and re-entrant closure invocation.
type NativeContext interface {
	GetGlobal(name string) (Val, bool)
	SetGlobal(name string, v Val)
	Call(callee Val, args []Val) (Val, error)
}

// HandleVal backs Task/Channel/Stream/Iterator/MutationGuard: these compare
// by pointer identity (spec §3.1), so the handle itself carries an opaque
// payload and an identity id supplied by the external runtime.
type HandleVal struct {
	ID      string
	Kind    Kind
	Payload interface{}
}

func Nil() Val                 { return Val{Kind: KNil} }
func Bool(b bool) Val          { return Val{Kind: KBool, B: b} }
func Int(i int64) Val          { return Val{Kind: KInt, I: i} }
func Float(f float64) Val      { return Val{Kind: KFloat, F: f} }
func Str(s string) Val         { return Val{Kind: KStr, S: s} }
func List(items []Val) Val     { return Val{Kind: KList, List: items} }
func Map(entries map[string]Val) Val {
	return Val{Kind: KMap, Map: &MapVal{Entries: entries}}
}
func Object(name string, fields map[string]Val) Val {
	return Val{Kind: KObject, Obj: &ObjectVal{Name: name, Fields: fields}}
}
func Closure(c *ClosureVal) Val { return Val{Kind: KClosure, Closure: c} }
func Native(fn *NativeFn) Val {
	k := KRustFunction
	if fn.Name != "" {
		k = KRustFunctionNamed
	}
	return Val{Kind: k, Native: fn}
}
func Handle(k Kind, h *HandleVal) Val { return Val{Kind: k, Handle: h} }

func (v Val) IsNil() bool { return v.Kind == KNil }

// Truth implements the language's truthiness rule: nil and false are
// falsy; every other value (including 0, 0.0 and "") is truthy.
func (v Val) Truth() bool {
	switch v.Kind {
	case KNil:
		return false
	case KBool:
		return v.B
	default:
		return true
	}
}

// DispatchType maps the variant to the type token used for method lookup
// (spec §3.1).
func (v Val) DispatchType() string {
	if v.Kind == KObject {
		return v.Obj.Name
	}
	return strings.ToLower(v.Kind.String())
}

// Equal implements the structural-for-primitives/aggregates,
// pointer-identity-for-native/handle equality rule of spec §3.1.
func Equal(a, b Val) bool {
	if a.Kind != b.Kind {
		// Int/Float cross-kind equality is not auto-widened; only exact
		// kind matches compare equal, matching the checker's numeric
		// hierarchy (spec §4.2) which treats Int and Float as distinct.
		return false
	}
	switch a.Kind {
	case KNil:
		return true
	case KBool:
		return a.B == b.B
	case KInt:
		return a.I == b.I
	case KFloat:
		return a.F == b.F
	case KStr:
		return a.S == b.S
	case KList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KMap:
		if len(a.Map.Entries) != len(b.Map.Entries) {
			return false
		}
		for k, av := range a.Map.Entries {
			bv, ok := b.Map.Entries[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KObject:
		if a.Obj.Name != b.Obj.Name || len(a.Obj.Fields) != len(b.Obj.Fields) {
			return false
		}
		for k, av := range a.Obj.Fields {
			bv, ok := b.Obj.Fields[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KClosure:
		return a.Closure == b.Closure
	case KRustFunction, KRustFunctionNamed:
		return a.Native == b.Native
	case KTask, KChannel, KStream, KIterator, KMutationGuard:
		return a.Handle == b.Handle
	default:
		return false
	}
}

// String renders a Val for diagnostics and the CLI's `print`-style output.
func (v Val) String() string {
	switch v.Kind {
	case KNil:
		return "nil"
	case KBool:
		if v.B {
			return "true"
		}
		return "false"
	case KInt:
		return fmt.Sprintf("%d", v.I)
	case KFloat:
		return fmt.Sprintf("%g", v.F)
	case KStr:
		return v.S
	case KList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KMap:
		keys := make([]string, 0, len(v.Map.Entries))
		for k := range v.Map.Entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%q: %s", k, v.Map.Entries[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KObject:
		keys := make([]string, 0, len(v.Obj.Fields))
		for k := range v.Obj.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, v.Obj.Fields[k].String())
		}
		return v.Obj.Name + " { " + strings.Join(parts, ", ") + " }"
	case KClosure:
		return fmt.Sprintf("<closure %p>", v.Closure)
	case KRustFunction, KRustFunctionNamed:
		return fmt.Sprintf("<native %s>", v.Native.Name)
	default:
		return fmt.Sprintf("<%s %s>", v.Kind, v.Handle.ID)
	}
}

// Index implements spec §8.3's `Index` boundary behavior: out-of-range and
// negative integer indices yield Nil rather than an error.
func (v Val) Index(i int64) Val {
	switch v.Kind {
	case KList:
		if i < 0 || i >= int64(len(v.List)) {
			return Nil()
		}
		return v.List[i]
	case KStr:
		if i < 0 || i >= int64(len(v.S)) {
			return Nil()
		}
		return Str(string(v.S[i]))
	default:
		return Nil()
	}
}

// Access implements `.`/`?.` field/property access. Per spec §9 open
// question 1, dynamic dispatch never hard-errors: nil and non-aggregate
// receivers both yield Nil.
func (v Val) Access(key string) Val {
	switch v.Kind {
	case KObject:
		if f, ok := v.Obj.Fields[key]; ok {
			return f
		}
		return Nil()
	case KMap:
		if f, ok := v.Map.Entries[key]; ok {
			return f
		}
		return Nil()
	default:
		return Nil()
	}
}

func (v Val) Len() (int, bool) {
	switch v.Kind {
	case KList:
		return len(v.List), true
	case KStr:
		return len(v.S), true
	case KMap:
		return len(v.Map.Entries), true
	default:
		return 0, false
	}
}
