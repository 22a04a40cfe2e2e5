package value

import "sync"

// Compiled is implemented by *bytecode.Function. It is declared here,
// rather than value importing bytecode directly, because bytecode.Function
// holds a constant pool of Val and so must import value — keeping the
// dependency one-directional.
type Compiled interface {
	RegisterCount() int
}

// CaptureKind describes how a closure obtained one captured name
// (spec §3.7, §4.3.1, §4.5.6).
type CaptureKind uint8

const (
	CaptureRegister CaptureKind = iota
	CaptureConst
	CaptureGlobal
)

// CaptureSpec is the static description of a single capture.
type CaptureSpec struct {
	Name string
	Kind CaptureKind
	// Snapshot holds the captured Val for CaptureRegister/CaptureConst
	// captures, taken at MakeClosure time. CaptureGlobal captures re-read
	// the environment at each LoadCapture and so carry no snapshot.
	Snapshot Val
}

// NamedParamDecl is a closure's declared named parameter (spec §3.7):
// a name, its static type name (kept as a string to avoid a dependency on
// the types package from value), and an optional default-value thunk.
type NamedParamDecl struct {
	Name       string
	TypeName   string
	Optional   bool
	HasDefault bool
	Default    Compiled // compiled default-thunk Function, nil if none
}

// ClosureVal is the shared record described in spec §3.7. The body is kept
// behind an opaque interface{} (the compiler package knows the concrete
// *ast.Stmt type); value never needs to inspect it, only to hand it to the
// lazily-invoked CompileFn.
type ClosureVal struct {
	Name        string
	PosParams   []string
	NamedParams []NamedParamDecl
	Body        interface{}
	Captures    []CaptureSpec

	// CompileFn, if set, lazily compiles Body into a Compiled Function
	// the first time the closure is invoked. No package in this tree sets
	// it: the compiler precompiles every closure body, and MakeClosure
	// publishes that Function through Precompile.
	CompileFn func() (Compiled, error)

	once     sync.Once
	compiled Compiled
	compErr  error
}

// Compile runs CompileFn exactly once (spec §3.7 "lazily on first call via
// an initialize-once cell") and caches the result (or error) for all
// subsequent callers, including concurrent ones from separate VM instances
// sharing this closure.
func (c *ClosureVal) Compile() (Compiled, error) {
	c.once.Do(func() {
		c.compiled, c.compErr = c.CompileFn()
	})
	return c.compiled, c.compErr
}

// Precompile publishes an already-compiled prototype body immediately,
// bypassing the lazy path (spec §4.5.6: "Precompiled body code, if
// available on the prototype, is published into the closure's once-init
// cell immediately.").
func (c *ClosureVal) Precompile(fn Compiled) {
	c.once.Do(func() {
		c.compiled = fn
	})
}
