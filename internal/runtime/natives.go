package runtime

import (
	"fmt"

	"lkr/internal/value"
)

// Bootstrap installs the native globals that round out the concurrency
// surface beyond what the VM's ops cover directly (spawn/send/recv/select
// are bytecode ops; await/close are ordinary native calls, spec §6.4).
func (rt *Runtime) Bootstrap(setGlobal func(name string, v value.Val)) {
	setGlobal("await", value.Native(&value.NativeFn{Name: "await", Fn: rt.nativeAwait}))
	setGlobal("close", value.Native(&value.NativeFn{Name: "close", Fn: rt.nativeClose}))
}

func (rt *Runtime) nativeAwait(_ value.NativeContext, positional []value.Val, _ []value.NamedArg) (value.Val, error) {
	if len(positional) != 1 {
		return value.Nil(), fmt.Errorf("await expects 1 argument, got %d", len(positional))
	}
	return rt.Await(positional[0])
}

func (rt *Runtime) nativeClose(_ value.NativeContext, positional []value.Val, _ []value.NamedArg) (value.Val, error) {
	if len(positional) != 1 {
		return value.Nil(), fmt.Errorf("close expects 1 argument, got %d", len(positional))
	}
	return value.Nil(), rt.Close(positional[0])
}
