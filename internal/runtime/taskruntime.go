// Package runtime is the external collaborator spec §5/§6 delegates
// spawn/channel/select semantics to: it implements vm.TaskRuntime against
// real goroutines, coordinated the way the teacher's
// internal/concurrency/concurrency.go coordinates its WorkerPool (a
// context.CancelFunc for shutdown, channels as the only cross-goroutine
// handoff), generalized from worker-pool jobs to arbitrary spawned
// closures and replacing its hand-rolled WaitGroup bookkeeping with
// golang.org/x/sync/errgroup.
package runtime

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lkr/internal/value"
	"lkr/internal/vm"
)

// Runtime implements vm.TaskRuntime. One Runtime is shared by every VM
// instance spawned from the same top-level run (spec §5 "isolated VM
// instances communicating only through channels").
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a Runtime whose spawned tasks are cancelled when ctx is
// done or when Shutdown is called.
func New(ctx context.Context) *Runtime {
	gctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(gctx)
	return &Runtime{ctx: gctx, cancel: cancel, group: group}
}

// Shutdown cancels every outstanding task and waits for them to unwind
// (spec §5 "cancellation... checked only at select and native call
// boundaries; frames unwind normally").
func (rt *Runtime) Shutdown() error {
	rt.cancel()
	return rt.group.Wait()
}

// taskState is the Payload behind a KTask handle: a one-shot future
// closed when the spawned closure returns.
type taskState struct {
	done   chan struct{}
	result value.Val
	err    error
}

// Spawn fans fn out onto the errgroup (spec §5's "spawns VM instances on
// worker threads"); the returned Task handle compares by pointer identity
// via its HandleVal, per spec §3.1.
func (rt *Runtime) Spawn(fn func() (value.Val, error)) value.Val {
	ts := &taskState{done: make(chan struct{})}
	rt.group.Go(func() error {
		defer close(ts.done)
		v, err := fn()
		ts.result = v
		ts.err = err
		return err
	})
	return value.Handle(value.KTask, &value.HandleVal{ID: uuid.NewString(), Kind: value.KTask, Payload: ts})
}

// Await blocks until the task completes or the runtime is cancelled,
// returning its result. Exposed to lkr programs as the native
// `await` function (see natives.go); not part of vm.TaskRuntime since
// the VM itself never calls it directly.
func (rt *Runtime) Await(task value.Val) (value.Val, error) {
	ts, ok := taskPayload(task)
	if !ok {
		return value.Nil(), fmt.Errorf("await: not a task")
	}
	select {
	case <-ts.done:
		return ts.result, ts.err
	case <-rt.ctx.Done():
		return value.Nil(), rt.ctx.Err()
	}
}

func taskPayload(v value.Val) (*taskState, bool) {
	if v.Kind != value.KTask || v.Handle == nil {
		return nil, false
	}
	ts, ok := v.Handle.Payload.(*taskState)
	return ts, ok
}

// channelState is the Payload behind a KChannel handle. primedRecv/
// primedSend hold a value already transferred by a just-completed
// Select (spec §5's select "delegates to the runtime to block until one
// case's channel is ready"): Go's select has no non-consuming peek, so
// Select performs the real transfer and primes the result here; the
// case body's own Recv/Send instruction then drains the primed slot
// instead of touching the channel a second time.
type channelState struct {
	mu         sync.Mutex
	ch         chan value.Val
	closed     bool
	primedRecv *value.Val
	primedSend bool
}

// NewChannel creates a buffered (capacity > 0) or unbuffered Channel
// handle.
func (rt *Runtime) NewChannel(capacity int) value.Val {
	if capacity < 0 {
		capacity = 0
	}
	cs := &channelState{ch: make(chan value.Val, capacity)}
	return value.Handle(value.KChannel, &value.HandleVal{ID: uuid.NewString(), Kind: value.KChannel, Payload: cs})
}

func channelPayload(v value.Val) (*channelState, error) {
	if v.Kind != value.KChannel || v.Handle == nil {
		return nil, fmt.Errorf("not a channel")
	}
	cs, ok := v.Handle.Payload.(*channelState)
	if !ok {
		return nil, fmt.Errorf("malformed channel handle")
	}
	return cs, nil
}

// Send implements the `send` op. A send primed by a preceding Select has
// already reached the channel; this call then is a no-op drain of that
// priming, matching the ordinary send's observable effect exactly once.
func (rt *Runtime) Send(ch value.Val, v value.Val) error {
	cs, err := channelPayload(ch)
	if err != nil {
		return err
	}
	cs.mu.Lock()
	if cs.primedSend {
		cs.primedSend = false
		cs.mu.Unlock()
		return nil
	}
	cs.mu.Unlock()

	select {
	case cs.ch <- v:
		return nil
	case <-rt.ctx.Done():
		return rt.ctx.Err()
	}
}

// Recv implements the `recv` op, draining a Select-primed value first.
// ok is false when the channel was closed with nothing left buffered.
func (rt *Runtime) Recv(ch value.Val) (value.Val, bool, error) {
	cs, err := channelPayload(ch)
	if err != nil {
		return value.Nil(), false, err
	}
	cs.mu.Lock()
	if cs.primedRecv != nil {
		v := *cs.primedRecv
		cs.primedRecv = nil
		cs.mu.Unlock()
		return v, true, nil
	}
	cs.mu.Unlock()

	select {
	case v, ok := <-cs.ch:
		return v, ok, nil
	case <-rt.ctx.Done():
		return value.Nil(), false, rt.ctx.Err()
	}
}

// Close marks a channel closed; subsequent Recv drains whatever was
// buffered, then reports ok=false.
func (rt *Runtime) Close(ch value.Val) error {
	cs, err := channelPayload(ch)
	if err != nil {
		return err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return nil
	}
	cs.closed = true
	close(cs.ch)
	return nil
}

// Select implements spec §5's blocking choice over recv/send cases via
// reflect.Select, the idiomatic way to select over a dynamic, runtime-
// sized case list. The winning case's transfer is primed onto its
// channelState (see channelState's doc comment) so the VM's follow-up
// Recv/Send at the jump target observes it exactly once.
func (rt *Runtime) Select(cases []vm.SelectCase, defaultIdx int) (int, error) {
	states := make([]*channelState, len(cases))
	rcases := make([]reflect.SelectCase, 0, len(cases)+2)
	// index[i] maps a reflect.SelectCase slot back to its logical case.
	index := make([]int, 0, len(cases)+2)

	for i, c := range cases {
		if i == defaultIdx {
			continue // default has no channel; handled via reflect.SelectDefault below
		}
		cs, err := channelPayload(c.Chan)
		if err != nil {
			return -1, err
		}
		states[i] = cs
		if c.IsSend {
			rcases = append(rcases, reflect.SelectCase{Dir: reflect.SelectSend, Chan: reflect.ValueOf(cs.ch), Send: reflect.ValueOf(c.Send)})
		} else {
			rcases = append(rcases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(cs.ch)})
		}
		index = append(index, i)
	}

	cancelSlot := len(rcases)
	rcases = append(rcases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(rt.ctx.Done())})
	index = append(index, -1)

	if defaultIdx >= 0 {
		rcases = append(rcases, reflect.SelectCase{Dir: reflect.SelectDefault})
	}

	chosen, recv, recvOK := reflect.Select(rcases)
	if chosen == cancelSlot {
		return -1, rt.ctx.Err()
	}
	if defaultIdx >= 0 && chosen == len(rcases)-1 {
		return defaultIdx, nil
	}

	winner := index[chosen]
	c := cases[winner]
	cs := states[winner]
	cs.mu.Lock()
	if c.IsSend {
		cs.primedSend = true
	} else {
		var v value.Val
		if recvOK {
			v = recv.Interface().(value.Val)
		}
		cs.primedRecv = &v
	}
	cs.mu.Unlock()
	return winner, nil
}
