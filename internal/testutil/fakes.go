package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/vk/sweepbench/internal/pattern"
	"github.com/vk/sweepbench/internal/remote"
)

// CallKind distinguishes synchronous runs from background starts.
type CallKind string

const (
	CallRun   CallKind = "run"
	CallStart CallKind = "start"
)

// Call records one executor invocation. Seq is a global, monotonically
// increasing sequence number, so tests can assert ordering across kinds.
type Call struct {
	Seq     int
	Kind    CallKind
	Machine int
	Command string
	Sinks   remote.Sinks
}

// FakeExecutor is a recording remote.Executor for tests.
type FakeExecutor struct {
	mu    sync.Mutex
	seq   int
	calls []Call

	// RunErr fails every synchronous Run call.
	RunErr error
	// StartErr fails every Start call.
	StartErr error
	// WaitErrFor fails the handle of the given process dispatch index.
	WaitErrFor map[int]error
}

func (f *FakeExecutor) record(kind CallKind, machine int, command string, sinks remote.Sinks) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.calls = append(f.calls, Call{Seq: f.seq, Kind: kind, Machine: machine, Command: command, Sinks: sinks})
	return len(f.calls) - 1
}

// Run records a synchronous execution.
func (f *FakeExecutor) Run(ctx context.Context, machineID int, command string) error {
	f.record(CallRun, machineID, command, remote.Sinks{})
	return f.RunErr
}

// Start records a background execution and returns a handle that resolves
// with the configured error, if any.
func (f *FakeExecutor) Start(ctx context.Context, machineID int, command string, sinks remote.Sinks) (remote.Handle, error) {
	idx := f.record(CallStart, machineID, command, sinks)
	if f.StartErr != nil {
		return nil, f.StartErr
	}
	startIdx := f.startIndex(idx)
	return fakeHandle{err: f.WaitErrFor[startIdx]}, nil
}

// startIndex converts a call index into an index among Start calls only.
func (f *FakeExecutor) startIndex(callIdx int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := -1
	for i := 0; i <= callIdx; i++ {
		if f.calls[i].Kind == CallStart {
			n++
		}
	}
	return n
}

// Calls returns a copy of all recorded calls.
func (f *FakeExecutor) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// StartCalls returns only the background dispatches, in dispatch order.
func (f *FakeExecutor) StartCalls() []Call {
	var starts []Call
	for _, c := range f.Calls() {
		if c.Kind == CallStart {
			starts = append(starts, c)
		}
	}
	return starts
}

// RunCalls returns only the synchronous executions, in order.
func (f *FakeExecutor) RunCalls() []Call {
	var runs []Call
	for _, c := range f.Calls() {
		if c.Kind == CallRun {
			runs = append(runs, c)
		}
	}
	return runs
}

type fakeHandle struct {
	err error
}

func (h fakeHandle) Wait() error { return h.err }

// FakeGenerator writes fixed bytes as the migration pattern and records the
// specs it was asked for.
type FakeGenerator struct {
	mu    sync.Mutex
	specs []pattern.Spec

	// Payload is the pattern content written; a default is used when empty.
	Payload string
	// Err fails every Generate call.
	Err error
}

// Generate implements pattern.Generator.
func (g *FakeGenerator) Generate(ctx context.Context, spec pattern.Spec, w io.Writer) error {
	g.mu.Lock()
	g.specs = append(g.specs, spec)
	g.mu.Unlock()
	if g.Err != nil {
		return g.Err
	}
	payload := g.Payload
	if payload == "" {
		payload = fmt.Sprintf("pattern %s %d->%s\n", spec.Migration, spec.Slots, spec.Final)
	}
	_, err := io.WriteString(w, payload)
	return err
}

// Specs returns a copy of the recorded generator specs.
func (g *FakeGenerator) Specs() []pattern.Spec {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]pattern.Spec(nil), g.specs...)
}
