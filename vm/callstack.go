package vm

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/qmuntal/stateless"
	"github.com/tliron/commonlog"
	"go.uber.org/atomic"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
)

var log = commonlog.GetLogger("xvm.engine")

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status is the lifecycle state of a call stack.
type Status int

const (
	StatusIdle       Status = iota // started, never executed
	StatusRunning                  // inside Execute
	StatusWaiting                  // an operand is not ready; waiting for Notify
	StatusPaused                   // the op budget ran out or the code yielded
	StatusTerminated               // the entry frame returned or an exception escaped
	StatusFaulted                  // an engine fault aborted the stack
)

var statusNames = [...]string{"Idle", "Running", "Waiting", "Paused", "Terminated", "Faulted"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

type trigger int

const (
	triggerRun trigger = iota
	triggerWait
	triggerPause
	triggerTerminate
	triggerFault
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options configure a call stack.
type Options struct {
	OpBudget int               // instructions per Execute slice
	MaxDepth int               // frames before StackOverflow
	Trace    []bytecode.Opcode // opcodes logged on every dispatch
	Metrics  *Metrics
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{OpBudget: 1_000_000, MaxDepth: 1024}
}

// ---------------------------------------------------------------------------
// CallStack: the driver
// ---------------------------------------------------------------------------

var stackIDs = atomic.NewUint64(0)

// CallStack runs one logical thread of execution: a strict LIFO of frames
// driven one instruction at a time. A call stack is not safe for
// concurrent use, except for Notify.
type CallStack struct {
	id      uint64
	rt      Runtime
	opts    Options
	metrics *Metrics
	trace   map[bytecode.Opcode]bool

	frames []*Frame // frames[0] receives the entry frame's results
	status Status
	fsm    *stateless.StateMachine
	wake   chan struct{}

	exception *Exception
	err       error
	pushed    *atomic.Int64
}

// NewCallStack creates an idle call stack.
func NewCallStack(rt Runtime, opts Options) *CallStack {
	def := DefaultOptions()
	if opts.OpBudget <= 0 {
		opts.OpBudget = def.OpBudget
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	cs := &CallStack{
		id:      stackIDs.Inc(),
		rt:      rt,
		opts:    opts,
		metrics: opts.Metrics,
		wake:    make(chan struct{}, 1),
		pushed:  atomic.NewInt64(0),
	}
	if len(opts.Trace) > 0 {
		cs.trace = make(map[bytecode.Opcode]bool, len(opts.Trace))
		for _, op := range opts.Trace {
			cs.trace[op] = true
		}
	}

	cs.fsm = stateless.NewStateMachineWithExternalStorage(func(_ context.Context) (stateless.State, error) {
		return cs.status, nil
	}, func(_ context.Context, s stateless.State) error {
		cs.status = s.(Status)
		return nil
	}, stateless.FiringImmediate)
	cs.fsm.Configure(StatusIdle).
		Permit(triggerRun, StatusRunning)
	cs.fsm.Configure(StatusRunning).
		Permit(triggerWait, StatusWaiting).
		Permit(triggerPause, StatusPaused).
		Permit(triggerTerminate, StatusTerminated).
		Permit(triggerFault, StatusFaulted)
	cs.fsm.Configure(StatusWaiting).
		Permit(triggerRun, StatusRunning)
	cs.fsm.Configure(StatusPaused).
		Permit(triggerRun, StatusRunning)
	cs.fsm.Configure(StatusTerminated)
	cs.fsm.Configure(StatusFaulted)
	return cs
}

// ID returns the call stack's process-wide identifier.
func (cs *CallStack) ID() uint64 { return cs.id }

// Status returns the current lifecycle state.
func (cs *CallStack) Status() Status { return cs.status }

// Depth returns the number of active frames, not counting the root.
func (cs *CallStack) Depth() int {
	if len(cs.frames) == 0 {
		return 0
	}
	return len(cs.frames) - 1
}

// FramesPushed returns how many frames have been pushed so far.
func (cs *CallStack) FramesPushed() int64 { return cs.pushed.Load() }

// Current returns the frame being executed, or nil.
func (cs *CallStack) Current() *Frame {
	if len(cs.frames) < 2 {
		return nil
	}
	return cs.frames[len(cs.frames)-1]
}

// Start prepares the stack to run m against target with args. The entry
// frame's results land in returns registers of the root frame.
func (cs *CallStack) Start(m *Method, target Value, args []Value, returns int) error {
	if len(cs.frames) != 0 {
		return errors.New("call stack already started")
	}
	root := &Frame{
		cs:      cs,
		method:  &Method{Name: "<root>"},
		regs:    make([]Value, returns),
		vars:    make([]*VarInfo, returns),
		nextVar: []int{returns},
	}
	cs.frames = []*Frame{root}

	ret := ReturnTo{}
	switch {
	case returns == 1:
		ret = Return1(0)
	case returns > 1:
		regs := make([]int, returns)
		for i := range regs {
			regs[i] = i
		}
		ret = ReturnN(regs)
	}

	var r Result
	if err := cs.guard(func() { r = root.Call(m, target, args, ret) }); err != nil {
		return err
	}
	switch r {
	case ResultCall:
		cs.push(root.next)
		root.next = nil
	case ResultNext:
		// a native entry point completed at once
		cs.frames = cs.frames[:1]
	default:
		return errors.Errorf("cannot start %s: %s", m, r)
	}
	return nil
}

// Results returns the entry frame's results once the stack terminated
// normally.
func (cs *CallStack) Results() []Value {
	if len(cs.frames) == 0 {
		return nil
	}
	return cs.frames[0].regs
}

// Exception returns the unhandled exception that terminated the stack.
func (cs *CallStack) Exception() *Exception { return cs.exception }

// Err returns the engine fault that aborted the stack.
func (cs *CallStack) Err() error { return cs.err }

// Notify wakes a stack waiting in Run. It may be called from any
// goroutine.
func (cs *CallStack) Notify() {
	select {
	case cs.wake <- struct{}{}:
	default:
	}
}

// Run executes slices until the stack terminates, faults or ctx is done.
// It returns the unhandled *Exception, the *EngineError, or ctx's error.
func (cs *CallStack) Run(ctx context.Context) error {
	for {
		st, err := cs.Execute()
		if err != nil {
			return err
		}
		switch st {
		case StatusTerminated:
			if cs.exception != nil {
				return cs.exception
			}
			return nil
		case StatusWaiting:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-cs.wake:
			}
		case StatusPaused:
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
}

// Execute runs one slice: until the op budget is spent, the stack waits,
// pauses or terminates.
func (cs *CallStack) Execute() (Status, error) {
	if len(cs.frames) == 0 {
		return cs.status, errors.New("call stack not started")
	}
	switch cs.status {
	case StatusTerminated:
		return cs.status, nil
	case StatusFaulted:
		return cs.status, cs.err
	}
	if err := cs.fsm.Fire(triggerRun); err != nil {
		return cs.status, errors.Wrapf(err, "call stack %d", cs.id)
	}
	if len(cs.frames) == 1 {
		cs.finish(nil)
		return cs.leave(triggerTerminate)
	}

	var trig trigger
	if err := cs.guard(func() { trig = cs.loop() }); err != nil {
		cs.abort(err)
		return cs.status, cs.err
	}
	return cs.leave(trig)
}

// leave moves the stack out of Running by trig.
func (cs *CallStack) leave(trig trigger) (Status, error) {
	if err := cs.fsm.Fire(trig); err != nil {
		return cs.status, errors.Wrapf(err, "call stack %d", cs.id)
	}
	return cs.status, nil
}

// guard runs fn, converting a panic into an *EngineError naming the
// instruction being executed.
func (cs *CallStack) guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ee := &EngineError{Cause: recoverFault(r)}
			if f := cs.Current(); f != nil {
				ee.Method = f.method.String()
				ee.PC = f.pc
				if f.pc >= 0 && f.pc < len(f.method.Code) {
					ee.Instruction = bytecode.FormatInstruction(f.pc, f.method.Code[f.pc])
				}
			}
			err = ee
		}
	}()
	fn()
	return nil
}

func (cs *CallStack) abort(err error) {
	cs.err = err
	cs.metrics.fault()
	log.Errorf("call stack %d: %v", cs.id, err)
	if fireErr := cs.fsm.Fire(triggerFault); fireErr != nil {
		log.Errorf("call stack %d: %v", cs.id, fireErr)
	}
}

// finish records how the stack terminated. The caller leaves Running by
// triggerTerminate.
func (cs *CallStack) finish(e *Exception) {
	cs.exception = e
	if e != nil {
		log.Warningf("call stack %d: unhandled %s", cs.id, e.Error())
	}
}

// loop dispatches instructions until the slice ends and returns the
// trigger for the state to leave Running by.
func (cs *CallStack) loop() trigger {
	for ops := 0; ; ops++ {
		if ops >= cs.opts.OpBudget {
			return triggerPause
		}
		f := cs.frames[len(cs.frames)-1]
		code := f.method.Code
		if f.pc < 0 || f.pc >= len(code) {
			fault("%s: pc %d outside of code", f.method, f.pc)
		}
		ins := code[f.pc]
		if cs.trace != nil && cs.trace[ins.Opcode()] {
			log.Debugf("[%d] %s %s", cs.id, f.method, bytecode.FormatInstruction(f.pc, ins))
		}
		cs.metrics.instruction()

		if trig, done := cs.handle(f, f.dispatch(ins, f.pc)); done {
			return trig
		}
	}
}

// handle acts on the result r of an instruction (or of a continuation)
// executed at f.pc. It reports whether the slice is over.
func (cs *CallStack) handle(f *Frame, r Result) (trigger, bool) {
	for {
		switch {
		case r >= 0:
			f.pc = int(r)
			return 0, false

		case r == ResultNext:
			f.pc++
			return 0, false

		case r == ResultCall:
			child := f.next
			f.next = nil
			if child == nil {
				fault("%s returned Call without staging a frame", f.method)
			}
			if !cs.push(child) {
				r = f.RaiseMessage(KindStackOverflow, "Stack overflow at depth %d", cs.Depth())
				continue
			}
			return 0, false

		case r == ResultReturn:
			cont := f.cont
			caller := cs.pop()
			if caller.index == 0 {
				cs.finish(nil)
				return triggerTerminate, true
			}
			f = caller
			if cont == nil {
				f.pc++
				return 0, false
			}
			r = cont.proceed(f)

		case r == ResultReturnCall:
			cont := f.cont
			caller := cs.pop()
			if caller.next == nil {
				fault("%s returned ReturnCall without a staged frame", f.method)
			}
			if cont != nil {
				caller.next.AddContinuation(cont)
			}
			f, r = caller, ResultCall

		case r == ResultReturnException:
			caller := cs.pop()
			if caller.exception == nil {
				fault("%s returned ReturnException without an exception", f.method)
			}
			f, r = caller, ResultException

		case r == ResultException:
			e := f.exception
			if e == nil {
				fault("%s raised without an exception", f.method)
			}
			if pc, ok := f.findGuard(e); ok {
				f.pc = pc
				return 0, false
			}
			f.exception = nil
			caller := cs.pop()
			if caller.index == 0 {
				cs.finish(e)
				return triggerTerminate, true
			}
			caller.exception = e
			f = caller

		case r == ResultRepeat:
			return triggerWait, true

		case r == ResultBlock:
			f.pc++
			return triggerWait, true

		case r == ResultYield, r == ResultPause:
			f.pc++
			return triggerPause, true

		default:
			fault("invalid result %s", r)
		}
	}
}

// push makes child the current frame. It reports false when the maximum
// depth is reached.
func (cs *CallStack) push(child *Frame) bool {
	if cs.Depth() >= cs.opts.MaxDepth {
		return false
	}
	child.index = len(cs.frames)
	cs.frames = append(cs.frames, child)
	cs.pushed.Inc()
	cs.metrics.frame(child.method)
	if cs.trace != nil {
		log.Debugf("[%d] push %s depth=%d", cs.id, child.method, cs.Depth())
	}
	return true
}

// pop discards the current frame and returns its caller.
func (cs *CallStack) pop() *Frame {
	n := len(cs.frames)
	cs.frames[n-1] = nil
	cs.frames = cs.frames[:n-1]
	return cs.frames[n-2]
}
