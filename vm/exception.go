package vm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ---------------------------------------------------------------------------
// Exceptions in flight
// ---------------------------------------------------------------------------

// Exception is a user-level exception. While it propagates it lives on
// the frame being unwound; when no guard catches it the call stack
// terminates and returns it as an error.
type Exception struct {
	Value   Value
	Kind    ExceptionKind
	Message string
	Trace   []string // innermost frame first
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Format renders the exception followed by its stack trace when printed
// with %+v.
func (e *Exception) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprint(s, e.Error())
			for _, line := range e.Trace {
				fmt.Fprintf(s, "\n\tat %s", line)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// ---------------------------------------------------------------------------
// Engine faults
// ---------------------------------------------------------------------------

// EngineError reports a broken invariant of the instruction stream or of
// the engine itself. Guards never see it: the stack is faulted.
type EngineError struct {
	Method      string
	PC          int
	Instruction string
	Cause       error
}

func (e *EngineError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("engine fault: %v", e.Cause)
	}
	return fmt.Sprintf("engine fault in %s at %04d (%s): %v", e.Method, e.PC, e.Instruction, e.Cause)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// fault aborts the current dispatch. The driver recovers it into an
// *EngineError naming the instruction.
func fault(format string, args ...any) {
	panic(errors.Errorf(format, args...))
}

// recoverFault converts a recovered panic into an error.
func recoverFault(r any) error {
	switch r := r.(type) {
	case error:
		return errors.WithStack(r)
	default:
		return errors.Errorf("%v", r)
	}
}

// IsEngineError reports whether err is, or wraps, an *EngineError.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}

// ---------------------------------------------------------------------------
// Raising
// ---------------------------------------------------------------------------

// newException describes an exception value, capturing the stack trace of
// the raising frame.
func (f *Frame) newException(v Value) *Exception {
	e := &Exception{Value: v, Kind: KindException, Trace: f.StackTrace()}
	if ev, ok := v.(ExceptionValue); ok {
		e.Kind = ev.ExceptionKind()
		e.Message = ev.ExceptionMessage()
	} else {
		e.Message = f.cs.rt.Render(v)
	}
	return e
}

// Raise puts v in flight as an exception on this frame.
func (f *Frame) Raise(v Value) Result {
	return f.raise(f.newException(v))
}

// RaiseMessage creates an exception of the given kind and raises it.
func (f *Frame) RaiseMessage(kind ExceptionKind, format string, args ...any) Result {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return f.Raise(f.cs.rt.NewException(kind, msg))
}

func (f *Frame) raise(e *Exception) Result {
	f.exception = e
	f.cs.metrics.exception(e.Kind)
	return ResultException
}

// fail maps an error from an operand fetch onto a result: ErrNotReady
// retries, an *Exception is raised, anything else is a fault.
func (f *Frame) fail(err error) Result {
	var exc *Exception
	switch {
	case errors.Is(err, ErrNotReady):
		return ResultRepeat
	case errors.As(err, &exc):
		return f.raise(exc)
	}
	fault("%v", err)
	return ResultException
}

// unassigned builds the exception for a read of an empty register.
func (f *Frame) unassigned(name string) error {
	return f.newException(f.cs.rt.NewException(KindIllegalState,
		fmt.Sprintf("Unassigned value: %q", name)))
}

// StackTrace lists the frames of the call stack, innermost first, up to
// and including this frame.
func (f *Frame) StackTrace() []string {
	if f.cs == nil {
		return nil
	}
	var lines []string
	top := f.index
	if top >= len(f.cs.frames) {
		top = len(f.cs.frames) - 1
	}
	for i := top; i > 0; i-- {
		fr := f.cs.frames[i]
		var sb strings.Builder
		sb.WriteString(fr.method.String())
		fmt.Fprintf(&sb, " (pc=%d", fr.pc)
		if line := fr.Line(); line > 0 {
			fmt.Fprintf(&sb, ", line=%d", line)
		}
		sb.WriteByte(')')
		lines = append(lines, sb.String())
	}
	return lines
}
