package vm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Values and compositions
// ---------------------------------------------------------------------------

// Value is an opaque handle to a runtime value. The engine never looks
// inside a value; it only asks for its runtime composition and hands it
// back to the Runtime.
type Value interface {
	Composition() Composition
}

// Composition is the exact runtime type of a value: a class together with
// its actual type parameters and mixins.
type Composition interface {
	Name() string
	IsA(other Composition) bool
}

// Ref is a boxed reference cell. Registers of style StyleDynamicRef hold a
// Ref and every read or write goes through it.
type Ref interface {
	Value
	Get() (Value, error)
	Set(v Value) error
}

// ErrNotReady is returned by value providers and Ref cells when a value is
// still being computed elsewhere. The instruction asking for it is
// retried later at the same address.
var ErrNotReady = errors.New("value not ready")

// ExceptionValue is implemented by exception values so the engine can
// report their kind and message without knowing the object model.
type ExceptionValue interface {
	Value
	ExceptionKind() ExceptionKind
	ExceptionMessage() string
}

// ---------------------------------------------------------------------------
// Type references and signatures
// ---------------------------------------------------------------------------

// TypeRef names a composition by class id and actual type parameters.
type TypeRef struct {
	ID     string
	Actual []TypeRef
}

func (t TypeRef) String() string {
	if len(t.Actual) == 0 {
		return t.ID
	}
	parts := make([]string, len(t.Actual))
	for i, a := range t.Actual {
		parts[i] = a.String()
	}
	return t.ID + "<" + strings.Join(parts, ", ") + ">"
}

// Signature identifies a method independently of the class declaring it.
type Signature struct {
	Name    string
	Params  []string
	Returns []string
}

func (s Signature) String() string {
	var sb strings.Builder
	switch len(s.Returns) {
	case 0:
		sb.WriteString("void ")
	case 1:
		sb.WriteString(s.Returns[0])
		sb.WriteByte(' ')
	default:
		fmt.Fprintf(&sb, "(%s) ", strings.Join(s.Returns, ", "))
	}
	sb.WriteString(s.Name)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(s.Params, ", "))
	sb.WriteByte(')')
	return sb.String()
}

// Key returns a string that identifies the signature for caching.
func (s Signature) Key() string {
	return s.Name + "(" + strings.Join(s.Params, ",") + ")" + strings.Join(s.Returns, ",")
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

// NativeFunc implements a method body in Go. It runs on the calling frame
// without a child frame of its own and delivers its results with
// f.AssignReturn(ret, ...). It may stage a child frame and return
// ResultCall like any instruction.
type NativeFunc func(f *Frame, target Value, args []Value, ret ReturnTo) Result

// Param describes a declared method parameter.
type Param struct {
	Name    string
	Type    TypeRef
	Default Value // nil when the parameter has no default
}

// Method is an executable body: linked instructions with their constant
// pool, or a native function.
type Method struct {
	Name      string
	Signature Signature
	Params    []Param
	Code      []bytecode.Instruction
	Constants ConstantPool
	Native    NativeFunc

	// Finalizer is the constructor's finally block. It runs against the
	// published value once the whole construction has completed.
	Finalizer *Method

	sites siteCaches
}

// LineAt returns the source line of the instruction at pc: the sum of the
// LINE deltas up to and including pc. It is 0 when no LINE precedes pc.
func (m *Method) LineAt(pc int) int {
	if pc < 0 || pc >= len(m.Code) {
		return 0
	}
	line := 0
	for _, ins := range m.Code[:pc+1] {
		if l, ok := ins.(bytecode.Line); ok {
			line += l.Delta
		}
	}
	return line
}

// IsNative reports whether the method body is implemented in Go.
func (m *Method) IsNative() bool {
	return m.Native != nil
}

func (m *Method) String() string {
	if m == nil {
		return "<nil>"
	}
	if m.Name != "" {
		return m.Name
	}
	return m.Signature.Name
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// Function is a callable value: a method bound to a target, or a position
// in a call chain (what "super" evaluates to).
type Function struct {
	Method *Method
	Chain  *CallChain
	Depth  int
	Target Value
}

// Composition implements Value.
func (fn *Function) Composition() Composition {
	return functionComposition{}
}

// ParamCount returns the number of declared parameters of the function.
func (fn *Function) ParamCount() int {
	if fn.Chain != nil {
		return len(fn.Chain.Signature.Params)
	}
	return len(fn.Method.Params)
}

func (fn *Function) String() string {
	if fn.Chain != nil {
		return fmt.Sprintf("function %s@%d", fn.Chain.Signature, fn.Depth)
	}
	return "function " + fn.Method.String()
}

type functionComposition struct{}

func (functionComposition) Name() string { return "Function" }

func (functionComposition) IsA(other Composition) bool {
	_, ok := other.(functionComposition)
	return ok
}

// defaultMarker stands in a register for an argument the caller left to
// the parameter's default value.
type defaultMarker struct{}

func (defaultMarker) Composition() Composition { return markerComposition("Default") }

type markerComposition string

func (c markerComposition) Name() string { return string(c) }

func (c markerComposition) IsA(other Composition) bool { return other == Composition(c) }

// Default is the value passed for ArgDefault operands.
var Default Value = defaultMarker{}
