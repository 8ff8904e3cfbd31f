package vm

import "github.com/xtclang/xvm-sub016/pkg/bytecode"

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// ConstantPool resolves the constant operands of one method.
type ConstantPool interface {
	// Value returns constant i as a value, or ErrNotReady.
	Value(i int) (Value, error)
	// Text returns constant i as a string (names, messages).
	Text(i int) string
	// Type returns constant i as a type reference.
	Type(i int) TypeRef
	// Signature returns constant i as a method signature.
	Signature(i int) Signature
	// Property reports whether constant i names a property of the
	// receiver, and its name.
	Property(i int) (string, bool)
	// Method returns constant i as a method, or nil.
	Method(i int) *Method
}

// Resolver answers type-system questions on behalf of the engine.
type Resolver interface {
	// CallChain returns the bodies implementing sig on c, most derived
	// first. An empty chain means the method does not exist.
	CallChain(c Composition, sig Signature) (*CallChain, error)
	// Compose returns the composition for class id with actual type
	// parameters.
	Compose(id string, actual []Composition) (Composition, error)
	// Constructor returns the constructor of c matching sig, or nil.
	Constructor(c Composition, sig Signature) *Method
	// ChildComposition resolves the virtual child class name against the
	// runtime composition of its parent.
	ChildComposition(parent Composition, name string) (Composition, error)
}

// Operations are the value-level primitives the engine needs. Methods
// taking a frame and a ReturnTo may run user code: they either assign the
// result with f.AssignReturn and return ResultNext, or stage a child
// frame with f.Call and return ResultCall.
type Operations interface {
	Null() Value
	Bool(b bool) Value
	Int(n int64) Value
	Tuple(values []Value) Value

	IsNull(v Value) bool
	IsTrue(v Value) bool
	IntValue(v Value) (int64, bool)
	Elements(tuple Value) ([]Value, bool)
	Equal(a, b Value) bool
	Compare(a, b Value) (int, error)

	Binary(f *Frame, op bytecode.Opcode, target, arg Value, ret ReturnTo) Result
	Unary(f *Frame, op bytecode.Opcode, target Value, ret ReturnTo) Result
	GetProperty(f *Frame, target Value, name string, ret ReturnTo) Result
	SetProperty(f *Frame, target Value, name string, v Value) Result
	GetField(target Value, name string) (Value, error)
	SetField(target Value, name string, v Value) error

	// NewStruct allocates the not-yet-public struct of c. Parent is the
	// enclosing instance for virtual children, otherwise nil.
	NewStruct(c Composition, parent Value) Value
	// Validate checks a struct after its constructors ran.
	Validate(s Value) error
	// Publish turns a validated struct into its public value.
	Publish(s Value) Value

	Render(v Value) string
}

// ExceptionKind classifies exceptions raised by the engine.
type ExceptionKind string

const (
	KindException       ExceptionKind = "Exception"
	KindIllegalArgument ExceptionKind = "IllegalArgument"
	KindIllegalState    ExceptionKind = "IllegalState"
	KindAssertion       ExceptionKind = "Assertion"
	KindUnsupported     ExceptionKind = "Unsupported"
	KindStackOverflow   ExceptionKind = "StackOverflow"
	KindTypeMismatch    ExceptionKind = "TypeMismatch"
)

// ExceptionFactory creates exception values for failures detected by the
// engine itself.
type ExceptionFactory interface {
	NewException(kind ExceptionKind, message string) Value
}

// Runtime bundles every collaborator a call stack needs.
type Runtime interface {
	Resolver
	Operations
	ExceptionFactory
}
