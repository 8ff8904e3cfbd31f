package object

import (
	"sync"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/xtclang/xvm-sub016/vm"
)

// Builtin classes. Every runtime starts with these registered.
var (
	ObjectClass  = NewClass("Object", nil)
	NullClass    = NewClass("Nullable", ObjectClass)
	BooleanClass = NewClass("Boolean", ObjectClass)
	IntClass     = NewClass("Int", ObjectClass)
	StringClass  = NewClass("String", ObjectClass)
	TupleClass   = NewClass("Tuple", ObjectClass)
	FutureClass  = NewClass("Future", ObjectClass)

	ExceptionClass = NewClass(string(vm.KindException), ObjectClass).
			AddProperty(&Property{Name: "message", Type: vm.TypeRef{ID: "String"}, Default: String("")}).
			AddProperty(&Property{Name: "cause"})
)

var exceptionKinds = []vm.ExceptionKind{
	vm.KindIllegalArgument,
	vm.KindIllegalState,
	vm.KindAssertion,
	vm.KindUnsupported,
	vm.KindStackOverflow,
	vm.KindTypeMismatch,
}

var exceptionClasses = func() map[vm.ExceptionKind]*Class {
	m := map[vm.ExceptionKind]*Class{vm.KindException: ExceptionClass}
	for _, k := range exceptionKinds {
		m[k] = NewClass(string(k), ExceptionClass)
	}
	return m
}()

// ExceptionClassOf returns the builtin class of an engine exception kind.
func ExceptionClassOf(kind vm.ExceptionKind) *Class {
	if c, ok := exceptionClasses[kind]; ok {
		return c
	}
	return ExceptionClass
}

func builtins() []*Class {
	out := []*Class{ObjectClass, NullClass, BooleanClass, IntClass, StringClass, TupleClass, FutureClass, ExceptionClass}
	for _, k := range exceptionKinds {
		out = append(out, exceptionClasses[k])
	}
	return out
}

// ---------------------------------------------------------------------------
// Primitive values
// ---------------------------------------------------------------------------

type nullValue struct{}

func (nullValue) Composition() vm.Composition { return NullClass.comp }

// Null is the single null value.
var Null vm.Value = nullValue{}

// Bool is a Boolean value.
type Bool bool

func (Bool) Composition() vm.Composition { return BooleanClass.comp }

// Int is a 64-bit integer value.
type Int int64

func (Int) Composition() vm.Composition { return IntClass.comp }

// String is a string value.
type String string

func (String) Composition() vm.Composition { return StringClass.comp }

// Tuple is an immutable sequence of values.
type Tuple struct {
	Elems []vm.Value
}

func (*Tuple) Composition() vm.Composition { return TupleClass.comp }

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// Object is an instance of a user class. While under construction it is
// a struct: fields are writable directly and it is not yet public.
type Object struct {
	comp   *Composition
	parent vm.Value // enclosing instance of a virtual child

	mu     sync.Mutex
	fields *orderedmap.OrderedMap[string, vm.Value]
	public bool
}

func newObject(c *Composition, parent vm.Value) *Object {
	o := &Object{
		comp:   c,
		parent: parent,
		fields: orderedmap.NewOrderedMap[string, vm.Value](),
	}
	for _, p := range c.Class.AllProperties() {
		o.fields.Set(p.Name, p.Default)
	}
	return o
}

// Composition implements vm.Value.
func (o *Object) Composition() vm.Composition { return o.comp }

// Class returns the object's class.
func (o *Object) Class() *Class { return o.comp.Class }

// Parent returns the enclosing instance of a virtual child, or nil.
func (o *Object) Parent() vm.Value { return o.parent }

// IsPublic reports whether construction has completed.
func (o *Object) IsPublic() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.public
}

// Field returns the raw content of a field; nil when unassigned.
func (o *Object) Field(name string) (vm.Value, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fields.Get(name)
}

// SetField stores a field value.
func (o *Object) SetField(name string, v vm.Value) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.fields.Get(name); !ok {
		return false
	}
	o.fields.Set(name, v)
	return true
}

func (o *Object) fieldNames() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, 0, o.fields.Len())
	for el := o.fields.Front(); el != nil; el = el.Next() {
		names = append(names, el.Key)
	}
	return names
}

// ExceptionObject is an instance of Exception or one of its subclasses.
type ExceptionObject struct {
	*Object
}

// ExceptionKind implements vm.ExceptionValue.
func (e *ExceptionObject) ExceptionKind() vm.ExceptionKind {
	return vm.ExceptionKind(e.comp.Class.Name)
}

// ExceptionMessage implements vm.ExceptionValue.
func (e *ExceptionObject) ExceptionMessage() string {
	if v, ok := e.Field("message"); ok {
		if s, ok := v.(String); ok {
			return string(s)
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Futures
// ---------------------------------------------------------------------------

// Future is a reference cell whose value is produced elsewhere, typically
// on another goroutine. Reading it before completion returns
// vm.ErrNotReady, which makes the reading instruction retry.
type Future struct {
	mu      sync.Mutex
	done    bool
	value   vm.Value
	waiters []func()
}

// NewFuture creates an incomplete future.
func NewFuture() *Future { return &Future{} }

// Composition implements vm.Value.
func (f *Future) Composition() vm.Composition { return FutureClass.comp }

// Get implements vm.Ref.
func (f *Future) Get() (vm.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.done {
		return nil, vm.ErrNotReady
	}
	return f.value, nil
}

// Set implements vm.Ref by completing the future.
func (f *Future) Set(v vm.Value) error {
	f.Complete(v)
	return nil
}

// Complete stores the value and runs the registered callbacks. Only the
// first completion counts.
func (f *Future) Complete(v vm.Value) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done, f.value = true, v
	waiters := f.waiters
	f.waiters = nil
	f.mu.Unlock()

	for _, fn := range waiters {
		fn()
	}
}

// IsDone reports whether the future has completed.
func (f *Future) IsDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// OnComplete registers fn to run once the future completes; at once when
// it already has. A call stack typically registers its Notify.
func (f *Future) OnComplete(fn func()) {
	f.mu.Lock()
	if !f.done {
		f.waiters = append(f.waiters, fn)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	fn()
}

// Cell is a plain mutable reference cell.
type Cell struct {
	mu    sync.Mutex
	value vm.Value
}

// NewCell creates a cell holding v.
func NewCell(v vm.Value) *Cell { return &Cell{value: v} }

// Composition implements vm.Value.
func (c *Cell) Composition() vm.Composition { return ObjectClass.comp }

// Get implements vm.Ref.
func (c *Cell) Get() (vm.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, nil
}

// Set implements vm.Ref.
func (c *Cell) Set(v vm.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	return nil
}
