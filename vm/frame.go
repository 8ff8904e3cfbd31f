package vm

import (
	"fmt"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

// VarStyle governs how a register is read and written.
type VarStyle uint8

const (
	StyleStandard   VarStyle = iota // the register holds the value
	StyleDynamicRef                 // the register holds a Ref; access goes through it
	StyleStack                      // the register is backed by an expression stack slot
)

// VarInfo is the metadata recorded when a variable is introduced.
type VarInfo struct {
	Name  string
	Type  TypeRef
	Style VarStyle

	caught *Exception // set on the variable a finally handler binds
}

// ---------------------------------------------------------------------------
// Return targets
// ---------------------------------------------------------------------------

// ReturnKind is the shape of a return target.
type ReturnKind uint8

const (
	ReturnUnused ReturnKind = iota // results are discarded
	ReturnSingle                   // one register (or stack, or local property)
	ReturnMulti                    // one register per returned value
	ReturnTuple                    // results packed into a tuple in one register
)

// ReturnTo describes where a callee's results land in the caller.
type ReturnTo struct {
	Kind ReturnKind
	To   int
	Regs []int
}

// Return1 targets a single operand; ArgIgnore discards the result.
func Return1(to int) ReturnTo {
	if to == bytecode.ArgIgnore {
		return ReturnTo{}
	}
	return ReturnTo{Kind: ReturnSingle, To: to}
}

// ReturnN targets one operand per returned value.
func ReturnN(regs []int) ReturnTo {
	return ReturnTo{Kind: ReturnMulti, Regs: regs}
}

// ReturnT packs the returned values into a tuple stored at to.
func ReturnT(to int) ReturnTo {
	return ReturnTo{Kind: ReturnTuple, To: to}
}

// returnsFor builds the return target of a call instruction.
func returnsFor(a bytecode.Arity, regs []int) ReturnTo {
	switch a {
	case bytecode.Arity1:
		return Return1(regs[0])
	case bytecode.ArityN:
		return ReturnN(regs)
	case bytecode.ArityT:
		return ReturnT(regs[0])
	}
	return ReturnTo{}
}

// ---------------------------------------------------------------------------
// Frame: one activation
// ---------------------------------------------------------------------------

// Frame is the execution state of one method activation. Frames live in
// their CallStack's frame slice; index is the frame's position there.
type Frame struct {
	cs     *CallStack
	index  int
	method *Method
	this   Value
	chain  *CallChain // chain and depth of the executing body, for super
	depth  int
	ret    ReturnTo // where results land in the caller

	regs    []Value
	vars    []*VarInfo
	nextVar []int // next free register, per scope
	scope   int
	guards  []Guard
	stack   []Value // expression stack

	pc int

	exception  *Exception      // exception in flight
	deferred   *deferredAction // return or jump waiting for finally blocks
	finalizers *finalizerList  // shared by the constructors of one construction
	next       *Frame          // staged child frame
	cont       Step            // runs on the caller when this frame returns
}

// newFrame creates (but does not push) a child frame of f.
func (f *Frame) newFrame(m *Method, this Value, args []Value, ret ReturnTo) *Frame {
	if len(args) > len(m.Params) {
		fault("%s takes %d arguments, got %d", m, len(m.Params), len(args))
	}
	n := len(m.Params)
	child := &Frame{
		cs:      f.cs,
		index:   f.index + 1,
		method:  m,
		this:    this,
		ret:     ret,
		regs:    make([]Value, n, n+8),
		vars:    make([]*VarInfo, n, n+8),
		nextVar: []int{n},
	}
	copy(child.regs, args)
	for i := len(args); i < n; i++ {
		child.regs[i] = Default
	}
	return child
}

// Method returns the method executing in the frame.
func (f *Frame) Method() *Method { return f.method }

// This returns the frame's receiver, or nil.
func (f *Frame) This() Value { return f.this }

// PC returns the address of the current instruction.
func (f *Frame) PC() int { return f.pc }

// Line returns the source line of the current instruction, or 0 when the
// method carries no line information.
func (f *Frame) Line() int { return f.method.LineAt(f.pc) }

// Runtime returns the collaborators of the frame's call stack.
func (f *Frame) Runtime() Runtime { return f.cs.rt }

// Register returns the raw content of register i, or nil.
func (f *Frame) Register(i int) Value {
	if i < 0 || i >= len(f.regs) {
		return nil
	}
	return f.regs[i]
}

// Var returns the metadata of register i, or nil.
func (f *Frame) Var(i int) *VarInfo {
	if i < 0 || i >= len(f.vars) {
		return nil
	}
	return f.vars[i]
}

func (f *Frame) caller() *Frame {
	if f.index == 0 {
		fault("entry frame has no caller")
	}
	return f.cs.frames[f.index-1]
}

func (f *Frame) constants() ConstantPool {
	if f.method.Constants == nil {
		fault("%s has no constant pool", f.method)
	}
	return f.method.Constants
}

func (f *Frame) ensure(reg int) {
	for len(f.regs) <= reg {
		f.regs = append(f.regs, nil)
		f.vars = append(f.vars, nil)
	}
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

// EnterScope opens a nested scope starting at the current high-water mark.
func (f *Frame) EnterScope() {
	f.scope++
	if len(f.nextVar) <= f.scope {
		f.nextVar = append(f.nextVar, 0)
	}
	f.nextVar[f.scope] = f.nextVar[f.scope-1]
}

// ExitScope clears the registers introduced in the innermost scope and
// rolls the high-water mark back.
func (f *Frame) ExitScope() {
	if f.scope == 0 {
		fault("scope underflow")
	}
	f.clearRegisters(f.nextVar[f.scope-1], f.nextVar[f.scope])
	f.scope--
}

// clearAllScopes clears every register introduced after scope s.
func (f *Frame) clearAllScopes(s int) {
	f.clearRegisters(f.nextVar[s], len(f.regs))
}

func (f *Frame) clearRegisters(from, to int) {
	if to > len(f.regs) {
		to = len(f.regs)
	}
	for i := from; i < to; i++ {
		f.regs[i] = nil
		f.vars[i] = nil
	}
}

// IntroduceVar allocates the next register of the current scope.
func (f *Frame) IntroduceVar(info VarInfo) int {
	reg := f.nextVar[f.scope]
	f.nextVar[f.scope]++
	f.ensure(reg)
	f.vars[reg] = &info
	f.regs[reg] = nil
	return reg
}

// IntroduceResolvedVar allocates the next register and stores v in it.
func (f *Frame) IntroduceResolvedVar(info VarInfo, v Value) int {
	reg := f.IntroduceVar(info)
	f.regs[reg] = v
	return reg
}

// varName returns the declared name of register reg, for diagnostics.
func (f *Frame) varName(reg int) string {
	if reg >= 0 && reg < len(f.vars) && f.vars[reg] != nil && f.vars[reg].Name != "" {
		return f.vars[reg].Name
	}
	if reg >= 0 && reg < len(f.method.Params) {
		return f.method.Params[reg].Name
	}
	return bytecode.OperandString(reg)
}

// ---------------------------------------------------------------------------
// Expression stack
// ---------------------------------------------------------------------------

// PushStack pushes v on the frame's expression stack.
func (f *Frame) PushStack(v Value) {
	f.stack = append(f.stack, v)
}

// PopStack pops the expression stack.
func (f *Frame) PopStack() Value {
	n := len(f.stack)
	if n == 0 {
		fault("empty stack")
	}
	v := f.stack[n-1]
	f.stack[n-1] = nil
	f.stack = f.stack[:n-1]
	return v
}

// ---------------------------------------------------------------------------
// Reading operands
// ---------------------------------------------------------------------------

// Argument returns the value addressed by operand a. It returns
// ErrNotReady when the value is still being computed, and an *Exception
// for user-level failures such as reading an unassigned register. Local
// property operands are not handled here: they need a getter call and are
// read by the operand collector.
func (f *Frame) Argument(a int) (Value, error) {
	switch {
	case a >= 0:
		return f.register(a)
	case bytecode.IsConstant(a):
		i := bytecode.ConstantIndex(a)
		if name, ok := f.constants().Property(i); ok {
			fault("local property %q read outside the operand collector", name)
		}
		return f.constants().Value(i)
	}
	return f.predefined(a)
}

// Arguments reads several operands. The first failure is returned.
func (f *Frame) Arguments(ops []int) ([]Value, error) {
	vals := make([]Value, len(ops))
	for i, a := range ops {
		v, err := f.Argument(a)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (f *Frame) register(reg int) (Value, error) {
	if reg >= len(f.regs) {
		fault("register r%d not introduced", reg)
	}
	v := f.regs[reg]
	switch v {
	case nil:
		return nil, f.unassigned(f.varName(reg))
	case Default:
		if reg < len(f.method.Params) && f.method.Params[reg].Default != nil {
			v = f.method.Params[reg].Default
			f.regs[reg] = v
			return v, nil
		}
		return nil, f.unassigned(f.varName(reg))
	}
	if info := f.vars[reg]; info != nil && info.Style == StyleDynamicRef {
		ref, ok := v.(Ref)
		if !ok {
			fault("register r%d is not a reference", reg)
		}
		return ref.Get()
	}
	return v, nil
}

// rawArgument reads an operand without going through reference cells.
func (f *Frame) rawArgument(a int) (Value, error) {
	if a >= 0 {
		if a >= len(f.regs) || f.regs[a] == nil {
			return nil, f.unassigned(f.varName(a))
		}
		return f.regs[a], nil
	}
	return f.Argument(a)
}

func (f *Frame) predefined(a int) (Value, error) {
	switch a {
	case bytecode.ArgThis, bytecode.ArgTarget, bytecode.ArgPublic,
		bytecode.ArgProtected, bytecode.ArgPrivate, bytecode.ArgStruct:
		return f.target(a), nil
	case bytecode.ArgStack:
		return f.PopStack(), nil
	case bytecode.ArgDefault:
		return Default, nil
	case bytecode.ArgSuper:
		if f.chain == nil {
			fault("super without an active call chain")
		}
		return &Function{Chain: f.chain, Depth: f.depth + 1, Target: f.this}, nil
	}
	fault("operand %s cannot be read", bytecode.OperandString(a))
	return nil, nil
}

func (f *Frame) target(a int) Value {
	if f.this == nil {
		fault("no target for %s", bytecode.OperandString(a))
	}
	return f.this
}

// localProperty reports whether operand a names a property of the
// receiver.
func (f *Frame) localProperty(a int) (string, bool) {
	if !bytecode.IsConstant(a) {
		return "", false
	}
	return f.constants().Property(bytecode.ConstantIndex(a))
}

// text reads a string constant operand.
func (f *Frame) text(a int) string {
	if !bytecode.IsConstant(a) {
		fault("operand %s is not a constant", bytecode.OperandString(a))
	}
	return f.constants().Text(bytecode.ConstantIndex(a))
}

// propertyName reads a property constant operand.
func (f *Frame) propertyName(a int) string {
	if name, ok := f.localProperty(a); ok {
		return name
	}
	return f.text(a)
}

// resolveType composes the type named by a type constant operand.
func (f *Frame) resolveType(a int) Composition {
	if !bytecode.IsConstant(a) {
		fault("operand %s is not a type constant", bytecode.OperandString(a))
	}
	return f.compose(f.constants().Type(bytecode.ConstantIndex(a)))
}

func (f *Frame) compose(t TypeRef) Composition {
	actual := make([]Composition, len(t.Actual))
	for i, a := range t.Actual {
		actual[i] = f.compose(a)
	}
	c, err := f.cs.rt.Compose(t.ID, actual)
	if err != nil {
		fault("compose %s: %v", t, err)
	}
	return c
}

// ---------------------------------------------------------------------------
// Writing operands
// ---------------------------------------------------------------------------

// Assign stores v into operand a. Writing a local property calls its
// setter and may return ResultCall.
func (f *Frame) Assign(a int, v Value) Result {
	switch {
	case a >= 0:
		f.ensure(a)
		if info := f.vars[a]; info != nil && info.Style == StyleDynamicRef {
			ref, ok := f.regs[a].(Ref)
			if !ok {
				fault("register r%d is not a reference", a)
			}
			if err := ref.Set(v); err != nil {
				return f.fail(err)
			}
			return ResultNext
		}
		f.regs[a] = v
		return ResultNext
	case a == bytecode.ArgIgnore:
		return ResultNext
	case a == bytecode.ArgStack:
		f.PushStack(v)
		return ResultNext
	case bytecode.IsConstant(a):
		name, ok := f.localProperty(a)
		if !ok {
			fault("cannot assign to constant %s", bytecode.OperandString(a))
		}
		return f.cs.rt.SetProperty(f, f.target(a), name, v)
	}
	fault("cannot assign to %s", bytecode.OperandString(a))
	return ResultException
}

// AssignValues stores vals into regs in order. When a store needs a
// setter frame the remaining stores run once it returns.
func (f *Frame) AssignValues(regs []int, vals []Value) Result {
	return (&stepAssignValues{regs: regs, vals: vals}).proceed(f)
}

// AssignReturn delivers results into this frame as described by ret.
// Natives and Operations use it to hand back their results.
func (f *Frame) AssignReturn(ret ReturnTo, vals ...Value) Result {
	switch ret.Kind {
	case ReturnUnused:
		return ResultNext
	case ReturnSingle:
		if len(vals) == 0 {
			fault("no value for a single-value return")
		}
		return f.Assign(ret.To, vals[0])
	case ReturnMulti:
		if len(vals) < len(ret.Regs) {
			fault("%d values for %d return registers", len(vals), len(ret.Regs))
		}
		return f.AssignValues(ret.Regs, vals[:len(ret.Regs)])
	case ReturnTuple:
		return f.Assign(ret.To, f.cs.rt.Tuple(vals))
	}
	fault("invalid return kind %d", ret.Kind)
	return ResultException
}

// ---------------------------------------------------------------------------
// Returning
// ---------------------------------------------------------------------------

// ReturnVoid completes the frame without results.
func (f *Frame) ReturnVoid() Result {
	return ResultReturn
}

// ReturnValue completes the frame with one result.
func (f *Frame) ReturnValue(v Value) Result {
	return f.returned(f.caller().AssignReturn(f.ret, v))
}

// ReturnValues completes the frame with several results.
func (f *Frame) ReturnValues(vals []Value) Result {
	if f.ret.Kind == ReturnUnused {
		return ResultReturn
	}
	return f.returned(f.caller().AssignReturn(f.ret, vals...))
}

// ReturnTuple completes the frame with a tuple. Multi-register callers get
// the tuple's elements.
func (f *Frame) ReturnTuple(t Value) Result {
	switch f.ret.Kind {
	case ReturnUnused:
		return ResultReturn
	case ReturnMulti:
		elems, ok := f.cs.rt.Elements(t)
		if !ok {
			fault("RETURN_T of a non-tuple %s", f.cs.rt.Render(t))
		}
		return f.returned(f.caller().AssignReturn(f.ret, elems...))
	}
	return f.returned(f.caller().Assign(f.ret.To, t))
}

// returned maps the caller's assignment result onto a return result.
func (f *Frame) returned(r Result) Result {
	switch r {
	case ResultNext:
		return ResultReturn
	case ResultCall:
		return ResultReturnCall
	case ResultException:
		return ResultReturnException
	}
	fault("unexpected result %s assigning a return value", r)
	return ResultException
}

// ---------------------------------------------------------------------------
// Calling
// ---------------------------------------------------------------------------

// Call runs m against target. A native body runs at once on this frame;
// otherwise a child frame is staged and ResultCall is returned.
func (f *Frame) Call(m *Method, target Value, args []Value, ret ReturnTo) Result {
	if m.IsNative() {
		return m.Native(f, target, args, ret)
	}
	f.stage(f.newFrame(m, target, args, ret))
	return ResultCall
}

func (f *Frame) stage(child *Frame) {
	if f.next != nil {
		fault("%s already has a staged frame", f.method)
	}
	f.next = child
}

// Staged returns the child frame staged by the last ResultCall, or nil.
func (f *Frame) Staged() *Frame { return f.next }

// callThen calls m and runs then once the call has completed.
func (f *Frame) callThen(m *Method, target Value, args []Value, ret ReturnTo, then Step) Result {
	return f.andThen(f.Call(m, target, args, ret), then)
}

// andThen continues r with then: at once when r completed synchronously,
// after the staged frame returns when r is ResultCall.
func (f *Frame) andThen(r Result, then Step) Result {
	switch r {
	case ResultNext:
		return then.proceed(f)
	case ResultCall:
		f.next.AddContinuation(then)
	}
	return r
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s@%04d", f.method, f.pc)
}
