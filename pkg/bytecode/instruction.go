package bytecode

// Instruction is one decoded unit of executable code. The set of
// variants is closed: every implementation is declared in this file, and
// the engine dispatches on them with a single type switch.
//
// Operands are ints: registers (>= 0), sentinels (Arg*) or constant
// addresses (<= ConstantOffset). Jump and guard targets are offsets
// relative to the instruction's own address.
type Instruction interface {
	Opcode() Opcode
	instruction()
}

// Arity is the shape of an argument or return list encoded in the opcode
// suffix (_0, _1, _N, _T).
type Arity uint8

const (
	Arity0 Arity = iota
	Arity1
	ArityN
	ArityT
)

func (a Arity) String() string {
	return [...]string{"0", "1", "N", "T"}[a]
}

// ---------------------------------------------------------------------------
// Control and scopes
// ---------------------------------------------------------------------------

// Nop does nothing.
type Nop struct{}

// Line advances the current source line by Delta. LINE_1..LINE_3 imply
// their delta; LINE_N encodes it.
type Line struct {
	Op    Opcode
	Delta int
}

// Enter opens a scope.
type Enter struct{}

// Exit closes the innermost scope.
type Exit struct{}

// ---------------------------------------------------------------------------
// Guards
// ---------------------------------------------------------------------------

// GuardStart opens a scope and pushes a typed-catch guard. Clause i
// matches exceptions of type constant Types[i], binds the exception to a
// variable named by string constant Names[i] and continues at Catches[i].
type GuardStart struct {
	Types   []int
	Names   []int
	Catches []int
}

// GuardEnd closes a guarded block that completed normally.
type GuardEnd struct {
	Offset int
}

// CatchStart marks the first instruction of a catch block.
type CatchStart struct {
	Type int
	Name int
}

// CatchEnd closes a catch block.
type CatchEnd struct {
	Offset int
}

// GuardAll opens a scope and pushes a finally guard. Finally is the
// offset of the first instruction of the finally block, just after
// FINALLY; the exception path enters there with the guard already gone.
type GuardAll struct {
	Finally int
}

// FinallyStart begins the finally block when reached by fall-through.
type FinallyStart struct{}

// FinallyEnd closes the finally block and resumes whatever was pending:
// the exception, a deferred return or jump, or plain fall-through.
type FinallyEnd struct{}

// Throw raises Value as an exception.
type Throw struct {
	Value int
}

// ---------------------------------------------------------------------------
// Calls and construction
// ---------------------------------------------------------------------------

// Call invokes a function: a function constant, a register holding a
// bound function, or ArgSuper for the next body in the active chain.
type Call struct {
	Op       Opcode
	Function int
	Args     []int
	Returns  []int
}

// Invoke performs a virtual invocation of Method on Target.
type Invoke struct {
	Op      Opcode
	Target  int
	Method  int
	Args    []int
	Returns []int
}

// MethodBind binds Method on Target into a function value.
type MethodBind struct {
	Target int
	Method int
	Return int
}

// Construct runs another constructor against the struct under
// construction.
type Construct struct {
	Op          Opcode
	Constructor int
	Args        []int
}

// New creates an instance of type constant Type.
type New struct {
	Op          Opcode
	Type        int
	Constructor int
	Args        []int
	Return      int
}

// NewChild creates an instance of the virtual child class Type of Parent.
type NewChild struct {
	Op          Opcode
	Parent      int
	Type        int
	Constructor int
	Args        []int
	Return      int
}

// Return completes the frame with Values.
type Return struct {
	Op     Opcode
	Values []int
}

// ---------------------------------------------------------------------------
// Variables and moves
// ---------------------------------------------------------------------------

// Var introduces a variable at the next register.
type Var struct {
	Op     Opcode
	Type   int
	Name   int
	Value  int
	Values []int
}

// Move copies From into To.
type Move struct {
	From int
	To   int
}

// ---------------------------------------------------------------------------
// Tests and jumps
// ---------------------------------------------------------------------------

// Test stores the boolean outcome of a test into Return.
type Test struct {
	Op     Opcode
	Arg1   int
	Arg2   int
	Type   int
	Return int
}

// Jump transfers control unconditionally.
type Jump struct {
	Offset int
}

// CondJump transfers control when its test holds.
type CondJump struct {
	Op     Opcode
	Arg1   int
	Arg2   int
	Type   int
	Offset int
}

// JumpInt jumps to Offsets[v] for an integer v, or to Default when v is
// out of range.
type JumpInt struct {
	Arg     int
	Offsets []int
	Default int
}

// JumpVal jumps to the offset of the first case whose constants equal the
// arguments, or to Default.
type JumpVal struct {
	Op      Opcode
	Args    []int
	Cases   [][]int
	Offsets []int
	Default int
}

// Assert raises when Cond is false.
type Assert struct {
	Op      Opcode
	Cond    int
	Message int
	Values  []int
}

// ---------------------------------------------------------------------------
// Operators and properties
// ---------------------------------------------------------------------------

// BinaryOp applies a generic binary operator: Return = Target op Arg.
type BinaryOp struct {
	Op     Opcode
	Target int
	Arg    int
	Return int
}

// UnaryOp applies a generic unary operator: Return = op Target.
type UnaryOp struct {
	Op     Opcode
	Target int
	Return int
}

// LocalGet reads a property of the receiver.
type LocalGet struct {
	Property int
	Return   int
}

// LocalSet writes a property of the receiver.
type LocalSet struct {
	Property int
	Value    int
}

// PropertyGet reads a property of Target.
type PropertyGet struct {
	Target   int
	Property int
	Return   int
}

// PropertySet writes a property of Target.
type PropertySet struct {
	Target   int
	Property int
	Value    int
}

// InPlace updates a register (or a local property constant) in place.
type InPlace struct {
	Op     Opcode
	Target int
	Arg    int
	Return int
}

// PropertyInPlace updates a property of Target in place.
type PropertyInPlace struct {
	Op       Opcode
	Target   int
	Property int
	Arg      int
	Return   int
}

// ---------------------------------------------------------------------------
// Opcode accessors
// ---------------------------------------------------------------------------

func (Nop) Opcode() Opcode               { return OpNop }
func (i Line) Opcode() Opcode            { return i.Op }
func (Enter) Opcode() Opcode             { return OpEnter }
func (Exit) Opcode() Opcode              { return OpExit }
func (GuardStart) Opcode() Opcode        { return OpGuard }
func (GuardEnd) Opcode() Opcode          { return OpGuardEnd }
func (CatchStart) Opcode() Opcode        { return OpCatch }
func (CatchEnd) Opcode() Opcode          { return OpCatchEnd }
func (GuardAll) Opcode() Opcode          { return OpGuardAll }
func (FinallyStart) Opcode() Opcode      { return OpFinally }
func (FinallyEnd) Opcode() Opcode        { return OpFinallyEnd }
func (Throw) Opcode() Opcode             { return OpThrow }
func (i Call) Opcode() Opcode            { return i.Op }
func (i Invoke) Opcode() Opcode          { return i.Op }
func (MethodBind) Opcode() Opcode        { return OpMBind }
func (i Construct) Opcode() Opcode       { return i.Op }
func (i New) Opcode() Opcode             { return i.Op }
func (i NewChild) Opcode() Opcode        { return i.Op }
func (i Return) Opcode() Opcode          { return i.Op }
func (i Var) Opcode() Opcode             { return i.Op }
func (Move) Opcode() Opcode              { return OpMov }
func (i Test) Opcode() Opcode            { return i.Op }
func (Jump) Opcode() Opcode              { return OpJmp }
func (i CondJump) Opcode() Opcode        { return i.Op }
func (JumpInt) Opcode() Opcode           { return OpJmpInt }
func (i JumpVal) Opcode() Opcode         { return i.Op }
func (i Assert) Opcode() Opcode          { return i.Op }
func (i BinaryOp) Opcode() Opcode        { return i.Op }
func (i UnaryOp) Opcode() Opcode         { return i.Op }
func (LocalGet) Opcode() Opcode          { return OpLGet }
func (LocalSet) Opcode() Opcode          { return OpLSet }
func (PropertyGet) Opcode() Opcode       { return OpPGet }
func (PropertySet) Opcode() Opcode       { return OpPSet }
func (i InPlace) Opcode() Opcode         { return i.Op }
func (i PropertyInPlace) Opcode() Opcode { return i.Op }

func (Nop) instruction()             {}
func (Line) instruction()            {}
func (Enter) instruction()           {}
func (Exit) instruction()            {}
func (GuardStart) instruction()      {}
func (GuardEnd) instruction()        {}
func (CatchStart) instruction()      {}
func (CatchEnd) instruction()        {}
func (GuardAll) instruction()        {}
func (FinallyStart) instruction()    {}
func (FinallyEnd) instruction()      {}
func (Throw) instruction()           {}
func (Call) instruction()            {}
func (Invoke) instruction()          {}
func (MethodBind) instruction()      {}
func (Construct) instruction()       {}
func (New) instruction()             {}
func (NewChild) instruction()        {}
func (Return) instruction()          {}
func (Var) instruction()             {}
func (Move) instruction()            {}
func (Test) instruction()            {}
func (Jump) instruction()            {}
func (CondJump) instruction()        {}
func (JumpInt) instruction()         {}
func (JumpVal) instruction()         {}
func (Assert) instruction()          {}
func (BinaryOp) instruction()        {}
func (UnaryOp) instruction()         {}
func (LocalGet) instruction()        {}
func (LocalSet) instruction()        {}
func (PropertyGet) instruction()     {}
func (PropertySet) instruction()     {}
func (InPlace) instruction()         {}
func (PropertyInPlace) instruction() {}

// ---------------------------------------------------------------------------
// Shapes
// ---------------------------------------------------------------------------

// CallShape returns the argument and return arities of a CALL_xy or
// NVOK_xy opcode.
func CallShape(op Opcode) (args, returns Arity) {
	var base Opcode = OpCall00
	if op >= OpNvok00 {
		base = OpNvok00
	}
	n := op - base
	return Arity(n / 4), Arity(n % 4)
}

// ArgShape returns the argument arity of a CONSTR_x, NEW_x, NEWC_x or
// RETURN_x opcode.
func ArgShape(op Opcode) Arity {
	switch {
	case op >= OpReturn0 && op <= OpReturnT:
		return Arity(op - OpReturn0)
	case op >= OpNewC0 && op <= OpNewCT:
		return Arity(op - OpNewC0)
	case op >= OpNew0 && op <= OpNewT:
		return Arity(op - OpNew0)
	case op >= OpConstr0 && op <= OpConstrT:
		return Arity(op - OpConstr0)
	}
	return Arity0
}

// CallOpcode returns the CALL (or NVOK when virtual) opcode for a shape.
func CallOpcode(virtual bool, args, returns Arity) Opcode {
	base := OpCall00
	if virtual {
		base = OpNvok00
	}
	return base + Opcode(args)*4 + Opcode(returns)
}

// TestKind classifies IS_* and JMP_* opcodes by operand layout.
type TestKind uint8

const (
	TestUnary TestKind = iota
	TestBinary
	TestType
)

// TestKindOf returns the operand layout of a test or conditional jump.
func TestKindOf(op Opcode) TestKind {
	switch op {
	case OpIsEq, OpIsNeq, OpIsLt, OpIsLte, OpIsGt, OpIsGte,
		OpJmpEq, OpJmpNeq, OpJmpLt, OpJmpLte, OpJmpGt, OpJmpGte:
		return TestBinary
	case OpIsType, OpIsNType, OpJmpType, OpJmpNType:
		return TestType
	}
	return TestUnary
}

// InPlaceHasArg reports whether an IP_*/PIP_* opcode carries an argument.
func InPlaceHasArg(op Opcode) bool {
	switch {
	case op >= OpIPAdd && op <= OpIPXor:
		return true
	case op >= OpPIPAdd && op <= OpPIPXor:
		return true
	}
	return false
}

// InPlaceHasReturn reports whether an IP_*/PIP_* opcode yields a value.
func InPlaceHasReturn(op Opcode) bool {
	switch op {
	case OpIPIncA, OpIPDecA, OpIPIncB, OpIPDecB,
		OpPIPIncA, OpPIPDecA, OpPIPIncB, OpPIPDecB:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Targets
// ---------------------------------------------------------------------------

// Offsets returns the relative jump offsets carried by ins, in slot order.
func Offsets(ins Instruction) []int {
	switch ins := ins.(type) {
	case GuardStart:
		return append([]int(nil), ins.Catches...)
	case GuardEnd:
		return []int{ins.Offset}
	case CatchEnd:
		return []int{ins.Offset}
	case GuardAll:
		return []int{ins.Finally}
	case Jump:
		return []int{ins.Offset}
	case CondJump:
		return []int{ins.Offset}
	case JumpInt:
		return append(append([]int(nil), ins.Offsets...), ins.Default)
	case JumpVal:
		return append(append([]int(nil), ins.Offsets...), ins.Default)
	}
	return nil
}

// Targets re-derives the absolute destinations of ins located at pc.
func Targets(pc int, ins Instruction) []int {
	offs := Offsets(ins)
	for i := range offs {
		offs[i] += pc
	}
	return offs
}

// WithOffsets returns a copy of ins whose jump slots hold offs. GUARD
// takes one offset per clause, JMP_VAL one per case plus the default, and
// JMP_INT any number of case offsets followed by the default.
func WithOffsets(ins Instruction, offs []int) (Instruction, bool) {
	switch ins := ins.(type) {
	case GuardStart:
		if len(offs) != len(ins.Types) {
			return ins, false
		}
		ins.Catches = append([]int(nil), offs...)
		return ins, true
	case JumpInt:
		if len(offs) == 0 {
			return ins, false
		}
		ins.Offsets = append([]int(nil), offs[:len(offs)-1]...)
		ins.Default = offs[len(offs)-1]
		return ins, true
	case JumpVal:
		if len(offs) != len(ins.Cases)+1 {
			return ins, false
		}
		ins.Offsets = append([]int(nil), offs[:len(offs)-1]...)
		ins.Default = offs[len(offs)-1]
		return ins, true
	}
	if len(offs) != len(Offsets(ins)) {
		return ins, false
	}
	switch ins := ins.(type) {
	case GuardEnd:
		ins.Offset = offs[0]
		return ins, true
	case CatchEnd:
		ins.Offset = offs[0]
		return ins, true
	case GuardAll:
		ins.Finally = offs[0]
		return ins, true
	case Jump:
		ins.Offset = offs[0]
		return ins, true
	case CondJump:
		ins.Offset = offs[0]
		return ins, true
	}
	return ins, true
}
