package vm

import "github.com/xtclang/xvm-sub016/pkg/bytecode"

// ---------------------------------------------------------------------------
// Continuations
// ---------------------------------------------------------------------------

// Step is a pending piece of work attached to a staged frame. When that
// frame returns, the driver runs the step against the caller; the step's
// result is then handled like the result of an instruction at the
// caller's current address.
//
// The set of steps is closed: every implementation lives in this package.
type Step interface {
	proceed(f *Frame) Result
}

// AddContinuation attaches s to run when f returns. Adding to an occupied
// slot forms a sequence that runs in insertion order.
func (f *Frame) AddContinuation(s Step) {
	switch cur := f.cont.(type) {
	case nil:
		f.cont = s
	case *stepSeq:
		cur.steps = append(cur.steps, s)
	default:
		f.cont = &stepSeq{steps: []Step{cur, s}}
	}
}

// stepSeq runs its steps in order. When one of them stages a frame, the
// rest is re-attached to that frame.
type stepSeq struct {
	steps []Step
}

func (s *stepSeq) proceed(f *Frame) Result {
	for len(s.steps) > 0 {
		step := s.steps[0]
		s.steps = s.steps[1:]
		r := step.proceed(f)
		switch {
		case r == ResultNext:
			continue
		case r == ResultCall && len(s.steps) > 0:
			f.next.AddContinuation(&stepSeq{steps: s.steps})
		}
		return r
	}
	return ResultNext
}

// stepFunc adapts a function. Natives and Operations implementations use
// it to continue after a call they staged.
type stepFunc func(f *Frame) Result

func (s stepFunc) proceed(f *Frame) Result { return s(f) }

// Then wraps fn as a continuation step.
func Then(fn func(f *Frame) Result) Step {
	return stepFunc(fn)
}

// ---------------------------------------------------------------------------
// Operand collection
// ---------------------------------------------------------------------------

// stepCollect reads the operands of one instruction left to right. A
// local property operand calls its getter, whose result arrives on the
// expression stack; if the getter stages a frame the collector resumes
// after it returns and finally completes the instruction.
type stepCollect struct {
	ins    bytecode.Instruction
	pc     int
	ops    []int
	vals   []Value
	i      int
	popped []Value // values taken from the expression stack
}

// fetch resolves ops for ins. On success it returns the values and
// ResultNext; otherwise the result tells the caller how to suspend, and
// nothing has been changed except what a retry will redo.
func (f *Frame) fetch(ins bytecode.Instruction, pc int, ops []int) ([]Value, Result) {
	if len(ops) == 0 {
		return nil, ResultNext
	}
	c := &stepCollect{ins: ins, pc: pc, ops: ops, vals: make([]Value, len(ops))}
	if r := c.run(f); r != ResultNext {
		return nil, r
	}
	return c.vals, ResultNext
}

func (c *stepCollect) run(f *Frame) Result {
	for ; c.i < len(c.ops); c.i++ {
		a := c.ops[c.i]
		if name, ok := f.localProperty(a); ok {
			r := f.cs.rt.GetProperty(f, f.target(a), name, Return1(bytecode.ArgStack))
			switch r {
			case ResultNext:
				c.vals[c.i] = f.PopStack()
				continue
			case ResultCall:
				f.next.AddContinuation(c)
				return ResultCall
			}
			c.restore(f)
			return r
		}
		v, err := f.Argument(a)
		if err != nil {
			c.restore(f)
			return f.fail(err)
		}
		if a == bytecode.ArgStack {
			c.popped = append(c.popped, v)
		}
		c.vals[c.i] = v
	}
	return ResultNext
}

// restore pushes back stack operands so a retry finds them again.
func (c *stepCollect) restore(f *Frame) {
	for i := len(c.popped) - 1; i >= 0; i-- {
		f.PushStack(c.popped[i])
	}
	c.popped = nil
}

func (c *stepCollect) proceed(f *Frame) Result {
	c.vals[c.i] = f.PopStack()
	c.i++
	if r := c.run(f); r != ResultNext {
		return r
	}
	return f.complete(c.ins, c.pc, c.vals)
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

// stepAssignValues stores values into operands one by one.
type stepAssignValues struct {
	regs []int
	vals []Value
	i    int
}

func (s *stepAssignValues) proceed(f *Frame) Result {
	for s.i < len(s.regs) {
		r := f.Assign(s.regs[s.i], s.vals[s.i])
		s.i++
		switch r {
		case ResultNext:
			continue
		case ResultCall:
			if s.i < len(s.regs) {
				f.next.AddContinuation(s)
			}
		}
		return r
	}
	return ResultNext
}

// ---------------------------------------------------------------------------
// In-place operators
// ---------------------------------------------------------------------------

const (
	ipRead    = iota // waiting for the property getter
	ipCompute        // waiting for the operator
)

// stepInPlace applies an in-place operator: read the old value (for
// properties), compute, store, then yield the old or new value.
type stepInPlace struct {
	op     bytecode.Opcode
	target int    // register or local property (IP_*)
	obj    Value  // property holder (PIP_*)
	prop   string // property name (PIP_*)
	ret    int
	arg    Value
	old    Value
	phase  int
}

func (s *stepInPlace) proceed(f *Frame) Result {
	v := f.PopStack()
	if s.phase == ipRead {
		s.old = v
		return s.compute(f)
	}
	return s.store(f, v)
}

func (s *stepInPlace) read(f *Frame) Result {
	s.phase = ipRead
	r := f.cs.rt.GetProperty(f, s.obj, s.prop, Return1(bytecode.ArgStack))
	switch r {
	case ResultNext:
		s.old = f.PopStack()
		return s.compute(f)
	case ResultCall:
		f.next.AddContinuation(s)
	}
	return r
}

func (s *stepInPlace) compute(f *Frame) Result {
	s.phase = ipCompute
	arg := s.arg
	if arg == nil {
		arg = f.cs.rt.Int(1)
	}
	r := f.cs.rt.Binary(f, binaryOpFor(s.op), s.old, arg, Return1(bytecode.ArgStack))
	switch r {
	case ResultNext:
		return s.store(f, f.PopStack())
	case ResultCall:
		f.next.AddContinuation(s)
	}
	return r
}

func (s *stepInPlace) store(f *Frame, v Value) Result {
	result := v
	switch s.op {
	case bytecode.OpIPIncA, bytecode.OpIPDecA, bytecode.OpPIPIncA, bytecode.OpPIPDecA:
		result = s.old
	}
	yields := bytecode.InPlaceHasReturn(s.op) && s.ret != bytecode.ArgIgnore

	if s.obj == nil {
		if !yields {
			return f.Assign(s.target, v)
		}
		return f.AssignValues([]int{s.target, s.ret}, []Value{v, result})
	}

	r := f.cs.rt.SetProperty(f, s.obj, s.prop, v)
	if !yields {
		return r
	}
	return f.andThen(r, &stepAssignValues{regs: []int{s.ret}, vals: []Value{result}})
}

// binaryOpFor maps an in-place opcode onto its generic binary operator.
func binaryOpFor(op bytecode.Opcode) bytecode.Opcode {
	switch op {
	case bytecode.OpIPInc, bytecode.OpIPIncA, bytecode.OpIPIncB,
		bytecode.OpPIPInc, bytecode.OpPIPIncA, bytecode.OpPIPIncB:
		return bytecode.OpGPAdd
	case bytecode.OpIPDec, bytecode.OpIPDecA, bytecode.OpIPDecB,
		bytecode.OpPIPDec, bytecode.OpPIPDecA, bytecode.OpPIPDecB:
		return bytecode.OpGPSub
	}
	switch {
	case op >= bytecode.OpIPAdd && op <= bytecode.OpIPXor:
		return bytecode.OpGPAdd + (op - bytecode.OpIPAdd)
	case op >= bytecode.OpPIPAdd && op <= bytecode.OpPIPXor:
		return bytecode.OpGPAdd + (op - bytecode.OpPIPAdd)
	}
	fault("%s is not an in-place operator", op)
	return op
}

// ---------------------------------------------------------------------------
// Delegation
// ---------------------------------------------------------------------------

// stepDelegate invokes a signature on the delegate value waiting on the
// expression stack.
type stepDelegate struct {
	sig  Signature
	args []Value
	ret  ReturnTo
}

func (s *stepDelegate) proceed(f *Frame) Result {
	delegate := f.PopStack()
	chain, err := f.cs.rt.CallChain(delegate.Composition(), s.sig)
	if err != nil {
		return f.RaiseMessage(KindIllegalState, "%v", err)
	}
	return f.Invoke(chain, 0, delegate, s.args, s.ret)
}
