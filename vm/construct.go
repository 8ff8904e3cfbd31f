package vm

import "github.com/xtclang/xvm-sub016/pkg/bytecode"

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// finalizer is a constructor finally block bound to the constructor's
// arguments.
type finalizer struct {
	method *Method
	args   []Value
}

// finalizerList collects the finalizers of one construction. Every
// constructor frame of the construction shares it.
type finalizerList struct {
	entries []finalizer
}

func (l *finalizerList) add(m *Method, args []Value) {
	if m != nil {
		l.entries = append(l.entries, finalizer{method: m, args: args})
	}
}

const (
	constructValidate = iota
	constructFinalize
)

// stepConstruct completes a construction once the constructor chain has
// returned: validate the struct, publish it, run the finalizers (last
// registered first) and store the public value.
type stepConstruct struct {
	phase      int
	structure  Value
	public     Value
	finalizers *finalizerList
	next       int // next finalizer to run, counting down
	ret        int
}

func (s *stepConstruct) proceed(f *Frame) Result {
	rt := f.cs.rt
	if s.phase == constructValidate {
		if err := rt.Validate(s.structure); err != nil {
			return f.RaiseMessage(KindIllegalState, "%v", err)
		}
		s.public = rt.Publish(s.structure)
		s.phase = constructFinalize
		s.next = len(s.finalizers.entries) - 1
	}
	for s.next >= 0 {
		fin := s.finalizers.entries[s.next]
		s.next--
		switch r := f.Call(fin.method, s.public, fin.args, ReturnTo{}); r {
		case ResultNext:
			continue
		case ResultCall:
			f.next.AddContinuation(s)
			return ResultCall
		default:
			return r
		}
	}
	return f.Assign(s.ret, s.public)
}

// construct creates an instance of c: allocate the struct, run the
// constructor matching sig, then finish with stepConstruct.
func (f *Frame) construct(c Composition, sig Signature, parent Value, args []Value, shape bytecode.Arity, ret int) Result {
	rt := f.cs.rt
	ctor := rt.Constructor(c, sig)
	if ctor == nil {
		return f.RaiseMessage(KindIllegalState, "Missing constructor %q at class %s", sig.String(), c.Name())
	}
	args, r := f.spreadArgs(shape, args, len(ctor.Params))
	if r != ResultNext {
		return r
	}

	fins := &finalizerList{}
	fins.add(ctor.Finalizer, args)
	step := &stepConstruct{
		structure:  rt.NewStruct(c, parent),
		finalizers: fins,
		ret:        ret,
	}
	r = f.Call(ctor, step.structure, args, ReturnTo{})
	if r == ResultCall {
		f.next.finalizers = fins
	}
	return f.andThen(r, step)
}

// constructDelegate runs another constructor against the struct under
// construction (CONSTR_*).
func (f *Frame) constructDelegate(ctor *Method, args []Value) Result {
	if f.finalizers == nil {
		fault("%s delegates construction outside of a constructor", f.method)
	}
	f.finalizers.add(ctor.Finalizer, args)
	r := f.Call(ctor, f.target(bytecode.ArgStruct), args, ReturnTo{})
	if r == ResultCall {
		f.next.finalizers = f.finalizers
	}
	return r
}

// childComposition resolves a virtual child class against the parent's
// runtime composition, caching per instruction site.
func (f *Frame) childComposition(pc int, parent Value, name string) (Composition, Result) {
	pcomp := parent.Composition()
	if c, ok := f.method.sites.child(pc, pcomp); ok {
		return c, ResultNext
	}
	c, err := f.cs.rt.ChildComposition(pcomp, name)
	if err != nil {
		return nil, f.RaiseMessage(KindIllegalState, "%v", err)
	}
	f.method.sites.setChild(pc, pcomp, c)
	return c, ResultNext
}

// ---------------------------------------------------------------------------
// Tuple arguments
// ---------------------------------------------------------------------------

// spreadArgs unpacks a tuple argument for the *_T forms. The tuple must
// hold exactly want values.
func (f *Frame) spreadArgs(shape bytecode.Arity, args []Value, want int) ([]Value, Result) {
	if shape != bytecode.ArityT {
		return args, ResultNext
	}
	rt := f.cs.rt
	elems, ok := rt.Elements(args[0])
	if !ok {
		return nil, f.RaiseMessage(KindIllegalArgument, "Invalid tuple argument: %s", rt.Render(args[0]))
	}
	if len(elems) != want {
		return nil, f.RaiseMessage(KindIllegalArgument, "Invalid tuple argument: expected %d, got %d", want, len(elems))
	}
	return elems, ResultNext
}
