package vm

import "github.com/xtclang/xvm-sub016/pkg/bytecode"

// ---------------------------------------------------------------------------
// Guards
// ---------------------------------------------------------------------------

// Guard is one exception handling region of a frame. Guards are pushed by
// GUARD and GUARD_ALL and live on the frame's guard stack, innermost last.
type Guard interface {
	// handle returns the handler address when the guard takes e. index is
	// the guard's position on the guard stack.
	handle(f *Frame, e *Exception, index int) (int, bool)
	// covers reports whether pc lies inside the guarded block.
	covers(pc int) bool
	// opened returns the scope the guard opened.
	opened() int
}

// MultiGuard is a try block with typed catch clauses, tried in
// declaration order.
type MultiGuard struct {
	Start   int // address of the GUARD instruction
	Scope   int // scope opened by the guard
	Types   []int
	Names   []int
	Catches []int // handler offsets relative to Start
}

func (g *MultiGuard) covers(pc int) bool {
	if pc <= g.Start {
		return false
	}
	for _, c := range g.Catches {
		if pc >= g.Start+c {
			return false
		}
	}
	return true
}

func (g *MultiGuard) opened() int { return g.Scope }

func (g *MultiGuard) handle(f *Frame, e *Exception, index int) (int, bool) {
	actual := e.Value.Composition()
	for i, t := range g.Types {
		if !actual.IsA(f.resolveType(t)) {
			continue
		}
		f.introduceException(g.Scope, index, e, f.text(g.Names[i]))
		return g.Start + g.Catches[i], true
	}
	return 0, false
}

// AllGuard is a try block with a finally handler. It takes every
// exception.
type AllGuard struct {
	Start   int
	Scope   int
	Finally int
}

// covers includes the FINALLY instruction, reached by fall-through.
func (g *AllGuard) covers(pc int) bool {
	return pc > g.Start && pc < g.Start+g.Finally
}

func (g *AllGuard) opened() int { return g.Scope }

func (g *AllGuard) handle(f *Frame, e *Exception, index int) (int, bool) {
	f.introduceException(g.Scope, index, e, "")
	return g.Start + g.Finally, true
}

// PushGuard pushes g on the guard stack.
func (f *Frame) PushGuard(g Guard) {
	f.guards = append(f.guards, g)
}

// PopGuard removes the innermost guard.
func (f *Frame) PopGuard() Guard {
	n := len(f.guards)
	if n == 0 {
		fault("guard underflow")
	}
	g := f.guards[n-1]
	f.guards[n-1] = nil
	f.guards = f.guards[:n-1]
	return g
}

// findGuard walks the guard stack from the innermost guard outwards and
// returns the address of the first handler that takes e.
func (f *Frame) findGuard(e *Exception) (int, bool) {
	for i := len(f.guards) - 1; i >= 0; i-- {
		if pc, ok := f.guards[i].handle(f, e, i); ok {
			return pc, true
		}
	}
	return 0, false
}

// unwindTo discards every scope opened after the guard at index, reopens
// the guard's scope empty and drops the guard and everything inside it.
func (f *Frame) unwindTo(scope, index int) {
	f.clearAllScopes(scope - 1)
	f.scope = scope
	for i := index; i < len(f.guards); i++ {
		f.guards[i] = nil
	}
	f.guards = f.guards[:index]
	f.nextVar[scope] = f.nextVar[scope-1]
	f.stack = f.stack[:0]
}

// introduceException binds e in the handler scope of the guard at index.
// A finally handler (empty name) remembers e so FINALLY_END can rethrow.
func (f *Frame) introduceException(scope, index int, e *Exception, name string) {
	f.unwindTo(scope, index)
	info := VarInfo{Name: name}
	if name == "" {
		info.caught = e
	}
	f.IntroduceResolvedVar(info, e.Value)
	f.exception = nil
	f.deferred = nil
}

// ---------------------------------------------------------------------------
// Finally
// ---------------------------------------------------------------------------

// deferredAction is a return or a jump waiting for finally blocks.
type deferredAction struct {
	jump   bool
	target int // jump destination

	op   bytecode.Opcode // return opcode
	vals []Value
}

func (f *Frame) innermostFinally() int {
	for i := len(f.guards) - 1; i >= 0; i-- {
		if _, ok := f.guards[i].(*AllGuard); ok {
			return i
		}
	}
	return -1
}

// enterFinally transfers control to the finally handler of the AllGuard
// at index with nothing in flight.
func (f *Frame) enterFinally(index int) Result {
	g := f.guards[index].(*AllGuard)
	f.unwindTo(g.Scope, index)
	f.IntroduceResolvedVar(VarInfo{}, f.cs.rt.Null())
	return jumpTo(g.Start + g.Finally)
}

// finallyEnd closes a finally block: rethrow the exception it caught,
// continue a deferred return or jump, or fall through.
func (f *Frame) finallyEnd() Result {
	reg := f.nextVar[f.scope-1]
	var caught *Exception
	if info := f.Var(reg); info != nil {
		caught = info.caught
	}
	f.ExitScope()
	if caught != nil {
		f.exception = caught
		return ResultException
	}
	if d := f.deferred; d != nil {
		if d.jump {
			f.deferred = nil
			return f.jump(d.target)
		}
		if i := f.innermostFinally(); i >= 0 {
			return f.enterFinally(i)
		}
		f.deferred = nil
		return f.doReturn(d.op, d.vals)
	}
	return ResultNext
}

// returnThroughFinally runs the enclosing finally blocks, innermost
// first, before returning.
func (f *Frame) returnThroughFinally(op bytecode.Opcode, vals []Value) Result {
	i := f.innermostFinally()
	if i < 0 {
		return f.doReturn(op, vals)
	}
	f.deferred = &deferredAction{op: op, vals: vals}
	return f.enterFinally(i)
}

// jump transfers control to target. Every guarded block target lies
// outside of is left first, innermost first; leaving a try/finally runs
// its finally block, whose FINALLY_END resumes the jump.
func (f *Frame) jump(target int) Result {
	for i := len(f.guards) - 1; i >= 0; i-- {
		g := f.guards[i]
		if g.covers(target) {
			break
		}
		if _, ok := g.(*AllGuard); ok {
			f.deferred = &deferredAction{jump: true, target: target}
			return f.enterFinally(i)
		}
		f.leaveGuard(i)
	}
	return jumpTo(target)
}

// leaveGuard drops the guard at index, which must be innermost, and
// closes the scopes opened since it.
func (f *Frame) leaveGuard(index int) {
	scope := f.guards[index].opened()
	f.clearAllScopes(scope - 1)
	f.scope = scope - 1
	f.guards[index] = nil
	f.guards = f.guards[:index]
}

func (f *Frame) doReturn(op bytecode.Opcode, vals []Value) Result {
	switch bytecode.ArgShape(op) {
	case bytecode.Arity1:
		return f.ReturnValue(vals[0])
	case bytecode.ArityN:
		return f.ReturnValues(vals)
	case bytecode.ArityT:
		return f.ReturnTuple(vals[0])
	}
	return f.ReturnVoid()
}
