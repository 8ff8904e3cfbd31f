package vm

import "github.com/xtclang/xvm-sub016/pkg/bytecode"

// ---------------------------------------------------------------------------
// Call chains
// ---------------------------------------------------------------------------

// BodyKind distinguishes how a method body is executed.
type BodyKind uint8

const (
	BodyCode       BodyKind = iota // bytecode, runs in a child frame
	BodyNative                     // Go function, runs on the calling frame
	BodyField                      // direct field access
	BodyDelegating                 // forwards to the value of a property
)

func (k BodyKind) String() string {
	return [...]string{"code", "native", "field", "delegating"}[k]
}

// Body is one implementation in a call chain.
type Body struct {
	Kind     BodyKind
	Method   *Method // BodyCode and BodyNative
	Property string  // BodyField and BodyDelegating
}

// CallChain lists the bodies implementing Signature on Type, most derived
// first. A chain is immutable once built and may be shared and cached.
type CallChain struct {
	Signature Signature
	Type      Composition
	Bodies    []Body
}

// Depth returns the number of bodies in the chain.
func (c *CallChain) Depth() int {
	return len(c.Bodies)
}

// IsEmpty reports whether no body implements the signature.
func (c *CallChain) IsEmpty() bool {
	return len(c.Bodies) == 0
}

func (c *CallChain) typeName() string {
	if c.Type == nil {
		return "?"
	}
	return c.Type.Name()
}

// Invoke runs the body at depth of chain against target. Depth 0 is a
// virtual call; a body at depth k reaches depth k+1 through super.
func (f *Frame) Invoke(chain *CallChain, depth int, target Value, args []Value, ret ReturnTo) Result {
	if depth >= len(chain.Bodies) {
		if depth == 0 {
			return f.RaiseMessage(KindUnsupported, "Missing method %q on %q",
				chain.Signature.String(), chain.typeName())
		}
		return f.RaiseMessage(KindIllegalState, "Missing super() implementation for %q on %q",
			chain.Signature.String(), chain.typeName())
	}

	body := chain.Bodies[depth]
	switch body.Kind {
	case BodyNative:
		return body.Method.Native(f, target, args, ret)

	case BodyField:
		rt := f.cs.rt
		if len(args) == 0 {
			v, err := rt.GetField(target, body.Property)
			if err != nil {
				return f.RaiseMessage(KindIllegalState, "%v", err)
			}
			return f.AssignReturn(ret, v)
		}
		if err := rt.SetField(target, body.Property, args[0]); err != nil {
			return f.RaiseMessage(KindIllegalState, "%v", err)
		}
		return ResultNext

	case BodyDelegating:
		step := &stepDelegate{sig: chain.Signature, args: args, ret: ret}
		r := f.cs.rt.GetProperty(f, target, body.Property, Return1(bytecode.ArgStack))
		return f.andThen(r, step)

	case BodyCode:
		child := f.newFrame(body.Method, target, args, ret)
		child.chain, child.depth = chain, depth
		f.stage(child)
		return ResultCall
	}
	fault("invalid body kind %d", body.Kind)
	return ResultException
}

// callFunction calls a function value.
func (f *Frame) callFunction(fn *Function, args []Value, ret ReturnTo) Result {
	if fn.Chain != nil {
		return f.Invoke(fn.Chain, fn.Depth, fn.Target, args, ret)
	}
	return f.Call(fn.Method, fn.Target, args, ret)
}

// chainFor resolves sig on the target's composition through the call
// site's inline cache.
func (f *Frame) chainFor(pc int, target Value, sig Signature) (*CallChain, Result) {
	comp := target.Composition()
	ic := f.method.sites.chains(pc)
	if chain := ic.Lookup(comp); chain != nil {
		f.cs.metrics.cacheHit()
		return chain, ResultNext
	}
	f.cs.metrics.cacheMiss()
	chain, err := f.cs.rt.CallChain(comp, sig)
	if err != nil {
		return nil, f.RaiseMessage(KindIllegalState, "%v", err)
	}
	ic.Update(comp, chain)
	return chain, ResultNext
}
