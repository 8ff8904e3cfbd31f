package vm

import (
	"fmt"
	"strings"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// dispatch executes ins at pc. Operands are collected first; nothing in
// the frame changes until every operand is available.
func (f *Frame) dispatch(ins bytecode.Instruction, pc int) Result {
	switch ins := ins.(type) {
	case bytecode.Nop, bytecode.CatchStart, bytecode.Line:
		return ResultNext
	case bytecode.Enter:
		f.EnterScope()
		return ResultNext
	case bytecode.Exit:
		f.ExitScope()
		return ResultNext
	case bytecode.Jump:
		return f.jump(pc + ins.Offset)
	}

	vals, r := f.fetch(ins, pc, operands(ins))
	if r != ResultNext {
		return r
	}
	return f.complete(ins, pc, vals)
}

// operands lists the value operands ins reads, in evaluation order.
func operands(ins bytecode.Instruction) []int {
	switch ins := ins.(type) {
	case bytecode.Throw:
		return []int{ins.Value}
	case bytecode.Call:
		if bytecode.IsConstant(ins.Function) {
			return ins.Args
		}
		return prepend(ins.Function, ins.Args)
	case bytecode.Invoke:
		return prepend(ins.Target, ins.Args)
	case bytecode.MethodBind:
		return []int{ins.Target}
	case bytecode.Construct:
		return ins.Args
	case bytecode.New:
		return ins.Args
	case bytecode.NewChild:
		return prepend(ins.Parent, ins.Args)
	case bytecode.Return:
		return ins.Values
	case bytecode.Var:
		switch ins.Op {
		case bytecode.OpVarI, bytecode.OpVarIN:
			return []int{ins.Value}
		case bytecode.OpVarT, bytecode.OpVarTN:
			return ins.Values
		}
		return nil
	case bytecode.Move:
		return []int{ins.From}
	case bytecode.Test:
		if bytecode.TestKindOf(ins.Op) == bytecode.TestBinary {
			return []int{ins.Arg1, ins.Arg2}
		}
		return []int{ins.Arg1}
	case bytecode.CondJump:
		if bytecode.TestKindOf(ins.Op) == bytecode.TestBinary {
			return []int{ins.Arg1, ins.Arg2}
		}
		return []int{ins.Arg1}
	case bytecode.JumpInt:
		return []int{ins.Arg}
	case bytecode.JumpVal:
		return ins.Args
	case bytecode.Assert:
		return prepend(ins.Cond, ins.Values)
	case bytecode.BinaryOp:
		return []int{ins.Target, ins.Arg}
	case bytecode.UnaryOp:
		return []int{ins.Target}
	case bytecode.LocalSet:
		return []int{ins.Value}
	case bytecode.PropertyGet:
		return []int{ins.Target}
	case bytecode.PropertySet:
		return []int{ins.Target, ins.Value}
	case bytecode.InPlace:
		if bytecode.InPlaceHasArg(ins.Op) {
			return []int{ins.Target, ins.Arg}
		}
		return []int{ins.Target}
	case bytecode.PropertyInPlace:
		if bytecode.InPlaceHasArg(ins.Op) {
			return []int{ins.Target, ins.Arg}
		}
		return []int{ins.Target}
	}
	return nil
}

func prepend(a int, rest []int) []int {
	ops := make([]int, 0, len(rest)+1)
	ops = append(ops, a)
	return append(ops, rest...)
}

// complete executes ins once its operand values are known.
func (f *Frame) complete(ins bytecode.Instruction, pc int, vals []Value) Result {
	rt := f.cs.rt

	switch ins := ins.(type) {
	// --- guards ---
	case bytecode.GuardStart:
		f.EnterScope()
		f.PushGuard(&MultiGuard{Start: pc, Scope: f.scope, Types: ins.Types, Names: ins.Names, Catches: ins.Catches})
		return ResultNext
	case bytecode.GuardEnd:
		f.PopGuard()
		f.ExitScope()
		return jumpTo(pc + ins.Offset)
	case bytecode.CatchEnd:
		f.ExitScope()
		return jumpTo(pc + ins.Offset)
	case bytecode.GuardAll:
		f.EnterScope()
		f.PushGuard(&AllGuard{Start: pc, Scope: f.scope, Finally: ins.Finally})
		return ResultNext
	case bytecode.FinallyStart:
		if _, ok := f.PopGuard().(*AllGuard); !ok {
			fault("FINALLY without GUARD_ALL")
		}
		f.ExitScope()
		f.EnterScope()
		f.IntroduceResolvedVar(VarInfo{}, rt.Null())
		return ResultNext
	case bytecode.FinallyEnd:
		return f.finallyEnd()
	case bytecode.Throw:
		return f.Raise(vals[0])

	// --- calls ---
	case bytecode.Call:
		return f.completeCall(ins, vals)
	case bytecode.Invoke:
		target := vals[0]
		sig := f.constants().Signature(bytecode.ConstantIndex(ins.Method))
		chain, r := f.chainFor(pc, target, sig)
		if r != ResultNext {
			return r
		}
		argShape, retShape := bytecode.CallShape(ins.Op)
		args, r := f.spreadArgs(argShape, vals[1:], len(sig.Params))
		if r != ResultNext {
			return r
		}
		return f.Invoke(chain, 0, target, args, returnsFor(retShape, ins.Returns))
	case bytecode.MethodBind:
		target := vals[0]
		sig := f.constants().Signature(bytecode.ConstantIndex(ins.Method))
		chain, r := f.chainFor(pc, target, sig)
		if r != ResultNext {
			return r
		}
		return f.Assign(ins.Return, &Function{Chain: chain, Target: target})
	case bytecode.Construct:
		ctor := f.constants().Method(bytecode.ConstantIndex(ins.Constructor))
		if ctor == nil {
			fault("constant %s is not a constructor", bytecode.OperandString(ins.Constructor))
		}
		args, r := f.spreadArgs(bytecode.ArgShape(ins.Op), vals, len(ctor.Params))
		if r != ResultNext {
			return r
		}
		return f.constructDelegate(ctor, args)
	case bytecode.New:
		c := f.resolveType(ins.Type)
		sig := f.constants().Signature(bytecode.ConstantIndex(ins.Constructor))
		return f.construct(c, sig, nil, vals, bytecode.ArgShape(ins.Op), ins.Return)
	case bytecode.NewChild:
		parent := vals[0]
		name := f.constants().Type(bytecode.ConstantIndex(ins.Type)).ID
		c, r := f.childComposition(pc, parent, name)
		if r != ResultNext {
			return r
		}
		sig := f.constants().Signature(bytecode.ConstantIndex(ins.Constructor))
		return f.construct(c, sig, parent, vals[1:], bytecode.ArgShape(ins.Op), ins.Return)
	case bytecode.Return:
		if f.innermostFinally() >= 0 {
			return f.returnThroughFinally(ins.Op, vals)
		}
		return f.doReturn(ins.Op, vals)

	// --- variables ---
	case bytecode.Var:
		return f.completeVar(ins, vals)
	case bytecode.Move:
		return f.Assign(ins.To, vals[0])

	// --- tests and jumps ---
	case bytecode.Test:
		ok, r := f.test(ins.Op, vals, ins.Type)
		if r != ResultNext {
			return r
		}
		return f.Assign(ins.Return, rt.Bool(ok))
	case bytecode.CondJump:
		ok, r := f.test(ins.Op, vals, ins.Type)
		switch {
		case r != ResultNext:
			return r
		case ok:
			return f.jump(pc + ins.Offset)
		}
		return ResultNext
	case bytecode.JumpInt:
		n, ok := rt.IntValue(vals[0])
		if !ok {
			return f.RaiseMessage(KindTypeMismatch, "JMP_INT on %s", rt.Render(vals[0]))
		}
		if n >= 0 && n < int64(len(ins.Offsets)) {
			return f.jump(pc + ins.Offsets[n])
		}
		return f.jump(pc + ins.Default)
	case bytecode.JumpVal:
		return f.completeJumpVal(ins, pc, vals)
	case bytecode.Assert:
		return f.completeAssert(ins, vals)

	// --- operators and properties ---
	case bytecode.BinaryOp:
		return rt.Binary(f, ins.Op, vals[0], vals[1], Return1(ins.Return))
	case bytecode.UnaryOp:
		return rt.Unary(f, ins.Op, vals[0], Return1(ins.Return))
	case bytecode.LocalGet:
		return rt.GetProperty(f, f.target(bytecode.ArgThis), f.propertyName(ins.Property), Return1(ins.Return))
	case bytecode.LocalSet:
		return rt.SetProperty(f, f.target(bytecode.ArgThis), f.propertyName(ins.Property), vals[0])
	case bytecode.PropertyGet:
		return rt.GetProperty(f, vals[0], f.propertyName(ins.Property), Return1(ins.Return))
	case bytecode.PropertySet:
		return rt.SetProperty(f, vals[0], f.propertyName(ins.Property), vals[1])
	case bytecode.InPlace:
		s := &stepInPlace{op: ins.Op, target: ins.Target, ret: ins.Return, old: vals[0]}
		if len(vals) > 1 {
			s.arg = vals[1]
		}
		return s.compute(f)
	case bytecode.PropertyInPlace:
		s := &stepInPlace{op: ins.Op, obj: vals[0], prop: f.propertyName(ins.Property), ret: ins.Return}
		if len(vals) > 1 {
			s.arg = vals[1]
		}
		return s.read(f)
	}

	fault("no dispatch for %s", ins.Opcode())
	return ResultException
}

func (f *Frame) completeCall(ins bytecode.Call, vals []Value) Result {
	var fn *Function
	args := vals
	if bytecode.IsConstant(ins.Function) {
		m := f.constants().Method(bytecode.ConstantIndex(ins.Function))
		if m == nil {
			fault("constant %s is not a function", bytecode.OperandString(ins.Function))
		}
		fn = &Function{Method: m, Target: f.this}
	} else {
		var ok bool
		if fn, ok = vals[0].(*Function); !ok {
			return f.RaiseMessage(KindTypeMismatch, "not a function: %s", f.cs.rt.Render(vals[0]))
		}
		args = vals[1:]
	}

	argShape, retShape := bytecode.CallShape(ins.Op)
	args, r := f.spreadArgs(argShape, args, fn.ParamCount())
	if r != ResultNext {
		return r
	}
	return f.callFunction(fn, args, returnsFor(retShape, ins.Returns))
}

func (f *Frame) completeVar(ins bytecode.Var, vals []Value) Result {
	info := VarInfo{Type: f.constants().Type(bytecode.ConstantIndex(ins.Type))}
	if bytecode.VarHasName(ins.Op) {
		info.Name = f.text(ins.Name)
	}
	switch ins.Op {
	case bytecode.OpVar, bytecode.OpVarN:
		f.IntroduceVar(info)
	case bytecode.OpVarI, bytecode.OpVarIN:
		f.IntroduceResolvedVar(info, vals[0])
	case bytecode.OpVarD, bytecode.OpVarDN:
		v, err := f.rawArgument(ins.Value)
		if err != nil {
			return f.fail(err)
		}
		if _, ok := v.(Ref); !ok {
			fault("%s of a non-reference %s", ins.Op, f.cs.rt.Render(v))
		}
		info.Style = StyleDynamicRef
		f.IntroduceResolvedVar(info, v)
	case bytecode.OpVarT, bytecode.OpVarTN:
		f.IntroduceResolvedVar(info, f.cs.rt.Tuple(vals))
	default:
		fault("unsupported %s", ins.Op)
	}
	return ResultNext
}

func (f *Frame) completeJumpVal(ins bytecode.JumpVal, pc int, vals []Value) Result {
	rt := f.cs.rt
	for i, c := range ins.Cases {
		match := true
		for j, a := range c {
			v, err := f.Argument(a)
			if err != nil {
				return f.fail(err)
			}
			if !rt.Equal(vals[j], v) {
				match = false
				break
			}
		}
		if match {
			return f.jump(pc + ins.Offsets[i])
		}
	}
	return f.jump(pc + ins.Default)
}

func (f *Frame) completeAssert(ins bytecode.Assert, vals []Value) Result {
	rt := f.cs.rt
	if rt.IsTrue(vals[0]) {
		return ResultNext
	}
	msg := "Assertion failed"
	if ins.Op != bytecode.OpAssert {
		msg += ": " + f.text(ins.Message)
	}
	if ins.Op == bytecode.OpAssertV && len(ins.Values) > 0 {
		parts := make([]string, len(ins.Values))
		for i, a := range ins.Values {
			parts[i] = fmt.Sprintf("%s=%s", f.varName(a), rt.Render(vals[i+1]))
		}
		msg += " (" + strings.Join(parts, ", ") + ")"
	}
	return f.RaiseMessage(KindAssertion, "%s", msg)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// test evaluates the condition of an IS_* or JMP_* opcode.
func (f *Frame) test(op bytecode.Opcode, vals []Value, typ int) (bool, Result) {
	rt := f.cs.rt
	switch op {
	case bytecode.OpJmpTrue:
		return rt.IsTrue(vals[0]), ResultNext
	case bytecode.OpJmpFalse, bytecode.OpIsNot:
		return !rt.IsTrue(vals[0]), ResultNext
	case bytecode.OpIsNull, bytecode.OpJmpNull:
		return rt.IsNull(vals[0]), ResultNext
	case bytecode.OpIsNNull, bytecode.OpJmpNNull:
		return !rt.IsNull(vals[0]), ResultNext
	case bytecode.OpIsZero, bytecode.OpJmpZero, bytecode.OpIsNZero, bytecode.OpJmpNZero:
		n, ok := rt.IntValue(vals[0])
		if !ok {
			return false, f.RaiseMessage(KindTypeMismatch, "%s on %s", op, rt.Render(vals[0]))
		}
		zero := n == 0
		if op == bytecode.OpIsNZero || op == bytecode.OpJmpNZero {
			return !zero, ResultNext
		}
		return zero, ResultNext
	case bytecode.OpIsEq, bytecode.OpJmpEq:
		return rt.Equal(vals[0], vals[1]), ResultNext
	case bytecode.OpIsNeq, bytecode.OpJmpNeq:
		return !rt.Equal(vals[0], vals[1]), ResultNext
	case bytecode.OpIsType, bytecode.OpJmpType:
		return vals[0].Composition().IsA(f.resolveType(typ)), ResultNext
	case bytecode.OpIsNType, bytecode.OpJmpNType:
		return !vals[0].Composition().IsA(f.resolveType(typ)), ResultNext
	}

	cmp, err := rt.Compare(vals[0], vals[1])
	if err != nil {
		return false, f.RaiseMessage(KindIllegalArgument, "%v", err)
	}
	switch op {
	case bytecode.OpIsLt, bytecode.OpJmpLt:
		return cmp < 0, ResultNext
	case bytecode.OpIsLte, bytecode.OpJmpLte:
		return cmp <= 0, ResultNext
	case bytecode.OpIsGt, bytecode.OpJmpGt:
		return cmp > 0, ResultNext
	case bytecode.OpIsGte, bytecode.OpJmpGte:
		return cmp >= 0, ResultNext
	}
	fault("%s is not a test", op)
	return false, ResultException
}
