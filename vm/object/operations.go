package object

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
	"github.com/xtclang/xvm-sub016/vm"
)

// ---------------------------------------------------------------------------
// Construction and inspection of primitive values
// ---------------------------------------------------------------------------

// Null implements vm.Operations.
func (rt *Runtime) Null() vm.Value { return Null }

// Bool implements vm.Operations.
func (rt *Runtime) Bool(b bool) vm.Value { return Bool(b) }

// Int implements vm.Operations.
func (rt *Runtime) Int(n int64) vm.Value { return Int(n) }

// Tuple implements vm.Operations.
func (rt *Runtime) Tuple(values []vm.Value) vm.Value {
	elems := make([]vm.Value, len(values))
	copy(elems, values)
	return &Tuple{Elems: elems}
}

// IsNull implements vm.Operations.
func (rt *Runtime) IsNull(v vm.Value) bool { return v == Null }

// IsTrue implements vm.Operations.
func (rt *Runtime) IsTrue(v vm.Value) bool {
	b, ok := v.(Bool)
	return ok && bool(b)
}

// IntValue implements vm.Operations.
func (rt *Runtime) IntValue(v vm.Value) (int64, bool) {
	n, ok := v.(Int)
	return int64(n), ok
}

// Elements implements vm.Operations.
func (rt *Runtime) Elements(tuple vm.Value) ([]vm.Value, bool) {
	t, ok := tuple.(*Tuple)
	if !ok {
		return nil, false
	}
	return t.Elems, true
}

// Equal implements vm.Operations. Primitives compare by value, tuples
// element-wise, everything else by identity.
func (rt *Runtime) Equal(a, b vm.Value) bool {
	ta, ok := a.(*Tuple)
	if !ok {
		return a == b
	}
	tb, ok := b.(*Tuple)
	if !ok || len(ta.Elems) != len(tb.Elems) {
		return false
	}
	for i := range ta.Elems {
		if !rt.Equal(ta.Elems[i], tb.Elems[i]) {
			return false
		}
	}
	return true
}

// Compare implements vm.Operations for Int and String values.
func (rt *Runtime) Compare(a, b vm.Value) (int, error) {
	switch a := a.(type) {
	case Int:
		if b, ok := b.(Int); ok {
			switch {
			case a < b:
				return -1, nil
			case a > b:
				return 1, nil
			}
			return 0, nil
		}
	case String:
		if b, ok := b.(String); ok {
			return strings.Compare(string(a), string(b)), nil
		}
	}
	return 0, errors.Errorf("cannot compare %s with %s", rt.Render(a), rt.Render(b))
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// operatorNames maps generic operators onto the method names user classes
// implement them with.
var operatorNames = map[bytecode.Opcode]string{
	bytecode.OpGPAdd:      "add",
	bytecode.OpGPSub:      "sub",
	bytecode.OpGPMul:      "mul",
	bytecode.OpGPDiv:      "div",
	bytecode.OpGPMod:      "mod",
	bytecode.OpGPShl:      "shiftLeft",
	bytecode.OpGPShr:      "shiftRight",
	bytecode.OpGPUShr:     "shiftAllRight",
	bytecode.OpGPAnd:      "and",
	bytecode.OpGPOr:       "or",
	bytecode.OpGPXor:      "xor",
	bytecode.OpGPDotDot:   "to",
	bytecode.OpGPDotDotEx: "toExcluding",
	bytecode.OpGPNeg:      "neg",
	bytecode.OpGPCompl:    "not",
}

// Binary implements vm.Operations. Int, Boolean and String operators are
// built in; any other target dispatches to the operator's method.
func (rt *Runtime) Binary(f *vm.Frame, op bytecode.Opcode, target, arg vm.Value, ret vm.ReturnTo) vm.Result {
	switch t := target.(type) {
	case Int:
		n, ok := arg.(Int)
		if !ok {
			return f.RaiseMessage(vm.KindTypeMismatch, "%s %s %s", rt.Render(target), op, rt.Render(arg))
		}
		v, r := intBinary(f, op, t, n)
		if r != vm.ResultNext {
			return r
		}
		return f.AssignReturn(ret, v)
	case Bool:
		b, ok := arg.(Bool)
		if !ok {
			break
		}
		switch op {
		case bytecode.OpGPAnd:
			return f.AssignReturn(ret, t && b)
		case bytecode.OpGPOr:
			return f.AssignReturn(ret, t || b)
		case bytecode.OpGPXor:
			return f.AssignReturn(ret, Bool(t != b))
		}
	case String:
		if op == bytecode.OpGPAdd {
			s, ok := arg.(String)
			if !ok {
				return f.AssignReturn(ret, t+String(rt.Render(arg)))
			}
			return f.AssignReturn(ret, t+s)
		}
	case *Object:
		return rt.invokeOperator(f, op, target, []vm.Value{arg}, ret)
	}
	return f.RaiseMessage(vm.KindUnsupported, "%s is not supported on %s", op, target.Composition().Name())
}

func intBinary(f *vm.Frame, op bytecode.Opcode, a, b Int) (vm.Value, vm.Result) {
	switch op {
	case bytecode.OpGPAdd:
		return a + b, vm.ResultNext
	case bytecode.OpGPSub:
		return a - b, vm.ResultNext
	case bytecode.OpGPMul:
		return a * b, vm.ResultNext
	case bytecode.OpGPDiv, bytecode.OpGPMod:
		if b == 0 {
			return nil, f.RaiseMessage(vm.KindIllegalArgument, "Division by zero")
		}
		if op == bytecode.OpGPDiv {
			return a / b, vm.ResultNext
		}
		return a % b, vm.ResultNext
	case bytecode.OpGPShl:
		return a << uint64(b&63), vm.ResultNext
	case bytecode.OpGPShr:
		return a >> uint64(b&63), vm.ResultNext
	case bytecode.OpGPUShr:
		return Int(uint64(a) >> uint64(b&63)), vm.ResultNext
	case bytecode.OpGPAnd:
		return a & b, vm.ResultNext
	case bytecode.OpGPOr:
		return a | b, vm.ResultNext
	case bytecode.OpGPXor:
		return a ^ b, vm.ResultNext
	}
	return nil, f.RaiseMessage(vm.KindUnsupported, "%s is not supported on Int", op)
}

// Unary implements vm.Operations.
func (rt *Runtime) Unary(f *vm.Frame, op bytecode.Opcode, target vm.Value, ret vm.ReturnTo) vm.Result {
	switch t := target.(type) {
	case Int:
		switch op {
		case bytecode.OpGPNeg:
			return f.AssignReturn(ret, -t)
		case bytecode.OpGPCompl:
			return f.AssignReturn(ret, ^t)
		}
	case Bool:
		if op == bytecode.OpGPCompl {
			return f.AssignReturn(ret, !t)
		}
	case *Object:
		return rt.invokeOperator(f, op, target, nil, ret)
	}
	return f.RaiseMessage(vm.KindUnsupported, "%s is not supported on %s", op, target.Composition().Name())
}

func (rt *Runtime) invokeOperator(f *vm.Frame, op bytecode.Opcode, target vm.Value, args []vm.Value, ret vm.ReturnTo) vm.Result {
	name, ok := operatorNames[op]
	if !ok {
		return f.RaiseMessage(vm.KindUnsupported, "%s is not an operator", op)
	}
	params := make([]string, len(args))
	for i, a := range args {
		params[i] = a.Composition().Name()
	}
	sig := vm.Signature{Name: name, Params: params, Returns: []string{target.Composition().Name()}}
	chain, err := rt.CallChain(target.Composition(), sig)
	if err != nil {
		return f.RaiseMessage(vm.KindIllegalState, "%v", err)
	}
	return f.Invoke(chain, 0, target, args, ret)
}

// ---------------------------------------------------------------------------
// Properties and fields
// ---------------------------------------------------------------------------

// GetProperty implements vm.Operations. A property with a getter calls
// it; otherwise the field is read directly.
func (rt *Runtime) GetProperty(f *vm.Frame, target vm.Value, name string, ret vm.ReturnTo) vm.Result {
	switch t := target.(type) {
	case *Object:
		if p, ok := t.Class().Property(name); ok && p.Getter != nil {
			return f.Call(p.Getter, target, nil, ret)
		}
		v, ok := t.Field(name)
		if !ok {
			return f.RaiseMessage(vm.KindUnsupported, "No property %q on %s", name, t.comp.Name())
		}
		if v == nil {
			return f.RaiseMessage(vm.KindIllegalState, "Unassigned property %q on %s", name, t.comp.Name())
		}
		return f.AssignReturn(ret, v)
	case *ExceptionObject:
		return rt.GetProperty(f, t.Object, name, ret)
	case *Tuple:
		if name == "size" {
			return f.AssignReturn(ret, Int(len(t.Elems)))
		}
	case String:
		if name == "size" {
			return f.AssignReturn(ret, Int(len(t)))
		}
	case *Future:
		if name == "value" {
			v, err := t.Get()
			if err != nil {
				return vm.ResultRepeat
			}
			return f.AssignReturn(ret, v)
		}
	}
	return f.RaiseMessage(vm.KindUnsupported, "No property %q on %s", name, target.Composition().Name())
}

// SetProperty implements vm.Operations.
func (rt *Runtime) SetProperty(f *vm.Frame, target vm.Value, name string, v vm.Value) vm.Result {
	var obj *Object
	switch t := target.(type) {
	case *Object:
		obj = t
	case *ExceptionObject:
		obj = t.Object
	default:
		return f.RaiseMessage(vm.KindUnsupported, "No property %q on %s", name, target.Composition().Name())
	}
	if p, ok := obj.Class().Property(name); ok && p.Setter != nil {
		return f.Call(p.Setter, target, []vm.Value{v}, vm.ReturnTo{})
	}
	if !obj.SetField(name, v) {
		return f.RaiseMessage(vm.KindUnsupported, "No property %q on %s", name, obj.comp.Name())
	}
	return vm.ResultNext
}

func objectOf(v vm.Value) (*Object, error) {
	switch t := v.(type) {
	case *Object:
		return t, nil
	case *ExceptionObject:
		return t.Object, nil
	}
	return nil, errors.Errorf("%s has no fields", v.Composition().Name())
}

// GetField implements vm.Operations.
func (rt *Runtime) GetField(target vm.Value, name string) (vm.Value, error) {
	obj, err := objectOf(target)
	if err != nil {
		return nil, err
	}
	v, ok := obj.Field(name)
	switch {
	case !ok:
		return nil, errors.Errorf("no field %q on %s", name, obj.comp.Name())
	case v == nil:
		return nil, errors.Errorf("Unassigned property %q on %s", name, obj.comp.Name())
	}
	return v, nil
}

// SetField implements vm.Operations.
func (rt *Runtime) SetField(target vm.Value, name string, v vm.Value) error {
	obj, err := objectOf(target)
	if err != nil {
		return err
	}
	if !obj.SetField(name, v) {
		return errors.Errorf("no field %q on %s", name, obj.comp.Name())
	}
	return nil
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// NewStruct implements vm.Operations.
func (rt *Runtime) NewStruct(c vm.Composition, parent vm.Value) vm.Value {
	comp, err := classOf(c)
	if err != nil {
		panic(err)
	}
	obj := newObject(comp, parent)
	if comp.Class.IsA(ExceptionClass) {
		return &ExceptionObject{Object: obj}
	}
	return obj
}

// Validate implements vm.Operations: every required property must be
// assigned.
func (rt *Runtime) Validate(s vm.Value) error {
	obj, err := objectOf(s)
	if err != nil {
		return err
	}
	for _, p := range obj.Class().AllProperties() {
		if !p.Required {
			continue
		}
		if v, _ := obj.Field(p.Name); v == nil {
			return errors.Errorf("Unassigned property %q on %s", p.Name, obj.comp.Name())
		}
	}
	return nil
}

// Publish implements vm.Operations.
func (rt *Runtime) Publish(s vm.Value) vm.Value {
	if obj, err := objectOf(s); err == nil {
		obj.mu.Lock()
		obj.public = true
		obj.mu.Unlock()
	}
	return s
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

// Render implements vm.Operations.
func (rt *Runtime) Render(v vm.Value) string {
	switch t := v.(type) {
	case nil:
		return "<unassigned>"
	case nullValue:
		return "Null"
	case Bool:
		if t {
			return "True"
		}
		return "False"
	case Int:
		return strconv.FormatInt(int64(t), 10)
	case String:
		return strconv.Quote(string(t))
	case *Tuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = rt.Render(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *ExceptionObject:
		if msg := t.ExceptionMessage(); msg != "" {
			return fmt.Sprintf("%s: %s", t.comp.Name(), msg)
		}
		return t.comp.Name()
	case *Object:
		var sb strings.Builder
		sb.WriteString(t.comp.Name())
		sb.WriteByte('{')
		for i, name := range t.fieldNames() {
			if i > 0 {
				sb.WriteString(", ")
			}
			fv, _ := t.Field(name)
			fmt.Fprintf(&sb, "%s=%s", name, rt.Render(fv))
		}
		sb.WriteByte('}')
		return sb.String()
	case *Future:
		if fv, err := t.Get(); err == nil {
			return "Future(" + rt.Render(fv) + ")"
		}
		return "Future(pending)"
	case *vm.Function:
		return t.String()
	}
	return v.Composition().Name()
}
