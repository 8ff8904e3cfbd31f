package object

import (
	"fmt"

	"github.com/xtclang/xvm-sub016/vm"
)

// Builtin natives, available to images by name.
const (
	NativePrint    = "console.print"
	NativeToString = "Object.toString"
	NativeFuture   = "Future.new"
)

func (rt *Runtime) registerBuiltinNatives() {
	rt.natives[NativePrint] = rt.nativePrint
	rt.natives[NativeToString] = rt.nativeToString
	rt.natives[NativeFuture] = nativeFuture
}

// nativePrint writes its argument (strings unquoted) and a newline.
func (rt *Runtime) nativePrint(f *vm.Frame, _ vm.Value, args []vm.Value, ret vm.ReturnTo) vm.Result {
	for _, a := range args {
		s, ok := a.(String)
		if !ok {
			s = String(rt.Render(a))
		}
		fmt.Fprintln(rt.out, string(s))
	}
	return f.AssignReturn(ret, Null)
}

func (rt *Runtime) nativeToString(f *vm.Frame, target vm.Value, _ []vm.Value, ret vm.ReturnTo) vm.Result {
	if s, ok := target.(String); ok {
		return f.AssignReturn(ret, s)
	}
	return f.AssignReturn(ret, String(rt.Render(target)))
}

func nativeFuture(f *vm.Frame, _ vm.Value, _ []vm.Value, ret vm.ReturnTo) vm.Result {
	return f.AssignReturn(ret, NewFuture())
}

// NativeMethod wraps fn as a method taking the named parameters.
func NativeMethod(name string, fn vm.NativeFunc, params ...string) *vm.Method {
	m := &vm.Method{
		Name:      name,
		Signature: vm.Signature{Name: name},
		Native:    fn,
	}
	for _, p := range params {
		m.Params = append(m.Params, vm.Param{Name: p})
		m.Signature.Params = append(m.Signature.Params, "Object")
	}
	return m
}
