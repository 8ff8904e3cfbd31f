package image

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-test/deep"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
	"github.com/xtclang/xvm-sub016/vm"
	"github.com/xtclang/xvm-sub016/vm/object"
)

var k = bytecode.ConstantAddress

func encode(t *testing.T, build func(b *bytecode.Builder)) []byte {
	t.Helper()
	b := bytecode.NewBuilder()
	build(b)
	code, err := b.Link()
	require.NoError(t, err)
	data, err := bytecode.EncodeAll(code)
	require.NoError(t, err)
	return data
}

func mustRef(t *testing.T, class, name string, arity int) Constant {
	t.Helper()
	c, err := Ref(class, name, arity)
	require.NoError(t, err)
	return c
}

// sample is a small module: a greeter printing through a native, a point
// with a validating constructor and an outer class with a virtual child.
func sample(t *testing.T) *Image {
	greet := Method{
		Name:    "greet",
		Returns: []string{"String"},
		Constants: []Constant{
			PropertyRef("name"),
			String("Hello, "),
			NativeRef(object.NativePrint),
		},
		Code: encode(t, func(b *bytecode.Builder) {
			b.Emit(bytecode.LocalGet{Property: k(0), Return: 0})
			b.Emit(bytecode.BinaryOp{Op: bytecode.OpGPAdd, Target: k(1), Arg: 0, Return: 1})
			b.Emit(bytecode.Call{Op: bytecode.OpCall10, Function: k(2), Args: []int{1}})
			b.Emit(bytecode.Return{Op: bytecode.OpReturn1, Values: []int{1}})
		}),
	}

	pointCtor := Method{
		Name:      "construct",
		Params:    []Param{{Name: "x", Type: &TypeRef{ID: "Int"}}, {Name: "y", Type: &TypeRef{ID: "Int"}}},
		Constants: []Constant{PropertyRef("x"), PropertyRef("y")},
		Code: encode(t, func(b *bytecode.Builder) {
			b.Emit(bytecode.LocalSet{Property: k(0), Value: 0})
			b.Emit(bytecode.LocalSet{Property: k(1), Value: 1})
			b.Emit(bytecode.Return{Op: bytecode.OpReturn0})
		}),
	}

	makePoint := Method{
		Name: "makePoint",
		Constants: []Constant{
			Type("Point"),
			Sig("construct", []string{"Int", "Int"}),
			Int(3),
			Int(4),
		},
		Code: encode(t, func(b *bytecode.Builder) {
			b.Emit(bytecode.New{Op: bytecode.OpNewN, Type: k(0), Constructor: k(1), Args: []int{k(2), k(3)}, Return: 0})
			b.Emit(bytecode.Return{Op: bytecode.OpReturn1, Values: []int{0}})
		}),
	}

	nodeCtor := Method{
		Name: "construct",
		Code: encode(t, func(b *bytecode.Builder) {
			b.Emit(bytecode.Return{Op: bytecode.OpReturn0})
		}),
	}
	makeNode := Method{
		Name:      "makeNode",
		Constants: []Constant{Type("Node"), Sig("construct", nil)},
		Code: encode(t, func(b *bytecode.Builder) {
			b.Emit(bytecode.NewChild{Op: bytecode.OpNewC0, Parent: bytecode.ArgThis, Type: k(0), Constructor: k(1), Return: 0})
			b.Emit(bytecode.Return{Op: bytecode.OpReturn1, Values: []int{0}})
		}),
	}

	return &Image{
		Module:  "sample",
		Version: Version,
		Classes: []Class{
			{
				Name:       "Greeter",
				Properties: []Property{{Name: "name", Type: &TypeRef{ID: "String"}, Default: &Constant{Kind: ConstString, Text: "world"}}},
				Methods:    []Method{greet},
			},
			{
				Name: "Point",
				Properties: []Property{
					{Name: "x", Required: true},
					{Name: "y", Required: true},
				},
				Constructors: []Method{pointCtor},
				Methods:      []Method{makePoint},
			},
			{
				Name:     "Outer",
				Children: []Class{{Name: "Node", Constructors: []Method{nodeCtor}}},
				Methods:  []Method{makeNode},
			},
		},
		Entries: []string{"Greeter.greet"},
	}
}

func linkSample(t *testing.T) (*Module, *object.Runtime, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	rt, err := object.NewRuntime(object.Options{Out: out})
	require.NoError(t, err)
	mod, err := Link(sample(t), rt)
	require.NoError(t, err)
	return mod, rt, out
}

func runEntry(t *testing.T, mod *Module, rt *object.Runtime, name string) (vm.Value, vm.Value) {
	t.Helper()
	m, target, err := mod.Entry(name)
	require.NoError(t, err)
	cs := vm.NewCallStack(rt, vm.DefaultOptions())
	require.NoError(t, cs.Start(m, target, nil, 1))
	require.NoError(t, cs.Run(context.Background()))
	return cs.Results()[0], target
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	img := sample(t)
	data, err := Encode(img)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	if diff := deep.Equal(img, got); diff != nil {
		t.Error(diff)
	}

	again, err := Encode(got)
	require.NoError(t, err)
	assert.Equal(t, data, again, "canonical encoding is deterministic")
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x00})
	assert.Error(t, err)

	data, err := encMode.Marshal(&Image{Module: "future", Version: Version + 1})
	require.NoError(t, err)
	_, err = Decode(data)
	assert.ErrorContains(t, err, "unsupported version")
}

func TestReadWriteFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	img := sample(t)
	require.NoError(t, WriteFile(fs, "/build/sample"+Extension, img))

	got, err := ReadFile(fs, "/build/sample"+Extension)
	require.NoError(t, err)
	assert.Equal(t, "sample", got.Module)
	assert.Len(t, got.Classes, 3)

	_, err = ReadFile(fs, "/build/missing"+Extension)
	assert.Error(t, err)
}

func TestLinkAndRun(t *testing.T) {
	mod, rt, out := linkSample(t)
	assert.Equal(t, []string{"Greeter.greet"}, mod.Entries())

	v, _ := runEntry(t, mod, rt, "Greeter.greet")
	assert.Equal(t, object.String("Hello, world"), v)
	assert.Equal(t, "Hello, world\n", out.String())

	v, _ = runEntry(t, mod, rt, "Point.makePoint")
	assert.Equal(t, "Point{x=3, y=4}", rt.Render(v))
}

func TestLinkVirtualChild(t *testing.T) {
	mod, rt, _ := linkSample(t)
	node, ok := mod.Class("Outer.Node")
	require.True(t, ok)

	v, outer := runEntry(t, mod, rt, "Outer.makeNode")
	child, ok := v.(*object.Object)
	require.True(t, ok)
	assert.Same(t, node, child.Class())
	assert.Same(t, outer, child.Parent())
}

func TestEntryErrors(t *testing.T) {
	mod, _, _ := linkSample(t)
	for _, name := range []string{"greet", "Nope.run", "Greeter.nope", "Greeter."} {
		_, _, err := mod.Entry(name)
		assert.Error(t, err, name)
	}
}

func TestLinkErrors(t *testing.T) {
	body := encode(t, func(b *bytecode.Builder) {
		b.Emit(bytecode.Return{Op: bytecode.OpReturn0})
	})

	tests := []struct {
		name    string
		classes []Class
		want    string
	}{
		{
			name:    "unknown super",
			classes: []Class{{Name: "A", Super: "Missing"}},
			want:    `unknown class "Missing"`,
		},
		{
			name:    "unknown native",
			classes: []Class{{Name: "A", Methods: []Method{{Name: "run", Native: "nope"}}}},
			want:    `unknown native "nope"`,
		},
		{
			name:    "no body",
			classes: []Class{{Name: "A", Methods: []Method{{Name: "run"}}}},
			want:    "no body",
		},
		{
			name: "unresolved method",
			classes: []Class{{Name: "A", Methods: []Method{{
				Name:      "run",
				Code:      body,
				Constants: []Constant{mustRef(t, "B", "run", 0)},
			}}}},
			want: "unresolved method B.run/0",
		},
		{
			name:    "duplicate class",
			classes: []Class{{Name: "A"}, {Name: "A"}},
			want:    `duplicate class "A"`,
		},
		{
			name:    "bad code",
			classes: []Class{{Name: "A", Methods: []Method{{Name: "run", Code: []byte{0xff, 0xff}}}}},
			want:    "A.run/0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := object.NewRuntime(object.Options{Out: &bytes.Buffer{}})
			require.NoError(t, err)
			_, err = Link(&Image{Module: "bad", Version: Version, Classes: tt.classes}, rt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLinkResolvesForwardReferences(t *testing.T) {
	callB := Method{
		Name:      "run",
		Returns:   []string{"Int"},
		Constants: []Constant{mustRef(t, "B", "answer", 0)},
		Code: encode(t, func(b *bytecode.Builder) {
			b.Emit(bytecode.Call{Op: bytecode.OpCall01, Function: k(0), Returns: []int{0}})
			b.Emit(bytecode.Return{Op: bytecode.OpReturn1, Values: []int{0}})
		}),
	}
	answer := Method{
		Name:      "answer",
		Constants: []Constant{Int(42)},
		Code: encode(t, func(b *bytecode.Builder) {
			b.Emit(bytecode.Return{Op: bytecode.OpReturn1, Values: []int{k(0)}})
		}),
	}
	img := &Image{
		Module:  "fwd",
		Version: Version,
		Classes: []Class{
			{Name: "A", Super: "B", Methods: []Method{callB}},
			{Name: "B", Methods: []Method{answer}},
		},
	}

	rt, err := object.NewRuntime(object.Options{Out: &bytes.Buffer{}})
	require.NoError(t, err)
	mod, err := Link(img, rt)
	require.NoError(t, err)

	a, ok := mod.Class("A")
	require.True(t, ok)
	assert.Equal(t, "B", a.Super.Name)

	v, _ := runEntry(t, mod, rt, "A.run")
	assert.Equal(t, object.Int(42), v)
}

func TestVerify(t *testing.T) {
	r := Verify(sample(t))
	assert.True(t, r.OK(), "%v", r.Problems)
	assert.Equal(t, 4, r.Classes)
	assert.Equal(t, 5, r.Bodies)
	assert.Equal(t, 12, r.Instructions)

	bad := &Image{
		Module:  "bad",
		Version: Version,
		Classes: []Class{{
			Name: "A",
			Methods: []Method{
				{
					Name: "escape",
					Code: encode(t, func(b *bytecode.Builder) {
						b.Emit(bytecode.Jump{Offset: 5})
					}),
				},
				{
					Name:      "dangling",
					Constants: []Constant{mustRef(t, "A", "missing", 0)},
					Code: encode(t, func(b *bytecode.Builder) {
						b.Emit(bytecode.Return{Op: bytecode.OpReturn0})
					}),
				},
				{Name: "empty"},
			},
		}},
	}
	r = Verify(bad)
	require.Len(t, r.Problems, 3)
	assert.Contains(t, r.Problems[0], "jumps to 5")
	assert.Contains(t, r.Problems[1], "unresolved method A.missing/0")
	assert.Contains(t, r.Problems[2], "no body")
}

func TestConstantString(t *testing.T) {
	tests := []struct {
		c    Constant
		want string
	}{
		{Null(), "null"},
		{Bool(true), "true"},
		{Int(-7), "-7"},
		{String("hi"), `"hi"`},
		{Tuple(Int(1), String("a")), `(1, "a")`},
		{Text("msg"), `text "msg"`},
		{Type("List", TypeRef{ID: "Int"}), "type List<Int>"},
		{Sig("add", []string{"Int", "Int"}, "Int"), "signature add(Int, Int) -> Int"},
		{PropertyRef("x"), "property x"},
		{NativeRef(object.NativePrint), "method native console.print"},
		{mustRef(t, "Outer.Node", "run", 2), "method Outer.Node.run/2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.c.String())
	}
}

func TestRefArityOverflow(t *testing.T) {
	_, err := Ref("A", "wide", 256)
	assert.Error(t, err)
	_, err = Ref("A", "negative", -1)
	assert.Error(t, err)
}
