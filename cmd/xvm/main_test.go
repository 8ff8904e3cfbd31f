package main

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
	"github.com/xtclang/xvm-sub016/vm/image"
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

// testImage has an entry for each outcome: a value, an exception and an
// engine fault.
func testImage(t *testing.T) *image.Image {
	answer := image.Method{
		Name:      "answer",
		Constants: []image.Constant{image.Int(6), image.Int(7)},
		Code: encode(t, func(b *bytecode.Builder) {
			b.Emit(bytecode.BinaryOp{Op: bytecode.OpGPMul, Target: k(0), Arg: k(1), Return: 0})
			b.Emit(bytecode.Return{Op: bytecode.OpReturn1, Values: []int{0}})
		}),
	}
	greet := image.Method{
		Name:      "greet",
		Constants: []image.Constant{image.String("hello"), image.NativeRef("console.print")},
		Code: encode(t, func(b *bytecode.Builder) {
			b.Emit(bytecode.Call{Op: bytecode.OpCall10, Function: k(1), Args: []int{k(0)}})
			b.Emit(bytecode.Return{Op: bytecode.OpReturn0})
		}),
	}
	divide := image.Method{
		Name:      "divide",
		Constants: []image.Constant{image.Int(1), image.Int(0)},
		Code: encode(t, func(b *bytecode.Builder) {
			b.Emit(bytecode.BinaryOp{Op: bytecode.OpGPDiv, Target: k(0), Arg: k(1), Return: 0})
			b.Emit(bytecode.Return{Op: bytecode.OpReturn1, Values: []int{0}})
		}),
	}
	broken := image.Method{
		Name: "broken",
		Code: encode(t, func(b *bytecode.Builder) {
			b.Emit(bytecode.BinaryOp{Op: bytecode.OpGPAdd, Target: 5, Arg: 5, Return: 0})
			b.Emit(bytecode.Return{Op: bytecode.OpReturn1, Values: []int{0}})
		}),
	}
	return &image.Image{
		Module:  "app",
		Version: image.Version,
		Classes: []image.Class{
			{Name: "Main", Methods: []image.Method{answer, greet, divide, broken}},
			{Name: "Point", Properties: []image.Property{{Name: "x", Type: &image.TypeRef{ID: "Int"}, Required: true}}},
		},
		Entries: []string{"Main.answer"},
	}
}

type harness struct {
	app    *app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T, img *image.Image) *harness {
	t.Helper()
	h := &harness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.app = &app{fs: afero.NewMemMapFs(), stdout: h.stdout, stderr: h.stderr}
	require.NoError(t, image.WriteFile(h.app.fs, "/work/build/app"+image.Extension, img))
	return h
}

func (h *harness) run(args ...string) int {
	h.stdout.Reset()
	h.stderr.Reset()
	return h.app.main(args)
}

func TestRunDefaultEntry(t *testing.T) {
	h := newHarness(t, testImage(t))
	code := h.run("run", "/work/build/app.xvmi")
	assert.Equal(t, exitOK, code, h.stderr.String())
	assert.Equal(t, "Main.answer => 42\n", h.stdout.String())
}

func TestRunSeveralEntries(t *testing.T) {
	h := newHarness(t, testImage(t))
	code := h.run("run", "-e", "Main.greet", "-e", "Main.answer", "/work/build/app.xvmi")
	assert.Equal(t, exitOK, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "hello\n")
	assert.Contains(t, h.stdout.String(), "Main.answer => 42\n")
	assert.NotContains(t, h.stdout.String(), "Main.greet =>")
}

func TestRunException(t *testing.T) {
	h := newHarness(t, testImage(t))
	code := h.run("run", "-e", "Main.divide", "-e", "Main.answer", "/work/build/app.xvmi")
	assert.Equal(t, exitException, code)
	assert.Contains(t, h.stderr.String(), "Unhandled exception in Main.divide")
	assert.Contains(t, h.stderr.String(), "Division by zero")
	assert.Contains(t, h.stderr.String(), "\tat ")
	assert.Contains(t, h.stdout.String(), "Main.answer => 42")
}

func TestRunFault(t *testing.T) {
	h := newHarness(t, testImage(t))
	code := h.run("run", "-e", "Main.broken", "-e", "Main.divide", "/work/build/app.xvmi")
	assert.Equal(t, exitFault, code)
	assert.Contains(t, h.stderr.String(), "Main.broken")
	assert.Contains(t, h.stderr.String(), "GP_ADD")
}

func TestRunErrors(t *testing.T) {
	h := newHarness(t, testImage(t))
	assert.Equal(t, exitException, h.run("run", "-e", "Main.nope", "/work/build/app.xvmi"))
	assert.Contains(t, h.stderr.String(), "Main.nope")

	assert.Equal(t, exitException, h.run("run", "/work/missing.xvmi"))
	assert.Contains(t, h.stderr.String(), "not found")

	assert.Equal(t, exitException, h.run("run"))
	assert.Contains(t, h.stderr.String(), "expected one image")

	assert.Equal(t, exitException, h.run("run", "--trace-op", "BOGUS", "/work/build/app.xvmi"))
	assert.Contains(t, h.stderr.String(), `unknown opcode "BOGUS"`)

	assert.Equal(t, exitException, h.run("frobnicate"))
	assert.Contains(t, h.stderr.String(), `unknown command "frobnicate"`)
}

func TestRunWithConfig(t *testing.T) {
	h := newHarness(t, testImage(t))
	require.NoError(t, afero.WriteFile(h.app.fs, "/work/xvm.toml", []byte(`
[engine]
op_budget = 1
trace = ["GP_MUL"]

[metrics]
enabled = true
namespace = "xvmtest"

[image]
path = ["build"]

[run]
entries = ["Main.answer", "Main.greet"]
`), 0o644))

	code := h.run("run", "--config", "/work/xvm.toml", "app")
	assert.Equal(t, exitOK, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Main.answer => 42")
	assert.Contains(t, h.stdout.String(), "hello")

	require.NotNil(t, h.app.registry)
	families, err := h.app.registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "xvmtest_instructions_total")
	assert.Contains(t, names, "xvmtest_frames_total")
}

func TestDisasm(t *testing.T) {
	h := newHarness(t, testImage(t))
	code := h.run("disasm", "/work/build/app.xvmi")
	require.Equal(t, exitOK, code, h.stderr.String())
	out := h.stdout.String()
	assert.Contains(t, out, "; class Main\n")
	assert.Contains(t, out, "; === Main.answer/0 ===")
	assert.Contains(t, out, "GP_MUL")
	assert.Contains(t, out, `method native console.print`)
	assert.Contains(t, out, "; class Point\n;   property Int x (required)\n")

	code = h.run("disasm", "--class", "Point", "/work/build/app.xvmi")
	require.Equal(t, exitOK, code)
	assert.NotContains(t, h.stdout.String(), "Main")

	assert.Equal(t, exitException, h.run("disasm", "--class", "Nope", "/work/build/app.xvmi"))
	assert.Contains(t, h.stderr.String(), `no class "Nope"`)
}

func TestVerify(t *testing.T) {
	h := newHarness(t, testImage(t))
	code := h.run("verify", "/work/build/app.xvmi")
	assert.Equal(t, exitOK, code, h.stderr.String())
	assert.Equal(t, "app: 2 classes, 4 bodies, 8 instructions, 0 problems\n", h.stdout.String())

	bad := testImage(t)
	bad.Classes[0].Methods = append(bad.Classes[0].Methods, image.Method{
		Name: "escape",
		Code: encode(t, func(b *bytecode.Builder) {
			b.Emit(bytecode.Jump{Offset: -3})
		}),
	})
	require.NoError(t, image.WriteFile(h.app.fs, "/work/bad.xvmi", bad))
	assert.Equal(t, exitException, h.run("verify", "/work/bad.xvmi"))
	assert.Contains(t, h.stderr.String(), "Main.escape/0")
	assert.Contains(t, h.stdout.String(), "1 problems")
}

func TestHelp(t *testing.T) {
	h := newHarness(t, testImage(t))
	assert.Equal(t, exitOK, h.run("help"))
	assert.Contains(t, h.stderr.String(), "Usage: xvm")
	assert.Equal(t, exitOK, h.run("run", "--help"))
	assert.Contains(t, h.stderr.String(), "--entry")
}
