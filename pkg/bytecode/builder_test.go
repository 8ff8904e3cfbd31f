package bytecode

import (
	"strings"
	"testing"

	"github.com/go-test/deep"
)

func TestBuilderLinksRelativeOffsets(t *testing.T) {
	b := NewBuilder()
	b.Label("top")
	b.Emit(Var{Op: OpVarI, Type: c0, Value: c1})
	b.EmitJump(CondJump{Op: OpJmpFalse, Arg1: 0}, "done")
	b.Emit(InPlace{Op: OpIPInc, Target: 0, Arg: ArgIgnore, Return: ArgIgnore})
	b.EmitJump(Jump{}, "top")
	b.Label("done")
	b.Emit(Return{Op: OpReturn0})

	code, err := b.Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if got := code[1].(CondJump).Offset; got != 3 {
		t.Errorf("forward offset = %d, want 3", got)
	}
	if got := code[3].(Jump).Offset; got != -3 {
		t.Errorf("backward offset = %d, want -3", got)
	}
	if diff := deep.Equal(Targets(3, code[3]), []int{0}); diff != nil {
		t.Error(diff)
	}
	if diff := deep.Equal(b.Labels(), []string{"top", "done"}); diff != nil {
		t.Error(diff)
	}
}

func TestBuilderLinksMultiSlotInstructions(t *testing.T) {
	b := NewBuilder()
	b.EmitJump(GuardStart{Types: []int{c0, c1}, Names: []int{c2, c2}}, "catchA", "catchB")
	b.EmitJump(JumpInt{Arg: 0}, "catchA", "catchB", "end")
	b.Label("catchA")
	b.Emit(Nop{})
	b.Label("catchB")
	b.Emit(Nop{})
	b.Label("end")
	b.Emit(Return{Op: OpReturn0})

	code, err := b.Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if diff := deep.Equal(code[0].(GuardStart).Catches, []int{2, 3}); diff != nil {
		t.Error(diff)
	}
	ji := code[1].(JumpInt)
	if diff := deep.Equal(ji.Offsets, []int{1, 2}); diff != nil {
		t.Error(diff)
	}
	if ji.Default != 3 {
		t.Errorf("default = %d, want 3", ji.Default)
	}
}

func TestBuilderErrors(t *testing.T) {
	b := NewBuilder()
	b.EmitJump(Jump{}, "nowhere")
	if _, err := b.Link(); err == nil || !strings.Contains(err.Error(), "nowhere") {
		t.Errorf("expected undefined label error, got %v", err)
	}

	b = NewBuilder()
	b.Label("x")
	b.Label("x")
	if _, err := b.Link(); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate label error, got %v", err)
	}

	b = NewBuilder()
	b.EmitJump(Jump{}, "a", "b")
	b.Label("a")
	b.Label("b")
	if _, err := b.Link(); err == nil {
		t.Error("expected slot count mismatch")
	}
}

func TestBuilderDoesNotMutateEmittedCode(t *testing.T) {
	b := NewBuilder()
	b.EmitJump(Jump{}, "end")
	b.Label("end")
	b.Emit(Return{Op: OpReturn0})

	first, err := b.Link()
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.Link()
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(first, second); diff != nil {
		t.Error(diff)
	}
	if b.PC() != 2 {
		t.Errorf("PC = %d, want 2", b.PC())
	}
}
