package bytecode

import (
	"strings"
	"testing"
)

func TestDisassembleEmpty(t *testing.T) {
	output := Disassemble("", nil)
	if !strings.Contains(output, "0 instructions") {
		t.Errorf("unexpected listing %q", output)
	}
}

func TestDisassembleWithName(t *testing.T) {
	output := Disassemble("Point.add", []Instruction{Return{Op: OpReturn0}})
	if !strings.Contains(output, "=== Point.add ===") {
		t.Error("missing name header")
	}
	if !strings.Contains(output, "0000  RETURN_0 ()") {
		t.Errorf("missing return line in %q", output)
	}
}

func TestFormatInstruction(t *testing.T) {
	tests := []struct {
		pc   int
		ins  Instruction
		want string
	}{
		{0, Nop{}, "NOP"},
		{5, Jump{Offset: -2}, "JMP -2 (-> 0003)"},
		{1, CondJump{Op: OpJmpEq, Arg1: 0, Arg2: c1, Offset: 4}, "JMP_EQ r0, #1 +4 (-> 0005)"},
		{0, Call{Op: OpCall11, Function: c0, Args: []int{1}, Returns: []int{2}}, "CALL_11 #0 (r1) -> (r2)"},
		{0, Invoke{Op: OpNvok01, Target: ArgThis, Method: c2, Returns: []int{0}}, "NVOK_01 this.#2 () -> (r0)"},
		{0, Move{From: c0, To: 3}, "MOV #0 -> r3"},
		{0, Var{Op: OpVarIN, Type: c0, Name: c1, Value: 4}, "VAR_IN #0 #1 = r4"},
		{0, Test{Op: OpIsType, Arg1: 0, Type: c0, Return: 1}, "IS_TYPE r0 : #0 -> r1"},
		{0, InPlace{Op: OpIPAdd, Target: 0, Arg: c1, Return: ArgIgnore}, "IP_ADD r0, #1"},
		{0, PropertyInPlace{Op: OpPIPIncA, Target: 0, Property: c1, Return: 2}, "PIP_INCA r0.#1 -> r2"},
		{0, Assert{Op: OpAssertV, Cond: 0, Message: c1, Values: []int{1, 2}}, "ASSERT_V r0 #1 (r1, r2)"},
	}
	for _, tt := range tests {
		if got := FormatInstruction(tt.pc, tt.ins); got != tt.want {
			t.Errorf("FormatInstruction(%s) = %q, want %q", tt.ins.Opcode(), got, tt.want)
		}
	}
}

func TestDisassembleToLines(t *testing.T) {
	lines := DisassembleToLines([]Instruction{
		Enter{},
		GuardAll{Finally: 2},
		FinallyStart{},
		FinallyEnd{},
	})
	if len(lines) != 4 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[1] != "0001  GUARD_ALL +2 (-> 0003)" {
		t.Errorf("line 1 = %q", lines[1])
	}
}
