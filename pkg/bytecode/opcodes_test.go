package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info, ok := GetOpcodeInfo(op)
		if !ok || info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestOpcodeValues(t *testing.T) {
	tests := []struct {
		op   Opcode
		want byte
	}{
		{OpNop, 0x00},
		{OpGuard, 0x07},
		{OpThrow, 0x0E},
		{OpCall00, 0x10},
		{OpNvok00, 0x20},
		{OpMBind, 0x30},
		{OpReturn0, 0x4C},
		{OpVar, 0x50},
		{OpMov, 0x60},
		{OpJmp, 0x79},
		{OpAssert, 0x8F},
		{OpGPAdd, 0x92},
		{OpMIPXor, 0xF1},
	}
	for _, tt := range tests {
		if byte(tt.op) != tt.want {
			t.Errorf("%s = 0x%02X, want 0x%02X", tt.op, byte(tt.op), tt.want)
		}
	}
}

func TestReservedOpcodesUndefined(t *testing.T) {
	for _, b := range []byte{0x0F, 0x32, 0x5D, 0x66, 0xF2, 0xFF} {
		if _, ok := GetOpcodeInfo(Opcode(b)); ok {
			t.Errorf("0x%02X should be reserved", b)
		}
		if Opcode(b).Supported() {
			t.Errorf("0x%02X should not be supported", b)
		}
	}
}

func TestOpcodeNamesUnique(t *testing.T) {
	seen := make(map[string]Opcode)
	for _, op := range AllOpcodes() {
		name := op.String()
		if prev, ok := seen[name]; ok {
			t.Errorf("%s used by 0x%02X and 0x%02X", name, byte(prev), byte(op))
		}
		seen[name] = op
	}
	if len(seen) != OpcodeCount() {
		t.Errorf("%d names for %d opcodes", len(seen), OpcodeCount())
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpNop, "NOP"},
		{OpGuardAll, "GUARD_ALL"},
		{OpFinallyEnd, "FINALLY_END"},
		{OpCall1T, "CALL_1T"},
		{OpNvokNN, "NVOK_NN"},
		{OpNewC1, "NEWC_1"},
		{OpReturnT, "RETURN_T"},
		{OpJmpValN, "JMP_VAL_N"},
		{OpIPIncA, "IP_INCA"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	if got := Opcode(0xFE).String(); got != "UNKNOWN(0xFE)" {
		t.Errorf("got %q", got)
	}
}

func TestParseOpcode(t *testing.T) {
	tests := []struct {
		name string
		want Opcode
	}{
		{"JMP_TRUE", OpJmpTrue},
		{"jmp_true", OpJmpTrue},
		{"jmpTrue", OpJmpTrue},
		{"jmp-true", OpJmpTrue},
		{" call_00 ", OpCall00},
		{"guardAll", OpGuardAll},
		{"FinallyEnd", OpFinallyEnd},
	}
	for _, tt := range tests {
		got, ok := ParseOpcode(tt.name)
		if !ok || got != tt.want {
			t.Errorf("ParseOpcode(%q) = %s, %v; want %s", tt.name, got, ok, tt.want)
		}
	}
	if _, ok := ParseOpcode("bogus"); ok {
		t.Error("ParseOpcode accepted an unknown mnemonic")
	}
}

func TestCallShape(t *testing.T) {
	tests := []struct {
		op         Opcode
		args, rets Arity
	}{
		{OpCall00, Arity0, Arity0},
		{OpCall1N, Arity1, ArityN},
		{OpCallT1, ArityT, Arity1},
		{OpNvok01, Arity0, Arity1},
		{OpNvokNT, ArityN, ArityT},
	}
	for _, tt := range tests {
		args, rets := CallShape(tt.op)
		if args != tt.args || rets != tt.rets {
			t.Errorf("CallShape(%s) = %s%s, want %s%s", tt.op, args, rets, tt.args, tt.rets)
		}
		if op := CallOpcode(tt.op >= OpNvok00, tt.args, tt.rets); op != tt.op {
			t.Errorf("CallOpcode(%s%s) = %s, want %s", tt.args, tt.rets, op, tt.op)
		}
	}
}

func TestArgShape(t *testing.T) {
	tests := []struct {
		op   Opcode
		want Arity
	}{
		{OpReturn0, Arity0},
		{OpReturnN, ArityN},
		{OpNew1, Arity1},
		{OpNewCT, ArityT},
		{OpConstrN, ArityN},
	}
	for _, tt := range tests {
		if got := ArgShape(tt.op); got != tt.want {
			t.Errorf("ArgShape(%s) = %s, want %s", tt.op, got, tt.want)
		}
	}
}

func TestUnimplementedOpcodesUnsupported(t *testing.T) {
	for _, op := range []Opcode{OpGPDivRem, OpFBind, OpNewG0, OpVarC, OpCmp, OpMGet} {
		if op.Supported() {
			t.Errorf("%s should be unsupported", op)
		}
		if op.Form() != FormUnsupported {
			t.Errorf("%s has form %d", op, op.Form())
		}
	}
}
