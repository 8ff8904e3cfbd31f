package bytecode

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestPackedIntKnownEncodings(t *testing.T) {
	tests := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{-1, []byte{0xFF}},
		{-64, []byte{0xC0}},
		{128, []byte{0x80, 0x80}},
		{-65, []byte{0x9F, 0xBF}},
		{4095, []byte{0x8F, 0xFF}},
		{-4096, []byte{0x90, 0x00}},
		{4096, []byte{0xA1, 0x10, 0x00}},
		{-4097, []byte{0xA1, 0xEF, 0xFF}},
	}

	for _, tt := range tests {
		got := AppendPackedInt(nil, tt.v)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("AppendPackedInt(%d) = % X, want % X", tt.v, got, tt.want)
		}
		if PackedSize(tt.v) != len(tt.want) {
			t.Errorf("PackedSize(%d) = %d, want %d", tt.v, PackedSize(tt.v), len(tt.want))
		}
		if PackedLength(got) != len(tt.want) {
			t.Errorf("PackedLength(% X) = %d, want %d", got, PackedLength(got), len(tt.want))
		}
	}
}

func TestPackedIntRoundTrip(t *testing.T) {
	values := []int64{
		0, 1, -1, 63, -63, 64, -64, 65, -65, 126, 127, 128, -128, 255, 256,
		4095, -4096, 4096, -4097, 1 << 20, -(1 << 20),
		math.MaxInt32, math.MinInt32, math.MaxInt32 + 1,
		math.MaxInt64, math.MinInt64,
	}

	var buf bytes.Buffer
	for _, v := range values {
		if err := WritePackedInt(&buf, v); err != nil {
			t.Fatalf("WritePackedInt(%d): %v", v, err)
		}
	}

	r := bytes.NewReader(buf.Bytes())
	for _, want := range values {
		got, err := ReadPackedInt(r)
		if err != nil {
			t.Fatalf("ReadPackedInt(%d): %v", want, err)
		}
		if got != want {
			t.Errorf("ReadPackedInt = %d, want %d", got, want)
		}
	}
	if r.Len() != 0 {
		t.Errorf("%d trailing bytes", r.Len())
	}
}

func TestPackedIntLargeSizes(t *testing.T) {
	for size := 2; size <= 8; size++ {
		v := int64(1) << (uint(size)*8 - 2)
		data := AppendPackedInt(nil, v)
		if len(data) != size+1 {
			t.Errorf("%d packs into %d bytes, want %d", v, len(data), size+1)
		}
		if data[0] != 0xA0|byte(size-1) {
			t.Errorf("%d has header 0x%02X", v, data[0])
		}
	}
}

func TestPackedIntHugeForm(t *testing.T) {
	// 0xA0, then the length packed as a small integer, then the bytes
	data := []byte{0xA0, 0x02, 0x10, 0x00}

	v, err := ReadPackedInt(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadPackedInt: %v", err)
	}
	if v != 4096 {
		t.Errorf("got %d, want 4096", v)
	}
	if PackedLength(data) != 4 {
		t.Errorf("PackedLength = %d, want 4", PackedLength(data))
	}
}

func TestPackedIntHugeFormRejectsBadLength(t *testing.T) {
	for _, data := range [][]byte{
		{0xA0, 0x00},
		{0xA0, 0x09, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{0xA0, 0xA0, 0x01, 0x01},
	} {
		if _, err := ReadPackedInt(bytes.NewReader(data)); err == nil {
			t.Errorf("ReadPackedInt(% X) succeeded", data)
		}
	}
}

func TestPackedIntTruncated(t *testing.T) {
	for _, data := range [][]byte{
		{},
		{0x80},
		{0xA1, 0x10},
		{0xA0},
	} {
		if _, err := ReadPackedInt(bytes.NewReader(data)); err == nil {
			t.Errorf("ReadPackedInt(% X) succeeded", data)
		}
	}
	if PackedLength(nil) != 0 {
		t.Error("PackedLength(nil) should be 0")
	}
}

func TestReadOperandRange(t *testing.T) {
	data := AppendPackedInt(nil, math.MaxInt32+1)
	_, err := ReadOperand(bytes.NewReader(data))
	if !errors.Is(err, ErrOperandRange) {
		t.Errorf("expected ErrOperandRange, got %v", err)
	}

	data = AppendPackedInt(nil, int64(ConstantAddress(7)))
	op, err := ReadOperand(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadOperand: %v", err)
	}
	if !IsConstant(op) || ConstantIndex(op) != 7 {
		t.Errorf("operand %d does not address constant 7", op)
	}
}

func TestOperandString(t *testing.T) {
	tests := []struct {
		op   int
		want string
	}{
		{0, "r0"},
		{12, "r12"},
		{ArgIgnore, "_"},
		{ArgThis, "this"},
		{ArgSuper, "super"},
		{ConstantOffset, "#0"},
		{ConstantAddress(5), "#5"},
	}
	for _, tt := range tests {
		if got := OperandString(tt.op); got != tt.want {
			t.Errorf("OperandString(%d) = %q, want %q", tt.op, got, tt.want)
		}
	}
	if IsRegister(ArgStack) || !IsRegister(0) {
		t.Error("IsRegister misclassifies operands")
	}
}
