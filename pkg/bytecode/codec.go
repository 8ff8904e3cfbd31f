package bytecode

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

// ErrUnsupportedOpcode is returned when decoding or encoding an opcode
// with no instruction variant.
var ErrUnsupportedOpcode = errors.New("unsupported opcode")

// Encode serializes one instruction: the opcode byte followed by its
// operands as packed integers, in declared order.
func Encode(ins Instruction) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := WriteInstruction(buf, ins); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.B...), nil
}

// EncodeAll serializes a method body.
func EncodeAll(code []Instruction) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for pc, ins := range code {
		if err := WriteInstruction(buf, ins); err != nil {
			return nil, errors.Wrapf(err, "encode instruction %d", pc)
		}
	}
	return append([]byte(nil), buf.B...), nil
}

// WriteInstruction writes one instruction to w.
func WriteInstruction(w io.ByteWriter, ins Instruction) error {
	op := ins.Opcode()
	if !op.Supported() {
		return errors.Wrapf(ErrUnsupportedOpcode, "%s", op)
	}
	e := &encoder{w: w}
	e.err = w.WriteByte(byte(op))

	switch ins := ins.(type) {
	case Nop, Enter, Exit, FinallyStart, FinallyEnd:
	case Line:
		if ins.Op == OpLineN {
			e.int(ins.Delta)
		}
	case GuardStart:
		if len(ins.Types) != len(ins.Names) || len(ins.Types) != len(ins.Catches) {
			return errors.New("GUARD: clause lists differ in length")
		}
		e.int(len(ins.Types))
		e.ints(ins.Types)
		e.ints(ins.Names)
		e.ints(ins.Catches)
	case GuardEnd:
		e.int(ins.Offset)
	case CatchStart:
		e.int(ins.Type)
		e.int(ins.Name)
	case CatchEnd:
		e.int(ins.Offset)
	case GuardAll:
		e.int(ins.Finally)
	case Throw:
		e.int(ins.Value)
	case Call:
		args, rets := CallShape(ins.Op)
		e.int(ins.Function)
		e.list(args, ins.Args)
		e.list(rets, ins.Returns)
	case Invoke:
		args, rets := CallShape(ins.Op)
		e.int(ins.Target)
		e.int(ins.Method)
		e.list(args, ins.Args)
		e.list(rets, ins.Returns)
	case MethodBind:
		e.int(ins.Target)
		e.int(ins.Method)
		e.int(ins.Return)
	case Construct:
		e.int(ins.Constructor)
		e.list(ArgShape(ins.Op), ins.Args)
	case New:
		e.int(ins.Type)
		e.int(ins.Constructor)
		e.list(ArgShape(ins.Op), ins.Args)
		e.int(ins.Return)
	case NewChild:
		e.int(ins.Parent)
		e.int(ins.Type)
		e.int(ins.Constructor)
		e.list(ArgShape(ins.Op), ins.Args)
		e.int(ins.Return)
	case Return:
		e.list(ArgShape(ins.Op), ins.Values)
	case Var:
		e.int(ins.Type)
		if VarHasName(ins.Op) {
			e.int(ins.Name)
		}
		switch {
		case ins.Op == OpVarT || ins.Op == OpVarTN:
			e.int(len(ins.Values))
			e.ints(ins.Values)
		case VarHasValue(ins.Op):
			e.int(ins.Value)
		}
	case Move:
		e.int(ins.From)
		e.int(ins.To)
	case Test:
		e.int(ins.Arg1)
		switch TestKindOf(ins.Op) {
		case TestBinary:
			e.int(ins.Arg2)
		case TestType:
			e.int(ins.Type)
		}
		e.int(ins.Return)
	case Jump:
		e.int(ins.Offset)
	case CondJump:
		e.int(ins.Arg1)
		switch TestKindOf(ins.Op) {
		case TestBinary:
			e.int(ins.Arg2)
		case TestType:
			e.int(ins.Type)
		}
		e.int(ins.Offset)
	case JumpInt:
		e.int(ins.Arg)
		e.int(len(ins.Offsets))
		e.ints(ins.Offsets)
		e.int(ins.Default)
	case JumpVal:
		if len(ins.Cases) != len(ins.Offsets) {
			return errors.Errorf("%s: %d cases but %d offsets", ins.Op, len(ins.Cases), len(ins.Offsets))
		}
		if ins.Op == OpJmpValN {
			e.int(len(ins.Args))
			e.ints(ins.Args)
		} else {
			if len(ins.Args) != 1 {
				return errors.Errorf("JMP_VAL takes one argument, got %d", len(ins.Args))
			}
			e.int(ins.Args[0])
		}
		e.int(len(ins.Cases))
		for i, c := range ins.Cases {
			if len(c) != len(ins.Args) {
				return errors.Errorf("%s: case %d has %d constants for %d arguments", ins.Op, i, len(c), len(ins.Args))
			}
			e.ints(c)
			e.int(ins.Offsets[i])
		}
		e.int(ins.Default)
	case Assert:
		e.int(ins.Cond)
		if ins.Op != OpAssert {
			e.int(ins.Message)
		}
		if ins.Op == OpAssertV {
			e.int(len(ins.Values))
			e.ints(ins.Values)
		}
	case BinaryOp:
		e.int(ins.Target)
		e.int(ins.Arg)
		e.int(ins.Return)
	case UnaryOp:
		e.int(ins.Target)
		e.int(ins.Return)
	case LocalGet:
		e.int(ins.Property)
		e.int(ins.Return)
	case LocalSet:
		e.int(ins.Property)
		e.int(ins.Value)
	case PropertyGet:
		e.int(ins.Target)
		e.int(ins.Property)
		e.int(ins.Return)
	case PropertySet:
		e.int(ins.Target)
		e.int(ins.Property)
		e.int(ins.Value)
	case InPlace:
		e.int(ins.Target)
		e.inPlaceTail(ins.Op, ins.Arg, ins.Return)
	case PropertyInPlace:
		e.int(ins.Target)
		e.int(ins.Property)
		e.inPlaceTail(ins.Op, ins.Arg, ins.Return)
	default:
		return errors.Wrapf(ErrUnsupportedOpcode, "%s", op)
	}
	return e.err
}

// Decode reads one instruction from r.
func Decode(r io.ByteReader) (Instruction, error) {
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	op := Opcode(b)
	d := &decoder{r: r}
	var ins Instruction

	switch op.Form() {
	case FormNop:
		ins = Nop{}
	case FormLine:
		delta := int(op-OpLine1) + 1
		if op == OpLineN {
			delta = d.int()
		}
		ins = Line{Op: op, Delta: delta}
	case FormEnter:
		ins = Enter{}
	case FormExit:
		ins = Exit{}
	case FormGuard:
		n := d.count()
		ins = GuardStart{Types: d.ints(n), Names: d.ints(n), Catches: d.ints(n)}
	case FormGuardEnd:
		ins = GuardEnd{Offset: d.int()}
	case FormCatch:
		ins = CatchStart{Type: d.int(), Name: d.int()}
	case FormCatchEnd:
		ins = CatchEnd{Offset: d.int()}
	case FormGuardAll:
		ins = GuardAll{Finally: d.int()}
	case FormFinally:
		ins = FinallyStart{}
	case FormFinallyEnd:
		ins = FinallyEnd{}
	case FormThrow:
		ins = Throw{Value: d.int()}
	case FormCall:
		args, rets := CallShape(op)
		c := Call{Op: op, Function: d.int()}
		c.Args = d.list(args)
		c.Returns = d.list(rets)
		ins = c
	case FormInvoke:
		args, rets := CallShape(op)
		c := Invoke{Op: op, Target: d.int(), Method: d.int()}
		c.Args = d.list(args)
		c.Returns = d.list(rets)
		ins = c
	case FormMethodBind:
		ins = MethodBind{Target: d.int(), Method: d.int(), Return: d.int()}
	case FormConstruct:
		c := Construct{Op: op, Constructor: d.int()}
		c.Args = d.list(ArgShape(op))
		ins = c
	case FormNew:
		c := New{Op: op, Type: d.int(), Constructor: d.int()}
		c.Args = d.list(ArgShape(op))
		c.Return = d.int()
		ins = c
	case FormNewChild:
		c := NewChild{Op: op, Parent: d.int(), Type: d.int(), Constructor: d.int()}
		c.Args = d.list(ArgShape(op))
		c.Return = d.int()
		ins = c
	case FormReturn:
		ins = Return{Op: op, Values: d.list(ArgShape(op))}
	case FormVar:
		v := Var{Op: op, Type: d.int()}
		if VarHasName(op) {
			v.Name = d.int()
		}
		switch {
		case op == OpVarT || op == OpVarTN:
			v.Values = d.ints(d.count())
		case VarHasValue(op):
			v.Value = d.int()
		}
		ins = v
	case FormMove:
		ins = Move{From: d.int(), To: d.int()}
	case FormTest:
		t := Test{Op: op, Arg1: d.int()}
		switch TestKindOf(op) {
		case TestBinary:
			t.Arg2 = d.int()
		case TestType:
			t.Type = d.int()
		}
		t.Return = d.int()
		ins = t
	case FormJump:
		ins = Jump{Offset: d.int()}
	case FormCondJump:
		j := CondJump{Op: op, Arg1: d.int()}
		switch TestKindOf(op) {
		case TestBinary:
			j.Arg2 = d.int()
		case TestType:
			j.Type = d.int()
		}
		j.Offset = d.int()
		ins = j
	case FormJumpInt:
		j := JumpInt{Arg: d.int()}
		j.Offsets = d.ints(d.count())
		j.Default = d.int()
		ins = j
	case FormJumpVal:
		j := JumpVal{Op: op}
		if op == OpJmpValN {
			j.Args = d.ints(d.count())
		} else {
			j.Args = []int{d.int()}
		}
		n := d.count()
		for i := 0; i < n && d.err == nil; i++ {
			j.Cases = append(j.Cases, d.ints(len(j.Args)))
			j.Offsets = append(j.Offsets, d.int())
		}
		j.Default = d.int()
		ins = j
	case FormAssert:
		a := Assert{Op: op, Cond: d.int()}
		if op != OpAssert {
			a.Message = d.int()
		}
		if op == OpAssertV {
			a.Values = d.ints(d.count())
		}
		ins = a
	case FormBinary:
		ins = BinaryOp{Op: op, Target: d.int(), Arg: d.int(), Return: d.int()}
	case FormUnary:
		ins = UnaryOp{Op: op, Target: d.int(), Return: d.int()}
	case FormLocalGet:
		ins = LocalGet{Property: d.int(), Return: d.int()}
	case FormLocalSet:
		ins = LocalSet{Property: d.int(), Value: d.int()}
	case FormPropertyGet:
		ins = PropertyGet{Target: d.int(), Property: d.int(), Return: d.int()}
	case FormPropertySet:
		ins = PropertySet{Target: d.int(), Property: d.int(), Value: d.int()}
	case FormInPlace:
		p := InPlace{Op: op, Target: d.int()}
		p.Arg, p.Return = d.inPlaceTail(op)
		ins = p
	case FormPropertyInPlace:
		p := PropertyInPlace{Op: op, Target: d.int(), Property: d.int()}
		p.Arg, p.Return = d.inPlaceTail(op)
		ins = p
	default:
		return nil, errors.Wrapf(ErrUnsupportedOpcode, "%s", op)
	}

	if d.err != nil {
		return nil, errors.Wrapf(d.err, "decode %s", op)
	}
	return ins, nil
}

// DecodeAll decodes a complete method body.
func DecodeAll(data []byte) ([]Instruction, error) {
	r := bytes.NewReader(data)
	var code []Instruction
	for r.Len() > 0 {
		ins, err := Decode(r)
		if err != nil {
			return nil, errors.Wrapf(err, "instruction %d at byte %d", len(code), len(data)-r.Len())
		}
		code = append(code, ins)
	}
	return code, nil
}

// VarHasName reports whether a VAR_* opcode carries a name constant.
func VarHasName(op Opcode) bool {
	switch op {
	case OpVarN, OpVarIN, OpVarDN, OpVarTN:
		return true
	}
	return false
}

// VarHasValue reports whether a VAR_* opcode carries a single initial value.
func VarHasValue(op Opcode) bool {
	switch op {
	case OpVarI, OpVarIN, OpVarD, OpVarDN:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Operand streams
// ---------------------------------------------------------------------------

type encoder struct {
	w   io.ByteWriter
	err error
}

func (e *encoder) int(v int) {
	if e.err == nil {
		e.err = WritePackedInt(e.w, int64(v))
	}
}

func (e *encoder) ints(vs []int) {
	for _, v := range vs {
		e.int(v)
	}
}

func (e *encoder) list(a Arity, vs []int) {
	switch a {
	case Arity0:
		if len(vs) != 0 && e.err == nil {
			e.err = errors.Errorf("expected no operands, got %d", len(vs))
		}
	case Arity1, ArityT:
		if len(vs) != 1 {
			if e.err == nil {
				e.err = errors.Errorf("expected one operand, got %d", len(vs))
			}
			return
		}
		e.int(vs[0])
	case ArityN:
		e.int(len(vs))
		e.ints(vs)
	}
}

func (e *encoder) inPlaceTail(op Opcode, arg, ret int) {
	if InPlaceHasArg(op) {
		e.int(arg)
	}
	if InPlaceHasReturn(op) {
		e.int(ret)
	}
}

type decoder struct {
	r   io.ByteReader
	err error
}

func (d *decoder) int() int {
	if d.err != nil {
		return 0
	}
	v, err := ReadOperand(d.r)
	if err != nil {
		d.err = err
	}
	return v
}

func (d *decoder) count() int {
	n := d.int()
	if n < 0 && d.err == nil {
		d.err = errors.Errorf("negative operand count %d", n)
	}
	if n < 0 {
		return 0
	}
	return n
}

func (d *decoder) ints(n int) []int {
	if n == 0 || d.err != nil {
		return nil
	}
	vs := make([]int, 0, min(n, 64))
	for i := 0; i < n && d.err == nil; i++ {
		vs = append(vs, d.int())
	}
	return vs
}

func (d *decoder) list(a Arity) []int {
	switch a {
	case Arity1, ArityT:
		return []int{d.int()}
	case ArityN:
		return d.ints(d.count())
	}
	return nil
}

func (d *decoder) inPlaceTail(op Opcode) (arg, ret int) {
	arg, ret = ArgIgnore, ArgIgnore
	if InPlaceHasArg(op) {
		arg = d.int()
	}
	if InPlaceHasReturn(op) {
		ret = d.int()
	}
	return arg, ret
}
