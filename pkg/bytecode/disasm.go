package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of a method body.
func Disassemble(name string, code []Instruction) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; %d instructions\n", len(code)))
	for _, line := range DisassembleToLines(code) {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// DisassembleToLines returns the listing as one line per instruction.
func DisassembleToLines(code []Instruction) []string {
	lines := make([]string, 0, len(code))
	for pc, ins := range code {
		lines = append(lines, fmt.Sprintf("%04d  %s", pc, FormatInstruction(pc, ins)))
	}
	return lines
}

// FormatInstruction renders a single instruction located at pc. Jump
// offsets are shown together with their absolute destinations.
func FormatInstruction(pc int, ins Instruction) string {
	name := ins.Opcode().String()
	switch ins := ins.(type) {
	case Nop, Enter, Exit, FinallyStart, FinallyEnd:
		return name
	case Line:
		return fmt.Sprintf("%s %+d", name, ins.Delta)
	case GuardStart:
		clauses := make([]string, len(ins.Types))
		for i := range ins.Types {
			clauses[i] = fmt.Sprintf("%s %s %s", OperandString(ins.Types[i]),
				OperandString(ins.Names[i]), jumpString(pc, ins.Catches[i]))
		}
		return fmt.Sprintf("%s [%s]", name, strings.Join(clauses, "; "))
	case GuardEnd:
		return fmt.Sprintf("%s %s", name, jumpString(pc, ins.Offset))
	case CatchStart:
		return fmt.Sprintf("%s %s %s", name, OperandString(ins.Type), OperandString(ins.Name))
	case CatchEnd:
		return fmt.Sprintf("%s %s", name, jumpString(pc, ins.Offset))
	case GuardAll:
		return fmt.Sprintf("%s %s", name, jumpString(pc, ins.Finally))
	case Throw:
		return fmt.Sprintf("%s %s", name, OperandString(ins.Value))
	case Call:
		return fmt.Sprintf("%s %s (%s) -> (%s)", name, OperandString(ins.Function),
			operandList(ins.Args), operandList(ins.Returns))
	case Invoke:
		return fmt.Sprintf("%s %s.%s (%s) -> (%s)", name, OperandString(ins.Target),
			OperandString(ins.Method), operandList(ins.Args), operandList(ins.Returns))
	case MethodBind:
		return fmt.Sprintf("%s %s.%s -> %s", name, OperandString(ins.Target),
			OperandString(ins.Method), OperandString(ins.Return))
	case Construct:
		return fmt.Sprintf("%s %s (%s)", name, OperandString(ins.Constructor), operandList(ins.Args))
	case New:
		return fmt.Sprintf("%s %s %s (%s) -> %s", name, OperandString(ins.Type),
			OperandString(ins.Constructor), operandList(ins.Args), OperandString(ins.Return))
	case NewChild:
		return fmt.Sprintf("%s %s.%s %s (%s) -> %s", name, OperandString(ins.Parent),
			OperandString(ins.Type), OperandString(ins.Constructor), operandList(ins.Args),
			OperandString(ins.Return))
	case Return:
		return fmt.Sprintf("%s (%s)", name, operandList(ins.Values))
	case Var:
		s := fmt.Sprintf("%s %s", name, OperandString(ins.Type))
		if VarHasName(ins.Op) {
			s += " " + OperandString(ins.Name)
		}
		switch {
		case ins.Values != nil:
			s += fmt.Sprintf(" = (%s)", operandList(ins.Values))
		case VarHasValue(ins.Op):
			s += " = " + OperandString(ins.Value)
		}
		return s
	case Move:
		return fmt.Sprintf("%s %s -> %s", name, OperandString(ins.From), OperandString(ins.To))
	case Test:
		return fmt.Sprintf("%s %s -> %s", name, testOperands(ins.Op, ins.Arg1, ins.Arg2, ins.Type),
			OperandString(ins.Return))
	case Jump:
		return fmt.Sprintf("%s %s", name, jumpString(pc, ins.Offset))
	case CondJump:
		return fmt.Sprintf("%s %s %s", name, testOperands(ins.Op, ins.Arg1, ins.Arg2, ins.Type),
			jumpString(pc, ins.Offset))
	case JumpInt:
		jumps := make([]string, len(ins.Offsets))
		for i, off := range ins.Offsets {
			jumps[i] = fmt.Sprintf("%d:%s", i, jumpString(pc, off))
		}
		return fmt.Sprintf("%s %s [%s] default %s", name, OperandString(ins.Arg),
			strings.Join(jumps, ", "), jumpString(pc, ins.Default))
	case JumpVal:
		cases := make([]string, len(ins.Cases))
		for i, c := range ins.Cases {
			cases[i] = fmt.Sprintf("(%s):%s", operandList(c), jumpString(pc, ins.Offsets[i]))
		}
		return fmt.Sprintf("%s (%s) [%s] default %s", name, operandList(ins.Args),
			strings.Join(cases, ", "), jumpString(pc, ins.Default))
	case Assert:
		s := fmt.Sprintf("%s %s", name, OperandString(ins.Cond))
		if ins.Op != OpAssert {
			s += " " + OperandString(ins.Message)
		}
		if ins.Op == OpAssertV {
			s += fmt.Sprintf(" (%s)", operandList(ins.Values))
		}
		return s
	case BinaryOp:
		return fmt.Sprintf("%s %s, %s -> %s", name, OperandString(ins.Target),
			OperandString(ins.Arg), OperandString(ins.Return))
	case UnaryOp:
		return fmt.Sprintf("%s %s -> %s", name, OperandString(ins.Target), OperandString(ins.Return))
	case LocalGet:
		return fmt.Sprintf("%s %s -> %s", name, OperandString(ins.Property), OperandString(ins.Return))
	case LocalSet:
		return fmt.Sprintf("%s %s = %s", name, OperandString(ins.Property), OperandString(ins.Value))
	case PropertyGet:
		return fmt.Sprintf("%s %s.%s -> %s", name, OperandString(ins.Target),
			OperandString(ins.Property), OperandString(ins.Return))
	case PropertySet:
		return fmt.Sprintf("%s %s.%s = %s", name, OperandString(ins.Target),
			OperandString(ins.Property), OperandString(ins.Value))
	case InPlace:
		return name + " " + inPlaceOperands(OperandString(ins.Target), ins.Op, ins.Arg, ins.Return)
	case PropertyInPlace:
		target := OperandString(ins.Target) + "." + OperandString(ins.Property)
		return name + " " + inPlaceOperands(target, ins.Op, ins.Arg, ins.Return)
	}
	return name
}

func jumpString(pc, off int) string {
	return fmt.Sprintf("%+d (-> %04d)", off, pc+off)
}

func operandList(ops []int) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = OperandString(op)
	}
	return strings.Join(parts, ", ")
}

func testOperands(op Opcode, arg1, arg2, typ int) string {
	switch TestKindOf(op) {
	case TestBinary:
		return fmt.Sprintf("%s, %s", OperandString(arg1), OperandString(arg2))
	case TestType:
		return fmt.Sprintf("%s : %s", OperandString(arg1), OperandString(typ))
	}
	return OperandString(arg1)
}

func inPlaceOperands(target string, op Opcode, arg, ret int) string {
	s := target
	if InPlaceHasArg(op) {
		s += ", " + OperandString(arg)
	}
	if InPlaceHasReturn(op) {
		s += " -> " + OperandString(ret)
	}
	return s
}
