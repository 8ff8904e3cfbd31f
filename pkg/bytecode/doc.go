// Package bytecode defines the instruction set of the register machine:
// opcodes, operand addressing, the packed-integer wire format and the
// typed instruction variants the engine dispatches on.
//
// # Operands
//
// Every operand is an int. Non-negative values address registers of the
// current frame. The values -1 through -16 are sentinels for implicit
// arguments (ArgStack, ArgIgnore, ArgThis, ArgSuper ...). Values at or
// below ConstantOffset address the method's constant pool: constant i is
// written as ConstantOffset-i.
//
// # Wire format
//
// An instruction is its opcode byte followed by its operands as packed
// integers, in declared order. Argument and return lists follow the
// opcode suffix: _0 writes nothing, _1 and _T write one operand, _N
// writes a count and then the operands.
//
// Jump targets are stored relative to the address of the instruction
// that carries them. A Builder emits instructions with symbolic labels
// and resolves them at link time:
//
//	b := bytecode.NewBuilder()
//	b.Label("loop")
//	b.Emit(bytecode.InPlace{Op: bytecode.OpIPInc, Target: 0,
//		Arg: bytecode.ArgIgnore, Return: bytecode.ArgIgnore})
//	b.EmitJump(bytecode.CondJump{Op: bytecode.OpJmpLt, Arg1: 0, Arg2: 1}, "loop")
//	b.Emit(bytecode.Return{Op: bytecode.OpReturn0})
//	code, err := b.Link()
//
// Opcodes listed without an instruction variant are reserved: they have
// a mnemonic but neither encode nor decode.
package bytecode
