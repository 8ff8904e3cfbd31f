package bytecode

import (
	"github.com/elliotchance/orderedmap/v2"
	"github.com/pkg/errors"
)

// Builder assembles a method body, resolving symbolic jump targets to
// relative offsets at link time.
type Builder struct {
	code   []Instruction
	labels *orderedmap.OrderedMap[string, int]
	fixups []fixup
	errs   []error
}

type fixup struct {
	pc     int
	labels []string
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{labels: orderedmap.NewOrderedMap[string, int]()}
}

// Emit appends an instruction and returns its address.
func (b *Builder) Emit(ins Instruction) int {
	b.code = append(b.code, ins)
	return len(b.code) - 1
}

// EmitJump appends an instruction whose jump slots (see Offsets) will be
// filled from labels, in slot order, when the builder is linked.
func (b *Builder) EmitJump(ins Instruction, labels ...string) int {
	pc := b.Emit(ins)
	b.fixups = append(b.fixups, fixup{pc: pc, labels: labels})
	return pc
}

// Label binds name to the address of the next emitted instruction.
func (b *Builder) Label(name string) {
	if !b.labels.Set(name, len(b.code)) {
		b.errs = append(b.errs, errors.Errorf("duplicate label %q", name))
	}
}

// PC returns the address of the next emitted instruction.
func (b *Builder) PC() int {
	return len(b.code)
}

// Labels returns the bound labels in declaration order.
func (b *Builder) Labels() []string {
	names := make([]string, 0, b.labels.Len())
	for el := b.labels.Front(); el != nil; el = el.Next() {
		names = append(names, el.Key)
	}
	return names
}

// Link resolves every label reference and returns the finished code.
func (b *Builder) Link() ([]Instruction, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	code := append([]Instruction(nil), b.code...)
	for _, f := range b.fixups {
		offs := make([]int, len(f.labels))
		for i, name := range f.labels {
			dest, ok := b.labels.Get(name)
			if !ok {
				return nil, errors.Errorf("instruction %d (%s): undefined label %q", f.pc, code[f.pc].Opcode(), name)
			}
			offs[i] = dest - f.pc
		}
		ins, ok := WithOffsets(code[f.pc], offs)
		if !ok {
			return nil, errors.Errorf("instruction %d (%s): %d labels do not fit its jump slots",
				f.pc, code[f.pc].Opcode(), len(f.labels))
		}
		code[f.pc] = ins
	}
	return code, nil
}
