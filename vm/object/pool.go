package object

import (
	"github.com/pkg/errors"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
	"github.com/xtclang/xvm-sub016/vm"
)

// ConstantKind tags an entry of a constant pool.
type ConstantKind uint8

const (
	ConstValue     ConstantKind = iota // a literal value, or a Ref read through
	ConstText                          // names and messages
	ConstType                          // a type reference
	ConstSignature                     // a method signature
	ConstProperty                      // a property of the receiver
	ConstMethod                        // a method or constructor
)

// Constant is one pool entry.
type Constant struct {
	Kind      ConstantKind
	Value     vm.Value
	Text      string
	Type      vm.TypeRef
	Signature vm.Signature
	Method    *vm.Method
}

// Pool is a method's constant pool. Each Add method returns the operand
// addressing the new entry.
type Pool struct {
	Entries []Constant
}

// NewPool creates an empty pool.
func NewPool() *Pool { return &Pool{} }

func (p *Pool) add(c Constant) int {
	p.Entries = append(p.Entries, c)
	return bytecode.ConstantAddress(len(p.Entries) - 1)
}

// AddValue adds a literal value. A vm.Ref is read through on every access,
// so a pending Future makes the reading instruction retry.
func (p *Pool) AddValue(v vm.Value) int { return p.add(Constant{Kind: ConstValue, Value: v}) }

// AddInt adds an Int literal.
func (p *Pool) AddInt(n int64) int { return p.AddValue(Int(n)) }

// AddString adds a String literal. Its text is also available as a name.
func (p *Pool) AddString(s string) int {
	return p.add(Constant{Kind: ConstValue, Value: String(s), Text: s})
}

// AddText adds a name or message.
func (p *Pool) AddText(s string) int { return p.add(Constant{Kind: ConstText, Text: s}) }

// AddType adds a type reference.
func (p *Pool) AddType(id string, actual ...vm.TypeRef) int {
	return p.add(Constant{Kind: ConstType, Type: vm.TypeRef{ID: id, Actual: actual}})
}

// AddSignature adds a method signature.
func (p *Pool) AddSignature(sig vm.Signature) int {
	return p.add(Constant{Kind: ConstSignature, Signature: sig})
}

// AddProperty adds a local property reference of the receiver.
func (p *Pool) AddProperty(name string) int {
	return p.add(Constant{Kind: ConstProperty, Text: name})
}

// AddMethod adds a method reference.
func (p *Pool) AddMethod(m *vm.Method) int { return p.add(Constant{Kind: ConstMethod, Method: m}) }

func (p *Pool) at(i int) Constant {
	if i < 0 || i >= len(p.Entries) {
		panic(errors.Errorf("constant #%d out of range (pool size %d)", i, len(p.Entries)))
	}
	return p.Entries[i]
}

func (p *Pool) want(i int, kind ConstantKind, what string) Constant {
	c := p.at(i)
	if c.Kind != kind {
		panic(errors.Errorf("constant #%d is not a %s", i, what))
	}
	return c
}

// Value implements vm.ConstantPool.
func (p *Pool) Value(i int) (vm.Value, error) {
	c := p.at(i)
	switch c.Kind {
	case ConstValue:
		if ref, ok := c.Value.(vm.Ref); ok {
			return ref.Get()
		}
		return c.Value, nil
	case ConstText:
		return String(c.Text), nil
	}
	return nil, errors.Errorf("constant #%d is not a value", i)
}

// Text implements vm.ConstantPool.
func (p *Pool) Text(i int) string {
	c := p.at(i)
	switch c.Kind {
	case ConstText, ConstProperty:
		return c.Text
	case ConstValue:
		if s, ok := c.Value.(String); ok {
			return string(s)
		}
	}
	panic(errors.Errorf("constant #%d is not text", i))
}

// Type implements vm.ConstantPool.
func (p *Pool) Type(i int) vm.TypeRef {
	return p.want(i, ConstType, "type").Type
}

// Signature implements vm.ConstantPool.
func (p *Pool) Signature(i int) vm.Signature {
	return p.want(i, ConstSignature, "signature").Signature
}

// Property implements vm.ConstantPool.
func (p *Pool) Property(i int) (string, bool) {
	c := p.at(i)
	if c.Kind != ConstProperty {
		return "", false
	}
	return c.Text, true
}

// Method implements vm.ConstantPool.
func (p *Pool) Method(i int) *vm.Method {
	c := p.at(i)
	if c.Kind != ConstMethod {
		return nil
	}
	return c.Method
}
