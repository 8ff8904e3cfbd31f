package object

import (
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/xtclang/xvm-sub016/vm"
)

// ---------------------------------------------------------------------------
// Class: declared structure and behaviour
// ---------------------------------------------------------------------------

// Property is a declared property. Every property has field storage on
// the instance; Getter and Setter, when present, replace direct access.
type Property struct {
	Name     string
	Type     vm.TypeRef
	Required bool     // must be assigned before the struct is published
	Default  vm.Value // initial field value, or nil
	Getter   *vm.Method
	Setter   *vm.Method
}

// Class is a class, mixin or interface of the reference object model.
//
// Members are kept in insertion order so listings, images and renderings
// are deterministic.
type Class struct {
	Name   string
	Super  *Class
	Mixins []*Class

	// Delegate names a property whose value receives the calls this
	// class does not implement itself.
	Delegate string

	properties   *orderedmap.OrderedMap[string, *Property]
	methods      *orderedmap.OrderedMap[string, *vm.Method]
	constructors *orderedmap.OrderedMap[string, *vm.Method]
	children     *orderedmap.OrderedMap[string, *Class]

	comp *Composition
}

// NewClass creates a class extending super (nil for a root class).
func NewClass(name string, super *Class, mixins ...*Class) *Class {
	c := &Class{
		Name:         name,
		Super:        super,
		Mixins:       mixins,
		properties:   orderedmap.NewOrderedMap[string, *Property](),
		methods:      orderedmap.NewOrderedMap[string, *vm.Method](),
		constructors: orderedmap.NewOrderedMap[string, *vm.Method](),
		children:     orderedmap.NewOrderedMap[string, *Class](),
	}
	c.comp = &Composition{Class: c}
	return c
}

// MethodKey identifies a method within a class: its name and arity.
// Overloads by parameter type are not distinguished.
func MethodKey(name string, arity int) string {
	return fmt.Sprintf("%s/%d", name, arity)
}

func signatureKey(sig vm.Signature) string {
	return MethodKey(sig.Name, len(sig.Params))
}

func methodKey(m *vm.Method) string {
	name := m.Signature.Name
	if name == "" {
		name = m.Name
	}
	return MethodKey(name, len(m.Params))
}

// AddProperty declares p on the class, replacing a property of the same
// name.
func (c *Class) AddProperty(p *Property) *Class {
	c.properties.Set(p.Name, p)
	return c
}

// AddMethod declares m, replacing a method with the same key.
func (c *Class) AddMethod(m *vm.Method) *Class {
	c.methods.Set(methodKey(m), m)
	return c
}

// AddConstructor declares a constructor.
func (c *Class) AddConstructor(m *vm.Method) *Class {
	c.constructors.Set(methodKey(m), m)
	return c
}

// AddChild declares child as a virtual child class of c. A subclass of c
// may declare its own child of the same name, which then wins.
func (c *Class) AddChild(child *Class) *Class {
	c.children.Set(child.Name, child)
	return c
}

// Composition returns the composition of the class without actual type
// parameters.
func (c *Class) Composition() *Composition { return c.comp }

// Method returns the method declared on c itself with the given key.
func (c *Class) Method(key string) (*vm.Method, bool) {
	return c.methods.Get(key)
}

// Constructor returns the constructor declared on c with the given key.
func (c *Class) Constructor(key string) (*vm.Method, bool) {
	return c.constructors.Get(key)
}

// Properties returns the properties declared on c itself, in order.
func (c *Class) Properties() []*Property {
	return values(c.properties)
}

// Methods returns the methods declared on c itself, in order.
func (c *Class) Methods() []*vm.Method {
	return values(c.methods)
}

// Constructors returns the constructors declared on c, in order.
func (c *Class) Constructors() []*vm.Method {
	return values(c.constructors)
}

// Children returns the virtual child classes declared on c, in order.
func (c *Class) Children() []*Class {
	return values(c.children)
}

func values[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []V {
	out := make([]V, 0, m.Len())
	for el := m.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out
}

// Linearize returns the classes contributing to c, most derived first:
// c, its mixins (in reverse declaration order, so the last mixin wins),
// then the linearization of its superclass. Each class appears once.
func (c *Class) Linearize() []*Class {
	var out []*Class
	seen := make(map[*Class]bool)
	var walk func(k *Class)
	walk = func(k *Class) {
		if k == nil || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, k)
		for i := len(k.Mixins) - 1; i >= 0; i-- {
			walk(k.Mixins[i])
		}
		walk(k.Super)
	}
	walk(c)
	return out
}

// IsA reports whether c is other or incorporates it.
func (c *Class) IsA(other *Class) bool {
	for _, k := range c.Linearize() {
		if k == other {
			return true
		}
	}
	return false
}

// Property finds a property declared on c or anything it incorporates.
func (c *Class) Property(name string) (*Property, bool) {
	for _, k := range c.Linearize() {
		if p, ok := k.properties.Get(name); ok {
			return p, true
		}
	}
	return nil, false
}

// AllProperties returns every property of c, base classes first.
func (c *Class) AllProperties() []*Property {
	lin := c.Linearize()
	seen := make(map[string]bool)
	var out []*Property
	for i := len(lin) - 1; i >= 0; i-- {
		for _, p := range lin[i].Properties() {
			if !seen[p.Name] {
				seen[p.Name] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// Child resolves the virtual child class name against c: the most derived
// declaration wins.
func (c *Class) Child(name string) (*Class, bool) {
	for _, k := range c.Linearize() {
		if child, ok := k.children.Get(name); ok {
			return child, true
		}
	}
	return nil, false
}

// delegate returns the delegating property of c, if any.
func (c *Class) delegate() string {
	for _, k := range c.Linearize() {
		if k.Delegate != "" {
			return k.Delegate
		}
	}
	return ""
}

func (c *Class) String() string { return c.Name }

// ---------------------------------------------------------------------------
// Composition
// ---------------------------------------------------------------------------

// Composition is a class with actual type parameters. The runtime keeps
// one composition per distinct class and parameter list, so compositions
// compare by identity.
type Composition struct {
	Class  *Class
	Actual []vm.Composition
}

// Name implements vm.Composition.
func (c *Composition) Name() string {
	if len(c.Actual) == 0 {
		return c.Class.Name
	}
	parts := make([]string, len(c.Actual))
	for i, a := range c.Actual {
		parts[i] = a.Name()
	}
	return c.Class.Name + "<" + strings.Join(parts, ", ") + ">"
}

// IsA implements vm.Composition. A composition without actual
// parameters matches any parameterization of the same class.
func (c *Composition) IsA(other vm.Composition) bool {
	o, ok := other.(*Composition)
	if !ok {
		return false
	}
	if !c.Class.IsA(o.Class) {
		return false
	}
	if len(o.Actual) == 0 {
		return true
	}
	if len(o.Actual) != len(c.Actual) {
		return false
	}
	for i := range o.Actual {
		if !c.Actual[i].IsA(o.Actual[i]) {
			return false
		}
	}
	return true
}

func (c *Composition) String() string { return c.Name() }
