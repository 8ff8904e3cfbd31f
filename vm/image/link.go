package image

import (
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
	"github.com/xtclang/xvm-sub016/vm"
	"github.com/xtclang/xvm-sub016/vm/object"
)

// Module is an image linked into a runtime.
type Module struct {
	Name string

	rt      *object.Runtime
	classes *orderedmap.OrderedMap[string, *object.Class] // by qualified name
	methods map[MethodRef]*vm.Method
	entries []string
}

// Class returns a class of the module by qualified name.
func (m *Module) Class(qualified string) (*object.Class, bool) {
	return m.classes.Get(qualified)
}

// Method returns the method addressed by ref.
func (m *Module) Method(ref MethodRef) (*vm.Method, bool) {
	method, ok := m.methods[ref]
	return method, ok
}

// Entries returns the image's default entry points.
func (m *Module) Entries() []string {
	return append([]string(nil), m.entries...)
}

// Entry resolves an entry point "Class.method" to a parameterless method
// and a fresh instance of its class to run it against.
func (m *Module) Entry(name string) (*vm.Method, vm.Value, error) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return nil, nil, fmt.Errorf("image: entry point %q is not Class.method", name)
	}
	c, ok := m.classes.Get(name[:i])
	if !ok {
		return nil, nil, fmt.Errorf("image: %s: no class %q", m.Name, name[:i])
	}
	method, ok := c.Method(object.MethodKey(name[i+1:], 0))
	if !ok {
		return nil, nil, fmt.Errorf("image: %s: no parameterless method %q", m.Name, name)
	}
	target := m.rt.Publish(m.rt.NewStruct(c.Composition(), nil))
	return method, target, nil
}

// pendingBody is a method shell whose code and constants are filled in
// once every method of the image exists.
type pendingBody struct {
	name   string
	def    *Method
	method *vm.Method
}

type linker struct {
	rt      *object.Runtime
	mod     *Module
	pending []pendingBody
}

// Link creates the classes of img in rt and returns the linked module.
// Classes of the image may extend runtime classes and each other, in any
// order.
func Link(img *Image, rt *object.Runtime) (*Module, error) {
	l := &linker{
		rt: rt,
		mod: &Module{
			Name:    img.Module,
			rt:      rt,
			classes: orderedmap.NewOrderedMap[string, *object.Class](),
			methods: make(map[MethodRef]*vm.Method),
			entries: img.Entries,
		},
	}

	if err := img.Walk(l.declare); err != nil {
		return nil, err
	}
	if err := img.Walk(l.define); err != nil {
		return nil, err
	}
	for _, p := range l.pending {
		if err := l.fill(p); err != nil {
			return nil, fmt.Errorf("image: %s: %w", p.name, err)
		}
	}

	var top []*object.Class
	for el := l.mod.classes.Front(); el != nil; el = el.Next() {
		if !strings.Contains(el.Key, ".") {
			top = append(top, el.Value)
		}
	}
	rt.Define(top...)
	log.Infof("linked module %s: %d classes, %d bodies", img.Module, l.mod.classes.Len(), len(l.pending))
	return l.mod, nil
}

// declare creates an empty class and attaches virtual children to their
// parent.
func (l *linker) declare(qualified string, def *Class) error {
	if _, dup := l.mod.classes.Get(qualified); dup {
		return fmt.Errorf("image: duplicate class %q", qualified)
	}
	c := object.NewClass(def.Name, nil)
	l.mod.classes.Set(qualified, c)
	if i := strings.LastIndexByte(qualified, '.'); i > 0 {
		parent, _ := l.mod.classes.Get(qualified[:i])
		parent.AddChild(c)
	}
	return nil
}

// class resolves a class name against the image, then the runtime.
func (l *linker) class(name string) (*object.Class, error) {
	if c, ok := l.mod.classes.Get(name); ok {
		return c, nil
	}
	if c, ok := l.rt.Class(name); ok {
		return c, nil
	}
	return nil, fmt.Errorf("image: unknown class %q", name)
}

func (l *linker) define(qualified string, def *Class) error {
	c, _ := l.mod.classes.Get(qualified)
	switch {
	case def.Super != "":
		super, err := l.class(def.Super)
		if err != nil {
			return fmt.Errorf("%s: %w", qualified, err)
		}
		c.Super = super
	case !def.Mixin:
		c.Super = object.ObjectClass
	}
	for _, name := range def.Mixins {
		mixin, err := l.class(name)
		if err != nil {
			return fmt.Errorf("%s: %w", qualified, err)
		}
		c.Mixins = append(c.Mixins, mixin)
	}
	c.Delegate = def.Delegate

	for i := range def.Properties {
		pd := &def.Properties[i]
		p := &object.Property{Name: pd.Name, Required: pd.Required, Type: typeRef(pd.Type)}
		if pd.Default != nil {
			v, err := value(*pd.Default)
			if err != nil {
				return fmt.Errorf("image: %s.%s: %w", qualified, pd.Name, err)
			}
			p.Default = v
		}
		var err error
		if pd.Getter != nil {
			if p.Getter, err = l.body(qualified+"."+pd.Name+".get", pd.Getter); err != nil {
				return err
			}
		}
		if pd.Setter != nil {
			if p.Setter, err = l.body(qualified+"."+pd.Name+".set", pd.Setter); err != nil {
				return err
			}
		}
		c.AddProperty(p)
	}

	for i := range def.Constructors {
		md := &def.Constructors[i]
		m, err := l.register(qualified, "construct", md)
		if err != nil {
			return err
		}
		c.AddConstructor(m)
	}
	for i := range def.Methods {
		md := &def.Methods[i]
		m, err := l.register(qualified, md.Name, md)
		if err != nil {
			return err
		}
		c.AddMethod(m)
	}
	return nil
}

// register creates a method shell addressable by a MethodRef.
func (l *linker) register(class, name string, def *Method) (*vm.Method, error) {
	c, err := Ref(class, name, len(def.Params))
	if err != nil {
		return nil, err
	}
	ref := *c.Ref
	if _, dup := l.mod.methods[ref]; dup {
		return nil, fmt.Errorf("image: duplicate method %s", ref)
	}
	m, err := l.body(ref.String(), def)
	if err != nil {
		return nil, err
	}
	m.Name, m.Signature.Name = name, name
	l.mod.methods[ref] = m
	return m, nil
}

// body creates a method shell (and its finalizer) from def.
func (l *linker) body(name string, def *Method) (*vm.Method, error) {
	m := &vm.Method{
		Name:      def.Name,
		Signature: vm.Signature{Name: def.Name, Returns: def.Returns},
	}
	for _, pd := range def.Params {
		p := vm.Param{Name: pd.Name, Type: typeRef(pd.Type)}
		if pd.Default != nil {
			v, err := value(*pd.Default)
			if err != nil {
				return nil, fmt.Errorf("image: %s: parameter %s: %w", name, pd.Name, err)
			}
			p.Default = v
		}
		m.Params = append(m.Params, p)
		m.Signature.Params = append(m.Signature.Params, p.Type.String())
	}

	switch {
	case def.Native != "" && len(def.Code) > 0:
		return nil, fmt.Errorf("image: %s: both native and code", name)
	case def.Native != "":
		fn, ok := l.rt.Native(def.Native)
		if !ok {
			return nil, fmt.Errorf("image: %s: unknown native %q", name, def.Native)
		}
		m.Native = fn
	case len(def.Code) == 0:
		return nil, fmt.Errorf("image: %s: no body", name)
	default:
		l.pending = append(l.pending, pendingBody{name: name, def: def, method: m})
	}

	if def.Finalizer != nil {
		fin, err := l.body(name+".finally", def.Finalizer)
		if err != nil {
			return nil, err
		}
		m.Finalizer = fin
	}
	return m, nil
}

// fill decodes the code of a method and builds its constant pool.
func (l *linker) fill(p pendingBody) error {
	code, err := bytecode.DecodeAll(p.def.Code)
	if err != nil {
		return err
	}
	pool := object.NewPool()
	for i, c := range p.def.Constants {
		if err := l.addConstant(pool, c); err != nil {
			return fmt.Errorf("constant %d: %w", i, err)
		}
	}
	p.method.Code = code
	p.method.Constants = pool
	return nil
}

func (l *linker) addConstant(pool *object.Pool, c Constant) error {
	switch c.Kind {
	case ConstString:
		pool.AddString(c.Text)
	case ConstNull, ConstBool, ConstInt, ConstTuple:
		v, err := value(c)
		if err != nil {
			return err
		}
		pool.AddValue(v)
	case ConstText:
		pool.AddText(c.Text)
	case ConstType:
		if c.Type == nil {
			return fmt.Errorf("type constant without a type")
		}
		t := typeRef(c.Type)
		pool.AddType(t.ID, t.Actual...)
	case ConstSignature:
		if c.Sig == nil {
			return fmt.Errorf("signature constant without a signature")
		}
		pool.AddSignature(vm.Signature{Name: c.Sig.Name, Params: c.Sig.Params, Returns: c.Sig.Returns})
	case ConstProperty:
		pool.AddProperty(c.Text)
	case ConstMethod:
		m, err := l.method(c.Ref)
		if err != nil {
			return err
		}
		pool.AddMethod(m)
	default:
		return fmt.Errorf("unknown constant kind %s", c.Kind)
	}
	return nil
}

func (l *linker) method(ref *MethodRef) (*vm.Method, error) {
	if ref == nil {
		return nil, fmt.Errorf("method constant without a reference")
	}
	if ref.Native {
		fn, ok := l.rt.Native(ref.Name)
		if !ok {
			return nil, fmt.Errorf("unknown native %q", ref.Name)
		}
		return object.NativeMethod(ref.Name, fn), nil
	}
	m, ok := l.mod.methods[*ref]
	if !ok {
		return nil, fmt.Errorf("unresolved method %s", ref)
	}
	return m, nil
}

// value converts a literal constant.
func value(c Constant) (vm.Value, error) {
	switch c.Kind {
	case ConstNull:
		return object.Null, nil
	case ConstBool:
		return object.Bool(c.Int != 0), nil
	case ConstInt:
		return object.Int(c.Int), nil
	case ConstString:
		return object.String(c.Text), nil
	case ConstTuple:
		elems := make([]vm.Value, len(c.Elems))
		for i, e := range c.Elems {
			v, err := value(e)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return &object.Tuple{Elems: elems}, nil
	}
	return nil, fmt.Errorf("%s constant is not a value", c.Kind)
}

func typeRef(t *TypeRef) vm.TypeRef {
	if t == nil {
		return vm.TypeRef{ID: "Object"}
	}
	out := vm.TypeRef{ID: t.ID}
	for i := range t.Actual {
		out.Actual = append(out.Actual, typeRef(&t.Actual[i]))
	}
	return out
}
