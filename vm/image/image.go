// Package image reads and writes module images: the CBOR encoding of a
// module's classes, methods, constant pools and encoded code, and links
// them into a reference runtime.
package image

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ccoveille/go-safecast"
	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/afero"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("xvm.image")

// Version is the image format version written by Encode.
const Version = 1

// Extension is the conventional file extension of module images.
const Extension = ".xvmi"

// Image is a module image.
type Image struct {
	Module  string   `cbor:"1,keyasint"`
	Version uint16   `cbor:"2,keyasint"`
	Classes []Class  `cbor:"3,keyasint"`
	Entries []string `cbor:"4,keyasint,omitempty"` // default entry points, "Class.method"
}

// Class declares a class, mixin or virtual child.
type Class struct {
	Name         string     `cbor:"1,keyasint"`
	Super        string     `cbor:"2,keyasint,omitempty"` // Object when empty, unless Mixin
	Mixin        bool       `cbor:"3,keyasint,omitempty"`
	Mixins       []string   `cbor:"4,keyasint,omitempty"`
	Delegate     string     `cbor:"5,keyasint,omitempty"`
	Properties   []Property `cbor:"6,keyasint,omitempty"`
	Methods      []Method   `cbor:"7,keyasint,omitempty"`
	Constructors []Method   `cbor:"8,keyasint,omitempty"`
	Children     []Class    `cbor:"9,keyasint,omitempty"`
}

// Property declares a property.
type Property struct {
	Name     string    `cbor:"1,keyasint"`
	Type     *TypeRef  `cbor:"2,keyasint,omitempty"`
	Required bool      `cbor:"3,keyasint,omitempty"`
	Default  *Constant `cbor:"4,keyasint,omitempty"`
	Getter   *Method   `cbor:"5,keyasint,omitempty"`
	Setter   *Method   `cbor:"6,keyasint,omitempty"`
}

// Method is a method, constructor or accessor body. Exactly one of
// Native and Code is set.
type Method struct {
	Name      string     `cbor:"1,keyasint"`
	Params    []Param    `cbor:"2,keyasint,omitempty"`
	Returns   []string   `cbor:"3,keyasint,omitempty"`
	Native    string     `cbor:"4,keyasint,omitempty"`
	Code      []byte     `cbor:"5,keyasint,omitempty"`
	Constants []Constant `cbor:"6,keyasint,omitempty"`
	Finalizer *Method    `cbor:"7,keyasint,omitempty"`
}

// Param is a declared parameter.
type Param struct {
	Name    string    `cbor:"1,keyasint"`
	Type    *TypeRef  `cbor:"2,keyasint,omitempty"`
	Default *Constant `cbor:"3,keyasint,omitempty"`
}

// TypeRef names a type with its actual type parameters.
type TypeRef struct {
	ID     string    `cbor:"1,keyasint"`
	Actual []TypeRef `cbor:"2,keyasint,omitempty"`
}

func (t *TypeRef) String() string {
	if t == nil {
		return "Object"
	}
	if len(t.Actual) == 0 {
		return t.ID
	}
	actual := make([]string, len(t.Actual))
	for i := range t.Actual {
		actual[i] = t.Actual[i].String()
	}
	return t.ID + "<" + strings.Join(actual, ", ") + ">"
}

// Signature is a method signature.
type Signature struct {
	Name    string   `cbor:"1,keyasint"`
	Params  []string `cbor:"2,keyasint,omitempty"`
	Returns []string `cbor:"3,keyasint,omitempty"`
}

// ConstKind tags a constant.
type ConstKind uint8

const (
	ConstNull ConstKind = iota
	ConstBool
	ConstInt
	ConstString
	ConstTuple
	ConstText
	ConstType
	ConstSignature
	ConstProperty
	ConstMethod
)

var constKindNames = [...]string{
	"null", "bool", "int", "string", "tuple", "text", "type", "signature", "property", "method",
}

func (k ConstKind) String() string {
	if int(k) < len(constKindNames) {
		return constKindNames[k]
	}
	return fmt.Sprintf("ConstKind(%d)", uint8(k))
}

// Constant is one constant pool entry.
type Constant struct {
	Kind  ConstKind  `cbor:"1,keyasint"`
	Int   int64      `cbor:"2,keyasint,omitempty"` // int, bool (0 or 1)
	Text  string     `cbor:"3,keyasint,omitempty"` // string, text, property
	Elems []Constant `cbor:"4,keyasint,omitempty"` // tuple
	Type  *TypeRef   `cbor:"5,keyasint,omitempty"`
	Sig   *Signature `cbor:"6,keyasint,omitempty"`
	Ref   *MethodRef `cbor:"7,keyasint,omitempty"`
}

// String renders the constant for listings.
func (c Constant) String() string {
	switch c.Kind {
	case ConstNull:
		return "null"
	case ConstBool:
		return strconv.FormatBool(c.Int != 0)
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstString:
		return strconv.Quote(c.Text)
	case ConstTuple:
		elems := make([]string, len(c.Elems))
		for i, e := range c.Elems {
			elems[i] = e.String()
		}
		return "(" + strings.Join(elems, ", ") + ")"
	case ConstText:
		return "text " + strconv.Quote(c.Text)
	case ConstType:
		return "type " + c.Type.String()
	case ConstSignature:
		if c.Sig == nil {
			return "signature ?"
		}
		sig := "signature " + c.Sig.Name + "(" + strings.Join(c.Sig.Params, ", ") + ")"
		if len(c.Sig.Returns) > 0 {
			sig += " -> " + strings.Join(c.Sig.Returns, ", ")
		}
		return sig
	case ConstProperty:
		return "property " + c.Text
	case ConstMethod:
		if c.Ref == nil {
			return "method ?"
		}
		return "method " + c.Ref.String()
	}
	return c.Kind.String()
}

// MethodRef addresses a method of the image or a runtime native. A
// constructor is referenced with the name "construct".
type MethodRef struct {
	Class  string `cbor:"1,keyasint,omitempty"` // qualified: "Outer.Child"
	Name   string `cbor:"2,keyasint"`
	Arity  uint8  `cbor:"3,keyasint"`
	Native bool   `cbor:"4,keyasint,omitempty"`
}

func (r MethodRef) String() string {
	if r.Native {
		return "native " + r.Name
	}
	return fmt.Sprintf("%s.%s/%d", r.Class, r.Name, r.Arity)
}

// ---------------------------------------------------------------------------
// Constant constructors
// ---------------------------------------------------------------------------

// Null returns the null constant.
func Null() Constant { return Constant{Kind: ConstNull} }

// Bool returns a Boolean constant.
func Bool(b bool) Constant {
	if b {
		return Constant{Kind: ConstBool, Int: 1}
	}
	return Constant{Kind: ConstBool}
}

// Int returns an Int constant.
func Int(n int64) Constant { return Constant{Kind: ConstInt, Int: n} }

// String returns a String constant.
func String(s string) Constant { return Constant{Kind: ConstString, Text: s} }

// Tuple returns a tuple constant.
func Tuple(elems ...Constant) Constant { return Constant{Kind: ConstTuple, Elems: elems} }

// Text returns a name or message constant.
func Text(s string) Constant { return Constant{Kind: ConstText, Text: s} }

// Type returns a type constant.
func Type(id string, actual ...TypeRef) Constant {
	return Constant{Kind: ConstType, Type: &TypeRef{ID: id, Actual: actual}}
}

// Sig returns a signature constant.
func Sig(name string, params []string, returns ...string) Constant {
	return Constant{Kind: ConstSignature, Sig: &Signature{Name: name, Params: params, Returns: returns}}
}

// PropertyRef returns a local property constant.
func PropertyRef(name string) Constant { return Constant{Kind: ConstProperty, Text: name} }

// Ref returns a constant addressing method name of arity arity on class.
func Ref(class, name string, arity int) (Constant, error) {
	n, err := safecast.ToUint8(arity)
	if err != nil {
		return Constant{}, fmt.Errorf("image: %s.%s: arity %d: %w", class, name, arity, err)
	}
	return Constant{Kind: ConstMethod, Ref: &MethodRef{Class: class, Name: name, Arity: n}}, nil
}

// NativeRef returns a constant addressing a runtime native.
func NativeRef(name string) Constant {
	return Constant{Kind: ConstMethod, Ref: &MethodRef{Name: name, Native: true}}
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
	dm, err := cbor.DecOptions{MaxNestedLevels: 64}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR dec mode: %v", err))
	}
	decMode = dm
}

// Encode serializes img deterministically. A zero Version is written as
// the current Version.
func Encode(img *Image) ([]byte, error) {
	out := *img
	if out.Version == 0 {
		out.Version = Version
	}
	data, err := encMode.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("image: encode %s: %w", img.Module, err)
	}
	return data, nil
}

// Decode deserializes an image.
func Decode(data []byte) (*Image, error) {
	var img Image
	if err := decMode.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: decode: %w", err)
	}
	if img.Version != Version {
		return nil, fmt.Errorf("image: %s: unsupported version %d", img.Module, img.Version)
	}
	return &img, nil
}

// ReadFile reads and decodes the image at path.
func ReadFile(fs afero.Fs, path string) (*Image, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("read %s: module %s, %d classes", path, img.Module, len(img.Classes))
	return img, nil
}

// WriteFile encodes img and writes it to path, creating its directory.
func WriteFile(fs afero.Fs, path string, img *Image) error {
	data, err := Encode(img)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, os.FileMode(0o644)); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	return nil
}

// Walk calls fn for every class of the image, children after their
// parent, with the class's qualified name.
func (img *Image) Walk(fn func(qualified string, c *Class) error) error {
	var walk func(prefix string, cs []Class) error
	walk = func(prefix string, cs []Class) error {
		for i := range cs {
			c := &cs[i]
			name := prefix + c.Name
			if err := fn(name, c); err != nil {
				return err
			}
			if err := walk(name+".", c.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return walk("", img.Classes)
}

// Bodies calls fn for every method body of c: methods, constructors,
// accessors and finalizers, each with a display name.
func (c *Class) Bodies(qualified string, fn func(name string, m *Method) error) error {
	visit := func(name string, m *Method) error {
		if err := fn(name, m); err != nil {
			return err
		}
		if m.Finalizer != nil {
			return fn(name+".finally", m.Finalizer)
		}
		return nil
	}
	for i := range c.Properties {
		p := &c.Properties[i]
		if p.Getter != nil {
			if err := visit(qualified+"."+p.Name+".get", p.Getter); err != nil {
				return err
			}
		}
		if p.Setter != nil {
			if err := visit(qualified+"."+p.Name+".set", p.Setter); err != nil {
				return err
			}
		}
	}
	for i := range c.Constructors {
		m := &c.Constructors[i]
		if err := visit(fmt.Sprintf("%s.construct/%d", qualified, len(m.Params)), m); err != nil {
			return err
		}
	}
	for i := range c.Methods {
		m := &c.Methods[i]
		if err := visit(fmt.Sprintf("%s.%s/%d", qualified, m.Name, len(m.Params)), m); err != nil {
			return err
		}
	}
	return nil
}
