package image

import (
	"bytes"
	"fmt"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
)

// Report summarizes a verification pass.
type Report struct {
	Classes      int
	Bodies       int
	Instructions int
	Problems     []string
}

// OK reports whether verification found no problem.
func (r *Report) OK() bool { return len(r.Problems) == 0 }

func (r *Report) problem(name, format string, args ...any) {
	r.Problems = append(r.Problems, name+": "+fmt.Sprintf(format, args...))
}

// Verify checks every body of img without linking it: code decodes and
// re-encodes to the same bytes, jumps stay inside the method, and method
// constants resolve within the image.
func Verify(img *Image) *Report {
	r := &Report{}
	refs := make(map[MethodRef]bool)
	_ = img.Walk(func(qualified string, c *Class) error {
		r.Classes++
		declare := func(name string, arity int) {
			if c, err := Ref(qualified, name, arity); err == nil {
				refs[*c.Ref] = true
			} else {
				r.problem(qualified, "%v", err)
			}
		}
		for _, m := range c.Constructors {
			declare("construct", len(m.Params))
		}
		for _, m := range c.Methods {
			declare(m.Name, len(m.Params))
		}
		return nil
	})

	_ = img.Walk(func(qualified string, c *Class) error {
		return c.Bodies(qualified, func(name string, m *Method) error {
			r.Bodies++
			verifyBody(r, name, m, refs)
			return nil
		})
	})
	return r
}

func verifyBody(r *Report, name string, m *Method, refs map[MethodRef]bool) {
	switch {
	case m.Native != "" && len(m.Code) > 0:
		r.problem(name, "both native and code")
		return
	case m.Native != "":
		return
	case len(m.Code) == 0:
		r.problem(name, "no body")
		return
	}

	code, err := bytecode.DecodeAll(m.Code)
	if err != nil {
		r.problem(name, "decode: %v", err)
		return
	}
	r.Instructions += len(code)

	again, err := bytecode.EncodeAll(code)
	switch {
	case err != nil:
		r.problem(name, "re-encode: %v", err)
	case !bytes.Equal(again, m.Code):
		r.problem(name, "re-encoding differs (%d bytes, was %d)", len(again), len(m.Code))
	}

	for pc, ins := range code {
		for _, t := range bytecode.Targets(pc, ins) {
			if t < 0 || t >= len(code) {
				r.problem(name, "%s jumps to %d outside of %d instructions",
					bytecode.FormatInstruction(pc, ins), t, len(code))
			}
		}
	}

	for i, c := range m.Constants {
		if c.Kind != ConstMethod {
			continue
		}
		switch {
		case c.Ref == nil:
			r.problem(name, "constant %d: method constant without a reference", i)
		case !c.Ref.Native && !refs[*c.Ref]:
			r.problem(name, "constant %d: unresolved method %s", i, c.Ref)
		}
	}
}
