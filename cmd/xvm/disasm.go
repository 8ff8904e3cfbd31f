package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
	"github.com/xtclang/xvm-sub016/vm/image"
)

// handleDisasm processes the `xvm disasm` subcommand.
func (a *app) handleDisasm(args []string) int {
	var g globalFlags
	flags := a.newFlagSet("disasm", "image", &g)
	class := flags.String("class", "", "only list the named class (qualified for virtual children)")
	if code := a.parse(flags, args); code >= 0 {
		return code
	}

	_, _, img, err := a.load(&g, flags.Arg(0))
	if err != nil {
		a.errorf("%v", err)
		return exitException
	}

	found := false
	err = img.Walk(func(qualified string, c *image.Class) error {
		if *class != "" && qualified != *class {
			return nil
		}
		found = true
		writeClassHeader(a.stdout, qualified, c)
		return c.Bodies(qualified, func(name string, m *image.Method) error {
			return writeListing(a.stdout, name, m)
		})
	})
	if err != nil {
		a.errorf("%v", err)
		return exitException
	}
	if !found && *class != "" {
		a.errorf("%s: no class %q", img.Module, *class)
		return exitException
	}
	return exitOK
}

func writeClassHeader(w io.Writer, qualified string, c *image.Class) {
	kind := "class"
	if c.Mixin {
		kind = "mixin"
	}
	header := kind + " " + qualified
	if c.Super != "" {
		header += " extends " + c.Super
	}
	if len(c.Mixins) > 0 {
		header += " incorporates " + strings.Join(c.Mixins, ", ")
	}
	if c.Delegate != "" {
		header += " delegates " + c.Delegate
	}
	fmt.Fprintf(w, "; %s\n", header)
	for _, p := range c.Properties {
		line := fmt.Sprintf(";   property %s %s", p.Type, p.Name)
		if p.Required {
			line += " (required)"
		}
		if p.Default != nil {
			line += " = " + p.Default.String()
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}

func writeListing(w io.Writer, name string, m *image.Method) error {
	if m.Native != "" {
		fmt.Fprintf(w, "; === %s ===\n; native %s\n\n", name, m.Native)
		return nil
	}
	code, err := bytecode.DecodeAll(m.Code)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Fprint(w, bytecode.Disassemble(name, code))
	if len(m.Constants) > 0 {
		fmt.Fprintln(w, "; constants")
		for i, c := range m.Constants {
			fmt.Fprintf(w, ";   %-4d %s\n", bytecode.ConstantAddress(i), c)
		}
	}
	fmt.Fprintln(w)
	return nil
}
