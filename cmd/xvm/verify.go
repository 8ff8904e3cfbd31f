package main

import (
	"fmt"

	"github.com/xtclang/xvm-sub016/vm/image"
)

// handleVerify processes the `xvm verify` subcommand.
func (a *app) handleVerify(args []string) int {
	var g globalFlags
	flags := a.newFlagSet("verify", "image", &g)
	if code := a.parse(flags, args); code >= 0 {
		return code
	}

	_, path, img, err := a.load(&g, flags.Arg(0))
	if err != nil {
		a.errorf("%v", err)
		return exitException
	}

	r := image.Verify(img)
	for _, p := range r.Problems {
		fmt.Fprintf(a.stderr, "%s: %s\n", path, p)
	}
	fmt.Fprintf(a.stdout, "%s: %d classes, %d bodies, %d instructions, %d problems\n",
		img.Module, r.Classes, r.Bodies, r.Instructions, len(r.Problems))
	if !r.OK() {
		return exitException
	}
	return exitOK
}
