package vm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestExceptionError(t *testing.T) {
	e := &Exception{Kind: KindIllegalState, Message: "boom"}
	if got := e.Error(); got != "IllegalState: boom" {
		t.Errorf("Error() = %q", got)
	}
	bare := &Exception{Kind: KindAssertion}
	if got := bare.Error(); got != "Assertion" {
		t.Errorf("Error() without message = %q", got)
	}
}

func TestExceptionFormatTrace(t *testing.T) {
	e := &Exception{
		Kind:    KindIllegalArgument,
		Message: "Division by zero",
		Trace:   []string{"divide (pc=3)", "main (pc=1)"},
	}
	if got := fmt.Sprintf("%v", e); got != e.Error() {
		t.Errorf("%%v = %q", got)
	}
	if got := fmt.Sprintf("%q", e); got != `"IllegalArgument: Division by zero"` {
		t.Errorf("%%q = %s", got)
	}

	full := fmt.Sprintf("%+v", e)
	lines := strings.Split(full, "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected message and two frames, got %q", full)
	}
	if lines[1] != "\tat divide (pc=3)" || lines[2] != "\tat main (pc=1)" {
		t.Errorf("unexpected trace %q", full)
	}
}

func TestEngineErrorWrapping(t *testing.T) {
	cause := errors.New("register r5 not introduced")
	ee := &EngineError{Method: "broken", PC: 7, Instruction: "GP_ADD", Cause: cause}

	want := "engine fault in broken at 0007 (GP_ADD): register r5 not introduced"
	if got := ee.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(ee, cause) {
		t.Error("EngineError should unwrap to its cause")
	}
	if !IsEngineError(errors.Wrap(ee, "run")) {
		t.Error("IsEngineError should see through wrapping")
	}
	if IsEngineError(&Exception{Kind: KindException}) {
		t.Error("an Exception is not an engine fault")
	}

	anon := &EngineError{Cause: cause}
	if got := anon.Error(); got != "engine fault: register r5 not introduced" {
		t.Errorf("Error() without method = %q", got)
	}
}

func TestRecoverFault(t *testing.T) {
	err := func() (err error) {
		defer func() { err = recoverFault(recover()) }()
		fault("pc %d outside of code", 9)
		return nil
	}()
	if err == nil || err.Error() != "pc 9 outside of code" {
		t.Errorf("recovered %v", err)
	}

	if got := recoverFault("plain"); got.Error() != "plain" {
		t.Errorf("recoverFault(string) = %v", got)
	}
}
