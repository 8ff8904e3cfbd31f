package vm

import (
	"testing"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
)

func TestResultCodes(t *testing.T) {
	want := map[Result]int{
		ResultNext:            -1,
		ResultReturn:          -2,
		ResultException:       -3,
		ResultReturnException: -4,
		ResultCall:            -5,
		ResultReturnCall:      -6,
		ResultRepeat:          -7,
		ResultBlock:           -8,
		ResultYield:           -9,
		ResultPause:           -10,
	}
	for r, code := range want {
		if int(r) != code {
			t.Errorf("%s = %d, want %d", r, int(r), code)
		}
		if r.IsJump() {
			t.Errorf("%s should not be a jump", r)
		}
	}
}

func TestResultJumps(t *testing.T) {
	r := jumpTo(12)
	if !r.IsJump() {
		t.Fatal("jumpTo should produce a jump")
	}
	if got := r.String(); got != "Jump(12)" {
		t.Errorf("String() = %q, want Jump(12)", got)
	}
	if !jumpTo(0).IsJump() {
		t.Error("address 0 is a valid jump target")
	}
}

func TestResultString(t *testing.T) {
	tests := []struct {
		r    Result
		want string
	}{
		{ResultNext, "Next"},
		{ResultReturnException, "ReturnException"},
		{ResultPause, "Pause"},
		{Result(-42), "Result(-42)"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestReturnTargets(t *testing.T) {
	if r := Return1(3); r.Kind != ReturnSingle || r.To != 3 {
		t.Errorf("Return1(3) = %+v", r)
	}
	if r := ReturnN([]int{1, 2}); r.Kind != ReturnMulti || len(r.Regs) != 2 {
		t.Errorf("ReturnN = %+v", r)
	}
	if r := ReturnT(5); r.Kind != ReturnTuple || r.To != 5 {
		t.Errorf("ReturnT(5) = %+v", r)
	}
	if r := Return1(bytecode.ArgIgnore); r.Kind != ReturnUnused {
		t.Errorf("Return1(ArgIgnore) should discard, got %+v", r)
	}
	if r := (ReturnTo{}); r.Kind != ReturnUnused {
		t.Errorf("zero ReturnTo should be unused, got %+v", r)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusIdle, "Idle"},
		{StatusTerminated, "Terminated"},
		{StatusFaulted, "Faulted"},
		{Status(42), "Status(42)"},
		{Status(-1), "Status(-1)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}
