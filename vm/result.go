package vm

import "fmt"

// ---------------------------------------------------------------------------
// Result: the outcome of dispatching one instruction
// ---------------------------------------------------------------------------

// Result tells the driver what to do after an instruction or a
// continuation step. Non-negative results are absolute jump targets.
type Result int

const (
	ResultNext            Result = -1 - iota // continue at pc+1
	ResultReturn                             // the frame has returned
	ResultException                          // an exception is in flight on the frame
	ResultReturnException                    // returned, and the caller has an exception
	ResultCall                               // a child frame was staged
	ResultReturnCall                         // returned, and the caller staged a child frame
	ResultRepeat                             // an operand is not ready; retry at the same pc
	ResultBlock                              // wait, then continue at pc+1
	ResultYield                              // give up the slice, continue at pc+1
	ResultPause                              // pause the stack, continue at pc+1
)

var resultNames = map[Result]string{
	ResultNext:            "Next",
	ResultReturn:          "Return",
	ResultException:       "Exception",
	ResultReturnException: "ReturnException",
	ResultCall:            "Call",
	ResultReturnCall:      "ReturnCall",
	ResultRepeat:          "Repeat",
	ResultBlock:           "Block",
	ResultYield:           "Yield",
	ResultPause:           "Pause",
}

// IsJump reports whether r is an absolute jump target.
func (r Result) IsJump() bool {
	return r >= 0
}

func (r Result) String() string {
	if r >= 0 {
		return fmt.Sprintf("Jump(%d)", int(r))
	}
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// jumpTo converts an absolute address into a result.
func jumpTo(pc int) Result {
	return Result(pc)
}
