package bytecode

import "fmt"

// Operand sentinels. Non-negative operands address registers; these
// negative values name implicit arguments. Anything at or below
// ConstantOffset addresses the constant pool.
const (
	ArgStack     = -1  // the frame's expression stack
	ArgIgnore    = -2  // result is discarded
	ArgDefault   = -3  // use the parameter's default value
	ArgThis      = -4  // the receiver
	ArgTarget    = -5  // the call target (the receiver before any narrowing)
	ArgPublic    = -6  // public view of the receiver
	ArgProtected = -7  // protected view of the receiver
	ArgPrivate   = -8  // private view of the receiver
	ArgStruct    = -9  // the receiver's struct (during construction)
	ArgClass     = -10 // the receiver's class
	ArgService   = -11 // the current service
	ArgSuper     = -12 // the next body in the active call chain
	ArgBlock     = -13 // the current block
	ArgMulti     = -14 // return via several registers
	ArgTuple     = -15 // return packed into a tuple
	ArgLabel     = -16 // unresolved label (never encoded by a linked method)

	ConstantOffset = -17
)

// ConstantAddress returns the operand that addresses constant i.
func ConstantAddress(i int) int {
	return ConstantOffset - i
}

// IsConstant reports whether the operand addresses the constant pool.
func IsConstant(a int) bool {
	return a <= ConstantOffset
}

// ConstantIndex returns the constant pool index addressed by a.
func ConstantIndex(a int) int {
	return ConstantOffset - a
}

// IsRegister reports whether the operand addresses a register.
func IsRegister(a int) bool {
	return a >= 0
}

var operandNames = map[int]string{
	ArgStack:     "stack",
	ArgIgnore:    "_",
	ArgDefault:   "default",
	ArgThis:      "this",
	ArgTarget:    "target",
	ArgPublic:    "this:public",
	ArgProtected: "this:protected",
	ArgPrivate:   "this:private",
	ArgStruct:    "this:struct",
	ArgClass:     "this:class",
	ArgService:   "this:service",
	ArgSuper:     "super",
	ArgBlock:     "block",
	ArgMulti:     "multi",
	ArgTuple:     "tuple",
	ArgLabel:     "label",
}

// OperandString renders an operand for listings: r3, #5, this, _ ...
func OperandString(a int) string {
	switch {
	case a >= 0:
		return fmt.Sprintf("r%d", a)
	case a <= ConstantOffset:
		return fmt.Sprintf("#%d", ConstantIndex(a))
	}
	if name, ok := operandNames[a]; ok {
		return name
	}
	return fmt.Sprintf("?%d", a)
}
