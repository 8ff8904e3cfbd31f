package bytecode

import (
	"fmt"
	"strings"

	"github.com/stoewer/go-strcase"
)

// Opcode identifies an instruction in the encoded stream.
// Opcodes are organized into ranges by category; unlisted values are reserved.
type Opcode byte

const (
	// ========================================================================
	// Control and scopes
	// ========================================================================

	OpNop   Opcode = 0x00
	OpLine1 Opcode = 0x01
	OpLine2 Opcode = 0x02
	OpLine3 Opcode = 0x03
	OpLineN Opcode = 0x04
	OpEnter Opcode = 0x05
	OpExit  Opcode = 0x06

	// ========================================================================
	// Guards
	// ========================================================================

	OpGuard      Opcode = 0x07
	OpGuardEnd   Opcode = 0x08
	OpCatch      Opcode = 0x09
	OpCatchEnd   Opcode = 0x0A
	OpGuardAll   Opcode = 0x0B
	OpFinally    Opcode = 0x0C
	OpFinallyEnd Opcode = 0x0D
	OpThrow      Opcode = 0x0E

	// ========================================================================
	// Function calls
	// ========================================================================

	OpCall00 Opcode = 0x10
	OpCall01 Opcode = 0x11
	OpCall0N Opcode = 0x12
	OpCall0T Opcode = 0x13
	OpCall10 Opcode = 0x14
	OpCall11 Opcode = 0x15
	OpCall1N Opcode = 0x16
	OpCall1T Opcode = 0x17
	OpCallN0 Opcode = 0x18
	OpCallN1 Opcode = 0x19
	OpCallNN Opcode = 0x1A
	OpCallNT Opcode = 0x1B
	OpCallT0 Opcode = 0x1C
	OpCallT1 Opcode = 0x1D
	OpCallTN Opcode = 0x1E
	OpCallTT Opcode = 0x1F

	// ========================================================================
	// Virtual invocation
	// ========================================================================

	OpNvok00 Opcode = 0x20
	OpNvok01 Opcode = 0x21
	OpNvok0N Opcode = 0x22
	OpNvok0T Opcode = 0x23
	OpNvok10 Opcode = 0x24
	OpNvok11 Opcode = 0x25
	OpNvok1N Opcode = 0x26
	OpNvok1T Opcode = 0x27
	OpNvokN0 Opcode = 0x28
	OpNvokN1 Opcode = 0x29
	OpNvokNN Opcode = 0x2A
	OpNvokNT Opcode = 0x2B
	OpNvokT0 Opcode = 0x2C
	OpNvokT1 Opcode = 0x2D
	OpNvokTN Opcode = 0x2E
	OpNvokTT Opcode = 0x2F

	// ========================================================================
	// Binding and construction
	// ========================================================================

	OpMBind   Opcode = 0x30
	OpFBind   Opcode = 0x31
	OpSynInit Opcode = 0x33
	OpConstr0 Opcode = 0x34
	OpConstr1 Opcode = 0x35
	OpConstrN Opcode = 0x36
	OpConstrT Opcode = 0x37
	OpNew0    Opcode = 0x38
	OpNew1    Opcode = 0x39
	OpNewN    Opcode = 0x3A
	OpNewT    Opcode = 0x3B
	OpNewG0   Opcode = 0x3C
	OpNewG1   Opcode = 0x3D
	OpNewGN   Opcode = 0x3E
	OpNewGT   Opcode = 0x3F
	OpNewC0   Opcode = 0x40
	OpNewC1   Opcode = 0x41
	OpNewCN   Opcode = 0x42
	OpNewCT   Opcode = 0x43
	OpNewCG0  Opcode = 0x44
	OpNewCG1  Opcode = 0x45
	OpNewCGN  Opcode = 0x46
	OpNewCGT  Opcode = 0x47
	OpNewV0   Opcode = 0x48
	OpNewV1   Opcode = 0x49
	OpNewVN   Opcode = 0x4A
	OpNewVT   Opcode = 0x4B

	// ========================================================================
	// Returns
	// ========================================================================

	OpReturn0 Opcode = 0x4C
	OpReturn1 Opcode = 0x4D
	OpReturnN Opcode = 0x4E
	OpReturnT Opcode = 0x4F

	// ========================================================================
	// Variables
	// ========================================================================

	OpVar   Opcode = 0x50
	OpVarI  Opcode = 0x51
	OpVarN  Opcode = 0x52
	OpVarIN Opcode = 0x53
	OpVarD  Opcode = 0x54
	OpVarDN Opcode = 0x55
	OpVarC  Opcode = 0x56
	OpVarCN Opcode = 0x57
	OpVarS  Opcode = 0x58
	OpVarSN Opcode = 0x59
	OpVarT  Opcode = 0x5A
	OpVarTN Opcode = 0x5B
	OpVarM  Opcode = 0x5C
	OpVarMN Opcode = 0x5E

	// ========================================================================
	// Moves
	// ========================================================================

	OpMov      Opcode = 0x60
	OpMovVar   Opcode = 0x61
	OpMovRef   Opcode = 0x62
	OpMovThis  Opcode = 0x63
	OpMovThisA Opcode = 0x64
	OpMovType  Opcode = 0x65
	OpCast     Opcode = 0x67

	// ========================================================================
	// Tests
	// ========================================================================

	OpCmp     Opcode = 0x68
	OpIsZero  Opcode = 0x69
	OpIsNZero Opcode = 0x6A
	OpIsNull  Opcode = 0x6B
	OpIsNNull Opcode = 0x6C
	OpIsEq    Opcode = 0x6D
	OpIsNeq   Opcode = 0x6E
	OpIsLt    Opcode = 0x6F
	OpIsLte   Opcode = 0x70
	OpIsGt    Opcode = 0x71
	OpIsGte   Opcode = 0x72
	OpIsNot   Opcode = 0x73
	OpIsType  Opcode = 0x74
	OpIsNType Opcode = 0x75
	OpIsSvc   Opcode = 0x76
	OpIsConst Opcode = 0x77
	OpIsImmt  Opcode = 0x78

	// ========================================================================
	// Jumps
	// ========================================================================

	OpJmp        Opcode = 0x79
	OpJmpTrue    Opcode = 0x7A
	OpJmpFalse   Opcode = 0x7B
	OpJmpZero    Opcode = 0x7C
	OpJmpNZero   Opcode = 0x7D
	OpJmpNull    Opcode = 0x7E
	OpJmpNNull   Opcode = 0x7F
	OpJmpEq      Opcode = 0x80
	OpJmpNeq     Opcode = 0x81
	OpJmpLt      Opcode = 0x82
	OpJmpLte     Opcode = 0x83
	OpJmpGt      Opcode = 0x84
	OpJmpGte     Opcode = 0x85
	OpJmpType    Opcode = 0x86
	OpJmpNType   Opcode = 0x87
	OpJmpCond    Opcode = 0x88
	OpJmpNCond   Opcode = 0x89
	OpJmpNFirst  Opcode = 0x8A
	OpJmpNSample Opcode = 0x8B
	OpJmpInt     Opcode = 0x8C
	OpJmpVal     Opcode = 0x8D
	OpJmpValN    Opcode = 0x8E

	// ========================================================================
	// Assertions
	// ========================================================================

	OpAssert  Opcode = 0x8F
	OpAssertM Opcode = 0x90
	OpAssertV Opcode = 0x91

	// ========================================================================
	// Generic operators
	// ========================================================================

	OpGPAdd      Opcode = 0x92
	OpGPSub      Opcode = 0x93
	OpGPMul      Opcode = 0x94
	OpGPDiv      Opcode = 0x95
	OpGPMod      Opcode = 0x96
	OpGPShl      Opcode = 0x97
	OpGPShr      Opcode = 0x98
	OpGPUShr     Opcode = 0x99
	OpGPAnd      Opcode = 0x9A
	OpGPOr       Opcode = 0x9B
	OpGPXor      Opcode = 0x9C
	OpGPDivRem   Opcode = 0x9D
	OpGPDotDot   Opcode = 0x9E
	OpGPDotDotEx Opcode = 0x9F
	OpGPNeg      Opcode = 0xA0
	OpGPCompl    Opcode = 0xA1

	// ========================================================================
	// Properties
	// ========================================================================

	OpLGet Opcode = 0xA2
	OpLSet Opcode = 0xA3
	OpPGet Opcode = 0xA4
	OpPSet Opcode = 0xA5
	OpPVar Opcode = 0xA6
	OpPRef Opcode = 0xA7

	// ========================================================================
	// In-place on registers
	// ========================================================================

	OpIPInc  Opcode = 0xA8
	OpIPDec  Opcode = 0xA9
	OpIPIncA Opcode = 0xAA
	OpIPDecA Opcode = 0xAB
	OpIPIncB Opcode = 0xAC
	OpIPDecB Opcode = 0xAD
	OpIPAdd  Opcode = 0xAE
	OpIPSub  Opcode = 0xAF
	OpIPMul  Opcode = 0xB0
	OpIPDiv  Opcode = 0xB1
	OpIPMod  Opcode = 0xB2
	OpIPShl  Opcode = 0xB3
	OpIPShr  Opcode = 0xB4
	OpIPUShr Opcode = 0xB5
	OpIPAnd  Opcode = 0xB6
	OpIPOr   Opcode = 0xB7
	OpIPXor  Opcode = 0xB8

	// ========================================================================
	// In-place on properties
	// ========================================================================

	OpPIPInc  Opcode = 0xB9
	OpPIPDec  Opcode = 0xBA
	OpPIPIncA Opcode = 0xBB
	OpPIPDecA Opcode = 0xBC
	OpPIPIncB Opcode = 0xBD
	OpPIPDecB Opcode = 0xBE
	OpPIPAdd  Opcode = 0xBF
	OpPIPSub  Opcode = 0xC0
	OpPIPMul  Opcode = 0xC1
	OpPIPDiv  Opcode = 0xC2
	OpPIPMod  Opcode = 0xC3
	OpPIPShl  Opcode = 0xC4
	OpPIPShr  Opcode = 0xC5
	OpPIPUShr Opcode = 0xC6
	OpPIPAnd  Opcode = 0xC7
	OpPIPOr   Opcode = 0xC8
	OpPIPXor  Opcode = 0xC9

	// ========================================================================
	// Indexed access
	// ========================================================================

	OpIGet    Opcode = 0xCA
	OpISet    Opcode = 0xCB
	OpIIPInc  Opcode = 0xCC
	OpIIPDec  Opcode = 0xCD
	OpIIPIncA Opcode = 0xCE
	OpIIPDecA Opcode = 0xCF
	OpIIPIncB Opcode = 0xD0
	OpIIPDecB Opcode = 0xD1
	OpIIPAdd  Opcode = 0xD2
	OpIIPSub  Opcode = 0xD3
	OpIIPMul  Opcode = 0xD4
	OpIIPDiv  Opcode = 0xD5
	OpIIPMod  Opcode = 0xD6
	OpIIPShl  Opcode = 0xD7
	OpIIPShr  Opcode = 0xD8
	OpIIPUShr Opcode = 0xD9
	OpIIPAnd  Opcode = 0xDA
	OpIIPOr   Opcode = 0xDB
	OpIIPXor  Opcode = 0xDC

	// ========================================================================
	// Map access
	// ========================================================================

	OpMGet    Opcode = 0xDD
	OpMSet    Opcode = 0xDE
	OpMVar    Opcode = 0xDF
	OpMRef    Opcode = 0xE0
	OpMIPInc  Opcode = 0xE1
	OpMIPDec  Opcode = 0xE2
	OpMIPIncA Opcode = 0xE3
	OpMIPDecA Opcode = 0xE4
	OpMIPIncB Opcode = 0xE5
	OpMIPDecB Opcode = 0xE6
	OpMIPAdd  Opcode = 0xE7
	OpMIPSub  Opcode = 0xE8
	OpMIPMul  Opcode = 0xE9
	OpMIPDiv  Opcode = 0xEA
	OpMIPMod  Opcode = 0xEB
	OpMIPShl  Opcode = 0xEC
	OpMIPShr  Opcode = 0xED
	OpMIPUShr Opcode = 0xEE
	OpMIPAnd  Opcode = 0xEF
	OpMIPOr   Opcode = 0xF0
	OpMIPXor  Opcode = 0xF1
)

// Form names the instruction variant an opcode decodes into.
type Form uint8

const (
	FormUnsupported Form = iota
	FormNop
	FormLine
	FormEnter
	FormExit
	FormGuard
	FormGuardEnd
	FormCatch
	FormCatchEnd
	FormGuardAll
	FormFinally
	FormFinallyEnd
	FormThrow
	FormCall
	FormInvoke
	FormMethodBind
	FormConstruct
	FormNew
	FormNewChild
	FormReturn
	FormVar
	FormMove
	FormTest
	FormJump
	FormCondJump
	FormJumpInt
	FormJumpVal
	FormAssert
	FormBinary
	FormUnary
	FormLocalGet
	FormLocalSet
	FormPropertyGet
	FormPropertySet
	FormInPlace
	FormPropertyInPlace
)

// OpcodeInfo describes an opcode.
type OpcodeInfo struct {
	Name string
	Form Form
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop:        {"NOP", FormNop},
	OpLine1:      {"LINE_1", FormLine},
	OpLine2:      {"LINE_2", FormLine},
	OpLine3:      {"LINE_3", FormLine},
	OpLineN:      {"LINE_N", FormLine},
	OpEnter:      {"ENTER", FormEnter},
	OpExit:       {"EXIT", FormExit},
	OpGuard:      {"GUARD", FormGuard},
	OpGuardEnd:   {"GUARD_END", FormGuardEnd},
	OpCatch:      {"CATCH", FormCatch},
	OpCatchEnd:   {"CATCH_END", FormCatchEnd},
	OpGuardAll:   {"GUARD_ALL", FormGuardAll},
	OpFinally:    {"FINALLY", FormFinally},
	OpFinallyEnd: {"FINALLY_END", FormFinallyEnd},
	OpThrow:      {"THROW", FormThrow},
	OpCall00:     {"CALL_00", FormCall},
	OpCall01:     {"CALL_01", FormCall},
	OpCall0N:     {"CALL_0N", FormCall},
	OpCall0T:     {"CALL_0T", FormCall},
	OpCall10:     {"CALL_10", FormCall},
	OpCall11:     {"CALL_11", FormCall},
	OpCall1N:     {"CALL_1N", FormCall},
	OpCall1T:     {"CALL_1T", FormCall},
	OpCallN0:     {"CALL_N0", FormCall},
	OpCallN1:     {"CALL_N1", FormCall},
	OpCallNN:     {"CALL_NN", FormCall},
	OpCallNT:     {"CALL_NT", FormCall},
	OpCallT0:     {"CALL_T0", FormCall},
	OpCallT1:     {"CALL_T1", FormCall},
	OpCallTN:     {"CALL_TN", FormCall},
	OpCallTT:     {"CALL_TT", FormCall},
	OpNvok00:     {"NVOK_00", FormInvoke},
	OpNvok01:     {"NVOK_01", FormInvoke},
	OpNvok0N:     {"NVOK_0N", FormInvoke},
	OpNvok0T:     {"NVOK_0T", FormInvoke},
	OpNvok10:     {"NVOK_10", FormInvoke},
	OpNvok11:     {"NVOK_11", FormInvoke},
	OpNvok1N:     {"NVOK_1N", FormInvoke},
	OpNvok1T:     {"NVOK_1T", FormInvoke},
	OpNvokN0:     {"NVOK_N0", FormInvoke},
	OpNvokN1:     {"NVOK_N1", FormInvoke},
	OpNvokNN:     {"NVOK_NN", FormInvoke},
	OpNvokNT:     {"NVOK_NT", FormInvoke},
	OpNvokT0:     {"NVOK_T0", FormInvoke},
	OpNvokT1:     {"NVOK_T1", FormInvoke},
	OpNvokTN:     {"NVOK_TN", FormInvoke},
	OpNvokTT:     {"NVOK_TT", FormInvoke},
	OpMBind:      {"MBIND", FormMethodBind},
	OpFBind:      {"FBIND", FormUnsupported},
	OpSynInit:    {"SYN_INIT", FormUnsupported},
	OpConstr0:    {"CONSTR_0", FormConstruct},
	OpConstr1:    {"CONSTR_1", FormConstruct},
	OpConstrN:    {"CONSTR_N", FormConstruct},
	OpConstrT:    {"CONSTR_T", FormConstruct},
	OpNew0:       {"NEW_0", FormNew},
	OpNew1:       {"NEW_1", FormNew},
	OpNewN:       {"NEW_N", FormNew},
	OpNewT:       {"NEW_T", FormNew},
	OpNewG0:      {"NEWG_0", FormUnsupported},
	OpNewG1:      {"NEWG_1", FormUnsupported},
	OpNewGN:      {"NEWG_N", FormUnsupported},
	OpNewGT:      {"NEWG_T", FormUnsupported},
	OpNewC0:      {"NEWC_0", FormNewChild},
	OpNewC1:      {"NEWC_1", FormNewChild},
	OpNewCN:      {"NEWC_N", FormNewChild},
	OpNewCT:      {"NEWC_T", FormNewChild},
	OpNewCG0:     {"NEWCG_0", FormUnsupported},
	OpNewCG1:     {"NEWCG_1", FormUnsupported},
	OpNewCGN:     {"NEWCG_N", FormUnsupported},
	OpNewCGT:     {"NEWCG_T", FormUnsupported},
	OpNewV0:      {"NEWV_0", FormUnsupported},
	OpNewV1:      {"NEWV_1", FormUnsupported},
	OpNewVN:      {"NEWV_N", FormUnsupported},
	OpNewVT:      {"NEWV_T", FormUnsupported},
	OpReturn0:    {"RETURN_0", FormReturn},
	OpReturn1:    {"RETURN_1", FormReturn},
	OpReturnN:    {"RETURN_N", FormReturn},
	OpReturnT:    {"RETURN_T", FormReturn},
	OpVar:        {"VAR", FormVar},
	OpVarI:       {"VAR_I", FormVar},
	OpVarN:       {"VAR_N", FormVar},
	OpVarIN:      {"VAR_IN", FormVar},
	OpVarD:       {"VAR_D", FormVar},
	OpVarDN:      {"VAR_DN", FormVar},
	OpVarC:       {"VAR_C", FormUnsupported},
	OpVarCN:      {"VAR_CN", FormUnsupported},
	OpVarS:       {"VAR_S", FormUnsupported},
	OpVarSN:      {"VAR_SN", FormUnsupported},
	OpVarT:       {"VAR_T", FormVar},
	OpVarTN:      {"VAR_TN", FormVar},
	OpVarM:       {"VAR_M", FormUnsupported},
	OpVarMN:      {"VAR_MN", FormUnsupported},
	OpMov:        {"MOV", FormMove},
	OpMovVar:     {"MOV_VAR", FormUnsupported},
	OpMovRef:     {"MOV_REF", FormUnsupported},
	OpMovThis:    {"MOV_THIS", FormUnsupported},
	OpMovThisA:   {"MOV_THIS_A", FormUnsupported},
	OpMovType:    {"MOV_TYPE", FormUnsupported},
	OpCast:       {"CAST", FormUnsupported},
	OpCmp:        {"CMP", FormUnsupported},
	OpIsZero:     {"IS_ZERO", FormTest},
	OpIsNZero:    {"IS_NZERO", FormTest},
	OpIsNull:     {"IS_NULL", FormTest},
	OpIsNNull:    {"IS_NNULL", FormTest},
	OpIsEq:       {"IS_EQ", FormTest},
	OpIsNeq:      {"IS_NEQ", FormTest},
	OpIsLt:       {"IS_LT", FormTest},
	OpIsLte:      {"IS_LTE", FormTest},
	OpIsGt:       {"IS_GT", FormTest},
	OpIsGte:      {"IS_GTE", FormTest},
	OpIsNot:      {"IS_NOT", FormTest},
	OpIsType:     {"IS_TYPE", FormTest},
	OpIsNType:    {"IS_NTYPE", FormTest},
	OpIsSvc:      {"IS_SVC", FormUnsupported},
	OpIsConst:    {"IS_CONST", FormUnsupported},
	OpIsImmt:     {"IS_IMMT", FormUnsupported},
	OpJmp:        {"JMP", FormJump},
	OpJmpTrue:    {"JMP_TRUE", FormCondJump},
	OpJmpFalse:   {"JMP_FALSE", FormCondJump},
	OpJmpZero:    {"JMP_ZERO", FormCondJump},
	OpJmpNZero:   {"JMP_NZERO", FormCondJump},
	OpJmpNull:    {"JMP_NULL", FormCondJump},
	OpJmpNNull:   {"JMP_NNULL", FormCondJump},
	OpJmpEq:      {"JMP_EQ", FormCondJump},
	OpJmpNeq:     {"JMP_NEQ", FormCondJump},
	OpJmpLt:      {"JMP_LT", FormCondJump},
	OpJmpLte:     {"JMP_LTE", FormCondJump},
	OpJmpGt:      {"JMP_GT", FormCondJump},
	OpJmpGte:     {"JMP_GTE", FormCondJump},
	OpJmpType:    {"JMP_TYPE", FormCondJump},
	OpJmpNType:   {"JMP_NTYPE", FormCondJump},
	OpJmpCond:    {"JMP_COND", FormUnsupported},
	OpJmpNCond:   {"JMP_NCOND", FormUnsupported},
	OpJmpNFirst:  {"JMP_NFIRST", FormUnsupported},
	OpJmpNSample: {"JMP_NSAMPLE", FormUnsupported},
	OpJmpInt:     {"JMP_INT", FormJumpInt},
	OpJmpVal:     {"JMP_VAL", FormJumpVal},
	OpJmpValN:    {"JMP_VAL_N", FormJumpVal},
	OpAssert:     {"ASSERT", FormAssert},
	OpAssertM:    {"ASSERT_M", FormAssert},
	OpAssertV:    {"ASSERT_V", FormAssert},
	OpGPAdd:      {"GP_ADD", FormBinary},
	OpGPSub:      {"GP_SUB", FormBinary},
	OpGPMul:      {"GP_MUL", FormBinary},
	OpGPDiv:      {"GP_DIV", FormBinary},
	OpGPMod:      {"GP_MOD", FormBinary},
	OpGPShl:      {"GP_SHL", FormBinary},
	OpGPShr:      {"GP_SHR", FormBinary},
	OpGPUShr:     {"GP_USHR", FormBinary},
	OpGPAnd:      {"GP_AND", FormBinary},
	OpGPOr:       {"GP_OR", FormBinary},
	OpGPXor:      {"GP_XOR", FormBinary},
	OpGPDivRem:   {"GP_DIVREM", FormUnsupported},
	OpGPDotDot:   {"GP_DOTDOT", FormBinary},
	OpGPDotDotEx: {"GP_DOTDOTEX", FormBinary},
	OpGPNeg:      {"GP_NEG", FormUnary},
	OpGPCompl:    {"GP_COMPL", FormUnary},
	OpLGet:       {"L_GET", FormLocalGet},
	OpLSet:       {"L_SET", FormLocalSet},
	OpPGet:       {"P_GET", FormPropertyGet},
	OpPSet:       {"P_SET", FormPropertySet},
	OpPVar:       {"P_VAR", FormUnsupported},
	OpPRef:       {"P_REF", FormUnsupported},
	OpIPInc:      {"IP_INC", FormInPlace},
	OpIPDec:      {"IP_DEC", FormInPlace},
	OpIPIncA:     {"IP_INCA", FormInPlace},
	OpIPDecA:     {"IP_DECA", FormInPlace},
	OpIPIncB:     {"IP_INCB", FormInPlace},
	OpIPDecB:     {"IP_DECB", FormInPlace},
	OpIPAdd:      {"IP_ADD", FormInPlace},
	OpIPSub:      {"IP_SUB", FormInPlace},
	OpIPMul:      {"IP_MUL", FormInPlace},
	OpIPDiv:      {"IP_DIV", FormInPlace},
	OpIPMod:      {"IP_MOD", FormInPlace},
	OpIPShl:      {"IP_SHL", FormInPlace},
	OpIPShr:      {"IP_SHR", FormInPlace},
	OpIPUShr:     {"IP_USHR", FormInPlace},
	OpIPAnd:      {"IP_AND", FormInPlace},
	OpIPOr:       {"IP_OR", FormInPlace},
	OpIPXor:      {"IP_XOR", FormInPlace},
	OpPIPInc:     {"PIP_INC", FormPropertyInPlace},
	OpPIPDec:     {"PIP_DEC", FormPropertyInPlace},
	OpPIPIncA:    {"PIP_INCA", FormPropertyInPlace},
	OpPIPDecA:    {"PIP_DECA", FormPropertyInPlace},
	OpPIPIncB:    {"PIP_INCB", FormPropertyInPlace},
	OpPIPDecB:    {"PIP_DECB", FormPropertyInPlace},
	OpPIPAdd:     {"PIP_ADD", FormPropertyInPlace},
	OpPIPSub:     {"PIP_SUB", FormPropertyInPlace},
	OpPIPMul:     {"PIP_MUL", FormPropertyInPlace},
	OpPIPDiv:     {"PIP_DIV", FormPropertyInPlace},
	OpPIPMod:     {"PIP_MOD", FormPropertyInPlace},
	OpPIPShl:     {"PIP_SHL", FormPropertyInPlace},
	OpPIPShr:     {"PIP_SHR", FormPropertyInPlace},
	OpPIPUShr:    {"PIP_USHR", FormPropertyInPlace},
	OpPIPAnd:     {"PIP_AND", FormPropertyInPlace},
	OpPIPOr:      {"PIP_OR", FormPropertyInPlace},
	OpPIPXor:     {"PIP_XOR", FormPropertyInPlace},
	OpIGet:       {"I_GET", FormUnsupported},
	OpISet:       {"I_SET", FormUnsupported},
	OpIIPInc:     {"IIP_INC", FormUnsupported},
	OpIIPDec:     {"IIP_DEC", FormUnsupported},
	OpIIPIncA:    {"IIP_INCA", FormUnsupported},
	OpIIPDecA:    {"IIP_DECA", FormUnsupported},
	OpIIPIncB:    {"IIP_INCB", FormUnsupported},
	OpIIPDecB:    {"IIP_DECB", FormUnsupported},
	OpIIPAdd:     {"IIP_ADD", FormUnsupported},
	OpIIPSub:     {"IIP_SUB", FormUnsupported},
	OpIIPMul:     {"IIP_MUL", FormUnsupported},
	OpIIPDiv:     {"IIP_DIV", FormUnsupported},
	OpIIPMod:     {"IIP_MOD", FormUnsupported},
	OpIIPShl:     {"IIP_SHL", FormUnsupported},
	OpIIPShr:     {"IIP_SHR", FormUnsupported},
	OpIIPUShr:    {"IIP_USHR", FormUnsupported},
	OpIIPAnd:     {"IIP_AND", FormUnsupported},
	OpIIPOr:      {"IIP_OR", FormUnsupported},
	OpIIPXor:     {"IIP_XOR", FormUnsupported},
	OpMGet:       {"M_GET", FormUnsupported},
	OpMSet:       {"M_SET", FormUnsupported},
	OpMVar:       {"M_VAR", FormUnsupported},
	OpMRef:       {"M_REF", FormUnsupported},
	OpMIPInc:     {"MIP_INC", FormUnsupported},
	OpMIPDec:     {"MIP_DEC", FormUnsupported},
	OpMIPIncA:    {"MIP_INCA", FormUnsupported},
	OpMIPDecA:    {"MIP_DECA", FormUnsupported},
	OpMIPIncB:    {"MIP_INCB", FormUnsupported},
	OpMIPDecB:    {"MIP_DECB", FormUnsupported},
	OpMIPAdd:     {"MIP_ADD", FormUnsupported},
	OpMIPSub:     {"MIP_SUB", FormUnsupported},
	OpMIPMul:     {"MIP_MUL", FormUnsupported},
	OpMIPDiv:     {"MIP_DIV", FormUnsupported},
	OpMIPMod:     {"MIP_MOD", FormUnsupported},
	OpMIPShl:     {"MIP_SHL", FormUnsupported},
	OpMIPShr:     {"MIP_SHR", FormUnsupported},
	OpMIPUShr:    {"MIP_USHR", FormUnsupported},
	OpMIPAnd:     {"MIP_AND", FormUnsupported},
	OpMIPOr:      {"MIP_OR", FormUnsupported},
	OpMIPXor:     {"MIP_XOR", FormUnsupported},
}

var opcodeByName map[string]Opcode

func init() {
	opcodeByName = make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		opcodeByName[info.Name] = op
	}
}

// GetOpcodeInfo returns information about an opcode.
func GetOpcodeInfo(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeTable[op]
	return info, ok
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	if info, ok := opcodeTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))
}

// Form returns the variant the opcode decodes into.
func (op Opcode) Form() Form {
	return opcodeTable[op].Form
}

// Supported reports whether instructions with this opcode can be decoded
// and executed.
func (op Opcode) Supported() bool {
	info, ok := opcodeTable[op]
	return ok && info.Form != FormUnsupported
}

// ParseOpcode looks an opcode up by mnemonic in any case style:
// "JMP_TRUE", "jmp_true", "jmpTrue" and "jmp-true" are all accepted.
func ParseOpcode(name string) (Opcode, bool) {
	key := strcase.UpperSnakeCase(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	op, ok := opcodeByName[key]
	return op, ok
}

// AllOpcodes returns every defined opcode in ascending order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeTable))
	for i := 0; i < 256; i++ {
		if _, ok := opcodeTable[Opcode(i)]; ok {
			ops = append(ops, Opcode(i))
		}
	}
	return ops
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeTable)
}
