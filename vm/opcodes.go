// This file is part of nyx, a small register machine and toolchain.
//
// Thin wire-decoding helpers over the operand encoding shared with the
// asm package (ast.InstrEncoding), adapted from ngaro's asm/asm.go opcode
// name table (opcodes/opcodeIndex) split by concern: naming lives with the
// WireOp type in ast, decoding lives here next to the dispatch loop.

package vm

import (
	"github.com/ciathefed/nyx/ast"
	"github.com/pkg/errors"
)

// AddressingMode and OperandKind are re-exported under the vm package so
// existing call sites read naturally; the canonical definitions live in
// ast.InstrEncoding, shared with the assembler's encoder.
type AddressingMode = ast.AddressingMode
type OperandKind = ast.OperandKind
type WireOp = ast.WireOp

const (
	AddrRegisterBase  = ast.AddrRegisterBase
	AddrImmediateBase = ast.AddrImmediateBase

	OperandNone      = ast.OperandNone
	OperandRegister  = ast.OperandRegister
	OperandAddress   = ast.OperandAddress
	OperandDataSize  = ast.OperandDataSize
	OperandImmDest   = ast.OperandImmDest
	OperandImmSize   = ast.OperandImmSize
	OperandImm8      = ast.OperandImm8
	OperandCString   = ast.OperandCString
)

var instrEncoding = ast.InstrEncoding

func wireOpFromByte(b byte) (ast.WireOp, error) {
	op := ast.WireOp(b)
	if _, ok := instrEncoding[op]; !ok {
		return 0, errors.Errorf("invalid opcode byte: %#02x", b)
	}
	return op, nil
}
