// This file is part of nyx, a small register machine and toolchain.
//
// Package-level entry points, grounded on ngaro's asm.Assemble/Disassemble/
// DisassembleAll (asm/asm.go), which wrap the parser/assembler internals
// behind a small functional surface. Nyx widens Disassemble from a single
// opcode table lookup to walking the same ast.InstrEncoding operand shapes
// the assembler encodes with.
package asm

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ciathefed/nyx/ast"
	"github.com/ciathefed/nyx/internal/diag"
	"github.com/ciathefed/nyx/internal/parser"
	"github.com/ciathefed/nyx/preprocessor"
	"github.com/pkg/errors"
)

// options accumulates the settings Option functions configure for one call
// to Assemble.
type options struct {
	includeDirs []string
}

// Option configures one aspect of Assemble.
type Option func(*options)

// WithIncludeDirs sets the directories the preprocessor's #include searches
// after a file's own directory.
func WithIncludeDirs(dirs []string) Option {
	return func(o *options) { o.includeDirs = dirs }
}

// Assemble lexes, parses, preprocesses and assembles source read from r into
// a linked image (header || text || data), ready to run. name is the
// source's filename, used for diagnostics and to resolve #include
// directives relative to it.
func Assemble(name string, r io.Reader, opts ...Option) ([]byte, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	interner := &ast.Interner{}
	p := parser.New(name, r, interner)
	stmts, err := p.ParseProgram()
	if err != nil {
		return nil, err
	}

	pp := preprocessor.New(interner)
	pp.IncludeDirs = o.includeDirs
	stmts, err = pp.Process(name, p.Source(), stmts)
	if err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}

	a := newAssembler(interner, name, p.Source())
	return a.Assemble(stmts)
}

// disasmState mirrors encodeState: it tracks the size context an
// OperandImmDest/OperandImmSize needs while decoding an instruction's
// operand list, so Disassemble stays a straight walk of ast.InstrEncoding
// with no per-opcode special casing.
type disasmState struct {
	haveReg  bool
	regSize  ast.DataSize
	haveSize bool
	curSize  ast.DataSize
}

// Disassemble decodes a single instruction from an assembled image's
// text||data body at byte offset pc, writes its mnemonic and operands to w,
// and returns the offset of the next instruction.
func Disassemble(body []byte, pc uint64, w io.Writer) (next uint64, err error) {
	ew, _ := w.(*diag.ErrWriter)
	if ew == nil {
		ew = diag.NewErrWriter(w)
	}

	if pc >= uint64(len(body)) {
		return pc, errors.New("disassemble: offset out of range")
	}
	op := ast.WireOp(body[pc])
	pc++
	io.WriteString(ew, op.String())

	spec, ok := ast.InstrEncoding[op]
	if !ok {
		return pc, errors.Errorf("disassemble: unknown opcode byte %#02x", body[pc-1])
	}
	var st disasmState
	for idx, kind := range spec.Kinds {
		if idx == 0 {
			ew.Write([]byte{' '})
		} else {
			io.WriteString(ew, ", ")
		}
		var n uint64
		n, err = disassembleOperand(ew, body, pc, kind, &st)
		pc += n
		if err != nil {
			return pc, err
		}
	}
	return pc, ew.Err
}

// disassembleOperand writes one decoded operand starting at body[pc] and
// returns the number of bytes it consumed.
func disassembleOperand(w io.Writer, body []byte, pc uint64, kind ast.OperandKind, st *disasmState) (uint64, error) {
	switch kind {
	case ast.OperandRegister:
		if pc >= uint64(len(body)) {
			return 0, errors.New("disassemble: truncated register operand")
		}
		reg, err := ast.RegisterFromByte(body[pc])
		if err != nil {
			return 0, err
		}
		io.WriteString(w, reg.String())
		if !st.haveReg {
			st.haveReg = true
			st.regSize = reg.Size()
		}
		return 1, nil
	case ast.OperandDataSize:
		if pc >= uint64(len(body)) {
			return 0, errors.New("disassemble: truncated data size operand")
		}
		size, err := ast.DataSizeFromByte(body[pc])
		if err != nil {
			return 0, err
		}
		io.WriteString(w, size.String())
		st.haveSize = true
		st.curSize = size
		return 1, nil
	case ast.OperandImmDest:
		return disassembleRawImmediate(w, body, pc, st.regSize)
	case ast.OperandImmSize:
		return disassembleRawImmediate(w, body, pc, st.curSize)
	case ast.OperandImm8:
		return disassembleRawImmediate(w, body, pc, ast.QWord)
	case ast.OperandAddress:
		return disassembleAddress(w, body, pc)
	case ast.OperandCString:
		return disassembleCString(w, body, pc)
	default:
		return 0, errors.New("disassemble: unsupported operand kind")
	}
}

func disassembleRawImmediate(w io.Writer, body []byte, pc uint64, size ast.DataSize) (uint64, error) {
	n := uint64(size.SizeInBytes())
	if pc+n > uint64(len(body)) {
		return 0, errors.New("disassemble: truncated immediate operand")
	}
	imm := ast.ImmediateFromBytes(size, body[pc:pc+n])
	writeImmediate(w, imm)
	return n, nil
}

func disassembleCString(w io.Writer, body []byte, pc uint64) (uint64, error) {
	start := pc
	for pc < uint64(len(body)) && body[pc] != 0 {
		pc++
	}
	if pc >= uint64(len(body)) {
		return 0, errors.New("disassemble: unterminated string operand")
	}
	fmt.Fprintf(w, "%q", string(body[start:pc]))
	return pc - start + 1, nil
}

func writeImmediate(w io.Writer, imm ast.Immediate) {
	switch imm.Size() {
	case ast.Float, ast.Double:
		fmt.Fprintf(w, "%g", imm.AsF64())
	default:
		fmt.Fprintf(w, "%d", imm.AsU64())
	}
}

func disassembleAddress(w io.Writer, body []byte, pc uint64) (uint64, error) {
	start := pc
	if pc >= uint64(len(body)) {
		return 0, errors.New("disassemble: truncated address operand")
	}
	mode := ast.AddressingMode(body[pc])
	pc++
	io.WriteString(w, "[")
	switch mode {
	case ast.AddrRegisterBase:
		reg, err := ast.RegisterFromByte(body[pc])
		if err != nil {
			return 0, err
		}
		io.WriteString(w, reg.String())
		pc++
	case ast.AddrImmediateBase:
		if pc+8 > uint64(len(body)) {
			return 0, errors.New("disassemble: truncated address base")
		}
		fmt.Fprintf(w, "%#x", binary.LittleEndian.Uint64(body[pc:pc+8]))
		pc += 8
	default:
		return 0, errors.Errorf("disassemble: invalid addressing mode byte %#02x", mode)
	}
	if pc+8 > uint64(len(body)) {
		return 0, errors.New("disassemble: truncated address offset")
	}
	off := int64(binary.LittleEndian.Uint64(body[pc : pc+8]))
	if off != 0 {
		fmt.Fprintf(w, " + %d", off)
	}
	pc += 8
	io.WriteString(w, "]")
	return pc - start, nil
}

// DisassembleAll writes a disassembly of an entire text||data body to w,
// one instruction per line prefixed with its byte offset. It stops and
// returns an error at the first byte that does not decode as a valid
// instruction, which is expected once the cursor walks off the end of text
// into data: callers that know the text section's length should slice body
// down to it first.
func DisassembleAll(body []byte, w io.Writer) error {
	ew := diag.NewErrWriter(w)
	for pc := uint64(0); pc < uint64(len(body)); {
		fmt.Fprintf(ew, "% 10d\t", pc)
		next, err := Disassemble(body, pc, ew)
		if err != nil {
			return err
		}
		ew.Write([]byte{'\n'})
		if ew.Err != nil {
			return ew.Err
		}
		pc = next
	}
	return nil
}
