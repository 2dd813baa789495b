// This file is part of nyx, a small register machine and toolchain.
//
// Adapted from github.com/db47h/ngaro's single-Cell register file
// (vm.Instance.Tos/data/address), widened to the 16-bank general purpose
// and floating point register file plus the three special registers
// described by the assembler/vm data model.

package vm

import (
	"math"

	"github.com/ciathefed/nyx/ast"
	"github.com/pkg/errors"
)

// Registers is the VM's register file: 16 general purpose banks, each
// backing four integer-width views (b/w/d/q) over the same u64 slot; 16
// floating point banks, each backing the float and double views over the
// same u64 bit pattern; and the three special registers ip, sp and bp.
//
// A narrow write (b/w/d) preserves the untouched high bits of the
// underlying u64, matching how a real register file aliases sub-registers.
type Registers struct {
	gpr     [16]uint64
	fpr     [16]uint64
	special [3]uint64
}

// Get reads r's current value as an Immediate tagged with r's natural size.
func (r *Registers) Get(reg ast.Register) ast.Immediate {
	switch reg.Kind() {
	case ast.Special:
		return ast.QWordImm(r.special[reg.Bank()])
	case ast.FloatingPoint:
		bits := r.fpr[reg.Bank()]
		if reg.Size() == ast.Float {
			return ast.FloatImm(math.Float32frombits(uint32(bits)))
		}
		return ast.DoubleImm(math.Float64frombits(bits))
	default:
		v := r.gpr[reg.Bank()]
		switch reg.Size() {
		case ast.Byte:
			return ast.ByteImm(uint8(v))
		case ast.Word:
			return ast.WordImm(uint16(v))
		case ast.DWord:
			return ast.DWordImm(uint32(v))
		default:
			return ast.QWordImm(v)
		}
	}
}

// Set writes val, coerced to r's natural size, into r. Writes narrower than
// 64 bits preserve the untouched high bits of the backing slot.
func (r *Registers) Set(reg ast.Register, val ast.Immediate) {
	switch reg.Kind() {
	case ast.Special:
		r.special[reg.Bank()] = val.Coerce(ast.QWord).AsU64()
	case ast.FloatingPoint:
		if reg.Size() == ast.Float {
			widened := float64(val.Coerce(ast.Float).AsF32())
			r.fpr[reg.Bank()] = math.Float64bits(widened)
		} else {
			r.fpr[reg.Bank()] = math.Float64bits(val.Coerce(ast.Double).AsF64())
		}
	default:
		bank := reg.Bank()
		switch reg.Size() {
		case ast.Byte:
			r.gpr[bank] = r.gpr[bank]&^0xFF | uint64(val.Coerce(ast.Byte).AsU8())
		case ast.Word:
			r.gpr[bank] = r.gpr[bank]&^0xFFFF | uint64(val.Coerce(ast.Word).AsU16())
		case ast.DWord:
			r.gpr[bank] = r.gpr[bank]&^0xFFFFFFFF | uint64(val.Coerce(ast.DWord).AsU32())
		default:
			r.gpr[bank] = val.Coerce(ast.QWord).AsU64()
		}
	}
}

// IP, SP and BP are convenience accessors for the three special registers,
// used pervasively by the fetch/decode/dispatch loop.
func (r *Registers) IP() uint64      { return r.special[ast.IP.Bank()] }
func (r *Registers) SetIP(v uint64)  { r.special[ast.IP.Bank()] = v }
func (r *Registers) SP() uint64      { return r.special[ast.SP.Bank()] }
func (r *Registers) SetSP(v uint64)  { r.special[ast.SP.Bank()] = v }
func (r *Registers) BP() uint64      { return r.special[ast.BP.Bank()] }
func (r *Registers) SetBP(v uint64)  { r.special[ast.BP.Bank()] = v }

// invalidRegisterByte builds the error for a register byte with no
// assigned meaning.
func invalidRegisterByte(b byte) error {
	return errors.Errorf("invalid register byte: %#02x", b)
}
