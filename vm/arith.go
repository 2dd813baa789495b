// This file is part of nyx, a small register machine and toolchain.
//
// Arithmetic, comparison and increment/decrement/negate helpers for the
// dispatch loop in core.go. Split out of core.go the way ngaro keeps its
// opcode table separate from its dispatch switch, to keep Step readable.
// Grouping the whole arithmetic/bitwise family behind one generic helper
// keyed on the source mnemonic (rather than one dispatch case per wire
// opcode) mirrors ngaro's single op.go arithmetic table.

package vm

import (
	"github.com/ciathefed/nyx/ast"
	"github.com/pkg/errors"
)

// execArith performs dst = src1 OP src2, honoring dst's tag: a floating
// point destination computes in float64/float32, everything else computes
// as an unsigned integer of dst's width and wraps on overflow. src2 may
// already be a register's value or a decoded immediate; the caller
// resolves which before calling.
func (i *Instance) execArith(op ast.Opcode, dst, src1 ast.Register, src2 ast.Immediate) error {
	a := i.Regs.Get(src1)
	b := src2

	if dst.Kind() == ast.FloatingPoint {
		x, y := a.AsF64(), b.AsF64()
		var r float64
		switch op {
		case ast.OpAdd:
			r = x + y
		case ast.OpSub:
			r = x - y
		case ast.OpMul:
			r = x * y
		case ast.OpDiv:
			r = x / y
		default:
			return errors.Errorf("opcode %s not defined on floating point registers", op)
		}
		i.Regs.Set(dst, coerceFloatLike(dst.Size(), r))
		return nil
	}

	x, y := a.AsU64(), b.AsU64()
	var r uint64
	switch op {
	case ast.OpAdd:
		r = x + y
	case ast.OpSub:
		r = x - y
	case ast.OpMul:
		r = x * y
	case ast.OpDiv:
		if y == 0 {
			return errors.New("division by zero")
		}
		r = x / y
	case ast.OpAnd:
		r = x & y
	case ast.OpOr:
		r = x | y
	case ast.OpXor:
		r = x ^ y
	case ast.OpShl:
		r = x << (y & 63)
	case ast.OpShr:
		r = x >> (y & 63)
	}
	i.Regs.Set(dst, ast.QWordImm(r).Coerce(dst.Size()))
	return nil
}

func coerceFloatLike(size ast.DataSize, v float64) ast.Immediate {
	if size == ast.Float {
		return ast.FloatImm(float32(v))
	}
	return ast.DoubleImm(v)
}

// execCmp sets the eq/lt condition flags by comparing lhs's register value
// against rhs, an already-resolved value (either another register's or a
// decoded immediate's). Integer registers compare as unsigned; float/double
// registers compare as IEEE ordered values.
func (i *Instance) execCmp(lhs ast.Register, rhs ast.Immediate) {
	a := i.Regs.Get(lhs)
	i.eq = a.Equals(rhs)
	i.lt = a.LessThan(rhs)
}

func addImmediate(v ast.Immediate, delta int64) ast.Immediate {
	if v.Size() == ast.Float || v.Size() == ast.Double {
		return coerceFloatLike(v.Size(), v.AsF64()+float64(delta))
	}
	return ast.QWordImm(uint64(int64(v.AsU64()) + delta)).Coerce(v.Size())
}

func negImmediate(v ast.Immediate) ast.Immediate {
	if v.Size() == ast.Float || v.Size() == ast.Double {
		return coerceFloatLike(v.Size(), -v.AsF64())
	}
	return ast.QWordImm(uint64(-int64(v.AsU64()))).Coerce(v.Size())
}
