package ast

import "math"

// Immediate is a tagged numeric union over the six data sizes. It is the
// unit of register read/write and memory load/store. Grounded on
// original_source's parser::immediate::Immediate, widened from the
// teacher's single untagged vm.Cell.
type Immediate struct {
	size DataSize
	bits uint64 // raw storage: integers zero-extended, floats bit-cast to their width
}

func ByteImm(v uint8) Immediate    { return Immediate{Byte, uint64(v)} }
func WordImm(v uint16) Immediate   { return Immediate{Word, uint64(v)} }
func DWordImm(v uint32) Immediate  { return Immediate{DWord, uint64(v)} }
func QWordImm(v uint64) Immediate  { return Immediate{QWord, v} }
func FloatImm(v float32) Immediate { return Immediate{Float, uint64(math.Float32bits(v))} }
func DoubleImm(v float64) Immediate {
	return Immediate{Double, math.Float64bits(v)}
}

// Size reports the Immediate's tag.
func (m Immediate) Size() DataSize { return m.size }

// AsU8 truncates the immediate to an 8-bit integer. Floats truncate toward
// zero before narrowing, matching original_source's `as u8` coercions.
func (m Immediate) AsU8() uint8 { return uint8(m.asU64Trunc()) }

// AsU16 truncates the immediate to a 16-bit integer.
func (m Immediate) AsU16() uint16 { return uint16(m.asU64Trunc()) }

// AsU32 truncates the immediate to a 32-bit integer.
func (m Immediate) AsU32() uint32 { return uint32(m.asU64Trunc()) }

// AsU64 zero-extends (for narrower integers) or truncates (for floats) the
// immediate to a 64-bit integer.
func (m Immediate) AsU64() uint64 { return m.asU64Trunc() }

// AsUsize is AsU64 as a platform-width unsigned offset.
func (m Immediate) AsUsize() uint64 { return m.AsU64() }

// AsI64 reinterprets AsU64 as a signed 64-bit integer, for callers that
// need signed arithmetic on a QWord-tagged Immediate.
func (m Immediate) AsI64() int64 { return int64(m.AsU64()) }

func (m Immediate) asU64Trunc() uint64 {
	switch m.size {
	case Byte:
		return uint64(uint8(m.bits))
	case Word:
		return uint64(uint16(m.bits))
	case DWord:
		return uint64(uint32(m.bits))
	case QWord:
		return m.bits
	case Float:
		return uint64(int64(math.Float32frombits(uint32(m.bits))))
	case Double:
		return uint64(int64(math.Float64frombits(m.bits)))
	default:
		return 0
	}
}

// AsF32 converts the immediate to a float32 by value (integers) or by
// narrowing (double).
func (m Immediate) AsF32() float32 {
	switch m.size {
	case Byte:
		return float32(uint8(m.bits))
	case Word:
		return float32(uint16(m.bits))
	case DWord:
		return float32(uint32(m.bits))
	case QWord:
		return float32(m.bits)
	case Float:
		return math.Float32frombits(uint32(m.bits))
	case Double:
		return float32(math.Float64frombits(m.bits))
	default:
		return 0
	}
}

// AsF64 converts the immediate to a float64 by value (integers) or by
// widening (float).
func (m Immediate) AsF64() float64 {
	switch m.size {
	case Byte:
		return float64(uint8(m.bits))
	case Word:
		return float64(uint16(m.bits))
	case DWord:
		return float64(uint32(m.bits))
	case QWord:
		return float64(m.bits)
	case Float:
		return float64(math.Float32frombits(uint32(m.bits)))
	case Double:
		return math.Float64frombits(m.bits)
	default:
		return 0
	}
}

// Coerce converts the immediate to the given data size using the total
// coercion rules from spec.md §3: integer-to-integer via
// truncation/zero-extension, float-to-integer via truncation of the
// floating value, integer-to-float by value conversion.
func (m Immediate) Coerce(to DataSize) Immediate {
	switch to {
	case Byte:
		return ByteImm(m.AsU8())
	case Word:
		return WordImm(m.AsU16())
	case DWord:
		return DWordImm(m.AsU32())
	case QWord:
		return QWordImm(m.AsU64())
	case Float:
		return FloatImm(m.AsF32())
	case Double:
		return DoubleImm(m.AsF64())
	default:
		return m
	}
}

// Equals reports lhs == rhs. Per spec.md §3, equality is defined only when
// tags match; a tag mismatch compares unequal.
func (m Immediate) Equals(other Immediate) bool {
	if m.size != other.size {
		return false
	}
	if m.size == Float || m.size == Double {
		return m.AsF64() == other.AsF64()
	}
	return m.bits == other.bits
}

// LessThan reports lhs < rhs. Per spec.md §3 and the "cmp does not
// distinguish signed vs unsigned" open question, integer registers compare
// as unsigned and float/double registers compare as IEEE ordered values. A
// tag mismatch is never less-than.
func (m Immediate) LessThan(other Immediate) bool {
	if m.size != other.size {
		return false
	}
	if m.size == Float || m.size == Double {
		return m.AsF64() < other.AsF64()
	}
	return m.bits < other.bits
}

// WriteInto encodes the immediate little-endian (integers) or as its IEEE
// 754 bit pattern (floats) into dst, which must be at least Size().SizeInBytes() long.
func (m Immediate) WriteInto(dst []byte) {
	n := m.size.SizeInBytes()
	v := m.bits
	for i := 0; i < n; i++ {
		dst[i] = byte(v)
		v >>= 8
	}
}

// ImmediateFromBytes decodes an Immediate of the given size from little-endian
// (integers) / IEEE-754 (floats) bytes. src must be at least size.SizeInBytes() long.
func ImmediateFromBytes(size DataSize, src []byte) Immediate {
	n := size.SizeInBytes()
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(src[i])
	}
	return Immediate{size, v}
}
