package ast

import "github.com/pkg/errors"

// Register is one of the 99 register names: for each of 16 banks, the six
// width views {b,w,d,q,ff,dd}, plus the three special registers ip/sp/bp.
// Ordinal values are the wire encoding used for the 1-byte register id operand
// (spec.md §6); order must never change.
type Register uint8

const (
	B0 Register = iota
	W0
	D0
	Q0
	FF0
	DD0
	B1
	W1
	D1
	Q1
	FF1
	DD1
	B2
	W2
	D2
	Q2
	FF2
	DD2
	B3
	W3
	D3
	Q3
	FF3
	DD3
	B4
	W4
	D4
	Q4
	FF4
	DD4
	B5
	W5
	D5
	Q5
	FF5
	DD5
	B6
	W6
	D6
	Q6
	FF6
	DD6
	B7
	W7
	D7
	Q7
	FF7
	DD7
	B8
	W8
	D8
	Q8
	FF8
	DD8
	B9
	W9
	D9
	Q9
	FF9
	DD9
	B10
	W10
	D10
	Q10
	FF10
	DD10
	B11
	W11
	D11
	Q11
	FF11
	DD11
	B12
	W12
	D12
	Q12
	FF12
	DD12
	B13
	W13
	D13
	Q13
	FF13
	DD13
	B14
	W14
	D14
	Q14
	FF14
	DD14
	B15
	W15
	D15
	Q15
	FF15
	DD15

	IP
	SP
	BP
)

var registerNames = [...]string{
	"b0", "w0", "d0", "q0", "ff0", "dd0",
	"b1", "w1", "d1", "q1", "ff1", "dd1",
	"b2", "w2", "d2", "q2", "ff2", "dd2",
	"b3", "w3", "d3", "q3", "ff3", "dd3",
	"b4", "w4", "d4", "q4", "ff4", "dd4",
	"b5", "w5", "d5", "q5", "ff5", "dd5",
	"b6", "w6", "d6", "q6", "ff6", "dd6",
	"b7", "w7", "d7", "q7", "ff7", "dd7",
	"b8", "w8", "d8", "q8", "ff8", "dd8",
	"b9", "w9", "d9", "q9", "ff9", "dd9",
	"b10", "w10", "d10", "q10", "ff10", "dd10",
	"b11", "w11", "d11", "q11", "ff11", "dd11",
	"b12", "w12", "d12", "q12", "ff12", "dd12",
	"b13", "w13", "d13", "q13", "ff13", "dd13",
	"b14", "w14", "d14", "q14", "ff14", "dd14",
	"b15", "w15", "d15", "q15", "ff15", "dd15",
	"ip", "sp", "bp",
}

func (r Register) String() string {
	if int(r) < len(registerNames) {
		return registerNames[r]
	}
	return "invalid"
}

var registerByName = func() map[string]Register {
	m := make(map[string]Register, len(registerNames))
	for i, n := range registerNames {
		m[n] = Register(i)
	}
	return m
}()

// ParseRegister resolves a register mnemonic such as "q3" or "ip" to its Register.
func ParseRegister(s string) (Register, error) {
	if r, ok := registerByName[s]; ok {
		return r, nil
	}
	return 0, errors.Errorf("unknown register %q", s)
}

// RegisterFromByte decodes the wire encoding of a Register.
func RegisterFromByte(b byte) (Register, error) {
	if int(b) >= len(registerNames) {
		return 0, errors.Errorf("invalid register byte: %d", b)
	}
	return Register(b), nil
}

// RegisterKind distinguishes the three physical backing stores a Register
// aliases into.
type RegisterKind uint8

const (
	GeneralPurpose RegisterKind = iota
	FloatingPoint
	Special
)

// Kind, Bank and Size report a register's physical bank index and category
// so Registers.Get/Set can dispatch to the right backing array without a
// 99-way switch.
func (r Register) Kind() RegisterKind {
	switch {
	case r < IP:
		if r%6 == 4 || r%6 == 5 {
			return FloatingPoint
		}
		return GeneralPurpose
	default:
		return Special
	}
}

// Bank returns the 0-15 physical bank index a general-purpose or
// floating-point register aliases, or the 0-2 special-slot index for
// ip/sp/bp.
func (r Register) Bank() int {
	if r >= IP {
		return int(r - IP)
	}
	return int(r) / 6
}

// Size returns the register's natural DataSize view, per spec.md §3's
// "a function maps a concrete register to its natural data size".
func (r Register) Size() DataSize {
	if r >= IP {
		return QWord
	}
	switch r % 6 {
	case 0:
		return Byte
	case 1:
		return Word
	case 2:
		return DWord
	case 3:
		return QWord
	case 4:
		return Float
	default:
		return Double
	}
}
