package vm

import (
	"testing"

	"github.com/ciathefed/nyx/ast"
)

func TestRegistersNarrowWritePreservesHighBits(t *testing.T) {
	var r Registers
	r.Set(ast.Q0, ast.QWordImm(0x1122334455667788))
	r.Set(ast.B0, ast.ByteImm(0xFF))
	got := r.Get(ast.Q0).AsU64()
	want := uint64(0x11223344556677FF)
	if got != want {
		t.Errorf("Get(q0) after Set(b0, 0xFF) = %#x, want %#x", got, want)
	}
}

func TestRegistersWidthAliasing(t *testing.T) {
	var r Registers
	r.Set(ast.D3, ast.DWordImm(0xCAFEBABE))
	if got := r.Get(ast.Q3).AsU64(); got != 0xCAFEBABE {
		t.Errorf("Get(q3) = %#x, want 0xCAFEBABE", got)
	}
	if got := r.Get(ast.B3).AsU8(); got != 0xBE {
		t.Errorf("Get(b3) = %#x, want 0xBE", got)
	}
}

func TestRegistersFloatDoubleShareSlot(t *testing.T) {
	var r Registers
	r.Set(ast.DD2, ast.DoubleImm(3.25))
	// FF2 reinterprets the low 32 bits of the same u64 slot as a float32,
	// not a narrowing conversion of the double's value.
	got := r.Get(ast.FF2)
	if got.Size() != ast.Float {
		t.Errorf("Get(ff2).Size() = %v, want Float", got.Size())
	}
}

func TestRegistersFloatWriteWidensToDouble(t *testing.T) {
	var r Registers
	r.Set(ast.FF1, ast.FloatImm(1.0))
	got := r.Get(ast.DD1)
	if got.Size() != ast.Double {
		t.Fatalf("Get(dd1).Size() = %v, want Double", got.Size())
	}
	if got.AsF64() != 1.0 {
		t.Errorf("Get(dd1) after Set(ff1, 1.0) = %v, want 1.0", got.AsF64())
	}
}

func TestRegistersSpecialAccessors(t *testing.T) {
	var r Registers
	r.SetIP(0x1000)
	r.SetSP(0x2000)
	r.SetBP(0x3000)
	if r.IP() != 0x1000 || r.SP() != 0x2000 || r.BP() != 0x3000 {
		t.Errorf("IP/SP/BP = %#x/%#x/%#x", r.IP(), r.SP(), r.BP())
	}
}
