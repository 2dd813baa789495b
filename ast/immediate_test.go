package ast

import "testing"

func TestImmediateCoerceIntegerNarrowing(t *testing.T) {
	v := QWordImm(0x1_0203_0405)
	if got := v.Coerce(Byte).AsU8(); got != 0x05 {
		t.Errorf("Coerce(Byte).AsU8() = %#x, want 0x05", got)
	}
	if got := v.Coerce(Word).AsU16(); got != 0x0405 {
		t.Errorf("Coerce(Word).AsU16() = %#x, want 0x0405", got)
	}
	if got := v.Coerce(DWord).AsU32(); got != 0x0203_0405 {
		t.Errorf("Coerce(DWord).AsU32() = %#x, want 0x02030405", got)
	}
}

func TestImmediateCoerceFloatToInteger(t *testing.T) {
	v := DoubleImm(3.9)
	if got := v.Coerce(QWord).AsU64(); got != 3 {
		t.Errorf("Coerce(QWord).AsU64() = %d, want 3 (truncated)", got)
	}
}

func TestImmediateCoerceIntegerToFloat(t *testing.T) {
	v := QWordImm(42)
	if got := v.Coerce(Double).AsF64(); got != 42.0 {
		t.Errorf("Coerce(Double).AsF64() = %v, want 42.0", got)
	}
	if got := v.Coerce(Float).AsF32(); got != 42.0 {
		t.Errorf("Coerce(Float).AsF32() = %v, want 42.0", got)
	}
}

func TestImmediateEqualsTagGated(t *testing.T) {
	a := ByteImm(5)
	b := QWordImm(5)
	if a.Equals(b) {
		t.Error("Byte(5).Equals(QWord(5)) should be false: tags differ")
	}
	if !a.Equals(ByteImm(5)) {
		t.Error("Byte(5).Equals(Byte(5)) should be true")
	}
	if !DoubleImm(1.5).Equals(DoubleImm(1.5)) {
		t.Error("Double(1.5).Equals(Double(1.5)) should be true")
	}
}

func TestImmediateLessThanUnsigned(t *testing.T) {
	// QWord comparisons are always unsigned: a "negative" 64-bit pattern
	// compares greater than a small positive one.
	var negOne int64 = -1
	neg := QWordImm(uint64(negOne))
	pos := QWordImm(1)
	if neg.LessThan(pos) {
		t.Error("unsigned bit pattern of -1 should not be less than 1")
	}
	if !pos.LessThan(neg) {
		t.Error("1 should be less than the unsigned bit pattern of -1")
	}
}

func TestImmediateLessThanTagMismatch(t *testing.T) {
	if ByteImm(1).LessThan(QWordImm(200)) {
		t.Error("LessThan should be false across mismatched tags regardless of value")
	}
}

func TestImmediateWriteIntoAndFromBytes(t *testing.T) {
	orig := DWordImm(0xDEADBEEF)
	buf := make([]byte, 4)
	orig.WriteInto(buf)
	want := []byte{0xEF, 0xBE, 0xAD, 0xDE}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("WriteInto = %x, want %x", buf, want)
		}
	}
	back := ImmediateFromBytes(DWord, buf)
	if !back.Equals(orig) {
		t.Errorf("round trip = %v, want %v", back, orig)
	}
}

func TestImmediateFloatBitPattern(t *testing.T) {
	f := FloatImm(1.5)
	buf := make([]byte, 4)
	f.WriteInto(buf)
	back := ImmediateFromBytes(Float, buf)
	if back.AsF32() != 1.5 {
		t.Errorf("float round trip = %v, want 1.5", back.AsF32())
	}
}
