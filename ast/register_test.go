package ast

import "testing"

func TestRegisterRoundTrip(t *testing.T) {
	for _, name := range []string{"b0", "w3", "d7", "q15", "ff10", "dd15", "ip", "sp", "bp"} {
		reg, err := ParseRegister(name)
		if err != nil {
			t.Fatalf("ParseRegister(%q): %v", name, err)
		}
		if got := reg.String(); got != name {
			t.Errorf("Register(%q).String() = %q", name, got)
		}
		back, err := RegisterFromByte(byte(reg))
		if err != nil {
			t.Fatalf("RegisterFromByte(%d): %v", byte(reg), err)
		}
		if back != reg {
			t.Errorf("RegisterFromByte(%d) = %v, want %v", byte(reg), back, reg)
		}
	}
}

func TestRegisterKindAndBank(t *testing.T) {
	tests := []struct {
		name string
		kind RegisterKind
		bank int
		size DataSize
	}{
		{"b0", GeneralPurpose, 0, Byte},
		{"w1", GeneralPurpose, 1, Word},
		{"d2", GeneralPurpose, 2, DWord},
		{"q3", GeneralPurpose, 3, QWord},
		{"ff4", FloatingPoint, 4, Float},
		{"dd5", FloatingPoint, 5, Double},
		{"ip", Special, 0, QWord},
		{"sp", Special, 1, QWord},
		{"bp", Special, 2, QWord},
	}
	for _, tt := range tests {
		reg, err := ParseRegister(tt.name)
		if err != nil {
			t.Fatalf("ParseRegister(%q): %v", tt.name, err)
		}
		if reg.Kind() != tt.kind {
			t.Errorf("%s.Kind() = %v, want %v", tt.name, reg.Kind(), tt.kind)
		}
		if reg.Bank() != tt.bank {
			t.Errorf("%s.Bank() = %d, want %d", tt.name, reg.Bank(), tt.bank)
		}
		if reg.Size() != tt.size {
			t.Errorf("%s.Size() = %v, want %v", tt.name, reg.Size(), tt.size)
		}
	}
}

func TestParseRegisterUnknown(t *testing.T) {
	if _, err := ParseRegister("q99"); err == nil {
		t.Fatal("expected error for unknown register")
	}
}

func TestRegisterFromByteInvalid(t *testing.T) {
	if _, err := RegisterFromByte(255); err == nil {
		t.Fatal("expected error for out-of-range register byte")
	}
}
