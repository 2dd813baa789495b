package ast

import "testing"

func TestParseOpcodeRoundTrip(t *testing.T) {
	for _, name := range []string{"nop", "mov", "call_ex", "hlt", "jge"} {
		op, err := ParseOpcode(name)
		if err != nil {
			t.Fatalf("ParseOpcode(%q): %v", name, err)
		}
		if got := op.String(); got != name {
			t.Errorf("Opcode(%q).String() = %q", name, got)
		}
	}
}

func TestParseOpcodeUnknown(t *testing.T) {
	if _, err := ParseOpcode("frobnicate"); err == nil {
		t.Fatal("expected error for unknown mnemonic")
	}
}

func TestSectionKindString(t *testing.T) {
	if TextSection.String() != "text" {
		t.Errorf("TextSection.String() = %q", TextSection.String())
	}
	if DataSection.String() != "data" {
		t.Errorf("DataSection.String() = %q", DataSection.String())
	}
}
