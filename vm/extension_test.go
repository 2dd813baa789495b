package vm

import (
	"testing"

	"github.com/ciathefed/nyx/ast"
)

func TestWithExtensionCallEx(t *testing.T) {
	called := false
	double := func(i *Instance) int32 {
		called = true
		return int32(i.Regs.Get(ast.Q0).AsU64()) * 2
	}

	inst := newTestInstance(t, WithExtension("double", double))
	inst.Regs.Set(ast.Q0, ast.QWordImm(21))

	if err := inst.dispatchCallEx("double"); err != nil {
		t.Fatalf("dispatchCallEx: %v", err)
	}
	if !called {
		t.Error("extension function was never invoked")
	}
	if got := inst.Regs.Get(ast.Q0).AsU64(); got != 42 {
		t.Errorf("q0 after call_ex = %d, want 42", got)
	}
}

func TestDispatchCallExUnresolvedFails(t *testing.T) {
	inst := newTestInstance(t)
	if err := inst.dispatchCallEx("missing"); err == nil {
		t.Fatal("expected error for unresolved extension")
	}
}

func TestDispatchCallExSearchesLibrariesInInsertionOrder(t *testing.T) {
	first := func(i *Instance) int32 { return 1 }
	second := func(i *Instance) int32 { return 2 }

	inst := newTestInstance(t)
	inst.libraries = append(inst.libraries, funcLibrary{"pick": first})
	inst.libraries = append(inst.libraries, funcLibrary{"pick": second})

	if err := inst.dispatchCallEx("pick"); err != nil {
		t.Fatalf("dispatchCallEx: %v", err)
	}
	if got := inst.Regs.Get(ast.Q0).AsU64(); got != 1 {
		t.Errorf("q0 = %d, want 1 (first loaded library's symbol should win)", got)
	}
}

func TestVMCallExEndToEnd(t *testing.T) {
	double := func(i *Instance) int32 {
		return int32(i.Regs.Get(ast.Q0).AsU64()) * 2
	}
	src := ".text\n.entry start\n.extern twice\nstart:\nmov q0, 21\ncall twice\nhlt\n"
	inst := assembleAndLoad(t, src, WithExtension("twice", double))
	if err := inst.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := inst.Regs.Get(ast.Q0).AsU64(); got != 42 {
		t.Errorf("q0 = %d, want 42", got)
	}
}
