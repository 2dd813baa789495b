package vm_test

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ciathefed/nyx/asm"
	"github.com/ciathefed/nyx/ast"
	"github.com/ciathefed/nyx/vm"
)

// Shows the full round trip: assemble a small program, load it into a
// fresh instance and run it to completion.
func ExampleInstance_Run() {
	src := `.text
.entry start
start:
	mov q0, 0
	mov q1, 10
	mov q2, 0
loop:
	add q0, q0, q1
	dec q1
	cmp q1, q2
	jne loop
	hlt
`
	img, err := asm.Assemble("sum.nyx", strings.NewReader(src))
	if err != nil {
		panic(err)
	}

	i, err := vm.New(vm.WithMemorySize(1 << 12))
	if err != nil {
		panic(err)
	}

	entry, payload, err := vm.LoadImage(bytes.NewReader(img))
	if err != nil {
		panic(err)
	}
	if err := i.Load(entry, payload); err != nil {
		panic(err)
	}
	if err := i.Run(); err != nil {
		panic(err)
	}

	fmt.Println(i.Regs.Get(ast.Q0).AsU64())

	// Output:
	// 55
}
