// This file is part of nyx, a small register machine and toolchain.
//
// Native extension loading. ngaro has no analogous mechanism (Forth words
// are all interpreted); this uses the standard library's plugin package,
// the idiomatic way for a Go binary to load native code at run time
// without hand-rolling a dlopen wrapper or a cgo shim. Libraries are kept
// in an ordered list rather than a single flat name table so that
// load_external can open several shared objects over a run, with call_ex
// searching them in the order they were loaded.

package vm

import (
	"plugin"

	"github.com/ciathefed/nyx/ast"
	"github.com/pkg/errors"
)

// ExtensionFunc is the signature every symbol exported by a Nyx extension
// shared object must have: NyxCall(*vm.Instance) int32. The return value
// becomes the result the interpreter leaves in q0 after `call_ex`.
type ExtensionFunc func(i *Instance) int32

// extensionLibrary is one entry of an instance's library list. call_ex
// searches the list in insertion order and invokes the first match.
type extensionLibrary interface {
	lookup(name string) (ExtensionFunc, bool)
}

// pluginLibrary is a shared object opened by load_external, its symbol
// table resolved lazily via plugin.Lookup per call.
type pluginLibrary struct {
	p *plugin.Plugin
}

func openPluginLibrary(path string) (*pluginLibrary, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load_external %q", path)
	}
	return &pluginLibrary{p: p}, nil
}

func (l *pluginLibrary) lookup(name string) (ExtensionFunc, bool) {
	sym, err := l.p.Lookup(name)
	if err != nil {
		return nil, false
	}
	fn, ok := sym.(func(*Instance) int32)
	if !ok {
		return nil, false
	}
	return ExtensionFunc(fn), true
}

// funcLibrary wraps directly registered Go functions, the way WithExtension
// lets tests and embedders bind an extension without a real compiled
// shared object.
type funcLibrary map[string]ExtensionFunc

func (l funcLibrary) lookup(name string) (ExtensionFunc, bool) {
	fn, ok := l[name]
	return fn, ok
}

// LoadExtension opens the shared object at path and appends it to i's
// library list, kept open for the instance's lifetime. Exposed for callers
// (such as the CLI's `-l` flag) that load libraries before running a
// program, ahead of any load_external instruction the program itself runs.
func LoadExtension(i *Instance, path string) error {
	return i.loadExternal(path)
}

// loadExternal implements the load_external opcode: it opens the shared
// object at path and appends it to the instance's library list.
func (i *Instance) loadExternal(path string) error {
	lib, err := openPluginLibrary(path)
	if err != nil {
		return err
	}
	i.libraries = append(i.libraries, lib)
	return nil
}

// dispatchCallEx resolves name against every loaded library in insertion
// order and invokes the first match, storing its result in q0. name is
// decoded from the instruction stream by the fetch loop in core.go, not
// read out of a register.
func (i *Instance) dispatchCallEx(name string) error {
	for _, lib := range i.libraries {
		if fn, ok := lib.lookup(name); ok {
			result := fn(i)
			i.setReturn(ast.QWordImm(uint64(uint32(result))))
			return nil
		}
	}
	return errors.Errorf("call_ex: unresolved extension %q", name)
}
