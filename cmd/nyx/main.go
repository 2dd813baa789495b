// This file is part of nyx, a small register machine and toolchain.
//
// The nyx command line tool: build, run, execute and disasm subcommands
// over stdlib flag.FlagSet, grounded on db47h/ngaro's cmd/retro/main.go
// flag-variable-plus-functional-options style and its atExit helper that
// prints a %+v stack trace under a debug flag before exiting non-zero.

package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ciathefed/nyx/asm"
	"github.com/ciathefed/nyx/vm"
	"github.com/pkg/errors"
)

var debug bool

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:])
	case "run":
		err = runRun(os.Args[2:])
	case "execute":
		err = runExecute(os.Args[2:])
	case "disasm":
		err = runDisasm(os.Args[2:])
	case "-h", "-help", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "nyx: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		atExit(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  nyx build FILE [-o OUT]
  nyx run FILE [-o OUT] [-l LIB]... [--mem N]
  nyx execute FILE [-l LIB]... [--mem N]
  nyx disasm FILE`)
}

func atExit(err error) {
	if debug {
		fmt.Fprintf(os.Stderr, "nyx: %+v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "nyx: %v\n", err)
	}
	os.Exit(1)
}

// stdlibIncludeDirs reads NYX_STDLIB_PATH, a platform-list (colon or
// semicolon separated, per filepath.ListSeparator) of directories the
// preprocessor's #include should search after a file's own directory.
func stdlibIncludeDirs() []string {
	v := os.Getenv("NYX_STDLIB_PATH")
	if v == "" {
		return nil
	}
	return filepath.SplitList(v)
}

// assembleFile lexes, parses, preprocesses and assembles the named source
// file, returning the linked image bytes.
func assembleFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "assemble")
	}
	defer f.Close()
	img, err := asm.Assemble(path, f, asm.WithIncludeDirs(stdlibIncludeDirs()))
	if err != nil {
		return nil, errors.Wrap(err, "assemble")
	}
	return img, nil
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	out := fs.String("o", "", "output image path (default: FILE with .nyxbin extension)")
	fs.BoolVar(&debug, "debug", false, "print stack traces on error")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("build: expected exactly one source file")
	}
	src := fs.Arg(0)

	img, err := assembleFile(src)
	if err != nil {
		return err
	}
	outPath := *out
	if outPath == "" {
		outPath = withExt(src, ".nyxbin")
	}
	if err := os.WriteFile(outPath, img, 0644); err != nil {
		return errors.Wrap(err, "write image")
	}
	return nil
}

func withExt(path, ext string) string {
	base := path[:len(path)-len(filepath.Ext(path))]
	return base + ext
}

type libFlags []string

func (l *libFlags) String() string { return fmt.Sprint([]string(*l)) }
func (l *libFlags) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	out := fs.String("o", "", "also write the assembled image to this path")
	mem := fs.Uint64("mem", 1<<20, "memory size in bytes")
	var libs libFlags
	fs.Var(&libs, "l", "load a native extension shared object (repeatable)")
	fs.BoolVar(&debug, "debug", false, "print stack traces on error")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("run: expected exactly one source file")
	}
	src := fs.Arg(0)

	img, err := assembleFile(src)
	if err != nil {
		return err
	}
	if *out != "" {
		if err := os.WriteFile(*out, img, 0644); err != nil {
			return errors.Wrap(err, "write image")
		}
	}
	return execImage(img, *mem, libs)
}

func runExecute(args []string) error {
	fs := flag.NewFlagSet("execute", flag.ExitOnError)
	mem := fs.Uint64("mem", 1<<20, "memory size in bytes")
	var libs libFlags
	fs.Var(&libs, "l", "load a native extension shared object (repeatable)")
	fs.BoolVar(&debug, "debug", false, "print stack traces on error")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("execute: expected exactly one image file")
	}
	img, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return errors.Wrap(err, "read image")
	}
	return execImage(img, *mem, libs)
}

func execImage(img []byte, mem uint64, libs libFlags) error {
	entry, payload, err := vm.LoadImage(bytes.NewReader(img))
	if err != nil {
		return err
	}
	inst, err := vm.New(vm.WithMemorySize(mem), vm.WithHeapSize(mem/4))
	if err != nil {
		return err
	}
	for _, lib := range libs {
		if err := vm.LoadExtension(inst, lib); err != nil {
			return err
		}
	}
	if err := inst.Load(entry, payload); err != nil {
		return err
	}
	if err := inst.Run(); err != nil {
		return err
	}
	if code := inst.ExitCode(); code != 0 {
		os.Exit(int(code))
	}
	return nil
}

func runDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	fs.BoolVar(&debug, "debug", false, "print stack traces on error")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("disasm: expected exactly one image file")
	}
	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return errors.Wrap(err, "read image")
	}
	_, payload, err := vm.LoadImage(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return asm.DisassembleAll(payload, os.Stdout)
}
