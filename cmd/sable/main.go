package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sable-lang/sable/internal/config"
	"github.com/sable-lang/sable/internal/vm"
)

// Version can be overridden at build time using:
// -ldflags "-X main.Version=v1.2.3"
var Version = "dev"

func main() {
	if handleHelp() {
		return
	}
	if handleVersion() {
		return
	}
	if handleDisasm() {
		return
	}
	if handleStats() {
		return
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	runFile(os.Args[1])
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [command] <file%s>\n", filepath.Base(os.Args[0]), config.SourceFileExt)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  <file>            run a script")
	fmt.Fprintln(os.Stderr, "  -d, --disasm      print bytecode instead of running")
	fmt.Fprintln(os.Stderr, "  -s, --stats       run and print collector statistics")
	fmt.Fprintln(os.Stderr, "  -v, --version     print version")
	fmt.Fprintln(os.Stderr, "  -h, --help        print this help")
}

func handleHelp() bool {
	if len(os.Args) < 2 {
		return false
	}
	if os.Args[1] != "-h" && os.Args[1] != "--help" && os.Args[1] != "help" {
		return false
	}
	printUsage()
	return true
}

func handleVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	if os.Args[1] != "-v" && os.Args[1] != "--version" {
		return false
	}
	fmt.Printf("sable %s\n", Version)
	return true
}

func handleDisasm() bool {
	if len(os.Args) < 3 {
		return false
	}
	if os.Args[1] != "-d" && os.Args[1] != "--disasm" {
		return false
	}

	path := os.Args[2]
	src, err := os.ReadFile(path)
	if err != nil {
		fatal("cannot read %s: %s", path, err)
	}

	machine := vm.New(loadConfig(path))
	machine.RegisterBuiltins()
	chunk, err := machine.CompileSource(string(src), path)
	if err != nil {
		fatal("%s", err)
	}
	fmt.Print(machine.Disassemble(chunk, config.TrimSourceExt(filepath.Base(path))))
	return true
}

func handleStats() bool {
	if len(os.Args) < 3 {
		return false
	}
	if os.Args[1] != "-s" && os.Args[1] != "--stats" {
		return false
	}

	machine := execute(os.Args[2])
	stats := machine.Stats()
	fmt.Fprintf(os.Stderr, "gc mode:        %s\n", stats.Mode)
	fmt.Fprintf(os.Stderr, "collections:    %d\n", stats.Collections)
	fmt.Fprintf(os.Stderr, "last pause:     %s\n", stats.LastPause)
	fmt.Fprintf(os.Stderr, "total pause:    %s\n", stats.TotalPause)
	fmt.Fprintf(os.Stderr, "live bytes:     %d\n", stats.BytesAllocated)
	fmt.Fprintf(os.Stderr, "freed bytes:    %d\n", stats.BytesFreed)
	fmt.Fprintf(os.Stderr, "peak bytes:     %d\n", stats.PeakBytes)
	fmt.Fprintf(os.Stderr, "next trigger:   %d\n", stats.NextGC)
	return true
}

func runFile(path string) {
	execute(path)
}

// execute runs one script to completion and returns the VM for
// post-run inspection. Any error is fatal.
func execute(path string) *vm.VM {
	if !isSourceFile(path) {
		fatal("%s is not a %s source file", path, config.SourceFileExt)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		fatal("cannot read %s: %s", path, err)
	}

	machine := vm.New(loadConfig(path))
	machine.RegisterBuiltins()
	machine.SetBaseDir(filepath.Dir(path))
	if _, err := machine.RunSource(string(src), path); err != nil {
		fatal("%s", err)
	}
	return machine
}

// loadConfig walks up from the script for a sable.yaml project file and
// falls back to defaults.
func loadConfig(scriptPath string) *config.Config {
	dir, err := filepath.Abs(filepath.Dir(scriptPath))
	if err != nil {
		return config.Default()
	}
	cfg, err := config.Discover(dir)
	if err != nil {
		fatal("%s", err)
	}
	return cfg
}

func isSourceFile(path string) bool {
	for _, ext := range config.SourceFileExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// fatal prints a diagnostic (red when stderr is a terminal) and exits.
func fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		fmt.Fprintf(os.Stderr, "\x1b[31merror:\x1b[0m %s\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	}
	os.Exit(1)
}
