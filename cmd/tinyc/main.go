// tinyc CLI - compiles and runs C-subset programs
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tliron/commonlog"
	"github.com/tliron/kutil/util"

	"github.com/chazu/tinyc/manifest"
	"github.com/chazu/tinyc/pkg/bytecode"
	"github.com/chazu/tinyc/server"
	"github.com/chazu/tinyc/vm"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("tinyc")

// verbosity is a boolean flag that counts its occurrences.
type verbosity int

func (v *verbosity) String() string   { return strconv.Itoa(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }

func (v *verbosity) Set(s string) error {
	on, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if on {
		*v++
	}
	return nil
}

type options struct {
	verbose     verbosity
	disasm      bool
	output      string
	image       bool
	script      bool
	interactive bool
	lsp         bool
	config      string
}

func main() {
	util.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	var opts options

	fs := flag.NewFlagSet("tinyc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Var(&opts.verbose, "v", "Verbose output (repeat for more)")
	fs.BoolVar(&opts.disasm, "disasm", false, "Print the bytecode listing instead of running")
	fs.StringVar(&opts.output, "o", "", "Write the compiled program image to `file.tcb`")
	fs.BoolVar(&opts.image, "image", false, "Treat the argument as a program image")
	fs.BoolVar(&opts.script, "script", false, "Allow running a program without main from its first instruction")
	fs.BoolVar(&opts.interactive, "i", false, "Start interactive REPL")
	fs.BoolVar(&opts.lsp, "lsp", false, "Start language server on stdio")
	fs.StringVar(&opts.config, "config", "", "Use the manifest at `path` instead of searching for tinyc.toml")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: tinyc [options] <file.c>\n\n")
		fmt.Fprintf(stderr, "Compiles a C-subset source file and runs it on the stack VM.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  tinyc prog.c               # Run main, print its result\n")
		fmt.Fprintf(stderr, "  tinyc -disasm prog.c       # Show the bytecode listing\n")
		fmt.Fprintf(stderr, "  tinyc -o prog.tcb prog.c   # Write a program image\n")
		fmt.Fprintf(stderr, "  tinyc -image prog.tcb      # Run a program image\n")
		fmt.Fprintf(stderr, "  tinyc -i                   # Start REPL\n")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	m, err := loadManifest(opts.config, fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "Error loading manifest: %v\n", err)
		return 1
	}

	level := m.Log.Verbosity
	if int(opts.verbose) > level {
		level = int(opts.verbose)
	}
	commonlog.Configure(level, nil)

	if opts.lsp {
		if err := server.NewLSP(m.Sizes()).Run(); err != nil {
			fmt.Fprintf(stderr, "Language server error: %v\n", err)
			return 1
		}
		return 0
	}

	if opts.interactive {
		return runREPL(m, stdout, stderr)
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	path := fs.Arg(0)

	prog, err := loadProgram(path, opts.image, m)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
		return 1
	}

	if opts.output != "" {
		if err := writeImage(prog, opts.output); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		log.Infof("wrote %s", opts.output)
		if !opts.disasm {
			return 0
		}
	}

	if opts.disasm {
		fmt.Fprint(stdout, prog.DisassembleWithName(filepath.Base(path)))
		return 0
	}

	if !prog.HasMain() && !opts.script {
		fmt.Fprintf(stderr, "Error: %s: no main function found (use -script to run from the first instruction)\n", path)
		return 1
	}

	return execute(prog, m, stdout, stderr)
}

// loadManifest resolves the configuration for this invocation: an explicit
// path, a tinyc.toml found above the source file, or the defaults.
func loadManifest(explicit string, args []string) (*manifest.Manifest, error) {
	if explicit != "" {
		return manifest.LoadFile(explicit)
	}

	dir := "."
	if len(args) > 0 {
		dir = filepath.Dir(args[0])
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

// newMachine builds a VM for prog configured from the manifest.
func newMachine(prog *bytecode.Program, m *manifest.Manifest, out io.Writer) *vm.VM {
	machine := vm.NewVM(prog.EntryArity())
	machine.SetOutput(out)
	machine.SetLogger(commonlog.GetLogger("tinyc.vm"))
	machine.Trace = m.VM.Trace
	machine.MaxStack = m.VM.MaxStack
	return machine
}

// execute runs prog and reports its result.
func execute(prog *bytecode.Program, m *manifest.Manifest, stdout, stderr io.Writer) int {
	result, ok, err := newMachine(prog, m, stdout).Exec(prog)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if ok {
		fmt.Fprintf(stdout, "Program result: %d\n", result.Int64())
	}
	return 0
}
