package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/tinyc/compiler"
	"github.com/chazu/tinyc/manifest"
	"github.com/chazu/tinyc/pkg/bytecode"
)

const (
	historyFile = ".tinyc_history"
	promptMain  = "tinyc> "
	promptCont  = "  ...> "
)

// session is the state a REPL carries between inputs. Function and enum
// definitions accumulate; every other input runs as the body of a fresh
// main, so variables do not outlive the input that declared them.
type session struct {
	m    *manifest.Manifest
	defs []string
	last *bytecode.Program
}

func newSession(m *manifest.Manifest) *session {
	return &session{m: m}
}

// runREPL starts an interactive read-eval-print loop.
func runREPL(m *manifest.Manifest, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, "tinyc REPL (:help for commands, :quit to exit)")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	s := newSession(m)
	var buf strings.Builder

	for {
		prompt := promptMain
		if buf.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			buf.Reset()
			continue
		}
		if err != nil {
			fmt.Fprintln(stdout)
			return 0
		}

		if buf.Len() == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, ":") {
				if s.command(trimmed, stdout) {
					return 0
				}
				continue
			}
		} else {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)

		input := buf.String()
		err = s.eval(input, stdout)
		if compiler.IsIncomplete(err) {
			continue
		}
		buf.Reset()
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
	}
}

// command handles a REPL meta command and reports whether to quit.
func (s *session) command(cmd string, out io.Writer) bool {
	switch cmd {
	case ":quit", ":q":
		return true
	case ":help", ":h", ":?":
		fmt.Fprintln(out, "REPL Commands:")
		fmt.Fprintln(out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(out, "  :funcs            List defined functions")
		fmt.Fprintln(out, "  :disasm           Show the bytecode of the last input")
		fmt.Fprintln(out, "  :quit, :q         Exit REPL")
	case ":funcs":
		s.listFunctions(out)
	case ":disasm":
		if s.last == nil {
			fmt.Fprintln(out, "nothing compiled yet")
		} else {
			fmt.Fprint(out, s.last.Disassemble())
		}
	default:
		fmt.Fprintf(out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
	return false
}

func (s *session) listFunctions(out io.Writer) {
	if len(s.defs) == 0 {
		fmt.Fprintln(out, "no functions defined")
		return
	}
	prog, err := s.compile(s.withDefs(""))
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	for _, name := range prog.FunctionNames() {
		fmt.Fprintf(out, "%s/%d\n", name, prog.Arity[name])
	}
}

// eval handles one input. Definitions are checked and kept; anything else
// is compiled into main, run, and its result printed. An error satisfying
// compiler.IsIncomplete means input needs more lines.
func (s *session) eval(input string, out io.Writer) error {
	if isDefinition(input) {
		prog, err := s.compile(s.withDefs(input))
		if err != nil {
			return err
		}
		s.defs = append(s.defs, input)
		s.last = prog
		return nil
	}

	var prog *bytecode.Program
	var err error
	for i, src := range s.programs(input) {
		p, cerr := s.compile(src)
		if cerr == nil {
			prog, err = p, nil
			break
		}
		if i == 0 {
			err = cerr
		}
	}
	if err != nil {
		// A wrapped fragment fails on the closing brace; ask the
		// unwrapped form whether the input is simply unfinished.
		if _, rawErr := s.compile(s.withDefs(input)); compiler.IsIncomplete(rawErr) {
			return rawErr
		}
		return err
	}
	s.last = prog

	result, ok, err := newMachine(prog, s.m, out).Exec(prog)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(out, result.Int64())
	}
	return nil
}

func (s *session) compile(src string) (*bytecode.Program, error) {
	return compiler.Compile(src, compiler.WithSizes(s.m.Sizes()))
}

// withDefs prefixes src with the accumulated definitions.
func (s *session) withDefs(src string) string {
	if len(s.defs) == 0 {
		return src
	}
	return strings.Join(s.defs, "\n") + "\n" + src
}

// programs returns the candidate sources for input, each wrapping it as
// the body of main. Input without a terminator is tried first as a
// returned expression and then as a statement.
func (s *session) programs(input string) []string {
	body := strings.TrimSpace(input)
	wrap := func(body string) string {
		return s.withDefs("int main() {\n" + body + "\n}\n")
	}
	if strings.HasSuffix(body, ";") || strings.HasSuffix(body, "}") {
		return []string{wrap(body)}
	}
	return []string{wrap("return (" + body + ");"), wrap(body + ";")}
}

// isDefinition reports whether input starts a function definition or an
// enum declaration.
func isDefinition(input string) bool {
	lx := compiler.NewLexer(input)
	tok := lx.NextToken()
	if tok.Type == compiler.TokenEnum {
		return true
	}
	if !compiler.IsTypeKeyword(tok.Type) {
		return false
	}
	tok = lx.NextToken()
	for tok.Type == compiler.TokenMul {
		tok = lx.NextToken()
	}
	if tok.Type != compiler.TokenIdentifier {
		return false
	}
	return lx.NextToken().Type == compiler.TokenLParen
}
