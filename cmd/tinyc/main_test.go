package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/tinyc/compiler"
	"github.com/chazu/tinyc/manifest"
	"github.com/chazu/tinyc/pkg/bytecode"
	"github.com/chazu/tinyc/store"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// runCLI invokes run and returns the exit status and captured output.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// ---------------------------------------------------------------------------
// Running programs
// ---------------------------------------------------------------------------

func TestRunPrograms(t *testing.T) {
	tests := []struct {
		name    string
		flags   []string
		src     string
		code    int
		stdout  string
		errText string
	}{
		{"result", nil, "int main() { return 6 * 7; }", 0, "Program result: 42\n", ""},
		{"output before result", nil, "int main() { print(\"hi\\n\"); print(3); return 1; }", 0, "hi\n3\nProgram result: 1\n", ""},
		{"call", nil, "int add(int a, int b) { return a + b; }\nint main() { return add(7, 5); }", 0, "Program result: 12\n", ""},
		{"float result truncates", nil, "int main() { return 7.9; }", 0, "Program result: 7\n", ""},
		{"missing main", nil, "int x; x = 5; return x;", 1, "", "no main function"},
		{"script", []string{"-script"}, "int x; x = 5; return x;", 0, "Program result: 5\n", ""},
		{"script without result", []string{"-script"}, "", 0, "", ""},
		{"compile error", nil, "int main() {\n  return y;\n}", 1, "", "line 2:10: undeclared variable y"},
		{"runtime error", nil, "int main() { int z; return 1 / z; }", 1, "", "division by zero"},
		{"output kept on failure", nil, "int main() { int z; print(1); return 1 / z; }", 1, "1\n", "division by zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "prog.c", tt.src)
			code, stdout, stderr := runCLI(t, append(tt.flags, path)...)
			if code != tt.code {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.code, stderr)
			}
			if stdout != tt.stdout {
				t.Errorf("stdout = %q, want %q", stdout, tt.stdout)
			}
			if tt.errText != "" && !strings.Contains(stderr, tt.errText) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.errText)
			}
		})
	}
}

func TestUsage(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.c", "int main() { return 1; }")
	b := writeFile(t, dir, "b.c", "int main() { return 2; }")

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no arguments", []string{"-config", writeFile(t, dir, manifest.FileName, "")}, 2},
		{"two files", []string{a, b}, 2},
		{"unknown flag", []string{"-nope", a}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			if code != tt.code {
				t.Errorf("exit code = %d, want %d", code, tt.code)
			}
			if !strings.Contains(stderr, "Usage") {
				t.Errorf("stderr = %q, want a usage message", stderr)
			}
		})
	}
}

func TestMissingFile(t *testing.T) {
	code, _, stderr := runCLI(t, filepath.Join(t.TempDir(), "absent.c"))
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "cannot read file") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestDisasm(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.c", "int main() { return 2; }")
	code, stdout, _ := runCLI(t, "-disasm", path)
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	for _, want := range []string{"; === prog.c ===", "; Main: 0001", "main:"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("listing missing %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "Program result") {
		t.Error("-disasm should not run the program")
	}
}

// ---------------------------------------------------------------------------
// Program images
// ---------------------------------------------------------------------------

func TestImageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "fib.c", "int fib(int n) { if (n < 2) return n; return fib(n-1) + fib(n-2); }\nint main() { return fib(10); }")
	img := filepath.Join(dir, "fib.tcb")

	code, stdout, stderr := runCLI(t, "-o", img, src)
	if code != 0 {
		t.Fatalf("-o exit code = %d: %s", code, stderr)
	}
	if stdout != "" {
		t.Errorf("-o should not run the program, got %q", stdout)
	}
	if _, err := os.Stat(img); err != nil {
		t.Fatalf("image not written: %v", err)
	}

	code, stdout, stderr = runCLI(t, "-image", img)
	if code != 0 {
		t.Fatalf("-image exit code = %d: %s", code, stderr)
	}
	if stdout != "Program result: 55\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestImageRejectsSource(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.c", "int main() { return 2; }")
	code, _, stderr := runCLI(t, "-image", path)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "not a tinyc program image") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestImageRejectsTamperedProgram(t *testing.T) {
	prog, err := compiler.Compile("int main() { return 2; }")
	if err != nil {
		t.Fatal(err)
	}
	for i, in := range prog.Code {
		if in.Op == bytecode.OpJmp {
			prog.Code[i] = bytecode.Jmp(99)
		}
	}
	data, err := bytecode.MarshalImage(prog)
	if err != nil {
		t.Fatal(err)
	}
	img := filepath.Join(t.TempDir(), "bad.tcb")
	if err := os.WriteFile(img, data, 0644); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := runCLI(t, "-image", img)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if stdout != "" {
		t.Errorf("tampered image should not run, got %q", stdout)
	}
	if !strings.Contains(stderr, "invalid image") {
		t.Errorf("stderr = %q", stderr)
	}
}

// ---------------------------------------------------------------------------
// Manifest-driven behavior
// ---------------------------------------------------------------------------

func TestManifestSizes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, manifest.FileName, "[target]\nint-size = 4\n")
	path := writeFile(t, dir, "prog.c", "int main() { return sizeof(int); }")

	_, stdout, _ := runCLI(t, path)
	if stdout != "Program result: 4\n" {
		t.Errorf("stdout = %q, want sizeof(int) from the manifest", stdout)
	}
}

func TestExplicitConfig(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "other.toml", "[target]\nchar-size = 2\n")
	path := writeFile(t, t.TempDir(), "prog.c", "int main() { return sizeof(char); }")

	_, stdout, _ := runCLI(t, "-config", config, path)
	if stdout != "Program result: 2\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestInvalidManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, manifest.FileName, "[target]\nint-size = 3\n")
	path := writeFile(t, dir, "prog.c", "int main() { return 1; }")

	code, _, stderr := runCLI(t, path)
	if code != 1 || !strings.Contains(stderr, "Error loading manifest") {
		t.Errorf("exit code = %d, stderr = %q", code, stderr)
	}
}

func TestMaxStackFromManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, manifest.FileName, "[vm]\nmax-stack = 256\n")
	path := writeFile(t, dir, "prog.c", "int f(int n) { return f(n + 1); }\nint main() { return f(0); }")

	code, _, stderr := runCLI(t, path)
	if code != 1 || !strings.Contains(stderr, "stack overflow") {
		t.Errorf("exit code = %d, stderr = %q", code, stderr)
	}
}

func TestProgramCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, manifest.FileName, "[cache]\npath = \"cache/programs.db\"\n")
	path := writeFile(t, dir, "prog.c", "int main() { return 9; }")

	for i := 0; i < 2; i++ {
		_, stdout, stderr := runCLI(t, path)
		if stdout != "Program result: 9\n" {
			t.Fatalf("run %d: stdout = %q, stderr = %q", i, stdout, stderr)
		}
	}

	st, err := store.Open(filepath.Join(dir, "cache", "programs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	n, err := st.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("cache holds %d programs, want 1", n)
	}
}

// ---------------------------------------------------------------------------
// Flags
// ---------------------------------------------------------------------------

func TestVerbosityCounts(t *testing.T) {
	var v verbosity
	for _, s := range []string{"true", "true", "false"} {
		if err := v.Set(s); err != nil {
			t.Fatal(err)
		}
	}
	if v != 2 {
		t.Errorf("verbosity = %d, want 2", v)
	}
	if v.String() != "2" {
		t.Errorf("String() = %q", v.String())
	}
	if err := v.Set("maybe"); err == nil {
		t.Error("Set(\"maybe\") should fail")
	}
}

// ---------------------------------------------------------------------------
// REPL session
// ---------------------------------------------------------------------------

func TestIsDefinition(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"int f() { return 1; }", true},
		{"int *p(int a) {", true},
		{"char c(char x) { return x; }", true},
		{"enum { A, B };", true},
		{"int x;", false},
		{"int x = 3;", false},
		{"f(1)", false},
		{"1 + 2", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isDefinition(tt.input); got != tt.want {
			t.Errorf("isDefinition(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSessionEval(t *testing.T) {
	s := newSession(manifest.Default())
	var out bytes.Buffer

	steps := []struct {
		input string
		want  string
	}{
		{"1 + 2", "3\n"},
		{"int sq(int x) { return x * x; }", ""},
		{"enum { TEN = 10 };", ""},
		{"sq(TEN) + 1", "101\n"},
		{"int a = 4; return sq(a);", "16\n"},
		{"print(5)", "5\n0\n"},
		{"while (0) {}", "0\n"},
		{"int x = 3", "0\n"},
	}
	for _, step := range steps {
		out.Reset()
		if err := s.eval(step.input, &out); err != nil {
			t.Fatalf("eval(%q) error: %v", step.input, err)
		}
		if out.String() != step.want {
			t.Errorf("eval(%q) output = %q, want %q", step.input, out.String(), step.want)
		}
	}

	if len(s.defs) != 2 {
		t.Errorf("kept %d definitions, want 2", len(s.defs))
	}
}

func TestSessionIncomplete(t *testing.T) {
	s := newSession(manifest.Default())
	var out bytes.Buffer

	for _, input := range []string{"int f(int a) {", "1 +", "while (1) {"} {
		if err := s.eval(input, &out); !compiler.IsIncomplete(err) {
			t.Errorf("eval(%q) error = %v, want incomplete", input, err)
		}
	}
	if len(s.defs) != 0 {
		t.Error("incomplete definition was kept")
	}

	if err := s.eval("int f(int a) {\n  return a + 1;\n}", &out); err != nil {
		t.Fatalf("completed definition: %v", err)
	}
	out.Reset()
	if err := s.eval("f(41)", &out); err != nil || out.String() != "42\n" {
		t.Errorf("f(41) = %q, %v", out.String(), err)
	}
}

func TestSessionErrors(t *testing.T) {
	s := newSession(manifest.Default())
	var out bytes.Buffer

	tests := []struct {
		input string
		want  string
	}{
		{"y + 1", "undeclared variable y"},
		{"nothing(1)", "unknown function nothing"},
		{"1 / 0", "division by zero"},
		{"int f( { }", "expected parameter type"},
	}
	for _, tt := range tests {
		err := s.eval(tt.input, &out)
		if err == nil || compiler.IsIncomplete(err) {
			t.Errorf("eval(%q) error = %v, want a failure", tt.input, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("eval(%q) error = %v, want %q", tt.input, err, tt.want)
		}
	}
	if len(s.defs) != 0 {
		t.Error("failed definition was kept")
	}
}

func TestSessionCommands(t *testing.T) {
	s := newSession(manifest.Default())
	var out bytes.Buffer

	s.command(":funcs", &out)
	if out.String() != "no functions defined\n" {
		t.Errorf(":funcs = %q", out.String())
	}

	out.Reset()
	s.command(":disasm", &out)
	if out.String() != "nothing compiled yet\n" {
		t.Errorf(":disasm = %q", out.String())
	}

	if err := s.eval("int add(int a, int b) { return a + b; }", &out); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	s.command(":funcs", &out)
	if out.String() != "add/2\n" {
		t.Errorf(":funcs = %q", out.String())
	}

	out.Reset()
	s.command(":disasm", &out)
	if !strings.Contains(out.String(), "add:") {
		t.Errorf(":disasm = %q", out.String())
	}

	out.Reset()
	if s.command(":bogus", &out) {
		t.Error("unknown command should not quit")
	}
	if !strings.Contains(out.String(), "Unknown command") {
		t.Errorf("unknown command output = %q", out.String())
	}

	if !s.command(":quit", &out) {
		t.Error(":quit should quit")
	}
}
