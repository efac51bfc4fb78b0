package store

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/chazu/tinyc/compiler"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "programs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKey(t *testing.T) {
	src := "return 1;"
	a := Key(src, compiler.DefaultSizes)
	if a != Key(src, compiler.DefaultSizes) {
		t.Error("Key is not deterministic")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex digits", len(a))
	}
	if a == Key("return 2;", compiler.DefaultSizes) {
		t.Error("different sources share a key")
	}
	if a == Key(src, compiler.Sizes{Int: 4, Char: 1, Pointer: 8}) {
		t.Error("different widths share a key")
	}
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)
	prog, err := compiler.Compile("int main() { print(\"x\"); return 2 + 3; }")
	if err != nil {
		t.Fatal(err)
	}

	key := Key("k", compiler.DefaultSizes)
	if _, err := s.Get(key); !errors.Is(err, ErrNotCached) {
		t.Fatalf("Get on empty store = %v, want ErrNotCached", err)
	}
	if err := s.Put(key, prog); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !reflect.DeepEqual(got, prog) {
		t.Error("cached program differs from the stored one")
	}

	// Replacing keeps one row.
	if err := s.Put(key, prog); err != nil {
		t.Fatal(err)
	}
	if n, err := s.Len(); err != nil || n != 1 {
		t.Errorf("Len() = %d, %v; want 1", n, err)
	}
}

func TestCompileHitAndMiss(t *testing.T) {
	s := openTemp(t)
	src := "int sq(int x) { return x * x; } int main() { return sq(sizeof(int)); }"

	first, hit, err := s.Compile(src, compiler.DefaultSizes)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("first Compile should miss")
	}

	second, hit, err := s.Compile(src, compiler.DefaultSizes)
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Error("second Compile should hit")
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("cache returned a different program")
	}

	if _, hit, _ := s.Compile(src, compiler.Sizes{Int: 4, Char: 1, Pointer: 4}); hit {
		t.Error("other widths should miss")
	}
	if n, _ := s.Len(); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}
}

func TestCompileErrorIsNotCached(t *testing.T) {
	s := openTemp(t)
	if _, _, err := s.Compile("return x;", compiler.DefaultSizes); err == nil {
		t.Fatal("expected compile error")
	}
	if n, _ := s.Len(); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "programs.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Compile("return 7;", compiler.DefaultSizes); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, hit, err := s.Compile("return 7;", compiler.DefaultSizes); err != nil || !hit {
		t.Errorf("Compile after reopen: hit=%v err=%v", hit, err)
	}
	if s.Path() != path {
		t.Errorf("Path() = %q", s.Path())
	}
}
