// Package manifest handles tinyc.toml project configuration.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"

	"github.com/chazu/tinyc/compiler"
)

// FileName is the manifest file looked up next to source files.
const FileName = "tinyc.toml"

//go:embed schema.cue
var schemaSource string

// Manifest represents a tinyc.toml configuration.
type Manifest struct {
	Target Target `toml:"target" json:"target"`
	VM     VM     `toml:"vm" json:"vm"`
	Cache  Cache  `toml:"cache" json:"cache"`
	Log    Log    `toml:"log" json:"log"`

	// Dir is the directory containing the tinyc.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Target configures the type widths reported by sizeof.
type Target struct {
	IntSize     int64 `toml:"int-size" json:"int-size"`
	CharSize    int64 `toml:"char-size" json:"char-size"`
	PointerSize int64 `toml:"pointer-size" json:"pointer-size"`
}

// VM configures execution.
type VM struct {
	Trace    bool `toml:"trace" json:"trace"`
	MaxStack int  `toml:"max-stack" json:"max-stack"`
}

// Cache configures the compiled program cache. An empty path disables it.
type Cache struct {
	Path string `toml:"path" json:"path"`
}

// Log configures logging verbosity: 0 notice, 1 info, 2 debug.
type Log struct {
	Verbosity int `toml:"verbosity" json:"verbosity"`
}

// Default returns the configuration used when no manifest exists.
func Default() *Manifest {
	return &Manifest{
		Target: Target{
			IntSize:     compiler.DefaultSizes.Int,
			CharSize:    compiler.DefaultSizes.Char,
			PointerSize: compiler.DefaultSizes.Pointer,
		},
	}
}

// Load parses the tinyc.toml file in the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a manifest file. Keys that are absent keep their
// defaults. The result is validated against the schema.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a tinyc.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks the manifest against the embedded CUE schema.
func (m *Manifest) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("manifest schema: %w", err)
	}

	value := ctx.Encode(m)
	if err := value.Err(); err != nil {
		return err
	}
	unified := schema.LookupPath(cue.ParsePath("#Manifest")).Unify(value)
	return unified.Validate(cue.Concrete(true))
}

// Sizes returns the target widths as compiler sizes.
func (m *Manifest) Sizes() compiler.Sizes {
	return compiler.Sizes{
		Int:     m.Target.IntSize,
		Char:    m.Target.CharSize,
		Pointer: m.Target.PointerSize,
	}
}

// CachePath returns the cache database path, resolved against the manifest
// directory. It is empty when caching is disabled.
func (m *Manifest) CachePath() string {
	if m.Cache.Path == "" || filepath.IsAbs(m.Cache.Path) || m.Dir == "" {
		return m.Cache.Path
	}
	return filepath.Join(m.Dir, m.Cache.Path)
}
