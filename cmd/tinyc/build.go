package main

import (
	"fmt"
	"os"

	"github.com/chazu/tinyc/compiler"
	"github.com/chazu/tinyc/manifest"
	"github.com/chazu/tinyc/pkg/bytecode"
	"github.com/chazu/tinyc/store"
)

// loadProgram reads path and returns its program, decoding it as an image
// or compiling it as source. Source compiles go through the program cache
// when the manifest configures one.
func loadProgram(path string, image bool, m *manifest.Manifest) (*bytecode.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}

	if image {
		return bytecode.UnmarshalImage(data)
	}

	src := string(data)
	sizes := m.Sizes()

	if cachePath := m.CachePath(); cachePath != "" {
		st, err := store.Open(cachePath)
		if err != nil {
			log.Warningf("program cache disabled: %s", err)
		} else {
			defer st.Close()
			prog, hit, err := st.Compile(src, sizes)
			if err != nil {
				return nil, err
			}
			if hit {
				log.Infof("%s: loaded from cache %s", path, cachePath)
			} else {
				log.Infof("%s: compiled and cached in %s", path, cachePath)
			}
			return prog, nil
		}
	}

	return compiler.Compile(src, compiler.WithSizes(sizes))
}

// writeImage saves prog as a program image at path.
func writeImage(prog *bytecode.Program, path string) error {
	data, err := bytecode.MarshalImage(prog)
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing image: %w", err)
	}
	return nil
}
