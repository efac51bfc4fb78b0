// Package store caches compiled program images in SQLite.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/chazu/tinyc/compiler"
	"github.com/chazu/tinyc/pkg/bytecode"
)

// ErrNotCached indicates the requested program is not in the cache.
var ErrNotCached = errors.New("program not cached")

// Store handles SQLite storage for compiled images.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		key TEXT PRIMARY KEY,
		image BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Key derives the cache key for a source text compiled with the given
// widths, including the image version so stale formats miss.
func Key(src string, sizes compiler.Sizes) string {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint16(buf[:2], bytecode.ImageVersion)
	h.Write(buf[:2])
	for _, n := range []int64{sizes.Int, sizes.Char, sizes.Pointer} {
		binary.BigEndian.PutUint64(buf[:], uint64(n))
		h.Write(buf[:])
	}
	h.Write([]byte(src))
	return hex.EncodeToString(h.Sum(nil))
}

// Get loads the program cached under key. It returns ErrNotCached on a
// miss.
func (s *Store) Get(key string) (*bytecode.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var image []byte
	err := s.db.QueryRow("SELECT image FROM programs WHERE key = ?", key).Scan(&image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("querying program: %w", err)
	}

	prog, err := bytecode.UnmarshalImage(image)
	if err != nil {
		return nil, fmt.Errorf("decoding cached program: %w", err)
	}
	return prog, nil
}

// Put stores a program under key, replacing any previous entry.
func (s *Store) Put(key string, prog *bytecode.Program) error {
	image, err := bytecode.MarshalImage(prog)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec("INSERT OR REPLACE INTO programs (key, image) VALUES (?, ?)", key, image)
	if err != nil {
		return fmt.Errorf("saving program: %w", err)
	}
	return nil
}

// Len returns the number of cached programs.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM programs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting programs: %w", err)
	}
	return n, nil
}

// Compile returns the cached program for src, compiling and storing it on a
// miss. hit reports whether the cache served the program.
func (s *Store) Compile(src string, sizes compiler.Sizes) (prog *bytecode.Program, hit bool, err error) {
	key := Key(src, sizes)
	prog, err = s.Get(key)
	if err == nil {
		return prog, true, nil
	}
	if !errors.Is(err, ErrNotCached) {
		return nil, false, err
	}

	prog, err = compiler.Compile(src, compiler.WithSizes(sizes))
	if err != nil {
		return nil, false, err
	}
	if err := s.Put(key, prog); err != nil {
		return nil, false, err
	}
	return prog, false, nil
}
